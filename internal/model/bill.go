package model

// BillRecord is a bill as returned by the Open States v3 API
type BillRecord struct {
	ID                      string         `json:"id"`
	Identifier              string         `json:"identifier"`
	Title                   string         `json:"title"`
	Session                 string         `json:"session,omitempty"`
	Classification          []string       `json:"classification,omitempty"`
	Subject                 []string       `json:"subject,omitempty"`
	Jurisdiction            Jurisdiction   `json:"jurisdiction"`
	FromOrganization        *Organization  `json:"from_organization,omitempty"`
	Sponsorships            []Sponsorship  `json:"sponsorships,omitempty"`
	Abstracts               []Abstract     `json:"abstracts,omitempty"`
	Sources                 []Source       `json:"sources,omitempty"`
	Actions                 []Action       `json:"actions,omitempty"`
	Documents               []BillDocument `json:"documents,omitempty"`
	Versions                []BillDocument `json:"versions,omitempty"`
	LatestActionDate        string         `json:"latest_action_date,omitempty"`
	LatestActionDescription string         `json:"latest_action_description,omitempty"`
	LatestPassageDate       string         `json:"latest_passage_date,omitempty"`
	FirstActionDate         string         `json:"first_action_date,omitempty"`
	CreatedAt               string         `json:"created_at,omitempty"`
	UpdatedAt               string         `json:"updated_at,omitempty"`
	OpenStatesURL           string         `json:"openstates_url,omitempty"`
}

// Jurisdiction identifies the legislature a bill belongs to
type Jurisdiction struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Classification string `json:"classification,omitempty"`
}

// Organization is a chamber or committee
type Organization struct {
	ID             string `json:"id,omitempty"`
	Name           string `json:"name"`
	Classification string `json:"classification,omitempty"`
}

// Sponsorship links a legislator to a bill
type Sponsorship struct {
	Name           string `json:"name"`
	EntityType     string `json:"entity_type,omitempty"`
	Primary        bool   `json:"primary"`
	Classification string `json:"classification,omitempty"`
}

// Abstract is a summary of the bill
type Abstract struct {
	Abstract string `json:"abstract"`
	Note     string `json:"note,omitempty"`
}

// Source is a URL the bill data was collected from
type Source struct {
	URL  string `json:"url"`
	Note string `json:"note,omitempty"`
}

// Action is a step in the legislative history of a bill
type Action struct {
	Description    string       `json:"description"`
	Date           string       `json:"date"`
	Organization   Organization `json:"organization"`
	Classification []string     `json:"classification,omitempty"`
	Order          int          `json:"order,omitempty"`
}

// BillDocument is a document or version attached to a bill
type BillDocument struct {
	Note  string         `json:"note"`
	Date  string         `json:"date,omitempty"`
	Links []DocumentLink `json:"links,omitempty"`
}

// DocumentLink is one rendition of a bill document
type DocumentLink struct {
	URL       string `json:"url"`
	MediaType string `json:"media_type,omitempty"`
}

// BillPage is one page of bill search results
type BillPage struct {
	Results    []BillRecord `json:"results"`
	Pagination Pagination   `json:"pagination"`
}

// Pagination describes the position of a BillPage
type Pagination struct {
	PerPage    int `json:"per_page"`
	Page       int `json:"page"`
	MaxPage    int `json:"max_page"`
	TotalItems int `json:"total_items"`
}

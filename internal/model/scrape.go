package model

// ScrapeResult is the JSON document printed by a scraper process.
// Pointer and nil slice fields are absent when the scraper did not report them.
type ScrapeResult struct {
	Success       *bool      `json:"success,omitempty"`
	MeasureNumber *string    `json:"measure_number,omitempty"`
	Title         *string    `json:"title,omitempty"`
	Status        *string    `json:"status,omitempty"`
	FilingDate    *string    `json:"filing_date,omitempty"`
	Authors       []string   `json:"authors,omitempty"`
	Eventos       []Evento   `json:"eventos"`
	Comisiones    []Comision `json:"comisiones,omitempty"`
	ScrapeTime    *float64   `json:"scrape_time,omitempty"`
	Error         string     `json:"error,omitempty"`
	ErrorCode     string     `json:"errorCode,omitempty"`
}

// SutraBill is a bill found by the introduction-date search
type SutraBill struct {
	ID            string `json:"id,omitempty"`
	MeasureNumber string `json:"measure_number"`
	Title         string `json:"title,omitempty"`
	FilingDate    string `json:"filing_date,omitempty"`
	Authors       string `json:"authors,omitempty"`
	Status        string `json:"status,omitempty"`
	URL           string `json:"url,omitempty"`
}

// BillsByDateResult is the output of the introduction-date search
type BillsByDateResult struct {
	Success        bool        `json:"success"`
	Bills          []SutraBill `json:"bills"`
	Count          int         `json:"count"`
	SearchDate     string      `json:"search_date,omitempty"`
	SearchURL      string      `json:"search_url,omitempty"`
	PagesProcessed int         `json:"pages_processed,omitempty"`
	Error          string      `json:"error,omitempty"`
}

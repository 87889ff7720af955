package model

// DocumentState tracks resolution of a DocumentRef
type DocumentState string

const (
	DocumentUnresolved DocumentState = "unresolved"
	DocumentLoading    DocumentState = "loading"
	DocumentResolved   DocumentState = "resolved"
	DocumentFailed     DocumentState = "failed"
)

// DocumentRef points at a legislative document and, once resolved,
// at the ways the browser can display it. LinkURL is the original
// source and is always offered as the download fallback.
type DocumentRef struct {
	LinkURL       string        `json:"link_url"`
	Description   string        `json:"description,omitempty"`
	Downloaded    bool          `json:"downloaded"`
	TextExtracted bool          `json:"text_extracted,omitempty"`
	FileType      string        `json:"fileType,omitempty"`
	State         DocumentState `json:"state,omitempty"`
	ProxyURL      string        `json:"proxy_url,omitempty"`
	ViewerURL     string        `json:"viewer_url,omitempty"`
	ConvertURL    string        `json:"convert_url,omitempty"`
	ServeURL      string        `json:"serve_url,omitempty"`
	FilePath      string        `json:"filepath,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// Resolved reports whether the reference is actionable
func (d DocumentRef) Resolved() bool {
	return d.State == DocumentResolved
}

package templates

//go:generate templ generate

// ViewerData describes a document and every way the page can show it
type ViewerData struct {
	Title      string
	LinkURL    string
	FileType   string
	ProxyURL   string
	ServeURL   string
	ViewerURL  string
	ConvertURL string
	Error      string
}

// frameURL is the preferred embedded source: a local copy, then the proxy,
// then the external viewer
func (d ViewerData) frameURL() string {
	switch {
	case d.ServeURL != "":
		return d.ServeURL
	case d.ProxyURL != "":
		return d.ProxyURL
	default:
		return d.ViewerURL
	}
}

func (d ViewerData) pageTitle() string {
	if d.Title == "" {
		return "Documento"
	}
	return d.Title
}

func (d ViewerData) showFrame() bool {
	return d.Error == "" && d.frameURL() != ""
}

func (d ViewerData) errorMessage() string {
	if d.Error == "" {
		return "No se puede mostrar este documento en el navegador."
	}
	return d.Error
}

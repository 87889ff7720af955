package templates

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, d ViewerData) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, DocumentViewer(d).Render(context.Background(), &buf))
	return buf.String()
}

func TestViewerEmbedsProxyForPDF(t *testing.T) {
	html := render(t, ViewerData{
		Title:     "Informe <positivo>",
		LinkURL:   "https://sutra.oslpr.org/docs/informe.pdf",
		FileType:  "pdf",
		ProxyURL:  "/api/proxy-document?url=https%3A%2F%2Fsutra.oslpr.org%2Fdocs%2Finforme.pdf",
		ViewerURL: "https://docs.google.com/viewer?url=x&embedded=true",
	})

	assert.Contains(t, html, `<iframe id="document-frame" src="/api/proxy-document?url=https%3A%2F%2Fsutra.oslpr.org%2Fdocs%2Finforme.pdf"`)
	assert.Contains(t, html, `id="viewer-link" href="https://docs.google.com/viewer?url=x&amp;embedded=true"`)
	assert.Contains(t, html, `id="download-link" href="https://sutra.oslpr.org/docs/informe.pdf"`)
	assert.Contains(t, html, "Informe &lt;positivo&gt;")
	assert.NotContains(t, html, "<positivo>")
}

func TestViewerPrefersLocalCopy(t *testing.T) {
	html := render(t, ViewerData{
		LinkURL:  "https://sutra.oslpr.org/docs/informe.pdf",
		ProxyURL: "/api/proxy-document?url=a",
		ServeURL: "/api/serve-document/abc.pdf",
	})
	assert.Contains(t, html, `src="/api/serve-document/abc.pdf"`)
}

func TestViewerDocOffersConversion(t *testing.T) {
	html := render(t, ViewerData{
		LinkURL:    "https://sutra.oslpr.org/docs/ley.doc",
		FileType:   "doc",
		ViewerURL:  "https://docs.google.com/viewer?url=y&embedded=true",
		ConvertURL: "/api/convert-doc-to-docx?docUrl=z",
	})
	assert.Contains(t, html, `src="https://docs.google.com/viewer?url=y&amp;embedded=true"`)
	assert.Contains(t, html, `id="convert-link" href="/api/convert-doc-to-docx?docUrl=z"`)
	assert.NotContains(t, html, "viewer-link")
}

func TestViewerErrorStillOffersDownload(t *testing.T) {
	html := render(t, ViewerData{
		LinkURL: "https://sutra.oslpr.org/docs/tabla.zip",
		Error:   `Unsupported document type: "zip"`,
	})
	assert.NotContains(t, html, "<iframe")
	assert.Contains(t, html, "Unsupported document type: &#34;zip&#34;")
	assert.Contains(t, html, `id="download-link" href="https://sutra.oslpr.org/docs/tabla.zip"`)
}

func TestViewerSanitizesScriptURLs(t *testing.T) {
	html := render(t, ViewerData{LinkURL: "javascript:alert(1)", ProxyURL: "/api/proxy-document?url=a"})
	assert.NotContains(t, html, "javascript:")
}

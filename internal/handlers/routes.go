package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// Timeouts bounds each scraper-backed route. Zero means no timeout.
type Timeouts struct {
	FastScrape time.Duration
	FullScrape time.Duration
	Document   time.Duration
	DateSearch time.Duration
	// Update bounds how long a bill detail stream waits for the scrape
	Update time.Duration
}

// Dependencies are the collaborators behind the API routes. Storer may be
// nil when persistence is disabled.
type Dependencies struct {
	Runner       ScrapeRunner
	Storer       BillStorer
	Proxy        DocumentStreamer
	Converter    DocumentConverter
	Resolver     DocumentResolver
	Fetcher      DocumentFetcher
	Bills        BillSearcher
	Sessions     BillSessions
	DocumentsDir string
	Timeouts     Timeouts
}

// Register mounts every API route on r
func Register(r fiber.Router, d Dependencies) {
	if d.Timeouts.Update == 0 {
		d.Timeouts.Update = 30 * time.Second
	}

	r.Get("/health", HealthHandler())

	// Scraper routes
	r.Post("/download-documents", DownloadDocumentsHandler(d.Runner, d.Timeouts.FullScrape))
	r.Post("/fast-bill-info", FastBillInfoHandler(d.Runner, d.Timeouts.FastScrape))
	r.Post("/extract-document-text", ExtractDocumentTextHandler(d.Runner, d.Timeouts.Document))
	r.Post("/bills-by-introduction-date", BillsByIntroductionDateHandler(d.Runner, d.Storer, d.Timeouts.DateSearch))

	// Document routes
	r.Post("/process-document", ProcessDocumentHandler(d.Fetcher, d.DocumentsDir))
	r.Get("/proxy-document", ProxyDocumentHandler(d.Proxy))
	r.Get("/serve-document/:filename", ServeDocumentHandler(d.DocumentsDir))
	r.Get("/convert-doc-to-docx", ConvertDocToDocxHandler(d.Converter))
	r.Post("/resolve-document", ResolveDocumentHandler(d.Resolver))
	r.Get("/view-document", ViewDocumentHandler(d.Resolver))

	// Bill routes
	r.Get("/bills", ListBillsHandler(d.Bills))
	r.Get("/bills/:id", BillDetailHandler(d.Sessions, d.Timeouts.Update))
	r.Delete("/bills/:id", CloseBillHandler(d.Sessions))
	r.Post("/bills/:id/documents/resolve", ResolveBillDocumentHandler(d.Sessions))
}

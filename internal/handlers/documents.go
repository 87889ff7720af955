package handlers

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/robertobuso/pr-bills-tracker/internal/document"
	"github.com/robertobuso/pr-bills-tracker/internal/model"
	"github.com/robertobuso/pr-bills-tracker/internal/scraper"
	"github.com/robertobuso/pr-bills-tracker/internal/templates"
)

// DocumentStreamer relays a remote document to a sink
type DocumentStreamer interface {
	Stream(ctx context.Context, rawURL string, sink document.Sink) error
}

// responseSink writes a proxied document into the fiber response
type responseSink struct {
	c *fiber.Ctx
}

func (s responseSink) SetHeader(key, value string) {
	s.c.Set(key, value)
}

func (s responseSink) SetBodyStream(body io.Reader, size int) {
	s.c.Context().SetBodyStream(body, size)
}

// DocumentConverter converts a remote .doc to .docx bytes
type DocumentConverter interface {
	Convert(ctx context.Context, sourceURL string) ([]byte, error)
}

// DocumentResolver resolves a document URL to an actionable reference
type DocumentResolver interface {
	Resolve(ctx context.Context, rawURL string) (model.DocumentRef, error)
}

// DocumentFetcher downloads a document to local storage
type DocumentFetcher interface {
	Fetch(ctx context.Context, rawURL string) (model.DocumentRef, error)
}

func setNoCache(c *fiber.Ctx) {
	c.Set(fiber.HeaderCacheControl, "no-cache, no-store, must-revalidate")
	c.Set(fiber.HeaderPragma, "no-cache")
	c.Set(fiber.HeaderExpires, "0")
}

// streamLocalFile streams a file from disk with no-cache headers
func streamLocalFile(c *fiber.Ctx, full, contentType string) error {
	f, err := os.Open(full)
	if err != nil {
		return respondError(c, document.ErrNotFound)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return respondError(c, err)
	}

	c.Set(fiber.HeaderContentType, contentType)
	setNoCache(c)
	c.Context().SetBodyStream(f, int(info.Size()))
	return nil
}

// ProcessDocumentHandler downloads a document through the scraper and
// streams the stored copy back as a PDF
func ProcessDocumentHandler(fetcher DocumentFetcher, documentsDir string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req documentRequest
		if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.DocumentURL) == "" {
			return badRequest(c, "documentUrl is required")
		}

		ref, err := fetcher.Fetch(c.UserContext(), req.DocumentURL)
		if err != nil {
			var procErr *scraper.ProcessError
			var parseErr *scraper.OutputParseError
			var emptyErr *scraper.EmptyOutputError
			if errors.As(err, &procErr) || errors.As(err, &parseErr) || errors.As(err, &emptyErr) {
				return respondError(c, err)
			}
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
				Error:   "Failed to process document",
				Details: err.Error(),
				URL:     req.DocumentURL,
			})
		}
		if ref.FilePath == "" {
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
				Error: "Document was not downloaded",
				URL:   req.DocumentURL,
			})
		}

		full, err := document.LocalFile(documentsDir, filepath.Base(ref.FilePath))
		if err != nil {
			return respondError(c, err)
		}
		return streamLocalFile(c, full, "application/pdf")
	}
}

// ProxyDocumentHandler relays a remote document. Headers are sent only after
// the upstream answered; a failure after that cuts the connection.
func ProxyDocumentHandler(streamer DocumentStreamer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		target := strings.TrimSpace(c.Query("url"))
		if target == "" {
			return badRequest(c, "url query parameter is required")
		}

		if err := streamer.Stream(c.UserContext(), target, responseSink{c: c}); err != nil {
			return respondError(c, err)
		}
		return nil
	}
}

// ServeDocumentHandler serves a previously downloaded document by name.
// The name is sanitized so it can never leave documentsDir.
func ServeDocumentHandler(documentsDir string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name, err := url.PathUnescape(c.Params("filename"))
		if err != nil {
			name = c.Params("filename")
		}

		full, err := document.LocalFile(documentsDir, name)
		if err != nil {
			log.Warnf("document not found: %q", name)
			return respondError(c, err)
		}
		return streamLocalFile(c, full, document.ContentTypeFor(full))
	}
}

// ConvertDocToDocxHandler converts a remote .doc and returns the .docx
func ConvertDocToDocxHandler(converter DocumentConverter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		docURL := strings.TrimSpace(c.Query("docUrl"))
		if docURL == "" {
			return badRequest(c, "docUrl query parameter is required")
		}

		start := time.Now()
		data, err := converter.Convert(c.UserContext(), docURL)
		if err != nil {
			return respondError(c, err)
		}
		log.Infof("converted %s in %s (%d bytes)", docURL, time.Since(start), len(data))

		c.Set(fiber.HeaderContentType, document.ContentTypeFor("x.docx"))
		c.Set(fiber.HeaderContentDisposition, `inline; filename="`+docxName(docURL)+`"`)
		setNoCache(c)
		return c.Send(data)
	}
}

// docxName derives the converted file's name from the source URL
func docxName(docURL string) string {
	base := "document"
	if u, err := url.Parse(docURL); err == nil {
		if b := strings.TrimSuffix(path.Base(u.Path), path.Ext(u.Path)); b != "" && b != "." && b != "/" {
			base = b
		}
	}
	return document.SanitizeFilename(base) + ".docx"
}

// ResolveDocumentHandler resolves a document without a bill session
func ResolveDocumentHandler(resolver DocumentResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req documentRequest
		if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.DocumentURL) == "" {
			return badRequest(c, "documentUrl is required")
		}

		ref, err := resolver.Resolve(c.UserContext(), req.DocumentURL)
		if err != nil && !errors.Is(err, document.ErrUnsupportedType) {
			return respondError(c, err)
		}
		return c.JSON(ref)
	}
}

// ViewDocumentHandler renders the document viewer page
func ViewDocumentHandler(resolver DocumentResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		target := strings.TrimSpace(c.Query("url"))
		if target == "" {
			return badRequest(c, "url query parameter is required")
		}

		data := templates.ViewerData{
			Title:   c.Query("title"),
			LinkURL: target,
		}

		ref, err := resolver.Resolve(c.UserContext(), target)
		if err != nil {
			data.Error = ref.Error
			if data.Error == "" {
				data.Error = err.Error()
			}
		} else {
			data.FileType = ref.FileType
			data.ProxyURL = ref.ProxyURL
			data.ServeURL = ref.ServeURL
			data.ViewerURL = ref.ViewerURL
			data.ConvertURL = ref.ConvertURL
		}

		page := templates.DocumentViewer(data)
		handler := adaptor.HTTPHandler(templ.Handler(page))

		return handler(c)
	}
}

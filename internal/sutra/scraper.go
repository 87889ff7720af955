// Package sutra scrapes bill pages and search results from the Puerto Rico
// legislature's SUTRA site (sutra.oslpr.org).
package sutra

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// BaseURL is the public SUTRA site
const BaseURL = "https://sutra.oslpr.org"

// Options configures a Scraper
type Options struct {
	BaseURL      string
	UserAgent    string
	VerifyTLS    bool
	DocumentsDir string
}

// Scraper fetches SUTRA pages with colly and parses them with goquery
type Scraper struct {
	baseURL      string
	userAgent    string
	documentsDir string
	transport    *http.Transport
}

// New creates a Scraper
func New(opts Options) *Scraper {
	if opts.BaseURL == "" {
		opts.BaseURL = BaseURL
	}
	if opts.DocumentsDir == "" {
		opts.DocumentsDir = "scraped_data"
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: !opts.VerifyTLS} //nolint:gosec

	return &Scraper{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		userAgent:    opts.UserAgent,
		documentsDir: opts.DocumentsDir,
		transport:    transport,
	}
}

// httpStatusError is returned when SUTRA answers with a non-200 status
type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("HTTP error: %d", e.status)
}

// fetchPage visits url and returns the parsed document
func (s *Scraper) fetchPage(ctx context.Context, url string, timeout time.Duration) (*goquery.Document, error) {
	c := colly.NewCollector()
	if s.userAgent != "" {
		c.UserAgent = s.userAgent
	}
	c.WithTransport(s.transport)
	c.SetRequestTimeout(timeout)

	var (
		doc      *goquery.Document
		parseErr error
		status   int
	)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "es-PR,es;q=0.9,en;q=0.5")
	})

	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		doc, parseErr = goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
	})

	c.OnError(func(r *colly.Response, _ error) {
		status = r.StatusCode
	})

	if err := c.Visit(url); err != nil {
		if status != 0 && status != http.StatusOK {
			return nil, &httpStatusError{status: status}
		}
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if parseErr != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", url, parseErr)
	}
	if doc == nil {
		return nil, fmt.Errorf("no response from %s", url)
	}
	if status != http.StatusOK {
		return nil, &httpStatusError{status: status}
	}
	return doc, nil
}

// isTimeout reports whether err came from an expired deadline
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// absoluteURL prefixes SUTRA-relative links with the site root
func (s *Scraper) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return s.baseURL + href
}

// cleanText collapses runs of whitespace
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// labelled returns the leaf elements matching selector whose text contains label
func labelled(root *goquery.Selection, selector, label string) *goquery.Selection {
	return root.Find(selector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Children().Length() == 0 && strings.Contains(s.Text(), label)
	})
}

// nextMatching returns the first element after from, in document order,
// that matches selector.
func nextMatching(root, from *goquery.Selection, selector string) *goquery.Selection {
	var (
		seen bool
		out  *goquery.Selection
	)
	root.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !seen {
			seen = s.IsSelection(from)
			return true
		}
		if s.Is(selector) {
			out = s
			return false
		}
		return true
	})
	return out
}

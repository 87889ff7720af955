package document

import (
	"context"
	"errors"
	"time"

	"github.com/robertobuso/pr-bills-tracker/internal/model"
	"github.com/robertobuso/pr-bills-tracker/internal/scraper"
)

// ScraperFetcher downloads documents by running the scraper's document script
type ScraperFetcher struct {
	invoker *scraper.Invoker
	timeout time.Duration
}

// NewScraperFetcher creates a ScraperFetcher
func NewScraperFetcher(invoker *scraper.Invoker, timeout time.Duration) *ScraperFetcher {
	return &ScraperFetcher{invoker: invoker, timeout: timeout}
}

// Fetch runs "document <url>" and returns the reported DocumentRef
func (f *ScraperFetcher) Fetch(ctx context.Context, rawURL string) (model.DocumentRef, error) {
	var ref model.DocumentRef
	if err := f.invoker.RunInto(ctx, scraper.ScriptDocument, []string{rawURL}, f.timeout, &ref); err != nil {
		return ref, err
	}
	if ref.Error != "" {
		return ref, errors.New(ref.Error)
	}
	return ref, nil
}

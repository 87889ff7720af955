package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robertobuso/pr-bills-tracker/internal/model"
)

// ScrapeRepository persists bill scrapes
type ScrapeRepository interface {
	SaveScrapeWithSnapshot(ctx context.Context, b *model.BillScrape) (bool, error)
	GetByBillID(ctx context.Context, billID string) (*model.BillScrape, error)
}

// SnapshotRecorder stores successful scrapes with change tracking and
// serves the last one back when a scrape fails
type SnapshotRecorder struct {
	repo   ScrapeRepository
	parser *Parser
	now    func() time.Time
}

// NewSnapshotRecorder creates a SnapshotRecorder
func NewSnapshotRecorder(repo ScrapeRepository, parser *Parser) *SnapshotRecorder {
	return &SnapshotRecorder{repo: repo, parser: parser, now: time.Now}
}

// SaveSnapshot stores result and reports whether its content changed
func (r *SnapshotRecorder) SaveSnapshot(ctx context.Context, billID, sourceURL string, result *model.ScrapeResult) (bool, error) {
	parsed, err := r.parser.Parse(result)
	if err != nil {
		return false, err
	}

	scrape := &model.BillScrape{
		BillID:        billID,
		SourceURL:     sourceURL,
		EventoCount:   parsed.EventoCount,
		DocumentCount: parsed.DocumentCount,
		Checksum:      parsed.Checksum,
		Result:        parsed.Canonical,
		FetchedAt:     r.now(),
	}
	if result.MeasureNumber != nil {
		scrape.MeasureNumber = sql.NullString{String: *result.MeasureNumber, Valid: true}
	}

	changed, err := r.repo.SaveScrapeWithSnapshot(ctx, scrape)
	if err != nil {
		return false, fmt.Errorf("failed to save scrape: %w", err)
	}
	return changed, nil
}

// LatestSnapshot returns the most recent stored scrape of a bill, or nil
func (r *SnapshotRecorder) LatestSnapshot(ctx context.Context, billID string) (*model.ScrapeResult, time.Time, error) {
	scrape, err := r.repo.GetByBillID(ctx, billID)
	if err != nil {
		return nil, time.Time{}, err
	}
	if scrape == nil {
		return nil, time.Time{}, nil
	}

	var result model.ScrapeResult
	if err := json.Unmarshal(scrape.Result, &result); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to decode stored scrape for bill %s: %w", billID, err)
	}
	return &result, scrape.FetchedAt, nil
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/robertobuso/pr-bills-tracker/internal/model"
	"github.com/robertobuso/pr-bills-tracker/internal/scraper"
	"golang.org/x/sync/errgroup"
)

const defaultImportConcurrency = 3

// ImportStats tracks import statistics
type ImportStats struct {
	Days       int
	Searched   int
	FailedDays int
	Total      int
	Inserted   int
	Updated    int
	Failed     int
}

// DateSearcher finds the bills filed on a day (YYYY-MM-DD)
type DateSearcher interface {
	SearchByDate(ctx context.Context, day string) (*model.BillsByDateResult, error)
}

// BillRepository stores bills found by the date search
type BillRepository interface {
	UpsertBill(ctx context.Context, b *model.StoredSutraBill) (bool, error)
}

// ImportObserver counts stored bills by status
type ImportObserver interface {
	ObserveImport(status string)
}

// InvokerSearcher runs the by-date scraper script
type InvokerSearcher struct {
	invoker *scraper.Invoker
	timeout time.Duration
}

// NewInvokerSearcher creates an InvokerSearcher
func NewInvokerSearcher(invoker *scraper.Invoker, timeout time.Duration) *InvokerSearcher {
	return &InvokerSearcher{invoker: invoker, timeout: timeout}
}

// SearchByDate implements DateSearcher
func (s *InvokerSearcher) SearchByDate(ctx context.Context, day string) (*model.BillsByDateResult, error) {
	var result model.BillsByDateResult
	if err := s.invoker.RunInto(ctx, scraper.ScriptByDate, []string{day}, s.timeout, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Importer orchestrates the import of bills by introduction date
type Importer struct {
	searcher    DateSearcher
	bills       BillRepository
	observer    ImportObserver
	concurrency int
	logger      *log.Logger
	errLogger   *log.Logger
	mu          sync.Mutex
}

// NewImporter creates a new Importer. observer may be nil.
func NewImporter(searcher DateSearcher, bills BillRepository, observer ImportObserver) *Importer {
	return &Importer{
		searcher:    searcher,
		bills:       bills,
		observer:    observer,
		concurrency: defaultImportConcurrency,
		logger:      log.New(os.Stdout, "", log.LstdFlags),
		errLogger:   log.New(os.Stderr, "ERROR: ", log.LstdFlags),
	}
}

// SetConcurrency sets how many days are searched at once
func (i *Importer) SetConcurrency(n int) {
	if n > 0 {
		i.concurrency = n
	}
}

// Import searches every day from from to to (inclusive) and stores the bills
func (i *Importer) Import(ctx context.Context, from, to time.Time) (*ImportStats, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range: %s is before %s", to.Format("2006-01-02"), from.Format("2006-01-02"))
	}

	var days []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format("2006-01-02"))
	}

	stats := &ImportStats{Days: len(days)}
	i.logger.Printf("Found %d days to search", stats.Days)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)

	for idx, day := range days {
		progress := fmt.Sprintf("[%d/%d]", idx+1, stats.Days)
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			i.logger.Printf("%s Searching bills filed on %s...", progress, day)
			result, err := i.searcher.SearchByDate(gctx, day)
			if err == nil && !result.Success {
				err = errors.New(result.Error)
			}
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				i.errLogger.Printf("Failed to search %s: %v", day, err)
				i.mu.Lock()
				stats.FailedDays++
				i.mu.Unlock()
				return nil
			}

			i.logger.Printf("  %s: %d bills", day, len(result.Bills))
			i.mu.Lock()
			stats.Searched++
			i.mu.Unlock()

			searchDate, _ := time.Parse("2006-01-02", day)
			i.store(gctx, searchDate, result.Bills, stats)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

// StoreBills stores bills returned by a single date search
func (i *Importer) StoreBills(ctx context.Context, searchDate time.Time, bills []model.SutraBill) *ImportStats {
	stats := &ImportStats{Days: 1, Searched: 1}
	i.store(ctx, searchDate, bills, stats)
	return stats
}

func (i *Importer) store(ctx context.Context, searchDate time.Time, bills []model.SutraBill, stats *ImportStats) {
	for _, b := range bills {
		if ctx.Err() != nil {
			return
		}

		stored := &model.StoredSutraBill{
			SutraID:       sql.NullString{String: b.ID, Valid: b.ID != ""},
			MeasureNumber: b.MeasureNumber,
			Title:         b.Title,
			Authors:       b.Authors,
			Status:        b.Status,
			URL:           b.URL,
			SearchDate:    searchDate,
		}
		if d, ok := model.ParseFecha(b.FilingDate); ok {
			stored.FilingDate = sql.NullTime{Time: d, Valid: true}
		}

		status := "failed"
		inserted, err := i.bills.UpsertBill(ctx, stored)
		switch {
		case err != nil:
			i.errLogger.Printf("Failed to store bill %s: %v", b.MeasureNumber, err)
		case inserted:
			status = "inserted"
		default:
			status = "updated"
		}

		i.mu.Lock()
		stats.Total++
		switch status {
		case "inserted":
			stats.Inserted++
		case "updated":
			stats.Updated++
		default:
			stats.Failed++
		}
		i.mu.Unlock()

		if i.observer != nil {
			i.observer.ObserveImport(status)
		}
	}
}

// PrintSummary prints the import statistics
func (i *Importer) PrintSummary(stats *ImportStats) {
	i.logger.Println("")
	i.logger.Println("=== Import Summary ===")
	i.logger.Printf("Days searched:   %d/%d", stats.Searched, stats.Days)
	i.logger.Printf("Failed days:     %d", stats.FailedDays)
	i.logger.Printf("Total bills:     %d", stats.Total)
	i.logger.Printf("Inserted:        %d", stats.Inserted)
	i.logger.Printf("Updated:         %d", stats.Updated)
	i.logger.Printf("Failed:          %d", stats.Failed)

	if stats.Total > 0 {
		successRate := float64(stats.Inserted+stats.Updated) / float64(stats.Total) * 100
		i.logger.Printf("Success rate:    %.1f%%", successRate)
	}
}

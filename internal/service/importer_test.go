package service

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/robertobuso/pr-bills-tracker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	mu      sync.Mutex
	days    []string
	results map[string]*model.BillsByDateResult
}

func (f *fakeSearcher) SearchByDate(ctx context.Context, day string) (*model.BillsByDateResult, error) {
	f.mu.Lock()
	f.days = append(f.days, day)
	f.mu.Unlock()

	r, ok := f.results[day]
	if !ok {
		return nil, errors.New("scraper exited with status 1")
	}
	return r, nil
}

type fakeBillRepo struct {
	mu   sync.Mutex
	rows map[string]*model.StoredSutraBill
	fail string
}

func (f *fakeBillRepo) UpsertBill(ctx context.Context, b *model.StoredSutraBill) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b.MeasureNumber == f.fail {
		return false, errors.New("constraint violation")
	}
	_, exists := f.rows[b.MeasureNumber]
	f.rows[b.MeasureNumber] = b
	return !exists, nil
}

type importCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *importCounter) ObserveImport(status string) {
	c.mu.Lock()
	c.counts[status]++
	c.mu.Unlock()
}

func quietImporter(s DateSearcher, r BillRepository, o ImportObserver) *Importer {
	imp := NewImporter(s, r, o)
	imp.logger = log.New(io.Discard, "", 0)
	imp.errLogger = log.New(io.Discard, "", 0)
	return imp
}

func TestImportRange(t *testing.T) {
	searcher := &fakeSearcher{results: map[string]*model.BillsByDateResult{
		"2024-03-01": {Success: true, Bills: []model.SutraBill{
			{ID: "150001", MeasureNumber: "PC0001", FilingDate: "03/01/2024"},
			{ID: "150002", MeasureNumber: "PC0002", FilingDate: "03/01/2024"},
		}},
		"2024-03-02": {Success: true, Bills: []model.SutraBill{
			{MeasureNumber: "PC0001", FilingDate: "03/01/2024"},
			{MeasureNumber: "PS0009", FilingDate: "03/02/2024"},
		}},
		"2024-03-04": {Success: false, Error: "Request timed out"},
	}}
	repo := &fakeBillRepo{rows: map[string]*model.StoredSutraBill{}, fail: "PS0009"}
	counter := &importCounter{counts: map[string]int{}}

	imp := quietImporter(searcher, repo, counter)
	imp.SetConcurrency(1)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	stats, err := imp.Import(context.Background(), from, to)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Days)
	assert.Equal(t, 2, stats.Searched)
	assert.Equal(t, 2, stats.FailedDays)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Inserted)
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 1, stats.Failed)

	assert.Equal(t, []string{"2024-03-01", "2024-03-02", "2024-03-03", "2024-03-04"}, searcher.days)
	assert.Equal(t, map[string]int{"inserted": 2, "updated": 1, "failed": 1}, counter.counts)

	stored := repo.rows["PC0002"]
	require.NotNil(t, stored)
	assert.True(t, stored.SutraID.Valid)
	assert.True(t, stored.FilingDate.Valid)
	assert.Equal(t, from, stored.SearchDate)
	assert.False(t, repo.rows["PC0001"].SutraID.Valid)
}

func TestImportConcurrent(t *testing.T) {
	results := map[string]*model.BillsByDateResult{}
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for d := 0; d < 10; d++ {
		day := from.AddDate(0, 0, d).Format("2006-01-02")
		results[day] = &model.BillsByDateResult{Success: true, Bills: []model.SutraBill{{MeasureNumber: "M" + day}}}
	}
	repo := &fakeBillRepo{rows: map[string]*model.StoredSutraBill{}}

	imp := quietImporter(&fakeSearcher{results: results}, repo, nil)
	stats, err := imp.Import(context.Background(), from, from.AddDate(0, 0, 9))
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Inserted)
	assert.Len(t, repo.rows, 10)
}

func TestImportInvalidRange(t *testing.T) {
	imp := quietImporter(&fakeSearcher{}, &fakeBillRepo{}, nil)
	from := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	_, err := imp.Import(context.Background(), from, from.AddDate(0, 0, -1))
	assert.Error(t, err)
}

func TestImportCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	imp := quietImporter(&fakeSearcher{}, &fakeBillRepo{rows: map[string]*model.StoredSutraBill{}}, nil)
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := imp.Import(ctx, from, from.AddDate(0, 0, 2))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStoreBills(t *testing.T) {
	repo := &fakeBillRepo{rows: map[string]*model.StoredSutraBill{}}
	imp := quietImporter(nil, repo, nil)

	stats := imp.StoreBills(context.Background(), time.Now(), []model.SutraBill{{MeasureNumber: "PC0100"}})
	assert.Equal(t, 1, stats.Inserted)
	imp.PrintSummary(stats)
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robertobuso/pr-bills-tracker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockScrapeRepo struct{ mock.Mock }

func (m *mockScrapeRepo) SaveScrapeWithSnapshot(ctx context.Context, b *model.BillScrape) (bool, error) {
	args := m.Called(ctx, b)
	return args.Bool(0), args.Error(1)
}

func (m *mockScrapeRepo) GetByBillID(ctx context.Context, billID string) (*model.BillScrape, error) {
	args := m.Called(ctx, billID)
	scrape, _ := args.Get(0).(*model.BillScrape)
	return scrape, args.Error(1)
}

func TestSnapshotRecorderRoundTrip(t *testing.T) {
	repo := new(mockScrapeRepo)
	rec := NewSnapshotRecorder(repo, NewParser())
	fetched := time.Date(2024, 3, 6, 8, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return fetched }

	var saved *model.BillScrape
	repo.On("SaveScrapeWithSnapshot", mock.Anything, mock.AnythingOfType("*model.BillScrape")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*model.BillScrape) }).
		Return(true, nil)

	changed, err := rec.SaveSnapshot(context.Background(), "ocd-bill/abc", sutraURL, scrapedResult())
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, saved)
	assert.Equal(t, "P. de la C. 1", saved.MeasureNumber.String)
	assert.Equal(t, 2, saved.EventoCount)
	assert.Equal(t, 1, saved.DocumentCount)
	assert.Equal(t, fetched, saved.FetchedAt)

	repo.On("GetByBillID", mock.Anything, "ocd-bill/abc").Return(saved, nil)
	result, at, err := rec.LatestSnapshot(context.Background(), "ocd-bill/abc")
	require.NoError(t, err)
	assert.Equal(t, fetched, at)
	require.Len(t, result.Eventos, 2)
	assert.Equal(t, "Aprobado en Votación Final", result.Eventos[0].Descripcion)
}

func TestSnapshotRecorderMissing(t *testing.T) {
	repo := new(mockScrapeRepo)
	repo.On("GetByBillID", mock.Anything, "none").Return(nil, nil)
	repo.On("GetByBillID", mock.Anything, "broken").Return(nil, errors.New("connection refused"))

	rec := NewSnapshotRecorder(repo, NewParser())

	result, _, err := rec.LatestSnapshot(context.Background(), "none")
	require.NoError(t, err)
	assert.Nil(t, result)

	_, _, err = rec.LatestSnapshot(context.Background(), "broken")
	assert.Error(t, err)
}

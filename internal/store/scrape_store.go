package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/robertobuso/pr-bills-tracker/internal/model"
)

// ScrapeStore handles database operations for bill scrapes
type ScrapeStore struct {
	db *sql.DB
}

// NewScrapeStore creates a new ScrapeStore
func NewScrapeStore(db *sql.DB) *ScrapeStore {
	return &ScrapeStore{db: db}
}

// GetByBillID retrieves the latest scrape of a bill
func (s *ScrapeStore) GetByBillID(ctx context.Context, billID string) (*model.BillScrape, error) {
	query := `
		SELECT id, bill_id, source_url, measure_number, evento_count,
		       document_count, checksum, result, fetched_at, created_at
		FROM bill_scrapes
		WHERE bill_id = $1
	`

	var b model.BillScrape
	err := s.db.QueryRowContext(ctx, query, billID).Scan(
		&b.ID,
		&b.BillID,
		&b.SourceURL,
		&b.MeasureNumber,
		&b.EventoCount,
		&b.DocumentCount,
		&b.Checksum,
		(*[]byte)(&b.Result),
		&b.FetchedAt,
		&b.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scrape for bill %s: %w", billID, err)
	}

	return &b, nil
}

// SaveScrapeWithSnapshot saves the current scrape and only creates a snapshot
// if the content changed since the most recent snapshot
func (s *ScrapeStore) SaveScrapeWithSnapshot(ctx context.Context, b *model.BillScrape) (changed bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var lastChecksum sql.NullString
	checksumQuery := `
		SELECT checksum FROM scrape_snapshots
		WHERE bill_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	err = tx.QueryRowContext(ctx, checksumQuery, b.BillID).Scan(&lastChecksum)
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("failed to read last checksum for bill %s: %w", b.BillID, err)
	}

	changed = !lastChecksum.Valid || lastChecksum.String != b.Checksum

	upsertQuery := `
		INSERT INTO bill_scrapes (bill_id, source_url, measure_number, evento_count,
		                          document_count, checksum, result, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (bill_id) DO UPDATE SET
			source_url = EXCLUDED.source_url,
			measure_number = EXCLUDED.measure_number,
			evento_count = EXCLUDED.evento_count,
			document_count = EXCLUDED.document_count,
			checksum = EXCLUDED.checksum,
			result = EXCLUDED.result,
			fetched_at = EXCLUDED.fetched_at
		RETURNING id
	`

	err = tx.QueryRowContext(ctx, upsertQuery,
		b.BillID,
		b.SourceURL,
		b.MeasureNumber,
		b.EventoCount,
		b.DocumentCount,
		b.Checksum,
		[]byte(b.Result),
		b.FetchedAt,
	).Scan(&b.ID)
	if err != nil {
		return false, fmt.Errorf("failed to upsert scrape for bill %s: %w", b.BillID, err)
	}

	if changed {
		snapshotQuery := `
			INSERT INTO scrape_snapshots (bill_id, source_url, evento_count,
			                              document_count, checksum, result, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`

		_, err = tx.ExecContext(ctx, snapshotQuery,
			b.BillID,
			b.SourceURL,
			b.EventoCount,
			b.DocumentCount,
			b.Checksum,
			[]byte(b.Result),
			b.FetchedAt,
		)
		if err != nil {
			return false, fmt.Errorf("failed to insert snapshot for bill %s: %w", b.BillID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return changed, nil
}

// GetSnapshots retrieves all snapshots for a bill, newest first
func (s *ScrapeStore) GetSnapshots(ctx context.Context, billID string) ([]model.ScrapeSnapshot, error) {
	query := `
		SELECT id, bill_id, source_url, evento_count, document_count,
		       checksum, result, created_at
		FROM scrape_snapshots
		WHERE bill_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := s.db.QueryContext(ctx, query, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshots for bill %s: %w", billID, err)
	}
	defer rows.Close()

	var snapshots []model.ScrapeSnapshot
	for rows.Next() {
		var snap model.ScrapeSnapshot
		err := rows.Scan(
			&snap.ID,
			&snap.BillID,
			&snap.SourceURL,
			&snap.EventoCount,
			&snap.DocumentCount,
			&snap.Checksum,
			(*[]byte)(&snap.Result),
			&snap.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}

	return snapshots, rows.Err()
}

// CountScrapes returns the number of bills with a stored scrape
func (s *ScrapeStore) CountScrapes(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bill_scrapes").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count scrapes: %w", err)
	}
	return count, nil
}

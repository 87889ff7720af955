package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/robertobuso/pr-bills-tracker/internal/model"
)

// SutraBillStore handles database operations for bills found by the
// introduction-date search
type SutraBillStore struct {
	db *sql.DB
}

// NewSutraBillStore creates a new SutraBillStore
func NewSutraBillStore(db *sql.DB) *SutraBillStore {
	return &SutraBillStore{db: db}
}

// UpsertBill inserts or updates a bill keyed by measure number. It reports
// whether the row was newly inserted.
func (s *SutraBillStore) UpsertBill(ctx context.Context, b *model.StoredSutraBill) (inserted bool, err error) {
	query := `
		INSERT INTO sutra_bills (sutra_id, measure_number, title, filing_date, authors,
		                         status, url, search_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (measure_number) DO UPDATE SET
			sutra_id = COALESCE(EXCLUDED.sutra_id, sutra_bills.sutra_id),
			title = EXCLUDED.title,
			filing_date = COALESCE(EXCLUDED.filing_date, sutra_bills.filing_date),
			authors = EXCLUDED.authors,
			status = EXCLUDED.status,
			url = EXCLUDED.url,
			search_date = EXCLUDED.search_date,
			updated_at = EXCLUDED.updated_at
		RETURNING id, (xmax = 0)
	`

	b.UpdatedAt = time.Now()
	err = s.db.QueryRowContext(ctx, query,
		b.SutraID,
		b.MeasureNumber,
		b.Title,
		b.FilingDate,
		b.Authors,
		b.Status,
		b.URL,
		b.SearchDate,
		b.UpdatedAt,
	).Scan(&b.ID, &inserted)

	if err != nil {
		return false, fmt.Errorf("failed to upsert bill %s: %w", b.MeasureNumber, err)
	}

	return inserted, nil
}

// GetByMeasureNumber retrieves a bill by its measure number
func (s *SutraBillStore) GetByMeasureNumber(ctx context.Context, measure string) (*model.StoredSutraBill, error) {
	query := `
		SELECT id, sutra_id, measure_number, title, filing_date, authors,
		       status, url, search_date, updated_at
		FROM sutra_bills
		WHERE measure_number = $1
	`

	b, err := scanSutraBill(s.db.QueryRowContext(ctx, query, measure))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill %s: %w", measure, err)
	}

	return b, nil
}

// GetByFilingDate retrieves all bills filed on the given day
func (s *SutraBillStore) GetByFilingDate(ctx context.Context, day time.Time) ([]model.StoredSutraBill, error) {
	query := `
		SELECT id, sutra_id, measure_number, title, filing_date, authors,
		       status, url, search_date, updated_at
		FROM sutra_bills
		WHERE filing_date = $1
		ORDER BY measure_number
	`

	rows, err := s.db.QueryContext(ctx, query, day.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to get bills for %s: %w", day.Format("2006-01-02"), err)
	}
	defer rows.Close()

	var bills []model.StoredSutraBill
	for rows.Next() {
		b, err := scanSutraBill(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		bills = append(bills, *b)
	}

	return bills, rows.Err()
}

// CountBills returns the total number of stored bills
func (s *SutraBillStore) CountBills(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sutra_bills").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bills: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSutraBill(row rowScanner) (*model.StoredSutraBill, error) {
	var b model.StoredSutraBill
	err := row.Scan(
		&b.ID,
		&b.SutraID,
		&b.MeasureNumber,
		&b.Title,
		&b.FilingDate,
		&b.Authors,
		&b.Status,
		&b.URL,
		&b.SearchDate,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

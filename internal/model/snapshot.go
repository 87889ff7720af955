package model

import (
	"database/sql"
	"encoding/json"
	"time"
)

// BillScrape is the latest scrape of a bill
type BillScrape struct {
	ID            int
	BillID        string
	SourceURL     string
	MeasureNumber sql.NullString
	EventoCount   int
	DocumentCount int
	Checksum      string
	Result        json.RawMessage
	FetchedAt     time.Time
	CreatedAt     time.Time
}

// ScrapeSnapshot is a historical scrape of a bill, written only when the
// scraped content changed
type ScrapeSnapshot struct {
	ID            int
	BillID        string
	SourceURL     string
	EventoCount   int
	DocumentCount int
	Checksum      string
	Result        json.RawMessage
	CreatedAt     time.Time
}

// StoredSutraBill is a bill found by the introduction-date search
type StoredSutraBill struct {
	ID            int
	SutraID       sql.NullString
	MeasureNumber string
	Title         string
	FilingDate    sql.NullTime
	Authors       string
	Status        string
	URL           string
	SearchDate    time.Time
	UpdatedAt     time.Time
}

package service

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/robertobuso/pr-bills-tracker/internal/model"
)

// ParseResult contains the metrics extracted from a scrape
type ParseResult struct {
	EventoCount   int
	DocumentCount int
	VoteCount     int
	Checksum      string
	// Canonical is the scrape without timing fields, as stored
	Canonical json.RawMessage
}

// Parser digests scrape results for change tracking
type Parser struct{}

// NewParser creates a new Parser
func NewParser() *Parser {
	return &Parser{}
}

// Parse extracts metrics from a scrape. The checksum ignores scrape_time and
// the success flag so that identical content always hashes the same.
func (p *Parser) Parse(result *model.ScrapeResult) (*ParseResult, error) {
	canonical := *result
	canonical.ScrapeTime = nil
	canonical.Success = nil
	canonical.Eventos = append([]model.Evento(nil), result.Eventos...)
	model.SortEventos(canonical.Eventos)

	content, err := json.Marshal(canonical)
	if err != nil {
		return nil, fmt.Errorf("failed to encode scrape: %w", err)
	}

	parsed := &ParseResult{
		EventoCount: len(canonical.Eventos),
		Checksum:    p.calculateChecksum(content),
		Canonical:   content,
	}

	for _, e := range canonical.Eventos {
		parsed.DocumentCount += len(e.Documents)
		if e.Votes != nil {
			parsed.VoteCount++
		}
	}
	for _, c := range canonical.Comisiones {
		parsed.DocumentCount += len(c.Documents)
	}

	return parsed, nil
}

// calculateChecksum computes MD5 hash of content
func (p *Parser) calculateChecksum(content []byte) string {
	hash := md5.Sum(content)
	return hex.EncodeToString(hash[:])
}

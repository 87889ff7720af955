package model

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"
)

// EventoTipo distinguishes procedural steps from votes
type EventoTipo string

const (
	TipoTramite  EventoTipo = "tramite"
	TipoVotacion EventoTipo = "votacion"
)

// Evento is a normalized legislative action or vote
type Evento struct {
	Descripcion   string        `json:"descripcion"`
	Fecha         string        `json:"fecha,omitempty"`
	Tipo          EventoTipo    `json:"tipo"`
	Comision      string        `json:"comision,omitempty"`
	Camara        string        `json:"camara,omitempty"`
	Votes         VoteTally     `json:"votes,omitempty"`
	Documents     []DocumentRef `json:"documents,omitempty"`
	DocumentCount int           `json:"document_count,omitempty"`
}

// Comision is a committee the bill was referred to
type Comision struct {
	Comision  string        `json:"comision"`
	Documents []DocumentRef `json:"documents,omitempty"`
}

// VoteTally maps a vote category ("Votos a favor", ...) to its count.
// A nil tally means the source reported no votes.
type VoteTally map[string]VoteCount

// VoteCount holds a numeric count, or the raw text when the source
// reported something that is not a number.
type VoteCount struct {
	Value int
	Text  string
}

// UnmarshalJSON accepts both numbers and strings
func (v *VoteCount) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*v = VoteCount{Value: n}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		*v = VoteCount{Value: n}
		return nil
	}
	*v = VoteCount{Text: s}
	return nil
}

// MarshalJSON writes the count as a number unless only text is known
func (v VoteCount) MarshalJSON() ([]byte, error) {
	if v.Text != "" {
		return json.Marshal(v.Text)
	}
	return json.Marshal(v.Value)
}

// fechaLayouts are the date formats seen in Sutra pages and Open States
var fechaLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseFecha parses an evento or action date
func ParseFecha(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range fechaLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SortEventos orders eventos newest first. Missing or invalid dates sort last.
func SortEventos(eventos []Evento) {
	sort.SliceStable(eventos, func(i, j int) bool {
		a, okA := ParseFecha(eventos[i].Fecha)
		b, okB := ParseFecha(eventos[j].Fecha)
		switch {
		case okA && okB:
			return a.After(b)
		case okA:
			return true
		default:
			return false
		}
	})
}

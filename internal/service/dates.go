package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/robertobuso/pr-bills-tracker/internal/model"
)

// ErrInvalidDate is returned by NormalizeDate for unrecognized input
var ErrInvalidDate = errors.New("invalid date")

// ProcessedDate is the best available date of one kind and where it came from
type ProcessedDate struct {
	Date        *time.Time `json:"date"`
	Source      string     `json:"source"`
	Description string     `json:"description,omitempty"`
}

// ProcessedDates are the derived latest, created and passage dates of a bill
type ProcessedDates struct {
	Latest  ProcessedDate `json:"latest"`
	Created ProcessedDate `json:"created"`
	Passage ProcessedDate `json:"passage"`
}

var (
	introductionKeywords = []string{"introduced", "filed", "presentada"}
	passageKeywords      = []string{"passed", "approved", "aprobado", "votación", "enacted", "signed"}
)

// ProcessDates derives the bill's dates, each from the most reliable source
// available. Future dates are distrusted where the source can be stale.
func ProcessDates(bill *model.BillRecord, now time.Time) ProcessedDates {
	return ProcessedDates{
		Latest:  latestDate(bill, now),
		Created: createdDate(bill),
		Passage: passageDate(bill, now),
	}
}

func latestDate(bill *model.BillRecord, now time.Time) ProcessedDate {
	if sorted := SortActions(bill.Actions); len(sorted) > 0 {
		if d, ok := model.ParseFecha(sorted[0].Date); ok && !d.After(now) {
			return ProcessedDate{Date: &d, Source: "actions_array", Description: sorted[0].Description}
		}
	}
	if d, ok := model.ParseFecha(bill.LatestActionDate); ok && !d.After(now) {
		return ProcessedDate{Date: &d, Source: "latest_action_date", Description: bill.LatestActionDescription}
	}
	if d, ok := model.ParseFecha(bill.UpdatedAt); ok && !d.After(now) {
		return ProcessedDate{Date: &d, Source: "updated_at"}
	}
	if d, ok := model.ParseFecha(bill.CreatedAt); ok {
		return ProcessedDate{Date: &d, Source: "created_at"}
	}
	return ProcessedDate{Source: "not_found"}
}

func createdDate(bill *model.BillRecord) ProcessedDate {
	if len(bill.Actions) > 0 {
		if a, ok := findAction(bill.Actions, introductionKeywords); ok {
			if d, ok := model.ParseFecha(a.Date); ok {
				return ProcessedDate{Date: &d, Source: "introduction_action", Description: a.Description}
			}
		}

		sorted := SortActions(bill.Actions)
		for i := len(sorted) - 1; i >= 0; i-- {
			if d, ok := model.ParseFecha(sorted[i].Date); ok {
				return ProcessedDate{Date: &d, Source: "earliest_action", Description: sorted[i].Description}
			}
		}
	}
	if d, ok := model.ParseFecha(bill.CreatedAt); ok {
		return ProcessedDate{Date: &d, Source: "created_at"}
	}
	return ProcessedDate{Source: "not_found"}
}

func passageDate(bill *model.BillRecord, now time.Time) ProcessedDate {
	if a, ok := findAction(bill.Actions, passageKeywords); ok {
		if d, ok := model.ParseFecha(a.Date); ok {
			return ProcessedDate{Date: &d, Source: "passage_action", Description: a.Description}
		}
	}
	if d, ok := model.ParseFecha(bill.LatestPassageDate); ok && !d.After(now) {
		return ProcessedDate{Date: &d, Source: "latest_passage_date"}
	}
	return ProcessedDate{Source: "not_found"}
}

// findAction returns the first action, in the record's order, whose
// description contains any keyword.
func findAction(actions []model.Action, keywords []string) (model.Action, bool) {
	for _, a := range actions {
		desc := strings.ToLower(a.Description)
		for _, k := range keywords {
			if strings.Contains(desc, k) {
				return a, true
			}
		}
	}
	return model.Action{}, false
}

// SortActions returns a copy of actions ordered newest first. Actions on the
// same date are ordered by ActionPriority. Actions with missing or invalid
// dates sort last.
func SortActions(actions []model.Action) []model.Action {
	sorted := make([]model.Action, len(actions))
	copy(sorted, actions)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, okA := model.ParseFecha(sorted[i].Date)
		b, okB := model.ParseFecha(sorted[j].Date)
		switch {
		case okA && okB:
			if a.Equal(b) {
				return ActionPriority(sorted[i].Description) > ActionPriority(sorted[j].Description)
			}
			return a.After(b)
		case okA:
			return true
		default:
			return false
		}
	})
	return sorted
}

// NormalizeDate converts MM/DD/YYYY to YYYY-MM-DD. YYYY-MM-DD input is
// returned unchanged.
func NormalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if _, err := time.Parse("2006-01-02", s); err == nil {
		return s, nil
	}
	for _, layout := range []string{"01/02/2006", "1/2/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("%w: %q, expected MM/DD/YYYY or YYYY-MM-DD", ErrInvalidDate, s)
}

// StatusLabel summarizes a bill's state from its most recent action
func StatusLabel(bill *model.BillRecord) string {
	if len(bill.Actions) == 0 {
		return "Unknown"
	}
	latest := strings.ToLower(SortActions(bill.Actions)[0].Description)
	switch {
	case containsAny(latest, "signed", "enacted", "approved"):
		return "Enacted"
	case strings.Contains(latest, "vetoed"):
		return "Vetoed"
	case strings.Contains(latest, "passed"):
		return "Passed"
	case containsAny(latest, "introduced", "filed"):
		return "Introduced"
	case strings.Contains(latest, "committee"):
		return "In Committee"
	default:
		return "Active"
	}
}

// ActionPriority ranks an action description for ordering actions that share
// a date: votes and passage first, routine referrals last.
func ActionPriority(description string) int {
	desc := strings.ToLower(description)
	switch {
	case containsAny(desc, "votación", "aprobado", "passed", "enacted"):
		return 3
	case containsAny(desc, "lectura", "calendario", "informe"):
		return 2
	case containsAny(desc, "referido", "comisión"):
		return 1
	default:
		return 0
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

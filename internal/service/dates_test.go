package service

import (
	"testing"
	"time"

	"github.com/robertobuso/pr-bills-tracker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"03/15/2024", "2024-03-15"},
		{"3/5/2024", "2024-03-05"},
		{"2024-03-15", "2024-03-15"},
		{" 2024-03-15 ", "2024-03-15"},
	}
	for _, tt := range tests {
		got, err := NormalizeDate(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range []string{"", "15/03/2024", "2024/03/15", "March 15"} {
		_, err := NormalizeDate(bad)
		assert.ErrorIs(t, err, ErrInvalidDate, bad)
	}
}

func TestProcessDatesFromActions(t *testing.T) {
	bill := &model.BillRecord{
		Actions: []model.Action{
			{Description: "Filed in the House", Date: "2024-01-10"},
			{Description: "Passed second reading", Date: "2024-04-02"},
			{Description: "Referred to committee", Date: "2024-02-15"},
			{Description: "Scheduled hearing", Date: "2024-09-01"},
		},
		LatestActionDate:  "2024-04-02",
		LatestPassageDate: "2024-04-02",
	}

	dates := ProcessDates(bill, testNow)

	// the future action is newest but is not trusted for latest
	require.NotNil(t, dates.Latest.Date)
	assert.Equal(t, "latest_action_date", dates.Latest.Source)

	require.NotNil(t, dates.Created.Date)
	assert.Equal(t, "introduction_action", dates.Created.Source)
	assert.Equal(t, "2024-01-10", dates.Created.Date.Format("2006-01-02"))

	require.NotNil(t, dates.Passage.Date)
	assert.Equal(t, "passage_action", dates.Passage.Source)
	assert.Equal(t, "Passed second reading", dates.Passage.Description)
}

func TestProcessDatesNewestActionWins(t *testing.T) {
	bill := &model.BillRecord{
		Actions: []model.Action{
			{Description: "Referido a Comisión", Date: "2024-02-15"},
			{Description: "Informe positivo", Date: "2024-05-20"},
		},
	}

	dates := ProcessDates(bill, testNow)
	assert.Equal(t, "actions_array", dates.Latest.Source)
	assert.Equal(t, "Informe positivo", dates.Latest.Description)

	assert.Equal(t, "earliest_action", dates.Created.Source)
	assert.Equal(t, "2024-02-15", dates.Created.Date.Format("2006-01-02"))

	assert.Equal(t, "not_found", dates.Passage.Source)
	assert.Nil(t, dates.Passage.Date)
}

func TestProcessDatesRecordFallbacks(t *testing.T) {
	bill := &model.BillRecord{
		UpdatedAt:         "2024-05-01T10:00:00Z",
		CreatedAt:         "2023-12-01T10:00:00Z",
		LatestPassageDate: "2025-01-01",
	}

	dates := ProcessDates(bill, testNow)
	assert.Equal(t, "updated_at", dates.Latest.Source)
	assert.Equal(t, "created_at", dates.Created.Source)
	assert.Equal(t, "not_found", dates.Passage.Source)

	empty := ProcessDates(&model.BillRecord{}, testNow)
	assert.Equal(t, "not_found", empty.Latest.Source)
	assert.Equal(t, "not_found", empty.Created.Source)
}

func TestSortActions(t *testing.T) {
	actions := []model.Action{
		{Description: "a", Date: "2024-01-01"},
		{Description: "b", Date: ""},
		{Description: "c", Date: "2024-03-01"},
		{Description: "d", Date: "not a date"},
	}

	sorted := SortActions(actions)
	var order []string
	for _, a := range sorted {
		order = append(order, a.Description)
	}
	assert.Equal(t, []string{"c", "a", "b", "d"}, order)
	assert.Equal(t, "a", actions[0].Description, "input is not modified")
}

func TestSortActionsSameDateByPriority(t *testing.T) {
	actions := []model.Action{
		{Description: "Referido a Comisión de Hacienda", Date: "2024-05-02"},
		{Description: "Primera Lectura", Date: "2024-05-02"},
		{Description: "Aprobado en Votación Final", Date: "2024-05-02"},
		{Description: "Presentada", Date: "2024-05-01"},
		{Description: "Otro trámite", Date: "2024-05-02"},
	}

	var order []string
	for _, a := range SortActions(actions) {
		order = append(order, a.Description)
	}
	assert.Equal(t, []string{
		"Aprobado en Votación Final",
		"Primera Lectura",
		"Referido a Comisión de Hacienda",
		"Otro trámite",
		"Presentada",
	}, order)
}

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		desc string
		want string
	}{
		{"Signed by the Governor", "Enacted"},
		{"Vetoed", "Vetoed"},
		{"Passed the Senate", "Passed"},
		{"Introduced", "Introduced"},
		{"Referred to committee", "In Committee"},
		{"Informe", "Active"},
	}
	for _, tt := range tests {
		bill := &model.BillRecord{Actions: []model.Action{{Description: tt.desc, Date: "2024-01-01"}}}
		assert.Equal(t, tt.want, StatusLabel(bill), tt.desc)
	}
	assert.Equal(t, "Unknown", StatusLabel(&model.BillRecord{}))
}

func TestActionPriority(t *testing.T) {
	assert.Equal(t, 3, ActionPriority("Aprobado en Votación Final"))
	assert.Equal(t, 2, ActionPriority("Primera Lectura"))
	assert.Equal(t, 1, ActionPriority("Referido a Comisión"))
	assert.Equal(t, 0, ActionPriority("Otro"))
}

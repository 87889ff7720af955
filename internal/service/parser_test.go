package service

import (
	"testing"

	"github.com/robertobuso/pr-bills-tracker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCountsAndChecksum(t *testing.T) {
	p := NewParser()

	result := scrapedResult()
	result.Eventos[1].Votes = model.VoteTally{"Votos a favor": {Value: 40}}
	result.Comisiones = []model.Comision{{
		Comision:  "Comisión de Salud",
		Documents: []model.DocumentRef{{LinkURL: "https://sutra.oslpr.org/docs/a.pdf"}},
	}}

	parsed, err := p.Parse(result)
	require.NoError(t, err)
	assert.Equal(t, 2, parsed.EventoCount)
	assert.Equal(t, 2, parsed.DocumentCount)
	assert.Equal(t, 1, parsed.VoteCount)
	assert.Len(t, parsed.Checksum, 32)
	assert.NotContains(t, string(parsed.Canonical), "scrape_time")
}

func TestParseChecksumIgnoresTiming(t *testing.T) {
	p := NewParser()

	a := scrapedResult()
	b := scrapedResult()
	slower := 2.5
	b.ScrapeTime = &slower
	// same eventos in a different order
	b.Eventos[0], b.Eventos[1] = b.Eventos[1], b.Eventos[0]

	pa, err := p.Parse(a)
	require.NoError(t, err)
	pb, err := p.Parse(b)
	require.NoError(t, err)
	assert.Equal(t, pa.Checksum, pb.Checksum)

	c := scrapedResult()
	c.Eventos[0].Descripcion = "Radicado en Secretaría"
	pc, err := p.Parse(c)
	require.NoError(t, err)
	assert.NotEqual(t, pa.Checksum, pc.Checksum)
}

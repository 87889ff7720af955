package service

import (
	"strings"

	"github.com/robertobuso/pr-bills-tracker/internal/model"
)

// EventosFromActions builds the fallback timeline from the bill's actions,
// used until scraped eventos arrive.
func EventosFromActions(actions []model.Action) []model.Evento {
	eventos := make([]model.Evento, 0, len(actions))
	for _, a := range SortActions(actions) {
		e := model.Evento{
			Descripcion: a.Description,
			Fecha:       a.Date,
			Tipo:        model.TipoTramite,
		}
		desc := strings.ToLower(a.Description)
		if containsAny(desc, "votación", "aprobado", "passed") {
			e.Tipo = model.TipoVotacion
		}
		if a.Organization.Classification == "committee" {
			e.Comision = a.Organization.Name
		} else if a.Organization.Name != "" {
			e.Camara = a.Organization.Name
		}
		eventos = append(eventos, e)
	}
	return eventos
}

// ScrapeSource returns the first source URL pointing at a recognized host
func ScrapeSource(sources []model.Source, hosts []string) (string, bool) {
	for _, s := range sources {
		for _, h := range hosts {
			if h != "" && strings.Contains(s.URL, h) {
				return s.URL, true
			}
		}
	}
	return "", false
}

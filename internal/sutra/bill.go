package sutra

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gofiber/fiber/v2/log"
	"github.com/robertobuso/pr-bills-tracker/internal/model"
)

const (
	fastFetchTimeout = 1500 * time.Millisecond
	fullFetchTimeout = 60 * time.Second

	// maxInitialEventos are extracted in full; later ones only while
	// the extended budget lasts.
	maxInitialEventos = 15
	extendedBudget    = 1800 * time.Millisecond
)

var voteKeys = []string{"Votos a favor", "Votos en contra", "Votos abstenidos", "Votos ausentes"}

var documentExtensions = []string{".pdf", ".doc", ".docx"}

// Fast scrapes the essential bill information without downloading anything.
// Failures are reported in the result rather than returned.
func (s *Scraper) Fast(ctx context.Context, url string) *model.ScrapeResult {
	start := time.Now()
	log.Infof("fast scrape of %s", url)

	doc, err := s.fetchPage(ctx, url, fastFetchTimeout)
	if err != nil {
		return failedScrape(err, start)
	}

	result := s.parseBill(doc.Selection, start, true)
	finish(result, start)
	log.Infof("fast scrape completed with %d eventos in %s", len(result.Eventos), time.Since(start))
	return result
}

// Full scrapes every evento plus committees. Unless noExtract is set the
// referenced documents are downloaded into the documents directory.
func (s *Scraper) Full(ctx context.Context, url string, noExtract bool) *model.ScrapeResult {
	start := time.Now()
	log.Infof("full scrape of %s (download documents: %t)", url, !noExtract)

	doc, err := s.fetchPage(ctx, url, fullFetchTimeout)
	if err != nil {
		return failedScrape(err, start)
	}

	result := s.parseBill(doc.Selection, start, false)
	result.Comisiones = parseComisiones(doc.Selection, result.Eventos)

	if noExtract {
		log.Infof("document downloads skipped due to --no-extract")
	} else {
		s.downloadEventoDocuments(ctx, result.Eventos)
	}

	finish(result, start)
	return result
}

func failedScrape(err error, start time.Time) *model.ScrapeResult {
	msg := "Error: " + err.Error()
	if isTimeout(err) {
		msg = "Request timed out"
	} else if _, ok := err.(*httpStatusError); ok {
		msg = err.Error()
	}
	log.Errorf("scrape failed: %v", err)

	elapsed := time.Since(start).Seconds()
	return &model.ScrapeResult{
		Eventos:    []model.Evento{},
		Error:      msg,
		ScrapeTime: &elapsed,
	}
}

func finish(result *model.ScrapeResult, start time.Time) {
	model.SortEventos(result.Eventos)
	success := true
	elapsed := time.Since(start).Seconds()
	result.Success = &success
	result.ScrapeTime = &elapsed
}

// parseBill extracts the bill header and its eventos. When capped, only the
// first maxInitialEventos are extracted in full.
func (s *Scraper) parseBill(root *goquery.Selection, start time.Time, capped bool) *model.ScrapeResult {
	result := &model.ScrapeResult{Eventos: []model.Evento{}}

	if h := root.Find(`h1[class*="text-2xl"]`).First(); h.Length() > 0 {
		result.MeasureNumber = ptr(cleanText(h.Text()))
	}

	if label := labelled(root, "span", "Fecha de Radicación").First(); label.Length() > 0 {
		if next := nextMatching(root, label, `span[class*="text-xs"]`); next != nil {
			result.FilingDate = ptr(cleanText(next.Text()))
		}
	}

	if label := labelled(root, "span", "Título").First(); label.Length() > 0 {
		if next := nextMatching(root, label, "span.text-balance"); next != nil {
			result.Title = ptr(cleanText(next.Text()))
		}
	}

	result.Authors = parseAuthors(root)

	items := root.Find(`li[class*="relative flex justify-between"]`)
	log.Infof("found %d event items", items.Length())

	items.EachWithBreak(func(i int, item *goquery.Selection) bool {
		if capped && i >= maxInitialEventos {
			if time.Since(start) > extendedBudget {
				log.Infof("time budget nearly exceeded, stopping event processing")
				return false
			}
			if evento, ok := parseEventoSummary(item); ok {
				result.Eventos = append(result.Eventos, evento)
			}
			return true
		}
		if evento, ok := s.parseEvento(item); ok {
			result.Eventos = append(result.Eventos, evento)
		}
		return true
	})

	return result
}

func parseAuthors(root *goquery.Selection) []string {
	var authors []string

	root.Find(`li[class*="autor_id_li"] p[class*="font-semibold"]`).Each(func(_ int, p *goquery.Selection) {
		if name := cleanText(p.Text()); name != "" {
			authors = append(authors, name)
		}
	})
	if len(authors) > 0 {
		return authors
	}

	heading := root.Find("div").FilterFunction(func(_ int, d *goquery.Selection) bool {
		return cleanText(d.Text()) == "Autores"
	}).First()
	if heading.Length() == 0 {
		return nil
	}
	list := nextMatching(root, heading, "div")
	if list == nil {
		return nil
	}
	list.Find("span").Each(func(_ int, span *goquery.Selection) {
		text := cleanText(span.Text())
		lower := strings.ToLower(text)
		if text == "" || strings.Contains(lower, "autor") || strings.Contains(lower, "fecha") {
			return
		}
		authors = append(authors, text)
	})
	return authors
}

func (s *Scraper) parseEvento(item *goquery.Selection) (model.Evento, bool) {
	title := item.Find("span.text-sutra-primary").First()
	if title.Length() == 0 {
		return model.Evento{}, false
	}

	evento := model.Evento{
		Descripcion: cleanText(title.Text()),
		Fecha:       parseFecha(item),
		Tipo:        model.TipoTramite,
	}

	item.Find("p.text-gray-500").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		if labelled(p, "span", "Fecha:").Length() > 0 || p.Find("a").Length() > 0 {
			return true
		}
		if text := cleanText(p.Text()); strings.Contains(text, "Comisión") {
			evento.Comision = text
			return false
		}
		return true
	})

	item.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if strings.Contains(href, "User-Manual") {
			return
		}
		desc := "Document"
		if d := a.Find(`span[class*="text-sutra-secondary"]`).First(); d.Length() > 0 {
			desc = cleanText(d.Text())
		}
		evento.Documents = append(evento.Documents, model.DocumentRef{
			LinkURL:     s.absoluteURL(href),
			Description: desc,
			State:       model.DocumentUnresolved,
		})
	})

	if isVote(evento.Descripcion) {
		evento.Tipo = model.TipoVotacion
		evento.Votes = parseVotes(item)
		evento.Camara = "Cámara"
		if strings.Contains(evento.Descripcion, "Senado") {
			evento.Camara = "Senado"
		}
	}

	return evento, true
}

// parseEventoSummary extracts only the fields needed for the timeline
func parseEventoSummary(item *goquery.Selection) (model.Evento, bool) {
	title := item.Find("span.text-sutra-primary").First()
	if title.Length() == 0 {
		return model.Evento{}, false
	}

	evento := model.Evento{
		Descripcion: cleanText(title.Text()),
		Fecha:       parseFecha(item),
		Tipo:        model.TipoTramite,
	}
	if isVote(evento.Descripcion) {
		evento.Tipo = model.TipoVotacion
	}

	item.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.ToLower(href)
		for _, ext := range documentExtensions {
			if strings.Contains(href, ext) {
				evento.DocumentCount++
				return
			}
		}
	})
	return evento, true
}

func parseFecha(item *goquery.Selection) string {
	label := labelled(item, "span", "Fecha:").First()
	if label.Length() == 0 {
		return ""
	}
	text := cleanText(label.Parent().Text())
	return strings.TrimSpace(strings.Replace(text, "Fecha:", "", 1))
}

func parseVotes(item *goquery.Selection) model.VoteTally {
	tally := model.VoteTally{}
	item.Find("span").Each(func(_ int, span *goquery.Selection) {
		if span.Children().Length() > 0 {
			return
		}
		label := cleanText(span.Text())
		if !hasVoteKey(label) {
			return
		}
		key := strings.TrimRight(label, ":")
		value := cleanText(span.Parent().Text())
		value = strings.TrimSpace(strings.TrimPrefix(strings.Replace(value, key, "", 1), ":"))
		if n, err := strconv.Atoi(value); err == nil {
			tally[key] = model.VoteCount{Value: n}
		} else {
			tally[key] = model.VoteCount{Text: value}
		}
	})
	if len(tally) == 0 {
		return nil
	}
	return tally
}

func parseComisiones(root *goquery.Selection, eventos []model.Evento) []model.Comision {
	seen := map[string]bool{}
	var comisiones []model.Comision
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		comisiones = append(comisiones, model.Comision{Comision: name})
	}

	root.Find("li").Each(func(_ int, li *goquery.Selection) {
		if li.Children().Length() == 0 && strings.Contains(li.Text(), "Comisión") {
			add(cleanText(li.Text()))
		}
	})
	for _, e := range eventos {
		add(e.Comision)
	}
	return comisiones
}

func isVote(descripcion string) bool {
	return strings.Contains(descripcion, "Votación") || strings.Contains(descripcion, "Aprobado")
}

func hasVoteKey(s string) bool {
	for _, k := range voteKeys {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func ptr[T any](v T) *T {
	return &v
}

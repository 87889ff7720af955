package sutra

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gofiber/fiber/v2/log"
	"github.com/robertobuso/pr-bills-tracker/internal/model"
)

const (
	searchPageTimeout = 30 * time.Second
	maxSearchPages    = 50
)

var medidaIDPattern = regexp.MustCompile(`medidas/(\d+)`)

// SearchURL builds the SUTRA search for bills filed on day. SUTRA's range
// filter is exclusive of its start, so the search begins the day before.
func (s *Scraper) SearchURL(day, now time.Time) string {
	return fmt.Sprintf("%s/medidas?cuatrienio_id=%d&fecha_radicacion_desde=%s&fecha_radicacion_hasta=%s",
		s.baseURL,
		now.Year(),
		day.AddDate(0, 0, -1).Format("2006-01-02"),
		day.Format("2006-01-02"),
	)
}

// BillsByDate collects every bill filed on date (YYYY-MM-DD), following
// pagination. Bills collected before an error are still returned.
func (s *Scraper) BillsByDate(ctx context.Context, date string) *model.BillsByDateResult {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return &model.BillsByDateResult{
			Bills: []model.SutraBill{},
			Error: fmt.Sprintf("Invalid date format: %s. Expected format: YYYY-MM-DD", date),
		}
	}

	baseURL := s.SearchURL(day, time.Now())
	log.Infof("searching for bills introduced on %s: %s", date, baseURL)

	bills := []model.SutraBill{}
	page := 1
	for ; page <= maxSearchPages; page++ {
		pageURL := baseURL
		if page > 1 {
			pageURL = fmt.Sprintf("%s&page=%d", baseURL, page)
		}

		doc, err := s.fetchPage(ctx, pageURL, searchPageTimeout)
		if err != nil {
			log.Errorf("error scraping search results page %d: %v", page, err)
			return &model.BillsByDateResult{
				Bills: bills,
				Count: len(bills),
				Error: err.Error(),
			}
		}

		found, hasNext := s.parseSearchPage(doc.Selection, day)
		log.Infof("found %d bills on page %d", len(found), page)
		if len(found) == 0 && doc.Find(`li[class*="relative border border-zinc-400"]`).Length() == 0 {
			break
		}
		bills = append(bills, found...)
		if !hasNext {
			break
		}
	}

	return &model.BillsByDateResult{
		Success:        true,
		Bills:          bills,
		Count:          len(bills),
		SearchDate:     date,
		SearchURL:      baseURL,
		PagesProcessed: min(page, maxSearchPages),
	}
}

// parseSearchPage returns the bills on one results page filed on day and
// whether a further page exists.
func (s *Scraper) parseSearchPage(root *goquery.Selection, day time.Time) ([]model.SutraBill, bool) {
	var bills []model.SutraBill

	root.Find(`li[class*="relative border border-zinc-400"]`).Each(func(_ int, item *goquery.Selection) {
		var bill model.SutraBill

		h := item.Find(`h1[class*="text-2xl"]`).First()
		if strings.Contains(h.Find("span.font-bold").Text(), "Medida:") {
			bill.MeasureNumber = strings.TrimSpace(strings.Replace(cleanText(h.Text()), "Medida:", "", 1))
		}
		if bill.MeasureNumber == "" {
			return
		}

		if strong := labelled(item, "strong", "Radicada:").First(); strong.Length() > 0 {
			bill.FilingDate = strings.TrimSpace(strings.Replace(cleanText(strong.Parent().Text()), "Radicada:", "", 1))
			if filed, ok := model.ParseFecha(bill.FilingDate); ok {
				if !sameDay(filed, day) {
					log.Warnf("bill %s has filing date %s which does not match %s",
						bill.MeasureNumber, bill.FilingDate, day.Format("2006-01-02"))
					return
				}
			} else {
				log.Warnf("couldn't parse filing date: %s", bill.FilingDate)
			}
		}

		if strong := labelled(item, "strong", "Autor(es):").First(); strong.Length() > 0 {
			bill.Authors = cleanText(strong.Parent().Find("span.text-xs").First().Text())
		}

		if strong := labelled(item, "strong", "Título:").First(); strong.Length() > 0 {
			bill.Title = strings.TrimSpace(strings.Replace(cleanText(strong.Parent().Text()), "Título:", "", 1))
		}

		if link := item.Parent(); goquery.NodeName(link) == "a" {
			if href, ok := link.Attr("href"); ok {
				bill.URL = s.absoluteURL(href)
				if m := medidaIDPattern.FindStringSubmatch(bill.URL); m != nil {
					bill.ID = m[1]
				}
			}
		}

		bill.Status = cleanText(item.Find("span.text-xs.font-bold.text-white").First().Text())

		bills = append(bills, bill)
	})

	next := root.Find(`a[aria-label="Página Siguiente"]`).First()
	hasNext := next.Length() > 0 && !next.HasClass("disabled")
	return bills, hasNext
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

package handlers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/robertobuso/pr-bills-tracker/internal/model"
	"github.com/robertobuso/pr-bills-tracker/internal/scraper"
	"github.com/robertobuso/pr-bills-tracker/internal/service"
)

// ScrapeRunner runs a scraper script and returns its JSON output
type ScrapeRunner interface {
	Run(ctx context.Context, script string, args []string, timeout time.Duration) (json.RawMessage, error)
}

// BillStorer stores bills found by the date search
type BillStorer interface {
	StoreBills(ctx context.Context, searchDate time.Time, bills []model.SutraBill) *service.ImportStats
}

type sutraRequest struct {
	SutraURL string `json:"sutraUrl"`
}

type documentRequest struct {
	DocumentURL string `json:"documentUrl"`
}

type dateRequest struct {
	Date string `json:"date"`
}

// sendRaw relays a scraper's JSON document unchanged
func sendRaw(c *fiber.Ctx, raw json.RawMessage) error {
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.Send(raw)
}

// DownloadDocumentsHandler runs the full scraper without document extraction
func DownloadDocumentsHandler(runner ScrapeRunner, timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req sutraRequest
		if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.SutraURL) == "" {
			return badRequest(c, "sutraUrl is required")
		}

		log.Infof("Starting full scrape for: %s", req.SutraURL)
		raw, err := runner.Run(c.UserContext(), scraper.ScriptFull, []string{req.SutraURL, "--no-extract"}, timeout)
		if err != nil {
			return respondError(c, err)
		}
		return sendRaw(c, raw)
	}
}

// FastBillInfoHandler runs the time-bounded scraper
func FastBillInfoHandler(runner ScrapeRunner, timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req sutraRequest
		if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.SutraURL) == "" {
			return badRequest(c, "sutraUrl is required")
		}

		raw, err := runner.Run(c.UserContext(), scraper.ScriptFast, []string{req.SutraURL}, timeout)
		if err != nil {
			return respondError(c, err)
		}
		return sendRaw(c, raw)
	}
}

// ExtractDocumentTextHandler downloads a single document through the scraper
func ExtractDocumentTextHandler(runner ScrapeRunner, timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req documentRequest
		if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.DocumentURL) == "" {
			return badRequest(c, "documentUrl is required")
		}

		raw, err := runner.Run(c.UserContext(), scraper.ScriptDocument, []string{req.DocumentURL}, timeout)
		if err != nil {
			return respondError(c, err)
		}
		return sendRaw(c, raw)
	}
}

// BillsByIntroductionDateHandler searches bills filed on a date. The date may
// be MM/DD/YYYY or YYYY-MM-DD. storer may be nil.
func BillsByIntroductionDateHandler(runner ScrapeRunner, storer BillStorer, timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req dateRequest
		if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Date) == "" {
			return badRequest(c, "date is required")
		}

		day, err := service.NormalizeDate(req.Date)
		if err != nil {
			return badRequest(c, "Invalid date format. Use MM/DD/YYYY or YYYY-MM-DD")
		}

		raw, err := runner.Run(c.UserContext(), scraper.ScriptByDate, []string{day}, timeout)
		if err != nil {
			return respondError(c, err)
		}

		var result model.BillsByDateResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return respondError(c, &scraper.OutputParseError{Script: scraper.ScriptByDate, Output: string(raw), Err: err})
		}
		if !result.Success {
			msg := result.Error
			if msg == "" {
				msg = "Search failed"
			}
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: msg, URL: result.SearchURL})
		}
		if result.Bills == nil {
			result.Bills = []model.SutraBill{}
		}

		if storer != nil && len(result.Bills) > 0 {
			searchDate, _ := time.Parse("2006-01-02", day)
			stats := storer.StoreBills(c.UserContext(), searchDate, result.Bills)
			log.Infof("stored bills for %s: %d inserted, %d updated, %d failed", day, stats.Inserted, stats.Updated, stats.Failed)
		}

		return c.JSON(result)
	}
}

package cmd

import (
	"encoding/json"
	"os"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robertobuso/pr-bills-tracker/internal/config"
	"github.com/robertobuso/pr-bills-tracker/internal/sutra"
	"github.com/spf13/cobra"
)

var scrapeNoExtract bool

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run the built-in SUTRA scraper",
	Long: `Scrape runs one SUTRA scraper script and prints its JSON result on
stdout. Progress is logged on stderr. The server invokes these subcommands
as child processes.`,
}

var scrapeFastCmd = &cobra.Command{
	Use:   "fast <sutra-url>",
	Short: "Scrape bill details within a short time budget",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(newSutraScraper().Fast(cmd.Context(), args[0]))
	},
}

var scrapeFullCmd = &cobra.Command{
	Use:   "full <sutra-url>",
	Short: "Scrape bill details and download their documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(newSutraScraper().Full(cmd.Context(), args[0], scrapeNoExtract))
	},
}

var scrapeDocumentCmd = &cobra.Command{
	Use:   "document <document-url>",
	Short: "Download a single document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(newSutraScraper().Document(cmd.Context(), args[0]))
	},
}

var scrapeByDateCmd = &cobra.Command{
	Use:   "by-date <YYYY-MM-DD>",
	Short: "List bills filed on a date",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(newSutraScraper().BillsByDate(cmd.Context(), args[0]))
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
	scrapeCmd.AddCommand(scrapeFastCmd, scrapeFullCmd, scrapeDocumentCmd, scrapeByDateCmd)
	scrapeFullCmd.Flags().BoolVar(&scrapeNoExtract, "no-extract", false, "Skip document downloads")
}

func newSutraScraper() *sutra.Scraper {
	// stdout carries the JSON result
	log.SetOutput(os.Stderr)

	cfg := config.Load()
	return sutra.New(sutra.Options{
		BaseURL:      cfg.SutraBaseURL,
		UserAgent:    cfg.UserAgent,
		VerifyTLS:    cfg.VerifyUpstreamTLS,
		DocumentsDir: cfg.DocumentsDir,
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robertobuso/pr-bills-tracker/internal/config"
	"github.com/robertobuso/pr-bills-tracker/internal/scraper"
	"github.com/robertobuso/pr-bills-tracker/internal/service"
	"github.com/robertobuso/pr-bills-tracker/internal/store"
	"github.com/spf13/cobra"
)

var importDate string
var importFrom string
var importTo string
var importConcurrency int

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import bills filed in SUTRA into PostgreSQL",
	Long: `Import searches SUTRA for the bills filed on each day of a date range
and stores them in PostgreSQL. Existing bills are updated in place, keyed
by measure number.

Examples:
  # Import bills filed today
  ./billtracker import

  # Import bills filed on a specific date
  ./billtracker import --date 2025-01-15

  # Import a range of days, four days at a time
  ./billtracker import --from 2025-01-01 --to 2025-01-31 --concurrency 4`,
	Run: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	today := time.Now().Format("2006-01-02")
	importCmd.Flags().StringVarP(&importDate, "date", "d", today, "Filing date to import (YYYY-MM-DD or MM/DD/YYYY)")
	importCmd.Flags().StringVar(&importFrom, "from", "", "First filing date of a range (overrides --date)")
	importCmd.Flags().StringVar(&importTo, "to", "", "Last filing date of a range (defaults to --from)")
	importCmd.Flags().IntVarP(&importConcurrency, "concurrency", "c", 0, "Days searched at once (default $IMPORT_CONCURRENCY or 3)")
}

func runImport(cmd *cobra.Command, args []string) {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	from, to, err := importRange()
	if err != nil {
		log.Fatalf("Invalid date: %v", err)
	}

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	log.Println("Connecting to database...")
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := store.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("Failed to prepare database schema: %v", err)
	}

	invoker := scraper.NewInvoker(cfg.ScraperCommand, nil)
	importer := service.NewImporter(
		service.NewInvokerSearcher(invoker, cfg.DateSearchTimeout),
		store.NewSutraBillStore(db),
		nil,
	)
	concurrency := cfg.ImportConcurrency
	if importConcurrency > 0 {
		concurrency = importConcurrency
	}
	importer.SetConcurrency(concurrency)

	log.Printf("Starting import for %s to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	stats, err := importer.Import(ctx, from, to)
	if err != nil {
		if ctx.Err() != nil {
			log.Println("Import cancelled")
			if stats != nil {
				importer.PrintSummary(stats)
			}
			os.Exit(1)
		}
		log.Fatalf("Import failed: %v", err)
	}
	importer.PrintSummary(stats)

	total, err := store.NewSutraBillStore(db).CountBills(ctx)
	if err != nil {
		log.Printf("Warning: Failed to count stored bills: %v", err)
	} else {
		log.Printf("Bills in database: %d", total)
	}

	// Exit with error code if there were failures
	if stats.Failed > 0 || stats.FailedDays > 0 {
		os.Exit(1)
	}
}

// importRange resolves --date, --from and --to into an inclusive range
func importRange() (time.Time, time.Time, error) {
	first := importDate
	if importFrom != "" {
		first = importFrom
	}
	last := first
	if importTo != "" {
		last = importTo
	}

	from, err := parseDay(first)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseDay(last)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func parseDay(s string) (time.Time, error) {
	day, err := service.NormalizeDate(s)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse("2006-01-02", day)
}

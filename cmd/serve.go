package cmd

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robertobuso/pr-bills-tracker/internal/config"
	"github.com/robertobuso/pr-bills-tracker/internal/document"
	"github.com/robertobuso/pr-bills-tracker/internal/handlers"
	"github.com/robertobuso/pr-bills-tracker/internal/scraper"
	"github.com/robertobuso/pr-bills-tracker/internal/service"
	"github.com/robertobuso/pr-bills-tracker/internal/store"
	"github.com/spf13/cobra"
)

var port string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bill tracker API server",
	Long: `Start the HTTP API: bill detail sessions, scraper endpoints, document
proxying, conversion and the document viewer.

When DATABASE_URL is set, scrape snapshots and date searches are stored in
PostgreSQL; otherwise the server runs without persistence.`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&port, "port", "p", "", "Port to run the server on (default $PORT or 3001)")
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := config.Load()
	if port != "" {
		cfg.Port = port
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := service.NewMetrics(registry)

	invoker := scraper.NewInvoker(cfg.ScraperCommand, metrics)
	proxy := document.NewProxyStreamer(document.ProxyOptions{
		VerifyTLS: cfg.VerifyUpstreamTLS,
		Timeout:   cfg.UpstreamTimeout,
		UserAgent: cfg.UserAgent,
	}, metrics)
	converter := document.NewConverter(document.ConverterOptions{
		Command: strings.Fields(cfg.ConverterCommand),
		Timeout: cfg.ConversionTimeout,
		TempDir: cfg.TempDir,
	}, proxy, metrics)
	fetcher := document.NewScraperFetcher(invoker, cfg.DocumentTimeout)
	resolver := document.NewResolver(document.ResolverOptions{
		ViewerBaseURL: cfg.ViewerBaseURL,
		APIPrefix:     "/api",
	}, fetcher, metrics)
	openStates := service.NewOpenStatesClient(cfg.OpenStatesBaseURL, cfg.OpenStatesAPIKey, cfg.Jurisdiction)

	// Persistence is optional
	var (
		db        *sql.DB
		snapshots service.SnapshotStore
		storer    handlers.BillStorer
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = store.NewDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := store.EnsureSchema(context.Background(), db); err != nil {
			log.Fatalf("Failed to prepare database schema: %v", err)
		}

		snapshots = service.NewSnapshotRecorder(store.NewScrapeStore(db), service.NewParser())
		storer = service.NewImporter(
			service.NewInvokerSearcher(invoker, cfg.DateSearchTimeout),
			store.NewSutraBillStore(db),
			metrics,
		)
	} else {
		log.Println("DATABASE_URL not set, running without persistence")
	}

	orchestrator := service.NewOrchestrator(openStates, invoker, resolver, snapshots, metrics, service.OrchestratorOptions{
		SourceHosts: cfg.ScrapeSourceHosts,
		FastTimeout: cfg.FastScrapeTimeout,
		SessionTTL:  cfg.SessionTTL,
	})

	app := fiber.New(fiber.Config{
		AppName:      "PR Bills Tracker",
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.AllowedOrigins(), ","),
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	app.Get("/health", handlers.HealthHandler())
	app.Get("/metrics", handlers.MetricsHandler(registry))

	handlers.Register(app.Group("/api"), handlers.Dependencies{
		Runner:       invoker,
		Storer:       storer,
		Proxy:        proxy,
		Converter:    converter,
		Resolver:     resolver,
		Fetcher:      fetcher,
		Bills:        openStates,
		Sessions:     orchestrator,
		DocumentsDir: cfg.DocumentsDir,
		Timeouts: handlers.Timeouts{
			FastScrape: cfg.FastScrapeTimeout,
			FullScrape: cfg.FullScrapeTimeout,
			Document:   cfg.DocumentTimeout,
			DateSearch: cfg.DateSearchTimeout,
		},
	})

	// Handle interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Received interrupt signal, shutting down...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Starting server on :%s (%s)", cfg.Port, cfg.Environment)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	orchestrator.Shutdown()
	log.Println("Server stopped")
}

package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"github.com/basel-ax/skycutout/internal/config"
	"github.com/basel-ax/skycutout/internal/domain"
	"github.com/basel-ax/skycutout/internal/repository"
	"github.com/basel-ax/skycutout/internal/service"
)

func main() {
	// Parse command line flags
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	name := flag.String("name", "", "Object name, used as the output file name")
	ra := flag.Float64("ra", -1, "Right ascension of the object in degrees [0, 360)")
	dec := flag.Float64("dec", 0, "Declination of the object in degrees [-90, 90]")
	outputDir := flag.String("out", "", "Output directory (defaults to OUTPUT_DIR)")
	catalogPath := flag.String("catalog", "", "CSV file of name,ra,dec rows to fetch")
	runCron := flag.Bool("cron", false, "Re-run the catalog on CRON_SCHEDULE until interrupted")
	report := flag.Bool("report", false, "List objects whose latest recorded outcome is a failure, or the outcome of -name")
	flag.Parse()

	// Configure logging
	if *verbose {
		log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
		log.Println("Verbose logging enabled")
	} else {
		log.SetFlags(log.Ldate | log.Ltime)
	}

	if *name == "" && *catalogPath == "" && !*report {
		log.Fatal("Please specify an object with -name/-ra/-dec, a -catalog file, or -report")
	}
	if *runCron && *catalogPath == "" {
		log.Fatal("-cron requires -catalog")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *outputDir == "" {
		*outputDir = cfg.OutputDir
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating shutdown...", sig)
		cancel()
	}()

	var repo repository.OutcomeRepository
	if cfg.DB.Enabled() {
		db, err := sql.Open("postgres", cfg.GetDSN())
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
		db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

		pgRepo := repository.NewPostgresOutcomeRepository(db)
		if err := pgRepo.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to prepare outcome ledger: %v", err)
		}
		repo = pgRepo
		log.Println("Outcome ledger enabled")
	}

	if *report {
		if repo == nil {
			log.Fatal("-report requires a configured database (DB_HOST)")
		}
		printReport(ctx, repo, *name)
		return
	}

	svc := service.NewCutoutService(cfg, log.Default())

	if *catalogPath == "" {
		req := domain.Request{Name: *name, RA: *ra, Dec: *dec, OutputDir: *outputDir}
		sum := runCatalog(ctx, []domain.Request{req}, svc, repo, 1)
		log.Println(sum)
		return
	}

	if *runCron {
		startCronWorkflow(ctx, *catalogPath, *outputDir, svc, repo, cfg)
		return
	}

	runCatalogFile(ctx, *catalogPath, *outputDir, svc, repo, cfg.CatalogConcurrency)
}

func runCatalogFile(ctx context.Context, path, outputDir string, svc fetcher, repo repository.OutcomeRepository, concurrency int) {
	f, err := os.Open(path)
	if err != nil {
		log.Printf("Error opening catalog: %v", err)
		return
	}
	defer f.Close()

	reqs, err := readCatalog(f, outputDir)
	if err != nil {
		log.Printf("Error reading catalog %s: %v", path, err)
		return
	}

	log.Printf("Fetching %d objects from %s", len(reqs), path)
	sum := runCatalog(ctx, reqs, svc, repo, concurrency)
	log.Println(sum)
}

func startCronWorkflow(ctx context.Context, path, outputDir string, svc fetcher, repo repository.OutcomeRepository, cfg *config.Config) {
	c := cron.New(cron.WithSeconds())

	var cronMutex sync.Mutex

	_, err := c.AddFunc(cfg.CronSchedule, func() {
		if !cronMutex.TryLock() {
			log.Println("[CRON] Previous catalog run still in progress, skipping")
			return
		}
		defer cronMutex.Unlock()
		log.Println("[CRON] Running scheduled catalog run...")
		runCatalogFile(ctx, path, outputDir, svc, repo, cfg.CatalogConcurrency)
		log.Println("[CRON] Finished scheduled catalog run.")
	})
	if err != nil {
		log.Printf("Error scheduling catalog run: %v", err)
		return
	}

	c.Start()
	log.Printf("Cron scheduler started with schedule %q", cfg.CronSchedule)

	// Keep the scheduler running until context is cancelled
	<-ctx.Done()
	<-c.Stop().Done()
	log.Println("Cron scheduler stopped")
}

func printReport(ctx context.Context, repo repository.OutcomeRepository, name string) {
	lines, err := reportLines(ctx, repo, name)
	if err != nil {
		log.Printf("Error reading outcome ledger: %v", err)
		return
	}
	for _, line := range lines {
		log.Println(line)
	}
}

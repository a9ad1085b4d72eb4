package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	sdk "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/docsage/docsage/internal/api/handlers"
	"github.com/docsage/docsage/internal/config"
	"github.com/docsage/docsage/internal/database"
	"github.com/docsage/docsage/internal/extract"
	"github.com/docsage/docsage/internal/jobs"
	"github.com/docsage/docsage/internal/openai"
	"github.com/docsage/docsage/internal/repository"
	"github.com/docsage/docsage/internal/server"
	"github.com/docsage/docsage/internal/service"
	"github.com/docsage/docsage/internal/storage"
	"github.com/docsage/docsage/internal/telemetry"
)

const jobPollInterval = 10 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the docsage API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.HasOpenAI() {
		return fmt.Errorf("OPENAI_API_KEY is required to serve queries and ingest documents")
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	applyPortFlag(cmd, cfg)

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	chunkRepo := repository.NewChunkRepository(pool)
	exampleRepo := repository.NewExampleRepository(pool)
	queryLogRepo := repository.NewQueryLogRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	aiClient := openai.NewClientWithConfig(openai.Config{
		APIKey:          cfg.OpenAIAPIKey,
		EmbeddingModel:  sdk.EmbeddingModel(cfg.EmbeddingModel),
		CompletionModel: cfg.CompletionModel,
	})

	embeddingSvc := service.NewEmbeddingService(aiClient, openai.IsRateLimit)

	fewshotCfg := service.DefaultFewShotConfig()
	fewshotCfg.TokenBudget = cfg.FewShotTokenBudget
	fewshotCfg.RequestDelay = cfg.FewShotRequestDelay
	fewshotCfg.Cooldown = cfg.RateLimitCooldown
	fewshotCfg.MaxAttempts = cfg.MaxRetryAttempts
	fewshotSvc := service.NewFewShotService(aiClient, exampleRepo, fewshotCfg, openai.IsRateLimit)

	batchOpts := service.BatchOptions{
		BatchSize:   cfg.EmbedBatchSize,
		Delay:       cfg.EmbedBatchDelay,
		Cooldown:    cfg.RateLimitCooldown,
		MaxAttempts: cfg.MaxRetryAttempts,
	}
	ingestSvc := service.NewIngestService(embeddingSvc, chunkRepo, fewshotSvc, service.ChunkConfig{
		ChunkSize: cfg.ChunkSize,
		Overlap:   cfg.ChunkOverlap,
	}, batchOpts)

	querySvc := service.NewQueryService(aiClient, aiClient, chunkRepo, exampleRepo, queryLogRepo, service.QuerySettings{
		ContextTokenBudget:  cfg.ContextTokenBudget,
		ExampleTokenBudget:  cfg.ExampleTokenBudget,
		RequestTokenCeiling: cfg.RequestTokenCeiling,
		FallbackTokenBudget: cfg.FallbackTokenBudget,
		AnswerMaxTokens:     cfg.AnswerMaxTokens,
		SourcePreviewChars:  cfg.SourcePreviewChars,
		MinUsefulTailTokens: cfg.MinUsefulTailTokens,
	})

	docSvc := service.NewDocumentService(chunkRepo, exampleRepo, queryLogRepo, txRunner)

	extractor := extract.NewAutoExtractor()

	var blobStore handlers.BlobStore
	var jobCreator handlers.IngestionJobCreator
	var ingestionWorker *jobs.Worker
	if cfg.HasS3() {
		s3Config := storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		}
		s3Client, err := storage.NewS3Client(ctx, s3Config)
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)

		jobRepo := repository.NewIngestionJobRepository(pool)
		blobStore = s3Client
		jobCreator = jobRepo

		processor := jobs.NewIngestionWorker(jobRepo, s3Client, extractor, ingestSvc)
		ingestionWorker = jobs.NewWorker(processor, jobPollInterval)
		go ingestionWorker.Start(ctx)
	} else {
		log.Println("S3 not configured, uploads and blob-backed processing disabled")
	}

	documentHandler := handlers.NewDocumentHandler(docSvc, ingestSvc, blobStore, extractor, jobCreator)
	queryHandler := handlers.NewQueryHandler(querySvc)

	router := server.NewRouter(server.RouterConfig{
		DocumentHandler: documentHandler,
		QueryHandler:    queryHandler,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if ingestionWorker != nil {
		ingestionWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// applyPortFlag overrides the configured port only when the flag was set on
// the command line, so an explicit -p 8080 beats a DOCSAGE_PORT env value.
func applyPortFlag(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetString("port")
	}
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}

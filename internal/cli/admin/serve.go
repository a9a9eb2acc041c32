// Package admin implements the jtskbd daemon commands.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/akaclinicalco/jtskb/internal/api/handlers"
	"github.com/akaclinicalco/jtskb/internal/chunker"
	"github.com/akaclinicalco/jtskb/internal/config"
	"github.com/akaclinicalco/jtskb/internal/domain"
	"github.com/akaclinicalco/jtskb/internal/embedding"
	"github.com/akaclinicalco/jtskb/internal/engine"
	"github.com/akaclinicalco/jtskb/internal/ingest"
	"github.com/akaclinicalco/jtskb/internal/jobs"
	"github.com/akaclinicalco/jtskb/internal/retriever"
	"github.com/akaclinicalco/jtskb/internal/router"
	"github.com/akaclinicalco/jtskb/internal/server"
	"github.com/akaclinicalco/jtskb/internal/store"
	"github.com/akaclinicalco/jtskb/internal/telemetry"
	"github.com/akaclinicalco/jtskb/internal/tier"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the knowledge base server",
		Long:  "Start the jtskb query server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-reindex", false, "Disable the periodic reindex worker")

	return cmd
}

// components holds the wired pipeline shared by the serve and build
// commands.
type components struct {
	provider  embedding.Provider
	source    ingest.Source
	builder   *store.Builder
	handle    *store.Handle
	reindexer *jobs.Reindexer
}

func newComponents(ctx context.Context, cfg *config.Config) (*components, error) {
	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}

	source, err := newSource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	builder := store.NewBuilder(provider, cfg.StorePath, chunker.Config{
		MaxLen:  cfg.ChunkMaxLen,
		Overlap: cfg.ChunkOverlap,
	}, cfg.EmbedWorkers)

	// A missing store just means no build has run yet; anything else,
	// corruption included, is fatal rather than silently served around.
	handle := store.NewHandle(nil)
	s, err := store.Load(cfg.StorePath)
	switch {
	case err == nil:
		handle.Swap(s)
		log.Printf("loaded knowledge store: build %s, %d passages", s.BuildID(), s.Len())
	case errors.Is(err, domain.ErrStoreNotFound):
		log.Printf("no knowledge store at %s yet", cfg.StorePath)
	default:
		return nil, fmt.Errorf("failed to load knowledge store: %w", err)
	}

	return &components{
		provider:  provider,
		source:    source,
		builder:   builder,
		handle:    handle,
		reindexer: jobs.NewReindexer(source, builder, handle),
	}, nil
}

func newProvider(cfg *config.Config) (embedding.Provider, error) {
	switch cfg.EmbeddingProvider {
	case "local":
		model := cfg.EmbeddingModel
		if model == "" {
			model = "all-minilm"
		}
		dims := cfg.EmbeddingDims
		if dims <= 0 {
			dims = 384
		}
		return embedding.NewLocalProvider(embedding.LocalConfig{
			BaseURL:    cfg.EmbeddingURL,
			Model:      model,
			Dimensions: dims,
		})
	case "openai":
		return embedding.NewOpenAIProvider(embedding.OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			Model:      openai.EmbeddingModel(cfg.EmbeddingModel),
			Dimensions: cfg.EmbeddingDims,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}

func newSource(ctx context.Context, cfg *config.Config) (ingest.Source, error) {
	if cfg.HasS3() {
		source, err := ingest.NewS3Source(ctx, ingest.S3SourceConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			UsePathStyle:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 source: %w", err)
		}
		log.Printf("corpus source: s3://%s/%s", cfg.S3Bucket, cfg.S3Prefix)
		return source, nil
	}

	source, err := ingest.NewDirSource(cfg.DocsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open document directory: %w", err)
	}
	log.Printf("corpus source: %s", cfg.DocsDir)
	return source, nil
}

func newTiers(cfg *config.Config) ([]tier.Generator, error) {
	var tiers []tier.Generator
	for _, name := range cfg.TierOrder {
		switch strings.TrimSpace(name) {
		case "remote":
			if !cfg.HasRemote() {
				log.Printf("tier remote skipped: JTSKB_REMOTE_SERVICE_URL not set")
				continue
			}
			t, err := tier.NewRemoteService("remote", cfg.RemoteServiceURL, cfg.TierTimeout)
			if err != nil {
				return nil, err
			}
			tiers = append(tiers, t)
		case "cloud":
			if !cfg.HasOpenAI() {
				log.Printf("tier cloud skipped: JTSKB_OPENAI_API_KEY not set")
				continue
			}
			t, err := tier.NewCloudModel("cloud", cfg.OpenAIAPIKey, cfg.CloudModel)
			if err != nil {
				return nil, err
			}
			tiers = append(tiers, t)
		case "local":
			t, err := tier.NewLocalModel("local", cfg.LocalModelURL, cfg.LocalModelName, cfg.TierTimeout)
			if err != nil {
				return nil, err
			}
			tiers = append(tiers, t)
		default:
			return nil, fmt.Errorf("unknown tier %q in tier order", name)
		}
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("no generation tier is configured")
	}
	return tiers, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.SentryDSN != "" {
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
			DSN:              cfg.SentryDSN,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	comps, err := newComponents(ctx, cfg)
	if err != nil {
		return err
	}

	tiers, err := newTiers(cfg)
	if err != nil {
		return err
	}

	rtr, err := router.New(tiers, router.Config{
		AttemptTimeout: cfg.TierTimeout,
		Concurrency:    cfg.QueryConcurrency,
		CacheCapacity:  cfg.CacheCapacity,
		CacheTTL:       cfg.CacheTTL,
	})
	if err != nil {
		return err
	}

	ret := retriever.New(comps.provider, comps.handle)
	eng := engine.New(ret, rtr, engine.Config{
		TopK:        cfg.TopK,
		MinScore:    cfg.MinScore,
		TokenBudget: cfg.TokenBudget,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	})

	var reindexWorker *jobs.Worker
	noReindex, _ := cmd.Flags().GetBool("no-reindex")
	if !noReindex {
		reindexWorker = jobs.NewWorker(comps.reindexer, cfg.ReindexEvery)
		go reindexWorker.Start(ctx)
		log.Println("reindex worker started")
	}

	queryHandler := handlers.NewQueryHandler(eng, ret, comps.reindexer, comps.handle,
		comps.builder.Building, cfg.TopK, cfg.MinScore)

	rt := server.NewRouter(server.RouterConfig{QueryHandler: queryHandler})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: rt,
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

	if reindexWorker != nil {
		reindexWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

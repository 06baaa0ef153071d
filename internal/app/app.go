// Package app wires configuration into the batch service and its backends.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/timmy/newstagger/internal/config"
	"github.com/timmy/newstagger/internal/gateway"
	"github.com/timmy/newstagger/internal/logger"
	"github.com/timmy/newstagger/internal/prompts"
	"github.com/timmy/newstagger/internal/repository"
	"github.com/timmy/newstagger/internal/service"
	"github.com/timmy/newstagger/internal/source"
	"github.com/timmy/newstagger/internal/source/database"
	"github.com/timmy/newstagger/internal/source/staging"
	"github.com/timmy/newstagger/internal/storage"
	"gorm.io/gorm"
)

// App holds the constructed components. DB, Jobs, Results and Storage are
// nil when their config section is disabled.
type App struct {
	DB      *gorm.DB
	Jobs    *repository.JobRepository
	Results *repository.ResultRepository
	Storage storage.ObjectStorage
	Source  source.Source
	Batch   *service.BatchService
}

type bucketEnsurer interface {
	EnsureBucket(ctx context.Context) error
}

// New builds every component named in cfg.
// Parameters:
//   - ctx: context for startup checks (bucket creation).
//   - cfg: validated application config.
//
// Returns:
//   - *App: wired components.
//   - error: non-nil if a backend cannot be initialized.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.FromContext(ctx)
	a := &App{}

	if cfg.Database.Enabled {
		db, err := repository.InitDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		a.DB = db
		a.Jobs = repository.NewJobRepository(db)
		a.Results = repository.NewResultRepository(db)
	}

	if cfg.Storage.Enabled {
		store, err := storage.NewStorage(storage.ConfigFrom(cfg.Storage))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		if b, ok := store.(bucketEnsurer); ok {
			if err := b.EnsureBucket(ctx); err != nil {
				return nil, fmt.Errorf("failed to ensure storage bucket: %w", err)
			}
		}
		a.Storage = store
	}

	src, err := a.newSource(cfg)
	if err != nil {
		return nil, err
	}
	a.Source = src

	set, err := prompts.Load(cfg.Prompts.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}

	chat := gateway.NewChatClient(gateway.ChatConfig{
		Provider:    cfg.LLM.Provider,
		BaseURL:     cfg.LLM.BaseURL,
		Deployment:  cfg.LLM.Deployment,
		APIVersion:  cfg.LLM.APIVersion,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	gw, err := gateway.New(chat, GatewayConfig(cfg.LLM))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize model gateway: %w", err)
	}

	tagger := service.NewTagger(gw, set, service.TaggerConfig{
		Timeout:            cfg.LLM.Timeout,
		SummaryMinRunes:    cfg.Pipeline.SummaryMinRunes,
		SummaryMaxRunes:    cfg.Pipeline.SummaryMaxRunes,
		SummaryMaxTokens:   cfg.Pipeline.SummaryMaxTokens,
		SummaryTemperature: cfg.Pipeline.SummaryTemperature,
	})
	pipeline, err := service.NewPipeline(tagger, service.PipelineConfig{
		Concurrency:  cfg.Pipeline.Concurrency,
		BatchTimeout: cfg.Pipeline.BatchTimeout,
	})
	if err != nil {
		return nil, err
	}

	// Typed nils must not leak into the batch service's optional interfaces.
	var results service.ResultStore
	var jobs service.JobStore
	if a.Results != nil {
		results = a.Results
		jobs = a.Jobs
	}

	a.Batch = service.NewBatchService(src, pipeline, results, jobs, a.Storage, service.BatchConfig{
		DaysBack:        cfg.Source.DaysBack,
		RetryFailedPass: cfg.Pipeline.RetryFailedPass,
		OutputDir:       cfg.Output.Dir,
		StoragePrefix:   cfg.Storage.Prefix,
	})

	log.WithFields(logger.Fields{
		logger.FieldSource: src.SourceID(),
		"endpoint":         chat.Endpoint(),
		"concurrency":      cfg.Pipeline.Concurrency,
		"database":         a.DB != nil,
		"storage":          a.Storage != nil,
	}).Info("Components initialized")

	return a, nil
}

func (a *App) newSource(cfg *config.Config) (source.Source, error) {
	switch cfg.Source.Type {
	case "database":
		if a.DB == nil {
			return nil, fmt.Errorf("source.type database requires database.enabled")
		}
		return database.NewAdapter(repository.NewNewsRepository(a.DB), database.Filters{
			IncludeProducts: cfg.Source.IncludeProducts,
			ExcludeProducts: cfg.Source.ExcludeProducts,
			ExcludeSubjects: cfg.Source.ExcludeSubjects,
			NewsTypes:       cfg.Source.NewsTypes,
		}), nil
	case "staging":
		return staging.NewAdapter(cfg.Source.StagingPath, time.Local), nil
	default:
		return nil, fmt.Errorf("unknown source.type %q", cfg.Source.Type)
	}
}

// GatewayConfig maps the llm section onto the gateway call policy.
func GatewayConfig(c config.LLMConfig) gateway.Config {
	return gateway.Config{
		MaxAttempts: c.MaxAttempts,
		Timeout:     c.Timeout,
		Backoff: gateway.Backoff{
			BaseDelay:    c.BaseDelay,
			MaxDelay:     c.MaxDelay,
			Multiplier:   c.BackoffMultiplier,
			JitterFactor: c.JitterFactor,
		},
		SchemaRetries:     1,
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
	}
}

// Ping checks the database connection.
func (a *App) Ping(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the database connection.
func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

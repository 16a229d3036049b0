package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector-cli/internal/pattern"
	"github.com/sells-group/prospector-cli/internal/store"
	"github.com/sells-group/prospector-cli/internal/verify"
	"github.com/sells-group/prospector-cli/pkg/bulkverify"
)

// initVerifier builds the verification service client from config.
func initVerifier() bulkverify.Client {
	return bulkverify.NewClient(
		cfg.Verifier.Email,
		cfg.Verifier.Password,
		bulkverify.WithBaseURL(cfg.Verifier.BaseURL),
		bulkverify.WithRateLimit(cfg.Verifier.RequestsPerSecond),
	)
}

// initGenerator builds the pattern generator, loading custom templates when
// configured.
func initGenerator() (*pattern.Generator, error) {
	var opts []pattern.Option
	if cfg.Pattern.TemplatesFile != "" {
		templates, err := pattern.LoadTemplates(cfg.Pattern.TemplatesFile)
		if err != nil {
			return nil, eris.Wrap(err, "load pattern templates")
		}
		zap.L().Info("loaded custom pattern templates",
			zap.String("file", cfg.Pattern.TemplatesFile),
			zap.Int("templates", len(templates)),
		)
		opts = append(opts, pattern.WithExtraTemplates(templates))
	}
	return pattern.New(opts...), nil
}

// initDriver wires the generator, orchestrator, and client into a driver.
func initDriver() (*verify.Driver, error) {
	gen, err := initGenerator()
	if err != nil {
		return nil, err
	}

	orch := verify.NewOrchestrator(initVerifier(),
		verify.WithPollInterval(cfg.Pipeline.PollInterval()),
		verify.WithMaxPollAttempts(cfg.Pipeline.MaxPollAttempts),
	)

	return verify.NewDriver(gen, orch,
		verify.WithChunkSize(cfg.Pipeline.ChunkSize),
		verify.WithPoolSize(cfg.Pipeline.PoolSize),
	), nil
}

// initStore opens the configured run-log backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "init postgres store")
		}
		return st, nil
	case "sqlite", "":
		st, err := store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "init sqlite store")
		}
		return st, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

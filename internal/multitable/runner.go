package multitable

import (
	"context"
	"fmt"
	"os"
	"strings"

	"normalizer/internal/decompose"
	"normalizer/internal/storage"
)

// Runner opens the configured repository and runs an Engine against it.
type Runner struct {
	// NewRepository is the storage-agnostic factory seam.
	NewRepository func(ctx context.Context, cfg storage.Config) (storage.Repository, error)
	Logger        Logger
}

func NewDefaultRunner(logger Logger) *Runner {
	return &Runner{NewRepository: storage.New, Logger: logger}
}

// Run loads res into the database described by cfg.Storage. The DSN is
// expanded with os.ExpandEnv so configs can reference secrets by name.
func (r *Runner) Run(ctx context.Context, cfg LoadConfig, res *decompose.Result) (Stats, error) {
	if err := validateLoadConfig(cfg); err != nil {
		return Stats{}, err
	}

	repo, err := r.NewRepository(ctx, storage.Config{
		Kind: cfg.Storage.Kind,
		DSN:  os.ExpandEnv(cfg.Storage.DSN),
	})
	if err != nil {
		return Stats{}, fmt.Errorf("open %s repository: %w", cfg.Storage.Kind, err)
	}
	defer repo.Close()

	e := &Engine{Repo: repo, Logger: r.Logger, Runtime: cfg.Runtime}
	return e.Load(ctx, res)
}

func validateLoadConfig(cfg LoadConfig) error {
	if strings.TrimSpace(cfg.Storage.Kind) == "" {
		return fmt.Errorf("storage.kind is required")
	}
	if strings.TrimSpace(cfg.Storage.DSN) == "" {
		return fmt.Errorf("storage.dsn is required")
	}
	if cfg.Runtime.BatchSize < 0 || cfg.Runtime.LoaderWorkers < 0 {
		return fmt.Errorf("runtime.batch_size and runtime.loader_workers must not be negative")
	}
	return nil
}

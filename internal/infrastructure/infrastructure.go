// Package infrastructure provides core service initialization for worker
// startup. It assembles the common dependencies (logging, database, blob
// archive) that the pipeline coordinators require.
package infrastructure

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/cognitedata/annotator/internal/config"
	"github.com/cognitedata/annotator/pkg/archive"
	"github.com/cognitedata/annotator/pkg/database"
	"github.com/cognitedata/annotator/pkg/lifecycle"
)

// Infrastructure holds the core systems required by the pipeline.
// It provides a single point of initialization for lifecycle coordination,
// logging, database access, and blob archiving.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Archive   archive.System
}

// New creates an Infrastructure from the service configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	arch, err := archive.New(&cfg.Archive, logger)
	if err != nil {
		return nil, fmt.Errorf("archive init failed: %w", err)
	}

	return &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Database:  db,
		Archive:   arch,
	}, nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Archive.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("archive start failed: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cognitedata/annotator/internal/config"
	"github.com/cognitedata/annotator/internal/detection"
	"github.com/cognitedata/annotator/internal/edges"
	"github.com/cognitedata/annotator/internal/entities"
	"github.com/cognitedata/annotator/internal/finalize"
	"github.com/cognitedata/annotator/internal/infrastructure"
	"github.com/cognitedata/annotator/internal/launch"
	"github.com/cognitedata/annotator/internal/promotion"
	"github.com/cognitedata/annotator/internal/state"
	"github.com/cognitedata/annotator/pkg/cache"
	"github.com/cognitedata/annotator/pkg/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed:", err)
	}

	infra, err := infrastructure.New(cfg)
	if err != nil {
		log.Fatal("infrastructure init failed:", err)
	}

	logger := infra.Logger
	logger.Info(
		"annotator starting",
		"version", cfg.Version,
		"addr", cfg.Worker.Addr(),
		"env", cfg.Env(),
	)

	if err := infra.Start(); err != nil {
		log.Fatal("infrastructure start failed:", err)
	}
	infra.Lifecycle.WaitForStartup()

	db := infra.Database.Connection()
	states := state.New(db, logger)
	entitySys := entities.New(db, logger)
	edgeSys := edges.New(db, logger)
	client := detection.NewHTTP(&cfg.Detection, logger)
	pages := infrastructure.NewDocumentPages(
		infra.Archive,
		cache.NewMemory(cfg.Annotation.CacheTTLDuration()),
		logger,
	)

	launcher := launch.New(states, entitySys, client, pages, cfg.Annotation, logger)
	finalizer := finalize.New(states, edgeSys, client, infra.Archive, cfg.Annotation, logger)
	resolver := promotion.NewResolver(
		edgeSys,
		entitySys,
		cache.NewMemory(cfg.Annotation.PromotionCacheTTLDuration()),
		promotion.NewStore(db, logger),
		cfg.Annotation,
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runTicks(ctx, launcher, resolver, cfg.Worker.TickIntervalDuration(), logger)
	go runFinalize(ctx, finalizer, cfg.Worker.FinalizeBackoffDuration(), logger)

	server := opsServer(cfg, infra)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("annotator stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeoutDuration())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown failed", "error", err)
	}

	if err := infra.Lifecycle.Shutdown(cfg.ShutdownTimeoutDuration()); err != nil {
		logger.Error("lifecycle shutdown failed", "error", err)
	}

	logger.Info("annotator stopped")
}

// runTicks drives the launch and promotion passes on a fixed interval.
// The first tick runs immediately so a fresh worker picks up backlog
// without waiting.
func runTicks(ctx context.Context, launcher *launch.Coordinator, resolver *promotion.Resolver, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := launcher.Run(ctx); err != nil {
			logger.Error("launch pass failed", "error", err)
		}
		if _, err := resolver.Run(ctx); err != nil {
			logger.Error("promotion pass failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runFinalize drives finalize passes continuously, backing off when no
// batch is claimable or the claimed batch's jobs are still running.
func runFinalize(ctx context.Context, finalizer *finalize.Coordinator, backoff time.Duration, logger *slog.Logger) {
	for {
		advanced, err := finalizer.Run(ctx)
		if err != nil {
			logger.Error("finalize pass failed", "error", err)
		}

		if advanced {
			select {
			case <-ctx.Done():
				return
			default:
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func opsServer(cfg *config.Config, infra *infrastructure.Infrastructure) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !infra.Lifecycle.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	mw := middleware.New()
	mw.Use(middleware.Logger(infra.Logger))

	return &http.Server{
		Addr:    cfg.Worker.Addr(),
		Handler: mw.Apply(mux),
	}
}

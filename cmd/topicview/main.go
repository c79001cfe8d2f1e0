package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cognicore/reviewtopics/internal/logger"
	"github.com/cognicore/reviewtopics/internal/metrics"
	"github.com/cognicore/reviewtopics/internal/server"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/config"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/store"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/store/memstore"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/store/sqlite"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "YAML config file (optional)")
	addr := flag.String("addr", "", "Listen address")
	modelPath := flag.String("model", "", "Model artifact")
	reviewsPath := flag.String("reviews", "", "Review dataset CSV")
	storePath := flag.String("store", "", `Review store: SQLite path, ":memory:", or "mem"`)
	stoplistPath := flag.String("stoplist", "", "Extra stopwords file")
	visPath := flag.String("visualization", "", "Visualization cache file")
	flag.Parse()

	cfg, err := config.LoadApp(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	overrideString(&cfg.Addr, *addr)
	overrideString(&cfg.ModelPath, *modelPath)
	overrideString(&cfg.ReviewsPath, *reviewsPath)
	overrideString(&cfg.StorePath, *storePath)
	overrideString(&cfg.StoplistPath, *stoplistPath)
	overrideString(&cfg.VisualizationPath, *visPath)

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	viewer, err := openViewer(ctx, cfg)
	if err != nil {
		return err
	}
	defer viewer.Close()

	if viewer.Ready() {
		log.Info("Model loaded",
			zap.String("path", viewer.ModelPath()),
			zap.Int("topics", viewer.NumTopics()))
	} else {
		log.Warn("Model unavailable, serving read-only", zap.Error(viewer.LoadErr()))
	}
	if err := viewer.DatasetErr(); err != nil {
		log.Warn("Review dataset unavailable, no examples will be shown",
			zap.String("path", cfg.ReviewsPath), zap.Error(err))
	}

	if viewer.Ready() {
		// render ahead of the first visit
		go func() {
			start := time.Now()
			if _, err := viewer.VisualizationHTML(); err != nil {
				log.Error("Visualization failed", zap.Error(err))
				return
			}
			log.Info("Visualization ready",
				zap.String("path", cfg.VisualizationPath),
				zap.Duration("took", time.Since(start)))
		}()
	}

	srv := server.New(viewer, log, metrics.New(viewer, log))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return serve(srv, cfg.Addr, quit, log)
}

// serve runs srv until it fails or quit fires, then shuts it down.
func serve(srv *server.Server, addr string, quit <-chan os.Signal, log *zap.Logger) error {
	serverErr := make(chan error, 1)
	go func() { serverErr <- srv.Start(addr) }()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", zap.Error(err))
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	}

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
	return nil
}

func overrideString(dst *string, flagValue string) {
	if flagValue != "" {
		*dst = flagValue
	}
}

func openStore(ctx context.Context, path string) (store.Store, error) {
	if path == "" || path == "mem" {
		return memstore.New(), nil
	}
	st, err := sqlite.OpenSQLite(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	return st, nil
}

func openViewer(ctx context.Context, cfg config.App) (*reviewtopics.Viewer, error) {
	loader := config.Loader{StoplistPath: cfg.StoplistPath}
	components, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load stoplist: %w", err)
	}

	st, err := openStore(ctx, cfg.StorePath)
	if err != nil {
		return nil, err
	}

	v, err := reviewtopics.Open(ctx, reviewtopics.Options{
		ModelPath:         cfg.ModelPath,
		Tokenizer:         components.Preprocessor,
		Store:             st,
		ReviewsPath:       cfg.ReviewsPath,
		VisualizationPath: cfg.VisualizationPath,
		TopTerms:          cfg.TopTerms,
	})
	if err != nil {
		st.Close()
		return nil, err
	}
	return v, nil
}

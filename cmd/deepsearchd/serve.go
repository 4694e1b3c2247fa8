package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/g3lasio/deepsearchd/internal/api"
	"github.com/g3lasio/deepsearchd/internal/cache"
	"github.com/g3lasio/deepsearchd/internal/config"
	"github.com/g3lasio/deepsearchd/internal/generator"
	"github.com/g3lasio/deepsearchd/internal/stats"
	"github.com/g3lasio/deepsearchd/internal/store/sqlite"
)

func cmdServe(args []string) error {
	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlags(cfg, args)

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	fileCfg, err := loadFileConfig(cfg.ConfigFile)
	if err != nil {
		return err
	}

	if cfg.APIKey == "" {
		return errors.New("no generator API key: set DEEPSEARCH_OPENAI_API_KEY or OPENAI_API_KEY")
	}

	db, err := sqlite.New(ctx, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	gen := generator.NewOpenAI(cfg.APIKey, fileCfg.Generator.BaseURL, fileCfg.Generator.Model)
	svc := cache.NewService(db, gen, stats.New(fileCfg.Cache.TopN), cache.Options{
		GenerationTimeout: fileCfg.GeneratorTimeout(),
		DegradedMode:      fileCfg.Cache.DegradedMode,
	})

	// Seed the stats aggregator from the store before serving traffic.
	if err := svc.RebuildStats(ctx); err != nil {
		return fmt.Errorf("seed stats: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		router := api.NewRouter(api.RouterDeps{Service: svc, Version: version})
		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      3 * time.Minute, // generate calls wait on the external generator
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 20, // 1 MiB
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("http server listening", "addr", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case <-ctx.Done():
			slog.Info("shutting down http server")
			return srv.Shutdown(context.Background())
		case err := <-errCh:
			return err
		}
	})

	if fileCfg.Retention.Enabled {
		g.Go(func() error {
			return svc.RunPruner(ctx, cache.RetentionPolicy{
				MaxAge:   fileCfg.RetentionMaxAge(),
				MaxUsage: fileCfg.Retention.MaxUsage,
				Interval: fileCfg.RetentionInterval(),
			})
		})
	}

	return g.Wait()
}

// applyFlags parses --addr=X / --db=X flags from the args list.
func applyFlags(cfg *Config, args []string) {
	for _, arg := range args {
		if len(arg) > 7 && arg[:7] == "--addr=" {
			cfg.HTTPAddr = arg[7:]
		}
		if len(arg) > 5 && arg[:5] == "--db=" {
			cfg.DBDSN = arg[5:]
		}
	}
}

// loadFileConfig reads the YAML config if present, defaults otherwise.
func loadFileConfig(path string) (*config.File, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			fileCfg, err := config.LoadFile(path)
			if err != nil {
				return nil, err
			}
			slog.Info("loaded config", "file", path)
			return fileCfg, nil
		}
	}
	return config.Default(), nil
}

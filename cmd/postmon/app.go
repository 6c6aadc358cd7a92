// cmd/postmon/app.go
package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/postcode-monitor/internal/catalog"
	"github.com/tamzrod/postcode-monitor/internal/config"
	xlog "github.com/tamzrod/postcode-monitor/internal/log"
	"github.com/tamzrod/postcode-monitor/internal/meta"
	"github.com/tamzrod/postcode-monitor/internal/metrics"
)

// loadConfig reads, validates and normalizes the config file.
// Without --config every setting takes its default.
func loadConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, fmt.Errorf("config load failed: %w", err)
		}
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(cfg)

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	xlog.Configure(xlog.Config{Level: level, Console: logConsole || cfg.Log.Console})

	return cfg, nil
}

func newSynchronizer(cfg config.MetaConfig) *meta.Synchronizer {
	store := meta.NewStore(cfg.StoragePath, cfg.IndexName)
	return meta.New(meta.Config{
		IndexURL: cfg.BaseURL + cfg.IndexName,
		BaseURL:  cfg.BaseURL,
		Enabled:  cfg.UpdatesEnabled(),
		Workers:  cfg.DownloadWorkers,
		Timeout:  time.Duration(cfg.TimeoutMs) * time.Millisecond,
	}, store, nil, xlog.WithComponent("meta"))
}

// syncCatalog brings the local meta index up to date when an update is
// available and loads whatever is cached afterwards. Remote failures are
// logged; the cached index is used as is.
func syncCatalog(ctx context.Context, syncer *meta.Synchronizer, enabled bool, logger zerolog.Logger) {
	if !enabled {
		logger.Info().Msg("catalog updates disabled")
		metrics.RecordSync("skipped", 0)
		loadLocal(syncer, logger)
		return
	}

	available, err := syncer.HasUpdateAvailable(ctx)
	switch {
	case errors.Is(err, meta.ErrRemoteUnavailable):
		metrics.RecordSync("failed", 0)
	case err != nil:
		logger.Error().Err(err).Msg("update check failed")
		metrics.RecordSync("failed", 0)
	case !available:
		metrics.RecordSync("skipped", 0)
	default:
		rep, err := syncer.ApplyUpdate(ctx)
		switch {
		case err != nil:
			logger.Error().Err(err).Msg("apply meta update")
			metrics.RecordSync("failed", 0)
		case rep.Skipped != "":
			logger.Info().Str("reason", rep.Skipped).Msg("meta update skipped")
			metrics.RecordSync("skipped", 0)
		default:
			logger.Info().
				Time(xlog.FieldUpdated, rep.Updated).
				Int("downloaded", len(rep.Downloaded)).
				Int("failed", len(rep.Failed)).
				Msg("meta update applied")
			metrics.RecordSync("updated", len(rep.Failed))
		}
	}

	loadLocal(syncer, logger)
}

func loadLocal(syncer *meta.Synchronizer, logger zerolog.Logger) {
	if !syncer.LoadLocal() {
		logger.Warn().Str(xlog.FieldPath, syncer.Store().IndexPath()).Msg("no local meta index, catalog is empty")
	}
}

// newCatalog builds the loader, publishes catalog counts as metrics and
// performs the first refresh.
func newCatalog(ctx context.Context, syncer *meta.Synchronizer) (*catalog.Loader, error) {
	loader := catalog.NewLoader(syncer, xlog.WithComponent("catalog"))
	loader.OnPublish(func(s *catalog.Snapshot) {
		metrics.SetCatalogCounts(s.Counts())
	})
	if err := loader.Refresh(ctx); err != nil {
		return nil, err
	}
	return loader, nil
}

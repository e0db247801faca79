package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abhisek/gauge/internal/bank"
	"github.com/abhisek/gauge/internal/calibration"
	"github.com/abhisek/gauge/internal/config"
	"github.com/abhisek/gauge/internal/logger"
	"github.com/abhisek/gauge/internal/placement"
	"github.com/abhisek/gauge/internal/platform/cache"
	"github.com/abhisek/gauge/internal/store"
)

// deps is everything a command may need, built from config.
type deps struct {
	cfg   config.Config
	log   *logger.Logger
	store *store.Store
	cache *cache.Cache

	engine   *placement.Engine
	calib    *calibration.Service
	ledger   *calibration.Ledger
	importer *bank.Importer
}

type depsOpts struct {
	// logToFile sends logs to a file so they do not tear a full-screen UI.
	logToFile bool
}

// openDeps loads config, opens the store and wires the services. The
// caller must Close the result.
func openDeps(cmd *cobra.Command, o depsOpts) (*deps, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}

	logFile := cfg.Log.File
	if o.logToFile && logFile == "" {
		logFile = filepath.Join(filepath.Dir(dbPath), "gauge.log")
	}
	var log *logger.Logger
	if logFile != "" {
		log, err = logger.New(cfg.Log.Mode, logFile)
	} else {
		log, err = logger.New(cfg.Log.Mode)
	}
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	d := &deps{cfg: cfg, log: log, store: st}

	var mc calibration.MetricsCache
	if cfg.Cache.URL != "" {
		c, err := cache.New(cmd.Context(), cfg.Cache.URL)
		if err != nil {
			log.Warn("metrics cache unavailable, using database only", "error", err)
		} else {
			d.cache = c
			mc = cache.NewMetricsCache(c, cfg.Cache.TTL)
		}
	}

	d.engine = placement.NewEngine(st, cfg.PlacementEngine(), log.With("component", "placement"))
	d.calib = calibration.NewService(st, st, st, st, mc, cfg.CalibrationService(), log.With("component", "calibration"))
	d.ledger = calibration.NewLedger(st, d.calib, log.With("component", "ledger"))
	d.importer = bank.NewImporter(st, log.With("component", "import"))
	return d, nil
}

// Close releases the store and cache and flushes the logger.
func (d *deps) Close() error {
	var errs []error
	if d.cache != nil {
		errs = append(errs, d.cache.Close())
	}
	errs = append(errs, d.store.Close())
	d.log.Sync()
	return errors.Join(errs...)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then the config (file or GAUGE_DB), then the default XDG path.
func resolveDBPath(cmd *cobra.Command, cfg config.Config) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if cfg.DBPath != "" {
		return cfg.DBPath, store.EnsureDir(cfg.DBPath)
	}
	return store.DefaultDBPath()
}

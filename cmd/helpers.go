package cmd

import (
	"fmt"

	"github.com/ziadkadry99/catalogd/internal/catalog"
	"github.com/ziadkadry99/catalogd/internal/config"
	"github.com/ziadkadry99/catalogd/internal/db"
	"github.com/ziadkadry99/catalogd/internal/logging"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `catalogd init` to create a config file", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// setupLogging installs the global zap logger. The returned func flushes it.
func setupLogging(cfg *config.Config) (func(), error) {
	undo, err := logging.Setup(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}
	return undo, nil
}

// openDatabase opens the server-mode database under the data dir.
func openDatabase(cfg *config.Config) (*db.DB, error) {
	database, err := db.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return database, nil
}

// newLocalStore opens the local-mode catalog file. announcer may be nil.
func newLocalStore(cfg *config.Config, announcer catalog.Announcer) *catalog.LocalStore {
	policy := catalog.SeedPolicy{OnEmpty: cfg.Catalog.SeedOnEmpty, Floor: cfg.Catalog.SeedFloor}
	return catalog.NewLocalStore(catalog.NewFileKV(cfg.LocalCatalogPath()), policy, announcer)
}

package cmd

import (
	"fmt"
	"log"

	"github.com/kyleseneker/rankwatch/internal/config"
	"github.com/kyleseneker/rankwatch/internal/logging"
	"github.com/kyleseneker/rankwatch/internal/store"
)

// loadConfig loads configuration and initializes the application logger.
func loadConfig(configPath string) (*config.Config, logging.Logger) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		// Use standard log here since logger isn't initialized yet
		log.Fatalf("Error loading configuration: %v", err)
	}
	logging.InitializeLogger(cfg)
	return cfg, logging.Get()
}

// openStore builds the store selected by store_type.
func openStore(cfg *config.Config, logger logging.Logger) (store.Store, error) {
	switch cfg.StoreType {
	case "file":
		return store.NewFileStore(cfg.StorePath, logger)
	case "sql":
		return store.NewSQLStore(cfg.StoreDriver, cfg.StoreDSN, logger)
	default:
		return nil, fmt.Errorf("invalid store_type %q", cfg.StoreType)
	}
}

// mustOpenStore is openStore for commands that cannot continue without one.
func mustOpenStore(cfg *config.Config, logger logging.Logger) store.Store {
	st, err := openStore(cfg, logger)
	if err != nil {
		log.Fatalf("Error initializing store: %v", err)
	}
	logger.Debug("Store initialized", "type", cfg.StoreType)
	return st
}

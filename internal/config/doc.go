// Package config provides centralized configuration management for the
// backfill reconciliation service.
//
// # Configuration Sources
//
// Configuration is assembled from the following sources, later ones winning:
//
//	1. Default() values
//	2. An optional YAML file (config.yaml, configs/config.yaml or BACKFILL_CONFIG_FILE)
//	3. Environment variables, including ones loaded from an optional .env file
//
// # Environment Variables
//
// All environment variables follow the pattern BACKFILL_<SECTION>_<FIELD>:
//
//	BACKFILL_SERVER_PORT=8080
//	BACKFILL_LOGGING_LEVEL=debug
//	BACKFILL_RECONCILE_STORAGE_TYPES=0010,0020,0030
//	BACKFILL_RECONCILE_DUPLICATE_POLICY=latest_finish
//
// # Validation
//
// The loaded configuration is validated with struct tags
// (github.com/go-playground/validator) plus a few cross-field rules.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config

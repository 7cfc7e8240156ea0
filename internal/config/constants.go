package config

import (
	"time"

	"backfill/pkg/contracts"
)

// Application constants
const (
	AppName    = "backfill"
	AppVersion = contracts.Version

	// EnvPrefix namespaces environment variables (BACKFILL_SERVER_PORT, ...)
	EnvPrefix = "BACKFILL"

	// Rate Limiting
	DefaultRateLimit = 20 // requests per second
	DefaultBurstSize = 40

	// Timeouts
	DefaultRequestTimeout = 2 * time.Minute

	// Uploads
	DefaultMaxUploadBytes = 50 << 20 // 50MB per file

	// Sessions
	DefaultSessionTTL  = 4 * time.Hour
	DefaultMaxSessions = 256

	// Export
	DefaultPivotGap       = 3
	DefaultExportFileName = "backfill_reconciliation.xlsx"

	DefaultLogLevel = "info"
)

// Reconciliation tables
var (
	// DefaultStockTypes are the SOH stock types counted as usable stock.
	DefaultStockTypes = []string{"F1", "F2", "F3", "F4", "Q3", "Q4"}

	// DefaultStorageTypes is the SOH storage type allow-list, compared as text.
	DefaultStorageTypes = []string{
		"0010", "0020", "0030", "0040", "0050",
		"0060", "0070", "0080", "0090", "0100",
		"1000", "1010", "1020", "1030", "1040",
		"2000", "2010", "2020", "9010", "9020",
	}

	// DefaultOwnerCodes are the SOH owners projected onto PMR.
	DefaultOwnerCodes = []string{"MR9191", "MR9192"}
)

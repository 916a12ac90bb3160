// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	CATALOG_HOST="0.0.0.0"
//	CATALOG_PORT="8080"
//	CATALOG_HEALTH_PORT="8081"
//	CATALOG_READ_TIMEOUT="30s"
//	CATALOG_WRITE_TIMEOUT="30s"
//
// Storage settings:
//
//	CATALOG_STORAGE_TYPE="postgres"  # filesystem, postgres, hybrid
//	CATALOG_FILESYSTEM_ROOT="/var/catalog/data"
//	CATALOG_POSTGRES_URL="postgres://localhost/catalog"
//	CATALOG_POSTGRES_MAX_CONNS="20"
//	CATALOG_S3_BUCKET="catalog-artifacts"
//	CATALOG_S3_REGION="us-east-1"
//
// Cache settings:
//
//	CATALOG_CACHE_ENABLED="true"
//	CATALOG_REDIS_URL="redis://localhost:6379"
//	CATALOG_REDIS_POOL_SIZE="10"
//
// Observability settings:
//
//	CATALOG_LOG_LEVEL="info"  # debug, info, warn, error
//	CATALOG_METRICS_ENABLED="true"
//	CATALOG_OTEL_ENABLED="true"
//	CATALOG_OTEL_ENDPOINT="otel-collector:4317"
//
// Catalog settings:
//
//	CATALOG_SPDX_ALLOWLIST_PATH="/etc/catalog/spdx-allowlist.json"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Storage: %s\n", cfg.Storage.Type)
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/observability: Uses observability configuration
package config

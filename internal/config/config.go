package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the RNAlens server.
type Config struct {
	Port      int
	Version   string
	Database  DatabaseConfig
	Plots     PlotConfig
	Telemetry TelemetryConfig
}

type DatabaseConfig struct {
	// Path is the SQLite database file holding the RNA-seq results.
	Path string
	// RowCeiling caps rows returned per query; results beyond it are
	// truncated and flagged, not rejected.
	RowCeiling int
}

type PlotConfig struct {
	// OutputDir is where rendered chart HTML files are written.
	OutputDir string
	// PreviewRows caps the text preview of query results.
	PreviewRows int
	// RetentionHours is how long rendered charts are kept on disk.
	// Zero disables the retention sweep.
	RetentionHours int
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// TurnTimeout is the per-turn deadline the hosting surface enforces on
// query and plot requests.
const TurnTimeout = 60 * time.Second

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:    envInt("RNALENS_PORT", 8080),
		Version: envStr("RNALENS_VERSION", "0.2.0"),
		Database: DatabaseConfig{
			Path:       envStr("RNALENS_DB_PATH", "data/rnaseq.db"),
			RowCeiling: envInt("RNALENS_ROW_CEILING", 10000),
		},
		Plots: PlotConfig{
			OutputDir:      envStr("RNALENS_PLOT_DIR", "plots"),
			PreviewRows:    envInt("RNALENS_PREVIEW_ROWS", 20),
			RetentionHours: envInt("RNALENS_PLOT_RETENTION_HOURS", 0),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "rnalens"),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

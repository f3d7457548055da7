// Package config loads runtime configuration from environment variables,
// optionally overlaid with a YAML deployment profile.
package config

import (
	"os"
	"strconv"
)

// Config holds ledger runtime configuration.
type Config struct {
	// DatabaseURL selects Postgres when set; otherwise the ledger falls
	// back to SQLite at SQLitePath.
	DatabaseURL string
	SQLitePath  string

	KeystorePath   string
	SigningEnabled bool
	NodeName       string
	SystemName     string

	// ProfileCode selects a deployment profile overlay from ProfilesDir;
	// empty means environment configuration only.
	ProfilesDir string
	ProfileCode string

	LogLevel    string
	VerifyLimit int

	OTLPEndpoint      string
	ObservabilityOn   bool
	EnvironmentName   string
	TraceSampleRate   float64
	InsecureTransport bool
}

// Load loads configuration from environment variables.
func Load() *Config {
	sqlitePath := os.Getenv("LEDGER_SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = "data/examledger.db"
	}

	keystorePath := os.Getenv("LEDGER_KEYSTORE_PATH")
	if keystorePath == "" {
		keystorePath = "data/keystore.json"
	}

	nodeName := os.Getenv("LEDGER_NODE_NAME")
	if nodeName == "" {
		nodeName, _ = os.Hostname()
	}

	systemName := os.Getenv("LEDGER_SYSTEM_NAME")
	if systemName == "" {
		systemName = "exam-platform"
	}

	profilesDir := os.Getenv("LEDGER_PROFILES_DIR")
	if profilesDir == "" {
		profilesDir = "profiles"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	verifyLimit := 0
	if v := os.Getenv("LEDGER_VERIFY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			verifyLimit = n
		}
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	environment := os.Getenv("LEDGER_ENVIRONMENT")
	if environment == "" {
		environment = "development"
	}

	sampleRate := 1.0
	if v := os.Getenv("OTEL_TRACE_SAMPLE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			sampleRate = f
		}
	}

	return &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		SQLitePath:        sqlitePath,
		KeystorePath:      keystorePath,
		SigningEnabled:    os.Getenv("LEDGER_SIGNING_DISABLED") != "true",
		NodeName:          nodeName,
		SystemName:        systemName,
		ProfilesDir:       profilesDir,
		ProfileCode:       os.Getenv("LEDGER_PROFILE"),
		LogLevel:          logLevel,
		VerifyLimit:       verifyLimit,
		OTLPEndpoint:      otlpEndpoint,
		ObservabilityOn:   os.Getenv("LEDGER_OBSERVABILITY") == "true",
		EnvironmentName:   environment,
		TraceSampleRate:   sampleRate,
		InsecureTransport: os.Getenv("OTEL_EXPORTER_INSECURE") == "true",
	}
}

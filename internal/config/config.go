// Package config loads the ingest configuration from an optional YAML file
// and ELNCORE_* environment overrides.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"elncore/internal/blob"
)

// Config is the full runtime configuration of the ingest service and CLI.
type Config struct {
	Blob              blob.Config `yaml:"blob"`
	Index             IndexConfig `yaml:"index"`
	Neo4j             Neo4jConfig `yaml:"neo4j"`
	LogMode           string      `yaml:"log_mode"`
	OverwriteArchives bool        `yaml:"overwrite_archives"`
	Workers           int         `yaml:"workers"`
	SubstanceTable    string      `yaml:"substance_table"`
}

// IndexConfig selects the search index backend.
type IndexConfig struct {
	Driver      string `yaml:"driver"` // memory|sqlite|postgres
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Neo4jConfig enables the reference-graph mirror when URI is set.
type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// Enabled reports whether a graph database is configured.
func (c Neo4jConfig) Enabled() bool { return strings.TrimSpace(c.URI) != "" }

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Blob:    blob.Config{Driver: blob.DriverFilesystem, FSRoot: "./elndata"},
		Index:   IndexConfig{Driver: "memory", SQLitePath: "./elncore-index.db"},
		LogMode: "dev",
		Workers: 4,
	}
}

// Load reads path (skipped when empty) over the defaults and then applies
// environment overrides from getenv.
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config.Load: read %s: %w", path, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("config.Load: decode %s: %w", path, err)
		}
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	var driver string
	str("ELNCORE_BLOB_DRIVER", &driver)
	if driver != "" {
		cfg.Blob.Driver = blob.Driver(driver)
	}
	str("ELNCORE_BLOB_FS_ROOT", &cfg.Blob.FSRoot)
	str("ELNCORE_BLOB_S3_BUCKET", &cfg.Blob.S3.Bucket)
	str("ELNCORE_BLOB_S3_REGION", &cfg.Blob.S3.Region)
	str("ELNCORE_BLOB_S3_PREFIX", &cfg.Blob.S3.Prefix)
	str("ELNCORE_BLOB_S3_ENDPOINT", &cfg.Blob.S3.Endpoint)
	str("ELNCORE_BLOB_GCS_BUCKET", &cfg.Blob.GCS.Bucket)
	str("ELNCORE_BLOB_GCS_PREFIX", &cfg.Blob.GCS.Prefix)
	str("STORAGE_EMULATOR_HOST", &cfg.Blob.GCS.EmulatorHost)
	str("ELNCORE_INDEX_DRIVER", &cfg.Index.Driver)
	str("ELNCORE_SQLITE_PATH", &cfg.Index.SQLitePath)
	str("ELNCORE_POSTGRES_DSN", &cfg.Index.PostgresDSN)
	str("ELNCORE_LOG_MODE", &cfg.LogMode)
	str("ELNCORE_NEO4J_URI", &cfg.Neo4j.URI)
	str("ELNCORE_NEO4J_USER", &cfg.Neo4j.User)
	str("ELNCORE_NEO4J_PASSWORD", &cfg.Neo4j.Password)
	str("ELNCORE_NEO4J_DATABASE", &cfg.Neo4j.Database)
	str("ELNCORE_SUBSTANCE_TABLE", &cfg.SubstanceTable)

	if v := strings.TrimSpace(getenv("ELNCORE_BLOB_S3_PATH_STYLE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: ELNCORE_BLOB_S3_PATH_STYLE: %w", err)
		}
		cfg.Blob.S3.PathStyle = b
	}
	if v := strings.TrimSpace(getenv("ELNCORE_OVERWRITE_ARCHIVES")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: ELNCORE_OVERWRITE_ARCHIVES: %w", err)
		}
		cfg.OverwriteArchives = b
	}
	if v := strings.TrimSpace(getenv("ELNCORE_WORKERS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: ELNCORE_WORKERS: %w", err)
		}
		cfg.Workers = n
	}
	return nil
}

// Validate checks enumerations and required fields.
func (c Config) Validate() error {
	switch c.Blob.Driver {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("config: blob driver s3 requires a bucket")
		}
	case blob.DriverGCS:
		if c.Blob.GCS.Bucket == "" {
			return fmt.Errorf("config: blob driver gcs requires a bucket")
		}
	default:
		return fmt.Errorf("config: unknown blob driver %q", c.Blob.Driver)
	}
	switch c.Index.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.Index.PostgresDSN == "" {
			return fmt.Errorf("config: index driver postgres requires a dsn")
		}
	default:
		return fmt.Errorf("config: unknown index driver %q", c.Index.Driver)
	}
	switch strings.ToLower(c.LogMode) {
	case "dev", "prod", "production":
	default:
		return fmt.Errorf("config: unknown log mode %q", c.LogMode)
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: workers must be positive, got %d", c.Workers)
	}
	return nil
}

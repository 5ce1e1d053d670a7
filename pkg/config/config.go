// Package config loads igcatalog settings from the environment, optionally
// layered over a YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/igcatalog/pkg/catalog"
	"github.com/Mindburn-Labs/igcatalog/pkg/corpus"
	"github.com/Mindburn-Labs/igcatalog/pkg/fhir"
	"github.com/Mindburn-Labs/igcatalog/pkg/observability"
	"github.com/Mindburn-Labs/igcatalog/pkg/store"
)

// FileEnv names the optional YAML file loaded before environment overrides.
const FileEnv = "IGCATALOG_CONFIG"

// Config holds process configuration.
type Config struct {
	Port           string  `yaml:"port"`
	LogLevel       string  `yaml:"log_level"`
	LogFormat      string  `yaml:"log_format"`
	FHIRVersion    string  `yaml:"fhir_version"`
	IGDir          string  `yaml:"ig_dir"`
	IgnoreVersion  bool    `yaml:"ignore_version"`
	MatchPolicy    string  `yaml:"match_policy"`
	AliasPolicy    string  `yaml:"alias_policy"`
	SyncRate       float64 `yaml:"sync_rate"`
	DocumentSchema string  `yaml:"document_schema"`

	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
}

// StorageConfig selects the content store.
type StorageConfig struct {
	Type    string      `yaml:"type"`
	DataDir string      `yaml:"data_dir"`
	S3      S3Config    `yaml:"s3"`
	GCS     GCSConfig   `yaml:"gcs"`
	Redis   RedisConfig `yaml:"redis"`
	SQL     SQLConfig   `yaml:"sql"`
}

type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	Prefix   string `yaml:"prefix"`
	PageSize int32  `yaml:"page_size"`
}

type GCSConfig struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type SQLConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ObservabilityConfig controls OTLP export.
type ObservabilityConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// RateLimitConfig bounds the HTTP request rate.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Port:        "8080",
		LogLevel:    "INFO",
		LogFormat:   "json",
		FHIRVersion: "R4",
		IGDir:       corpus.DefaultDir,
		MatchPolicy: "strict",
		AliasPolicy: "override",
		Storage: StorageConfig{
			Type:    string(store.TypeFS),
			DataDir: "data/igs",
			S3:      S3Config{PageSize: store.DefaultS3PageSize},
			Redis:   RedisConfig{Prefix: "ig:"},
			SQL:     SQLConfig{Driver: "sqlite"},
		},
		Observability: ObservabilityConfig{Endpoint: "localhost:4317"},
		RateLimit:     RateLimitConfig{RPS: 50, Burst: 100},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// IGCATALOG_CONFIG if set, then environment variables.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
	setString(&c.FHIRVersion, "FHIR_VERSION")
	setString(&c.IGDir, "IG_DIR")
	setString(&c.MatchPolicy, "IG_MATCH_POLICY")
	setString(&c.AliasPolicy, "IG_ALIAS_POLICY")
	setString(&c.DocumentSchema, "IG_DOCUMENT_SCHEMA")

	setString(&c.Storage.Type, "IG_STORAGE_TYPE")
	setString(&c.Storage.DataDir, "IG_DATA_DIR")
	setString(&c.Storage.S3.Bucket, "IMPLEMENTATION_GUIDES_BUCKET")
	setString(&c.Storage.S3.Region, "AWS_REGION")
	setString(&c.Storage.S3.Region, "IG_S3_REGION")
	setString(&c.Storage.S3.Endpoint, "IG_S3_ENDPOINT")
	setString(&c.Storage.S3.Prefix, "IG_S3_PREFIX")
	setString(&c.Storage.GCS.Bucket, "IG_GCS_BUCKET")
	setString(&c.Storage.GCS.Prefix, "IG_GCS_PREFIX")
	setString(&c.Storage.Redis.Addr, "IG_REDIS_ADDR")
	setString(&c.Storage.Redis.Password, "IG_REDIS_PASSWORD")
	setString(&c.Storage.Redis.Prefix, "IG_REDIS_PREFIX")
	setString(&c.Storage.SQL.Driver, "IG_SQL_DRIVER")
	setString(&c.Storage.SQL.DSN, "IG_SQL_DSN")
	setString(&c.Observability.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")

	if err := setBool(&c.IgnoreVersion, "IG_IGNORE_VERSION"); err != nil {
		return err
	}
	if err := setBool(&c.Observability.Enabled, "OTEL_ENABLED"); err != nil {
		return err
	}
	if err := setFloat(&c.SyncRate, "IG_SYNC_RATE"); err != nil {
		return err
	}
	if err := setFloat(&c.RateLimit.RPS, "RATE_LIMIT_RPS"); err != nil {
		return err
	}
	if err := setInt(&c.RateLimit.Burst, "RATE_LIMIT_BURST"); err != nil {
		return err
	}
	if err := setInt(&c.Storage.Redis.DB, "IG_REDIS_DB"); err != nil {
		return err
	}
	var pageSize int
	if err := setInt(&pageSize, "IG_S3_PAGE_SIZE"); err != nil {
		return err
	}
	if pageSize < 0 || pageSize > store.DefaultS3PageSize {
		return fmt.Errorf("IG_S3_PAGE_SIZE must be between 1 and %d", store.DefaultS3PageSize)
	}
	if pageSize != 0 {
		c.Storage.S3.PageSize = int32(pageSize)
	}
	return nil
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	if _, err := fhir.ParseSchemaVersion(c.FHIRVersion); err != nil {
		return err
	}
	if _, err := c.ResolverOptions(); err != nil {
		return err
	}
	switch store.Type(c.Storage.Type) {
	case "", store.TypeMemory, store.TypeFS, store.TypeS3, store.TypeGCS, store.TypeRedis, store.TypeSQL:
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
	if c.Storage.S3.PageSize < 0 || c.Storage.S3.PageSize > store.DefaultS3PageSize {
		return fmt.Errorf("IG_S3_PAGE_SIZE must be between 1 and %d", store.DefaultS3PageSize)
	}
	if c.SyncRate < 0 {
		return fmt.Errorf("IG_SYNC_RATE must not be negative")
	}
	return nil
}

// SchemaVersion returns the configured FHIR generation.
func (c *Config) SchemaVersion() fhir.SchemaVersion {
	v, err := fhir.ParseSchemaVersion(c.FHIRVersion)
	if err != nil {
		return fhir.R4
	}
	return v
}

// ResolverOptions returns the catalog resolver settings.
func (c *Config) ResolverOptions() (catalog.Options, error) {
	opts := catalog.Options{Version: c.SchemaVersion()}
	switch strings.ToLower(c.MatchPolicy) {
	case "", "strict":
		opts.Match = catalog.MatchStrict
	case "first":
		opts.Match = catalog.MatchFirst
	default:
		return opts, fmt.Errorf("unknown IG_MATCH_POLICY %q (want strict or first)", c.MatchPolicy)
	}
	switch strings.ToLower(c.AliasPolicy) {
	case "", "override":
		opts.Alias = catalog.AliasOverride
	case "strict":
		opts.Alias = catalog.AliasStrict
	default:
		return opts, fmt.Errorf("unknown IG_ALIAS_POLICY %q (want override or strict)", c.AliasPolicy)
	}
	return opts, nil
}

// StoreConfig returns the content store settings.
func (c *Config) StoreConfig() store.Config {
	s := c.Storage
	return store.Config{
		Type:    store.Type(s.Type),
		DataDir: s.DataDir,
		S3: store.S3StoreConfig{
			Bucket:   s.S3.Bucket,
			Region:   s.S3.Region,
			Endpoint: s.S3.Endpoint,
			Prefix:   s.S3.Prefix,
			PageSize: s.S3.PageSize,
		},
		GCS:   store.GCSConfig{Bucket: s.GCS.Bucket, Prefix: s.GCS.Prefix},
		Redis: store.RedisStoreConfig{Addr: s.Redis.Addr, Password: s.Redis.Password, DB: s.Redis.DB, Prefix: s.Redis.Prefix},
		SQL:   store.SQLStoreConfig{Driver: s.SQL.Driver, DSN: s.SQL.DSN},
	}
}

// StoreConfigForBucket returns StoreConfig with the bucket of the configured
// object-store backend replaced. Other backends ignore bucket.
func (c *Config) StoreConfigForBucket(bucket string) store.Config {
	sc := c.StoreConfig()
	switch sc.Type {
	case store.TypeS3:
		sc.S3.Bucket = bucket
	case store.TypeGCS:
		sc.GCS.Bucket = bucket
	}
	return sc
}

// ObservabilityConfig returns telemetry settings.
func (c *Config) ObservabilityConfig() *observability.Config {
	oc := observability.DefaultConfig()
	oc.Enabled = c.Observability.Enabled
	if c.Observability.Endpoint != "" {
		oc.OTLPEndpoint = c.Observability.Endpoint
	}
	return oc
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

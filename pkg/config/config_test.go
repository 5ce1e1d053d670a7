package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/igcatalog/pkg/catalog"
	"github.com/Mindburn-Labs/igcatalog/pkg/config"
	"github.com/Mindburn-Labs/igcatalog/pkg/fhir"
	"github.com/Mindburn-Labs/igcatalog/pkg/store"
)

var envKeys = []string{
	config.FileEnv, "PORT", "LOG_LEVEL", "LOG_FORMAT", "FHIR_VERSION", "IG_DIR", "IG_MATCH_POLICY",
	"IG_ALIAS_POLICY", "IG_DOCUMENT_SCHEMA", "IG_STORAGE_TYPE", "IG_DATA_DIR", "IMPLEMENTATION_GUIDES_BUCKET",
	"AWS_REGION", "IG_S3_REGION", "IG_S3_ENDPOINT", "IG_S3_PREFIX", "IG_S3_PAGE_SIZE", "IG_GCS_BUCKET",
	"IG_GCS_PREFIX", "IG_REDIS_ADDR", "IG_REDIS_PASSWORD", "IG_REDIS_DB", "IG_REDIS_PREFIX", "IG_SQL_DRIVER",
	"IG_SQL_DSN", "IG_IGNORE_VERSION", "IG_SYNC_RATE", "OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
}

func cleanEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

// TestLoad_Defaults verifies the process boots with no environment.
func TestLoad_Defaults(t *testing.T) {
	cleanEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "implementationGuides", cfg.IGDir)
	assert.Equal(t, fhir.R4, cfg.SchemaVersion())
	assert.Equal(t, store.TypeFS, cfg.StoreConfig().Type)
	assert.False(t, cfg.ObservabilityConfig().Enabled)

	opts, err := cfg.ResolverOptions()
	require.NoError(t, err)
	assert.Equal(t, catalog.MatchStrict, opts.Match)
	assert.Equal(t, catalog.AliasOverride, opts.Alias)
}

// TestLoad_Overrides verifies environment variables win over defaults.
func TestLoad_Overrides(t *testing.T) {
	cleanEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("FHIR_VERSION", "STU3")
	t.Setenv("IG_STORAGE_TYPE", "s3")
	t.Setenv("IMPLEMENTATION_GUIDES_BUCKET", "fhir-igs")
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("IG_S3_PAGE_SIZE", "250")
	t.Setenv("IG_MATCH_POLICY", "first")
	t.Setenv("IG_ALIAS_POLICY", "strict")
	t.Setenv("IG_IGNORE_VERSION", "true")
	t.Setenv("IG_SYNC_RATE", "12.5")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, fhir.STU3, cfg.SchemaVersion())
	assert.True(t, cfg.IgnoreVersion)
	assert.Equal(t, 12.5, cfg.SyncRate)

	sc := cfg.StoreConfig()
	assert.Equal(t, store.TypeS3, sc.Type)
	assert.Equal(t, "fhir-igs", sc.S3.Bucket)
	assert.Equal(t, "eu-west-1", sc.S3.Region)
	assert.Equal(t, int32(250), sc.S3.PageSize)

	opts, err := cfg.ResolverOptions()
	require.NoError(t, err)
	assert.Equal(t, catalog.MatchFirst, opts.Match)
	assert.Equal(t, catalog.AliasStrict, opts.Alias)
	assert.Equal(t, fhir.STU3, opts.Version)

	oc := cfg.ObservabilityConfig()
	assert.True(t, oc.Enabled)
	assert.Equal(t, "collector:4317", oc.OTLPEndpoint)
}

func TestLoad_S3RegionPrecedence(t *testing.T) {
	cleanEnv(t)
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("IG_S3_REGION", "ap-south-1")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "ap-south-1", cfg.Storage.S3.Region)
}

func TestLoad_File(t *testing.T) {
	cleanEnv(t)
	path := filepath.Join(t.TempDir(), "igcatalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "7070"
ig_dir: /srv/igs
storage:
  type: redis
  redis:
    addr: redis:6379
    db: 2
rate_limit:
  rps: 5
  burst: 10
`), 0o644))
	t.Setenv(config.FileEnv, path)
	t.Setenv("PORT", "6060")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "6060", cfg.Port, "environment wins over the file")
	assert.Equal(t, "/srv/igs", cfg.IGDir)
	assert.Equal(t, "redis:6379", cfg.StoreConfig().Redis.Addr)
	assert.Equal(t, 2, cfg.StoreConfig().Redis.DB)
	assert.Equal(t, "ig:", cfg.StoreConfig().Redis.Prefix, "defaults survive a partial file")
	assert.Equal(t, 5.0, cfg.RateLimit.RPS)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"FHIR_VERSION":      "R5",
		"IG_STORAGE_TYPE":   "ftp",
		"IG_MATCH_POLICY":   "fuzzy",
		"IG_ALIAS_POLICY":   "merge",
		"IG_IGNORE_VERSION": "maybe",
		"IG_SYNC_RATE":      "-1",
		"IG_S3_PAGE_SIZE":   "5000",
		"RATE_LIMIT_BURST":  "lots",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			cleanEnv(t)
			t.Setenv(key, value)
			_, err := config.Load()
			require.Error(t, err)
		})
	}
}

func TestLoad_PageSizeOutOfRange(t *testing.T) {
	for _, value := range []string{"4294967297", "2147483648", "1001", "-5"} {
		t.Run(value, func(t *testing.T) {
			cleanEnv(t)
			t.Setenv("IG_S3_PAGE_SIZE", value)
			_, err := config.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "IG_S3_PAGE_SIZE")
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cleanEnv(t)
	t.Setenv(config.FileEnv, filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := config.Load()
	require.Error(t, err)
}

func TestStoreConfigForBucket(t *testing.T) {
	cleanEnv(t)
	t.Setenv("IG_STORAGE_TYPE", "gcs")
	cfg, err := config.Load()
	require.NoError(t, err)

	sc := cfg.StoreConfigForBucket("from-event")
	assert.Equal(t, "from-event", sc.GCS.Bucket)
	assert.Empty(t, sc.S3.Bucket)
}

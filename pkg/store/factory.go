package store

import (
	"context"
	"fmt"
)

// Type represents the storage backend holding implementation-guide content.
type Type string

const (
	TypeMemory Type = "memory"
	TypeFS     Type = "fs"
	TypeS3     Type = "s3"
	TypeGCS    Type = "gcs"
	TypeRedis  Type = "redis"
	TypeSQL    Type = "sql"
)

// Config selects and configures a backend.
type Config struct {
	Type    Type
	DataDir string
	S3      S3StoreConfig
	GCS     GCSConfig
	Redis   RedisStoreConfig
	SQL     SQLStoreConfig
}

// GCSConfig is the build-independent GCS configuration.
type GCSConfig struct {
	Bucket string
	Prefix string
}

// New creates the backend described by cfg.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case "", TypeFS:
		dir := cfg.DataDir
		if dir == "" {
			dir = "data/igs"
		}
		return NewFileStore(dir)
	case TypeMemory:
		return NewMemoryStore(), nil
	case TypeS3:
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("IMPLEMENTATION_GUIDES_BUCKET is required for S3 storage")
		}
		if cfg.S3.Region == "" {
			cfg.S3.Region = "us-east-1"
		}
		return NewS3Store(ctx, cfg.S3)
	case TypeGCS:
		if cfg.GCS.Bucket == "" {
			return nil, fmt.Errorf("IG_GCS_BUCKET is required for GCS storage")
		}
		return newGCSStore(ctx, cfg.GCS)
	case TypeRedis:
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("IG_REDIS_ADDR is required for Redis storage")
		}
		return NewRedisStore(cfg.Redis), nil
	case TypeSQL:
		return OpenSQLStore(ctx, cfg.SQL)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

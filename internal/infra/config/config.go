// Package config loads trackcore settings from an optional file and
// TRACKCORE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"trackcore/internal/blob"
	"trackcore/internal/core"
	"trackcore/internal/infra/logger"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TRACKCORE"

// Config is the full set of settings.
type Config struct {
	Storage StorageConfig
	Blob    BlobConfig
	Log     logger.Config
	History HistoryConfig
	Session SessionConfig
}

// StorageConfig selects the record store.
type StorageConfig struct {
	Driver       string
	SQLitePath   string
	PostgresDSN  string
	BadgerPath   string
	BlobPrefix   string
	GeneratedIDs bool
}

// BlobConfig configures the blob backend of the blob record store.
type BlobConfig struct {
	Driver string
	FSRoot string
	S3     blob.S3Config
}

// HistoryConfig configures undo history.
type HistoryConfig struct {
	Tracking bool
	MaxDepth int
}

// SessionConfig configures sessions.
type SessionConfig struct {
	IDStrategy string
}

var defaults = map[string]any{
	"storage.driver":            string(core.StorageSQLite),
	"storage.sqlite_path":       "trackcore.db",
	"storage.postgres_dsn":      "",
	"storage.badger_path":       "trackcore.badger",
	"storage.blob_prefix":       "records/",
	"storage.generated_ids":     false,
	"blob.driver":               string(blob.DriverFilesystem),
	"blob.fs_root":              "./data/blobs",
	"blob.s3.region":            "",
	"blob.s3.bucket":            "",
	"blob.s3.endpoint":          "",
	"blob.s3.access_key_id":     "",
	"blob.s3.secret_access_key": "",
	"blob.s3.session_token":     "",
	"blob.s3.path_style":        false,
	"log.level":                 "info",
	"log.format":                "console",
	"log.output":                "stderr",
	"history.tracking":          true,
	"history.max_depth":         100,
	"session.id_strategy":       string(core.IDStrategyAllocator),
}

// Short environment names kept for the storage paths.
var aliases = map[string]string{
	"storage.sqlite_path":  EnvPrefix + "_SQLITE_PATH",
	"storage.postgres_dsn": EnvPrefix + "_POSTGRES_DSN",
	"storage.badger_path":  EnvPrefix + "_BADGER_PATH",
}

// Load reads settings. Priority, highest first: environment variables, the
// file at path (or trackcore.{yaml,toml,json} in the working directory when
// path is empty), built-in defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("trackcore")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range aliases {
		if err := v.BindEnv(key, env, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_"))); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	cfg := &Config{
		Storage: StorageConfig{
			Driver:       v.GetString("storage.driver"),
			SQLitePath:   v.GetString("storage.sqlite_path"),
			PostgresDSN:  v.GetString("storage.postgres_dsn"),
			BadgerPath:   v.GetString("storage.badger_path"),
			BlobPrefix:   v.GetString("storage.blob_prefix"),
			GeneratedIDs: v.GetBool("storage.generated_ids"),
		},
		Blob: BlobConfig{
			Driver: v.GetString("blob.driver"),
			FSRoot: v.GetString("blob.fs_root"),
			S3: blob.S3Config{
				Region:          v.GetString("blob.s3.region"),
				Bucket:          v.GetString("blob.s3.bucket"),
				Endpoint:        v.GetString("blob.s3.endpoint"),
				AccessKeyID:     v.GetString("blob.s3.access_key_id"),
				SecretAccessKey: v.GetString("blob.s3.secret_access_key"),
				SessionToken:    v.GetString("blob.s3.session_token"),
				PathStyle:       v.GetBool("blob.s3.path_style"),
			},
		},
		Log: logger.Config{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		History: HistoryConfig{
			Tracking: v.GetBool("history.tracking"),
			MaxDepth: v.GetInt("history.max_depth"),
		},
		Session: SessionConfig{
			IDStrategy: v.GetString("session.id_strategy"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown drivers and strategies.
func (c *Config) Validate() error {
	switch core.StorageDriver(c.Storage.Driver) {
	case core.StorageMemory, core.StorageSQLite, core.StoragePostgres, core.StorageBadger, core.StorageBlob:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch blob.Driver(c.Blob.Driver) {
	case blob.DriverFilesystem, blob.DriverS3, blob.DriverMemory:
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	switch core.IDStrategy(c.Session.IDStrategy) {
	case core.IDStrategyAllocator, core.IDStrategyStorage:
	default:
		return fmt.Errorf("unknown id strategy %q", c.Session.IDStrategy)
	}
	if c.History.MaxDepth < 0 {
		return fmt.Errorf("history max depth must not be negative")
	}
	return nil
}

// StorageConfig converts the settings for core.OpenPersistentStore. The
// storage id strategy implies generated ids.
func (c *Config) StorageConfig() core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(c.Storage.Driver),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
		BadgerPath:  c.Storage.BadgerPath,
		BlobPrefix:  c.Storage.BlobPrefix,
		Blob: blob.Config{
			Driver: blob.Driver(c.Blob.Driver),
			FSRoot: c.Blob.FSRoot,
			S3:     c.Blob.S3,
		},
		GeneratedIDs: c.Storage.GeneratedIDs || core.IDStrategy(c.Session.IDStrategy) == core.IDStrategyStorage,
	}
}

// Package config loads and validates the mount configuration.
//
// Configuration sources, in order of precedence:
//  1. Command-line flags (applied by cmd/grainfs on top of the loaded file)
//  2. Environment variables (GRAINFS_*)
//  3. Configuration file (YAML)
//  4. Defaults
//
// Backend configuration follows the store-factory pattern: Backend.Type
// selects the implementation and only the matching type-specific subtree is
// decoded, by the factory in factories.go, into that store's own config
// struct.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the complete mount configuration.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging"`

	// Mount contains the mountpoint and the translation-engine parameters.
	Mount MountConfig `mapstructure:"mount"`

	// Backend selects and configures the key-value store.
	Backend BackendConfig `mapstructure:"backend"`

	// Cache bounds the in-process caches.
	Cache CacheConfig `mapstructure:"cache"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN, or ERROR.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Output is where logs go: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required"`
}

// MountConfig contains the mountpoint and filesystem parameters.
type MountConfig struct {
	// Mountpoint is the directory the filesystem is mounted on.
	Mountpoint string `mapstructure:"mountpoint" validate:"required"`

	// BlockSize is the content block size in bytes.
	BlockSize uint32 `mapstructure:"block_size" validate:"required,gte=512,lte=1048576"`

	// InlineThreshold is the largest file stored inline in its inode
	// record. Must be smaller than BlockSize (checked in Validate).
	InlineThreshold uint32 `mapstructure:"inline_threshold"`

	// MaxTxnRetries bounds transaction attempts under backend conflicts.
	MaxTxnRetries int `mapstructure:"max_txn_retries" validate:"required,gte=1,lte=100"`

	// AllowOther permits other users to access the mount. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool `mapstructure:"allow_other"`
}

// BackendConfig selects the key-value store implementation.
//
// The embedded Badger store stands in for the distributed backend behind
// the same transaction contract; its path is the backend "endpoint" in the
// embedded case.
type BackendConfig struct {
	// Type is the store implementation. Valid values: badger.
	Type string `mapstructure:"type" validate:"required,oneof=badger"`

	// Badger holds BadgerDB-specific settings, used when Type = "badger".
	Badger map[string]any `mapstructure:"badger"`
}

// CacheConfig bounds the two LRU caches.
type CacheConfig struct {
	// InodeEntries is the decoded-inode cache capacity.
	InodeEntries int `mapstructure:"inode_entries" validate:"gte=0"`

	// BlockEntries is the block cache capacity.
	BlockEntries int `mapstructure:"block_entries" validate:"gte=0"`
}

// Load reads configuration from the given file (optional), the GRAINFS_*
// environment, and defaults. Validation is deferred to Validate so the
// caller can apply flag overrides first.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GRAINFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return &cfg, nil
}

package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/grainfs/grainfs/pkg/fs"
	"github.com/grainfs/grainfs/pkg/kv"
	kvbadger "github.com/grainfs/grainfs/pkg/kv/badger"
)

// NewBackendStore builds the configured key-value store. The type-specific
// subtree is decoded into the selected implementation's own config struct.
func NewBackendStore(cfg BackendConfig) (kv.Store, error) {
	switch cfg.Type {
	case "badger":
		var badgerCfg kvbadger.Config
		if err := mapstructure.Decode(cfg.Badger, &badgerCfg); err != nil {
			return nil, fmt.Errorf("invalid badger config: %w", err)
		}
		store, err := kvbadger.Open(badgerCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger backend: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown backend type: %q", cfg.Type)
	}
}

// FilesystemOptions translates the mount and cache sections into the
// filesystem core's option struct.
func (c *Config) FilesystemOptions() fs.Options {
	return fs.Options{
		BlockSize:         c.Mount.BlockSize,
		InlineThreshold:   c.Mount.InlineThreshold,
		MaxRetries:        c.Mount.MaxTxnRetries,
		InodeCacheEntries: c.Cache.InodeEntries,
		BlockCacheEntries: c.Cache.BlockEntries,
	}
}

package config

import "github.com/spf13/viper"

// Default values applied below every other configuration source.
const (
	DefaultLogLevel        = "INFO"
	DefaultLogOutput       = "stdout"
	DefaultBlockSize       = 4096
	DefaultInlineThreshold = 256
	DefaultMaxTxnRetries   = 10
	DefaultBackendType     = "badger"
	DefaultInodeEntries    = 8192
	DefaultBlockEntries    = 2048
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.output", DefaultLogOutput)

	v.SetDefault("mount.block_size", DefaultBlockSize)
	v.SetDefault("mount.inline_threshold", DefaultInlineThreshold)
	v.SetDefault("mount.max_txn_retries", DefaultMaxTxnRetries)
	v.SetDefault("mount.allow_other", false)

	v.SetDefault("backend.type", DefaultBackendType)

	v.SetDefault("cache.inode_entries", DefaultInodeEntries)
	v.SetDefault("cache.block_entries", DefaultBlockEntries)
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/grainfs/grainfs/internal/logger"
	fusebridge "github.com/grainfs/grainfs/pkg/adapter/fuse"
	"github.com/grainfs/grainfs/pkg/config"
	"github.com/grainfs/grainfs/pkg/fs"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "Path to configuration file (YAML)")
	mountpoint := pflag.StringP("mountpoint", "m", "", "Mountpoint (overrides configuration)")
	logLevel := pflag.String("log-level", "", "Log level: DEBUG, INFO, WARN, ERROR (overrides configuration)")
	debug := pflag.Bool("debug", false, "Enable FUSE request tracing")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Command-line overrides take precedence over file and environment.
	if *mountpoint != "" {
		cfg.Mount.Mountpoint = *mountpoint
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.SetLevel(cfg.Logging.Level)

	fmt.Println("grainfs - filesystem on a transactional key-value store")
	logger.Info("Log level set to: %s", cfg.Logging.Level)
	logger.Info("Backend: %s", cfg.Backend.Type)

	store, err := config.NewBackendStore(cfg.Backend)
	if err != nil {
		log.Fatalf("Failed to open backend store: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fsys, err := fs.New(ctx, store, cfg.FilesystemOptions())
	if err != nil {
		store.Close()
		log.Fatalf("Failed to initialize filesystem: %v", err)
	}

	server, err := fusebridge.Mount(fusebridge.Options{
		Mountpoint: cfg.Mount.Mountpoint,
		FileSystem: fsys,
		AllowOther: cfg.Mount.AllowOther,
		Debug:      *debug,
	})
	if err != nil {
		fsys.Close()
		store.Close()
		log.Fatalf("Failed to mount: %v", err)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Filesystem is running. Press Ctrl+C to unmount.")
	<-sigChan

	logger.Info("Unmounting...")
	if err := server.Unmount(); err != nil {
		logger.Error("Unmount failed: %v (is the mountpoint busy?)", err)
	}
	server.Wait()

	if err := fsys.Close(); err != nil {
		logger.Error("Filesystem shutdown error: %v", err)
	}
	if err := store.Close(); err != nil {
		logger.Error("Backend close error: %v", err)
	}
	logger.Info("Shutdown complete")
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/doudizhu/internal/profiles"
	"github.com/lox/doudizhu/internal/randutil"
	"github.com/lox/doudizhu/internal/server"
)

var CLI struct {
	Config   string `short:"c" long:"config" default:"doudizhu-server.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" long:"addr" help:"Server address to bind to (overrides config)"`
	LogLevel string `short:"l" long:"log-level" help:"Log level (overrides config)"`
	Seed     int64  `short:"s" long:"seed" help:"Seed for deals and AI decisions (0 = time-based)"`
}

func main() {
	ctx := kong.Parse(&CLI)

	cfg, err := server.LoadConfig(CLI.Config)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		ctx.Exit(1)
	}

	// Apply command line overrides
	if CLI.Addr != "" {
		cfg.Server.Addr = CLI.Addr
	}
	if CLI.LogLevel != "" {
		cfg.Server.LogLevel = CLI.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		ctx.Exit(1)
	}

	logger := log.New(os.Stderr)
	switch cfg.Server.LogLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "info":
		logger.SetLevel(log.InfoLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	seed := CLI.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	store, err := profiles.NewFileStore(cfg.Profiles.Dir)
	if err != nil {
		logger.Error("Failed to open profile store", "error", err)
		ctx.Exit(1)
	}

	world := server.NewWorld(cfg, store, randutil.New(seed), quartz.NewReal(), logger)
	srv := server.New(cfg.Server.Addr, world, logger)

	logger.Info("Starting Doudizhu Server",
		"addr", cfg.Server.Addr,
		"tick", cfg.Tick(),
		"seed", seed)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Info("Shutting down server...")
		cancel()
	}()

	if err := srv.Run(runCtx); err != nil {
		logger.Error("Server failed", "error", err)
		ctx.Exit(1)
	}
}

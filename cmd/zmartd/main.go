// Command zmartd is the prediction-market backend entry point. It loads
// configuration, validates it, wires dependencies, sets up signal handling,
// and starts the application in the configured mode.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/zmartlabs/zmartd/internal/app"
	"github.com/zmartlabs/zmartd/internal/config"
	"github.com/zmartlabs/zmartd/internal/crypto"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	flag.Parse()

	// Bootstrap logger until the configured level is known.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("zmartd starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
	)
	logger.Debug("effective configuration",
		slog.Any("config", config.RedactedConfig(cfg)),
	)

	// When a local resolver key is configured, surface its address so
	// operators can confirm it is in the resolver allow list.
	if cfg.Resolver.PrivateKey != "" || cfg.Resolver.EncryptedKeyPath != "" {
		keyHex, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Resolver.PrivateKey,
			EncryptedKeyPath: cfg.Resolver.EncryptedKeyPath,
			KeyPassword:      cfg.Resolver.KeyPassword,
		})
		if err != nil {
			logger.Error("failed to load resolver key", slog.String("error", err.Error()))
			os.Exit(1)
		}
		signer, err := crypto.NewSigner(keyHex)
		if err != nil {
			logger.Error("failed to init resolver signer", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("resolver key loaded",
			slog.String("address", signer.Address().Hex()),
		)
	}

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		// context.Canceled is expected on clean shutdown.
		if err == context.Canceled {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error",
				slog.String("error", err.Error()),
			)
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("zmartd stopped")
}

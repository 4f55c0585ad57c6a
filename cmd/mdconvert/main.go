package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/teilomillet/mdconvert/config"
	"github.com/teilomillet/mdconvert/errors"
	"github.com/teilomillet/mdconvert/server"
	"go.uber.org/zap"
)

var (
	configFile = flag.String("config", "mdconvert.yaml", "Path to configuration file")
	envFile    = flag.String("env", ".env", "Path to an optional dotenv file")
	validate   = flag.Bool("validate", false, "Validate configuration and exit")
	version    = flag.Bool("version", false, "Print version and exit")
)

const Version = "v0.1.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("mdconvert %s\n", Version)
		os.Exit(0)
	}

	// Variables already set in the environment win over the file.
	if err := godotenv.Load(*envFile); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, fromFile, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *validate {
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	logger, err := server.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	errors.SetLogger(logger)

	var srv *server.Server
	if fromFile {
		watcher, err := config.NewConfigWatcher(*configFile, logger)
		if err != nil {
			logger.Fatal("Failed to watch config file",
				zap.Error(err),
				zap.String("config_path", *configFile),
			)
		}
		defer watcher.Close()
		srv, err = server.NewServerWithWatcher(watcher, logger)
		if err != nil {
			logger.Fatal("Server initialization failed", zap.Error(err))
		}
	} else {
		logger.Info("No config file found, using defaults",
			zap.String("config_path", *configFile),
		)
		srv, err = server.NewServer(cfg, logger)
		if err != nil {
			logger.Fatal("Server initialization failed", zap.Error(err))
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting mdconvert",
		zap.String("version", Version),
		zap.Int("port", cfg.Server.Port),
		zap.String("environment", cfg.Environment),
	)
	if err := srv.Start(ctx); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
	logger.Info("Server stopped")
}

// loadConfig reads path if it exists and falls back to the defaults
// otherwise. The second result reports whether the file was used.
func loadConfig(path string) (*config.Config, bool, error) {
	if _, err := os.Stat(path); stderrors.Is(err, fs.ErrNotExist) {
		cfg := config.DefaultConfig()
		cfg.ApplyEnv()
		return cfg, false, cfg.Validate()
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

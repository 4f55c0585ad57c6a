package main

import (
	"fmt"
	"os"

	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/teilomillet/mdconvert/config"
	"github.com/teilomillet/mdconvert/errors"
	"github.com/teilomillet/mdconvert/server"
	"github.com/teilomillet/mdconvert/server/lambda"
	"go.uber.org/zap"
)

func main() {
	cfg := config.DefaultConfig()
	if path := os.Getenv("MDCONVERT_CONFIG"); path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config %s: %v\n", path, err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg.ApplyEnv()
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

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("Server initialization failed", zap.Error(err))
	}

	adapter := lambda.NewAdapter(srv.Handler(), logger)
	awslambda.Start(adapter.Handle)
}

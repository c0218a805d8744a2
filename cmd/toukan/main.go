package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/toukan/toukan/internal/buildinfo"
	"github.com/toukan/toukan/internal/client/cli"
	"github.com/toukan/toukan/internal/client/config"
	"github.com/toukan/toukan/internal/common"
	"github.com/toukan/toukan/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	logger := logging.New(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := cli.NewApp(ctx, cfg, logger)
	if errors.Is(err, common.ErrAlreadyRunning) {
		log.Fatalf("%v (data dir %s)", err, cfg.DataDir)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}

	// unblock the prompt so the app can shut down
	go func() {
		<-ctx.Done()
		_ = os.Stdin.Close()
	}()

	if err := app.Run(ctx); err != nil {
		logger.Error(ctx, "client stopped", "error", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/user/knowledge-service/internal/app"
	"github.com/user/knowledge-service/internal/delivery/cli"
	"github.com/user/knowledge-service/pkg/config"
	"github.com/user/knowledge-service/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd(load)
	root.SetOut(os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// load wires the application for a single command. Ingestion runs inline.
func load(ctx context.Context) (*cli.Services, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	cfg.QueueEnabled = false

	// Logs go to stderr so command output stays pipeable.
	log := logger.New(os.Stderr, cfg.LogLevel)
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	svc := &cli.Services{
		Ingester: a.Ingest,
		Search:   a.Search,
		Settings: a.Settings,
		Health:   a.Health,
		Jobs:     a.Jobs,
	}
	release := func() {
		a.Close()
		_ = log.Sync()
	}
	return svc, release, nil
}

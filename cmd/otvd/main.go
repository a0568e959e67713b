// Copyright 2026 The otv-backend Authors
// otvd - validator programme backend daemon

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/validorg/otv-backend/chain"
	"github.com/validorg/otv-backend/config"
	"github.com/validorg/otv-backend/core"
	"github.com/validorg/otv-backend/jobs"
	"github.com/validorg/otv-backend/metrics"
	"github.com/validorg/otv-backend/store"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	path := "config.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg, err := config.Load(path)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// An unreachable store at boot is fatal by design.
	db, err := store.Connect(ctx, cfg.Db.Uri, cfg.Db.Name)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to store")
	}
	defer db.Close(context.Background())

	adapter := chain.NewClient(cfg.Global.Endpoint)
	feed := jobs.NewGitHubFeed(cfg.Global.ReleaseRepo)

	// Transaction signing and chat delivery live outside this
	// process; the service runs observation-only without them.
	service, err := core.New(cfg, db, adapter, nil, nil, nil, feed, nil)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to build service")
	}

	go metrics.Serve(cfg.Global.MetricsAddr)

	if err := service.Start(ctx); err != nil {
		logrus.WithError(err).Fatal("Failed to start service")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	service.Stop()
}

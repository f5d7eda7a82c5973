// Command ml_worker runs a single MLWorker instance: routing (and,
// optionally, annotation) of classifier_queue candids onto per-permission
// streams.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skyforge-astro/boom/internal/broker"
	"github.com/skyforge-astro/boom/internal/config"
	"github.com/skyforge-astro/boom/internal/ml"
	"github.com/skyforge-astro/boom/internal/nlog"
	"github.com/skyforge-astro/boom/internal/store"
	"github.com/skyforge-astro/boom/internal/worker"

	"github.com/skyforge-astro/boom/mlworker"
)

var configPath string

func init() {
	flag.StringVar(&configPath, "config", "", "path to the pipeline YAML configuration")
}

func main() {
	flag.Parse()
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	nlog.Init(cfg.LogDir, "ml_worker", true)
	defer nlog.Flush()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := broker.NewRedis(ctx, cfg.Broker.Host, cfg.Broker.Port, cfg.Broker.DB)
	if err != nil {
		nlog.Fatalf("ml_worker: broker connect: %v", err)
	}
	defer b.Close()

	s, err := store.New(ctx, store.Config{Driver: cfg.Database.Driver, URI: cfg.Database.URI, Name: cfg.Database.Name})
	if err != nil {
		nlog.Fatalf("ml_worker: store connect: %v", err)
	}
	defer s.Close(ctx)

	var annotator *ml.Annotator
	if cfg.ML.FeatureExport != "" {
		annotator = ml.New(nil, cfg.ML.FeatureExport)
	}

	alertsColl := cfg.Database.Name + cfg.Database.AlertsSuffix
	w := mlworker.New(b, s, alertsColl, cfg.ML.BatchSize, cfg.ML.Permissions, annotator)
	cmds := make(chan worker.Cmd, 1)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		nlog.Infof("ml_worker: shutting down")
		cmds <- worker.Terminate
		cancel()
	}()

	go func() {
		for {
			time.Sleep(time.Minute)
			nlog.Flush()
		}
	}()

	w.Run(ctx, cmds)
}

// Command scheduler runs the full pipeline in one process: it builds one
// Pool per worker kind sized from the configuration, installs the
// graceful-shutdown signal handler, and supervises all pools until
// interrupted, per spec.md §4.4.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/skyforge-astro/boom/internal/broker"
	"github.com/skyforge-astro/boom/internal/config"
	"github.com/skyforge-astro/boom/internal/crossmatch"
	"github.com/skyforge-astro/boom/internal/metrics"
	"github.com/skyforge-astro/boom/internal/nlog"
	"github.com/skyforge-astro/boom/internal/store"
	"github.com/skyforge-astro/boom/internal/worker"

	"github.com/skyforge-astro/boom/alertworker"
	"github.com/skyforge-astro/boom/filterworker"
	"github.com/skyforge-astro/boom/mlworker"
	"github.com/skyforge-astro/boom/scheduler"
)

var (
	configPath string
	metricsAddr string
)

func init() {
	flag.StringVar(&configPath, "config", "", "path to the pipeline YAML configuration")
	flag.StringVar(&metricsAddr, "metrics-addr", ":9090", "address to serve /metrics and /healthz on")
}

func main() {
	flag.Parse()
	if len(flag.Args()) < 1 {
		fmt.Fprintln(os.Stderr, "usage: scheduler [-config path] <stream_name>")
		os.Exit(1)
	}
	streamName := flag.Args()[0]

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	nlog.Init(cfg.LogDir, "scheduler", true)
	defer nlog.Flush()

	ctx := context.Background()

	b, err := broker.NewRedis(ctx, cfg.Broker.Host, cfg.Broker.Port, cfg.Broker.DB)
	if err != nil {
		nlog.Fatalf("scheduler: broker connect: %v", err)
	}
	defer b.Close()

	s, err := store.New(ctx, store.Config{Driver: cfg.Database.Driver, URI: cfg.Database.URI, Name: cfg.Database.Name})
	if err != nil {
		nlog.Fatalf("scheduler: store connect: %v", err)
	}
	defer s.Close(ctx)

	var catalogs []crossmatch.CatalogConfig
	for _, c := range cfg.Crossmatch[streamName] {
		catalogs = append(catalogs, crossmatch.CatalogConfig{
			Name: c.Name, Collection: c.Collection, RadiusArcsec: c.RadiusArcsec,
			UseDistance: c.UseDistance, DistanceKey: c.DistanceKey, DistanceUnit: c.DistanceUnit,
			DistanceMaxKpc: c.DistanceMaxKpc, DistanceMaxNearArcsec: c.DistanceMaxNearArcsec,
			Projection: c.Projection,
		})
	}
	engine := crossmatch.New(s, catalogs)

	alertsColl := cfg.Database.Name + cfg.Database.AlertsSuffix
	auxColl := cfg.Database.Name + cfg.Database.AuxSuffix

	alertPool := worker.New("alert_worker", cfg.Scheduler.AlertWorkers, func() worker.Runner {
		return alertworker.New(b, s, engine, alertsColl, auxColl)
	})
	mlPool := worker.New("ml_worker", cfg.Scheduler.MLWorkers, func() worker.Runner {
		return mlworker.New(b, s, alertsColl, cfg.ML.BatchSize, cfg.ML.Permissions, nil)
	})
	filterPool := worker.New("filter_worker", 0, nil)
	for i := 0; i < cfg.Scheduler.FilterWorkers; i++ {
		fw, err := filterworker.New(ctx, b, s, cfg.Database.FiltersColl, alertsColl, uuid.NewString(), cfg.Scheduler.FilterIDs)
		if err != nil {
			nlog.Fatalf("scheduler: build filter_worker: %v", err)
		}
		filterPool.AddWorker(fw)
	}

	sched := scheduler.New(map[string]*worker.Pool{
		"alert_worker":  alertPool,
		"ml_worker":     mlPool,
		"filter_worker": filterPool,
	})
	sched.InstallSignalHandler()

	reg := metrics.New()
	go func() {
		if err := reg.Serve(metricsAddr); err != nil {
			nlog.Errorf("scheduler: metrics server exited: %v", err)
		}
	}()

	nlog.Infof("scheduler: running (alert=%d ml=%d filter=%d)", cfg.Scheduler.AlertWorkers, cfg.Scheduler.MLWorkers, cfg.Scheduler.FilterWorkers)
	sched.Run()
}

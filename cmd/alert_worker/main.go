// Command alert_worker runs a single AlertWorker instance outside the
// scheduler-managed pool, for standalone debugging and for container
// images that run one worker per process rather than one process with an
// internal pool.
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
	"github.com/skyforge-astro/boom/internal/crossmatch"
	"github.com/skyforge-astro/boom/internal/nlog"
	"github.com/skyforge-astro/boom/internal/store"
	"github.com/skyforge-astro/boom/internal/worker"

	"github.com/skyforge-astro/boom/alertworker"
)

var configPath string

func init() {
	flag.StringVar(&configPath, "config", "", "path to the pipeline YAML configuration")
}

func main() {
	flag.Parse()
	if len(flag.Args()) < 1 {
		fmt.Fprintln(os.Stderr, "usage: alert_worker [-config path] <stream_name>")
		os.Exit(1)
	}
	streamName := flag.Args()[0]

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	nlog.Init(cfg.LogDir, "alert_worker", true)
	defer nlog.Flush()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := broker.NewRedis(ctx, cfg.Broker.Host, cfg.Broker.Port, cfg.Broker.DB)
	if err != nil {
		nlog.Fatalf("alert_worker: broker connect: %v", err)
	}
	defer b.Close()

	s, err := store.New(ctx, store.Config{Driver: cfg.Database.Driver, URI: cfg.Database.URI, Name: cfg.Database.Name})
	if err != nil {
		nlog.Fatalf("alert_worker: store connect: %v", err)
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

	w := alertworker.New(b, s, engine, alertsColl, auxColl)
	cmds := make(chan worker.Cmd, 1)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		nlog.Infof("alert_worker: shutting down")
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

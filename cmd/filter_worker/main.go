// Command filter_worker runs a single FilterWorker instance over a fixed
// set of filter IDs, given on the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/skyforge-astro/boom/internal/broker"
	"github.com/skyforge-astro/boom/internal/config"
	"github.com/skyforge-astro/boom/internal/idgen"
	"github.com/skyforge-astro/boom/internal/nlog"
	"github.com/skyforge-astro/boom/internal/store"
	"github.com/skyforge-astro/boom/internal/worker"

	"github.com/skyforge-astro/boom/filterworker"
)

var (
	configPath string
	filterList string
)

func init() {
	flag.StringVar(&configPath, "config", "", "path to the pipeline YAML configuration")
	flag.StringVar(&filterList, "filters", "", "comma-separated filter IDs this worker evaluates")
}

func main() {
	flag.Parse()
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	nlog.Init(cfg.LogDir, "filter_worker", true)
	defer nlog.Flush()

	ids, err := parseFilterIDs(filterList)
	if err != nil {
		nlog.Fatalf("filter_worker: %v", err)
	}
	if len(ids) == 0 {
		ids = cfg.Scheduler.FilterIDs
	}
	if len(ids) == 0 {
		nlog.Fatalf("filter_worker: no filter IDs given (-filters or scheduler.filters in config)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := broker.NewRedis(ctx, cfg.Broker.Host, cfg.Broker.Port, cfg.Broker.DB)
	if err != nil {
		nlog.Fatalf("filter_worker: broker connect: %v", err)
	}
	defer b.Close()

	s, err := store.New(ctx, store.Config{Driver: cfg.Database.Driver, URI: cfg.Database.URI, Name: cfg.Database.Name})
	if err != nil {
		nlog.Fatalf("filter_worker: store connect: %v", err)
	}
	defer s.Close(ctx)

	alertsColl := cfg.Database.Name + cfg.Database.AlertsSuffix
	w, err := filterworker.New(ctx, b, s, cfg.Database.FiltersColl, alertsColl, idgen.Consumer("filter-worker"), ids)
	if err != nil {
		nlog.Fatalf("filter_worker: %v", err)
	}
	cmds := make(chan worker.Cmd, 1)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		nlog.Infof("filter_worker: shutting down")
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

func parseFilterIDs(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid filter id %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

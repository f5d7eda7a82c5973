// Command worker_manager launches and supervises the pipeline's worker
// binaries as child processes, per spec.md §6. Unlike the original
// source's hard-coded filter IDs and worker counts, how many of each worker
// it spawns and which filter IDs they serve are read from configuration
// (spec.md §9 Open Question d). The binaries are found on PATH under their
// fixed names alert_worker, ml_worker and filter_worker.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/sys/unix"

	"github.com/skyforge-astro/boom/internal/adminauth"
	"github.com/skyforge-astro/boom/internal/config"
	"github.com/skyforge-astro/boom/internal/metrics"
	"github.com/skyforge-astro/boom/internal/nlog"
)

var (
	configPath  string
	metricsAddr string
)

func init() {
	flag.StringVar(&configPath, "config", "", "path to the pipeline YAML configuration")
	flag.StringVar(&metricsAddr, "metrics-addr", ":9091", "address to serve /metrics and /healthz on")
}

// child tracks one supervised worker process.
type child struct {
	kind string
	cmd  *exec.Cmd
}

// manager holds the live worker table, mirroring the original source's
// worker_table: HashMap<&str, Vec<process::Child>>.
type manager struct {
	mu       sync.Mutex
	children []*child
}

func (m *manager) spawn(kind, binPath string, args []string) error {
	cmd := exec.Command(binPath, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	// New process group so a SIGINT sent to worker_manager itself (e.g. by
	// an interactive shell) doesn't also land on children before the
	// supervisor has decided to forward it.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn %s: %w", kind, err)
	}
	m.mu.Lock()
	m.children = append(m.children, &child{kind: kind, cmd: cmd})
	m.mu.Unlock()
	nlog.Infof("worker_manager: spawned %s pid=%d", kind, cmd.Process.Pid)
	return nil
}

// interruptAll forwards SIGINT to every child, matching the original
// source's interrupt_worker (nix::sys::signal::kill ... SIGINT).
func (m *manager) interruptAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.children {
		if c.cmd.Process == nil {
			continue
		}
		if err := unix.Kill(c.cmd.Process.Pid, unix.SIGINT); err != nil {
			nlog.Warningf("worker_manager: could not interrupt %s pid=%d: %v", c.kind, c.cmd.Process.Pid, err)
		}
	}
}

func (m *manager) waitAll() {
	m.mu.Lock()
	children := append([]*child(nil), m.children...)
	m.mu.Unlock()
	for _, c := range children {
		c.cmd.Wait()
	}
}

// tally reports how many workers of each kind are currently tracked,
// mirroring the original source's "==== WORKERS ====" printout.
func (m *manager) tally() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int)
	for _, c := range m.children {
		out[c.kind]++
	}
	return out
}

func main() {
	flag.Parse()
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	nlog.Init(cfg.LogDir, "worker_manager", true)
	defer nlog.Flush()

	m := &manager{}

	for i := 0; i < cfg.Scheduler.AlertWorkers; i++ {
		if err := m.spawn("alert_worker", "alert_worker", []string{"-config", configPath}); err != nil {
			nlog.Fatalf("worker_manager: %v", err)
		}
	}
	for i := 0; i < cfg.Scheduler.MLWorkers; i++ {
		if err := m.spawn("ml_worker", "ml_worker", []string{"-config", configPath}); err != nil {
			nlog.Fatalf("worker_manager: %v", err)
		}
	}
	if cfg.Scheduler.FilterWorkers > 0 && len(cfg.Scheduler.FilterIDs) > 0 {
		args := make([]string, 0, len(cfg.Scheduler.FilterIDs))
		filterCSV := ""
		for i, id := range cfg.Scheduler.FilterIDs {
			if i > 0 {
				filterCSV += ","
			}
			filterCSV += strconv.Itoa(id)
		}
		args = append(args, "-config", configPath, "-filters", filterCSV)
		for i := 0; i < cfg.Scheduler.FilterWorkers; i++ {
			if err := m.spawn("filter_worker", "filter_worker", args); err != nil {
				nlog.Fatalf("worker_manager: %v", err)
			}
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	reg := metrics.New()
	go func() {
		if err := reg.Serve(metricsAddr); err != nil {
			nlog.Errorf("worker_manager: metrics server exited: %v", err)
		}
	}()

	if cfg.Admin.Passphrase != "" {
		auth, err := adminauth.New(cfg.Admin.Passphrase)
		if err != nil {
			nlog.Fatalf("worker_manager: %v", err)
		}
		addr := cfg.Admin.ListenAddr
		if addr == "" {
			addr = "127.0.0.1:9092"
		}
		go func() {
			if err := fasthttp.ListenAndServe(addr, adminServer(auth, m)); err != nil {
				nlog.Errorf("worker_manager: admin server exited: %v", err)
			}
		}()
		nlog.Infof("worker_manager: admin endpoint listening on %s", addr)
	}

	done := make(chan struct{})
	go func() {
		<-sig
		nlog.Infof("worker_manager: received signal, forwarding SIGINT to children")
		m.interruptAll()
		m.waitAll()
		cancel()
		close(done)
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			nlog.Infof("worker_manager: all children exited, shutting down")
			return
		case <-ticker.C:
			tally := m.tally()
			for kind, n := range tally {
				nlog.Infof("worker_manager: type=%s amount=%d", kind, n)
			}
		case <-ctx.Done():
			return
		}
	}
}

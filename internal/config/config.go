// Package config loads the pipeline's YAML configuration file and applies
// environment-variable overrides, per SPEC_FULL.md §4.7.
package config

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Database holds the document-store connection settings.
type Database struct {
	Driver          string `yaml:"driver"` // "mongo" or "buntdb" (local/dev)
	URI             string `yaml:"uri"`
	Name            string `yaml:"name"`
	AlertsSuffix    string `yaml:"alerts_suffix"`
	AuxSuffix       string `yaml:"aux_suffix"`
	FiltersColl     string `yaml:"filters_collection"`
	ConnectTimeoutS int    `yaml:"connect_timeout_s"`
}

// Broker holds the message-broker connection settings.
type Broker struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	DB   int    `yaml:"db"`
}

// CrossmatchCatalog mirrors spec.md §3's per-catalog cross-match config.
type CrossmatchCatalog struct {
	Name                  string   `yaml:"name"`
	Collection            string   `yaml:"collection"`
	RadiusArcsec          float64  `yaml:"radius_arcsec"`
	UseDistance           bool     `yaml:"use_distance"`
	DistanceKey           string   `yaml:"distance_key"`
	DistanceUnit          string   `yaml:"distance_unit"` // "redshift" | "Mpc", case-insensitive
	DistanceMaxKpc        float64  `yaml:"distance_max_kpc"`
	DistanceMaxNearArcsec float64  `yaml:"distance_max_near_arcsec"`
	Projection            []string `yaml:"projection"`
}

// ML configures the routing/annotation hook run by MLWorker.
type ML struct {
	StreamName      string   `yaml:"stream_name"`
	Permissions     []int    `yaml:"permissions"`
	BatchSize       int      `yaml:"batch_size"`
	AnnotationHooks []string `yaml:"annotation_hooks"`
	FeatureExport   string   `yaml:"feature_export_dir"` // when set, MLWorker exports NDJSON feature records here
}

// Archive configures the (out-of-core-scope) backfill downloader.
type Archive struct {
	Driver string `yaml:"driver"` // "s3" | "gcs" | "azure" | "hdfs" | "dir"
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Dir    string `yaml:"dir"`
}

// Scheduler configures pool sizes for worker_manager.
type Scheduler struct {
	AlertWorkers  int   `yaml:"alert_workers"`
	MLWorkers     int   `yaml:"ml_workers"`
	FilterWorkers int   `yaml:"filter_workers"`
	FilterIDs     []int `yaml:"filters"`
}

// Admin configures worker_manager's mutating admin endpoint.
type Admin struct {
	Passphrase string `yaml:"passphrase"`
	ListenAddr string `yaml:"listen_addr"`
}

// Config is the top-level document loaded from the YAML config file.
type Config struct {
	Database   Database                       `yaml:"database"`
	Broker     Broker                         `yaml:"broker"`
	Crossmatch map[string][]CrossmatchCatalog `yaml:"crossmatch"`
	ML         ML                             `yaml:"ml"`
	Archive    Archive                        `yaml:"archive"`
	Scheduler  Scheduler                      `yaml:"scheduler"`
	Admin      Admin                          `yaml:"admin"`
	LogDir     string                         `yaml:"log_dir"`

	// Free-form keys the core does not interpret but forwards to
	// collaborators (decoder schema paths, CLI plumbing, etc).
	Extra map[string]any `yaml:",inline"`
}

// Load reads path (if non-empty) and applies BROKER_HOST / BROKER_PORT /
// DB_URI environment overrides, per SPEC_FULL.md §4.7 and spec.md §6.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "config: read %s", path)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, errors.Wrapf(err, "config: parse %s", path)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

// Default returns the zero-config baseline used when no config file is
// given (e.g. unit tests).
func Default() *Config {
	return &Config{
		Database: Database{
			Driver:          "mongo",
			URI:             "mongodb://localhost:27017",
			Name:            "boom",
			AlertsSuffix:    "_alerts",
			AuxSuffix:       "_alerts_aux",
			FiltersColl:     "filters",
			ConnectTimeoutS: 10,
		},
		Broker: Broker{Host: "localhost", Port: 6379},
		ML:     ML{StreamName: "alerts_programid_%d_filter_stream", Permissions: []int{1, 2, 3}, BatchSize: 1000},
		LogDir: "/var/log/boom",
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("BROKER_HOST"); v != "" {
		cfg.Broker.Host = v
	}
	if v := os.Getenv("BROKER_PORT"); v != "" {
		var p int
		if _, err := fmt.Sscanf(v, "%d", &p); err == nil {
			cfg.Broker.Port = p
		}
	}
	if v := os.Getenv("DB_URI"); v != "" {
		cfg.Database.URI = v
	}
}

// StreamName renders the per-permission-level stream name for level p, per
// spec.md §3.
func StreamName(p int) string { return fmt.Sprintf("alerts_programid_%d_filter_stream", p) }

// ConsumerGroup renders the per-filter consumer group name, per spec.md §4.3.
func ConsumerGroup(filterID int) string { return fmt.Sprintf("filter_%d_group", filterID) }

// ResultsList renders the per-filter output list name, per spec.md §3.
func ResultsList(filterID int) string { return fmt.Sprintf("filter_%d_results", filterID) }

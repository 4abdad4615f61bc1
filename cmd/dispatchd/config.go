package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/dispatchd/pkg/dispatch"
)

// AppConfig is the on-disk configuration for the dispatchd binary,
// matching the project's existing YAML config-file format. It is read from
// the file named by serve's --config flag; its fields have no CLI flags of
// their own.
type AppConfig struct {
	Dispatch DispatchConfig `yaml:"dispatch"`
	Admin    AdminConfig    `yaml:"admin"`
	HA       HAConfig       `yaml:"ha"`
}

// DispatchConfig mirrors dispatch.Config in YAML-friendly form.
type DispatchConfig struct {
	AssignmentRetryDelay   time.Duration `yaml:"assignment_retry_delay"`
	MaxAssignmentAttempts  int           `yaml:"max_assignment_attempts"`
	CancellationRetryLimit int           `yaml:"cancellation_retry_limit"`
	MailboxBufferSize      int           `yaml:"mailbox_buffer_size"`
}

func (c DispatchConfig) toDispatchConfig() dispatch.Config {
	return dispatch.Config{
		AssignmentRetryDelay:   c.AssignmentRetryDelay,
		MaxAssignmentAttempts:  c.MaxAssignmentAttempts,
		CancellationRetryLimit: c.CancellationRetryLimit,
		MailboxBufferSize:      c.MailboxBufferSize,
	}
}

// AdminConfig controls the metrics/health HTTP listener.
type AdminConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// HAConfig controls the optional Raft-backed leader elector. Enabled is
// false by default: a single-replica deployment never needs it.
type HAConfig struct {
	Enabled  bool     `yaml:"enabled"`
	NodeID   string   `yaml:"node_id"`
	BindAddr string   `yaml:"bind_addr"`
	DataDir  string   `yaml:"data_dir"`
	Peers    []string `yaml:"peers"`
}

// defaultConfig mirrors dispatch.DefaultConfig plus the admin/HA ambient
// defaults.
func defaultConfig() AppConfig {
	def := dispatch.DefaultConfig()
	return AppConfig{
		Dispatch: DispatchConfig{
			AssignmentRetryDelay:   def.AssignmentRetryDelay,
			MaxAssignmentAttempts:  def.MaxAssignmentAttempts,
			CancellationRetryLimit: def.CancellationRetryLimit,
			MailboxBufferSize:      def.MailboxBufferSize,
		},
		Admin: AdminConfig{
			ListenAddr: "127.0.0.1:9090",
		},
		HA: HAConfig{
			NodeID:   "dispatchd-1",
			BindAddr: "127.0.0.1:9300",
			DataDir:  "./dispatchd-ha-data",
		},
	}
}

// loadConfig reads path if non-empty, overlaying it onto defaultConfig; an
// empty path yields the defaults untouched.
func loadConfig(path string) (AppConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return AppConfig{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

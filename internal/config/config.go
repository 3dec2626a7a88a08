package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/calmstack/jobkeep/internal/logger"
	"github.com/calmstack/jobkeep/internal/supervisor"
)

// FileConfig is the top-level TOML structure.
//
// Example:
//
//	data_dir = "/var/lib/jobkeep"
//	listen = "127.0.0.1:8080"
//
//	[log]
//	level = "info"
//	file = "/var/log/jobkeep/jobkeep.log"
//
//	[history]
//	dsn = "sqlite:///var/lib/jobkeep/history.db"
//
//	[[dependencies]]
//	name = "redis"
//	command = "redis-server"
//	args = ["--port", "6390"]
//	env = ["REDIS_DIR=${HOME}/redis"]
//	work_dir = "/tmp"
type FileConfig struct {
	DataDir      string             `toml:"data_dir" mapstructure:"data_dir"`
	Listen       string             `toml:"listen" mapstructure:"listen"`
	BasePath     string             `toml:"base_path" mapstructure:"base_path"`
	Log          logger.Config      `toml:"log" mapstructure:"log"`
	History      HistoryConfig      `toml:"history" mapstructure:"history"`
	Metrics      MetricsConfig      `toml:"metrics" mapstructure:"metrics"`
	Dependencies []DependencyConfig `toml:"dependencies" mapstructure:"dependencies"`
}

type HistoryConfig struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

// MetricsConfig controls the optional Prometheus endpoint. When Listen is
// empty no metrics server is started.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Listen  string `toml:"listen" mapstructure:"listen"`
}

// DependencyConfig is one named helper process a task may declare as a
// prerequisite.
type DependencyConfig struct {
	Name    string   `toml:"name" mapstructure:"name"`
	Command string   `toml:"command" mapstructure:"command"`
	Args    []string `toml:"args" mapstructure:"args"`
	Env     []string `toml:"env" mapstructure:"env"`
	WorkDir string   `toml:"work_dir" mapstructure:"work_dir"`
}

// Load parses a TOML config file. Missing optional fields fall back to
// defaults; a missing file is an error so typos surface early.
func Load(path string) (*FileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, err
	}
	if err := fc.validate(); err != nil {
		return nil, err
	}
	fc.applyDefaults()
	return &fc, nil
}

// Default returns the configuration used when no config file is given.
func Default() *FileConfig {
	fc := &FileConfig{}
	fc.applyDefaults()
	return fc
}

func (fc *FileConfig) validate() error {
	seen := make(map[string]bool, len(fc.Dependencies))
	for _, d := range fc.Dependencies {
		if d.Name == "" {
			return fmt.Errorf("dependency requires name")
		}
		if d.Command == "" {
			return fmt.Errorf("dependency %q requires command", d.Name)
		}
		if seen[d.Name] {
			return fmt.Errorf("duplicate dependency name %q", d.Name)
		}
		seen[d.Name] = true
	}
	return nil
}

func (fc *FileConfig) applyDefaults() {
	if fc.DataDir == "" {
		fc.DataDir = DefaultDataDir()
	}
	if fc.Listen == "" {
		fc.Listen = "127.0.0.1:8080"
	}
	if fc.BasePath == "" {
		fc.BasePath = "/api"
	}
}

// DependencySpecs converts the dependency table into the supervisor's lookup
// map.
func (fc *FileConfig) DependencySpecs() map[string]supervisor.Spec {
	m := make(map[string]supervisor.Spec, len(fc.Dependencies))
	for _, d := range fc.Dependencies {
		m[d.Name] = supervisor.Spec{
			Command: d.Command,
			Args:    append([]string(nil), d.Args...),
			Env:     append([]string(nil), d.Env...),
			WorkDir: d.WorkDir,
		}
	}
	return m
}

// DefaultDataDir is the fixed per-user data directory:
// $XDG_DATA_HOME/jobkeep, falling back to ~/.local/share/jobkeep.
func DefaultDataDir() string {
	if x := os.Getenv("XDG_DATA_HOME"); x != "" {
		return filepath.Join(x, "jobkeep")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "jobkeep")
	}
	return filepath.Join(home, ".local", "share", "jobkeep")
}

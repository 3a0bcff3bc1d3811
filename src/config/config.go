// Package config loads tool-level settings with the precedence
// flags > environment > .env file > config file > defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML files can use "30s" notation.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds tool-level settings. Per-backup parameters arrive in
// request documents, not here.
type Config struct {
	// ConnectURI selects the libvirt driver; empty means qemu:///system.
	ConnectURI string `yaml:"connect_uri"`
	// LibvirtSocket overrides the daemon's UNIX socket path.
	LibvirtSocket string `yaml:"libvirt_socket"`
	// RunDir is where per-backup NBD sockets are created.
	RunDir string `yaml:"run_dir"`
	// ScratchRoot is where file-backed scratch disks live.
	ScratchRoot string `yaml:"scratch_root"`
	// LogLevel is a zerolog level name.
	LogLevel string `yaml:"log_level"`
	// FreezeTimeout bounds the guest agent's freeze/thaw acknowledgment.
	FreezeTimeout Duration `yaml:"freeze_timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		RunDir:        "/run/virt-backup",
		ScratchRoot:   "/var/lib/virt-backup/scratch",
		LogLevel:      "info",
		FreezeTimeout: Duration(30 * time.Second),
	}
}

// Load assembles the configuration from all sources. path names an
// explicit config file; empty means search the standard locations.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".virt-backup.env"))

	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func findConfigFile() string {
	locations := []string{
		"virt-backup.yaml",
		filepath.Join(os.Getenv("HOME"), ".config", "virt-backup", "config.yaml"),
		"/etc/virt-backup/config.yaml",
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

func (c *Config) applyEnv() {
	if v := os.Getenv("VIRTBACKUP_CONNECT_URI"); v != "" {
		c.ConnectURI = v
	}
	if v := os.Getenv("VIRTBACKUP_LIBVIRT_SOCKET"); v != "" {
		c.LibvirtSocket = v
	}
	if v := os.Getenv("VIRTBACKUP_RUN_DIR"); v != "" {
		c.RunDir = v
	}
	if v := os.Getenv("VIRTBACKUP_SCRATCH_ROOT"); v != "" {
		c.ScratchRoot = v
	}
	if v := os.Getenv("VIRTBACKUP_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("VIRTBACKUP_FREEZE_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			c.FreezeTimeout = Duration(parsed)
		}
	}
}

// Validate checks the assembled configuration, collecting every
// violation before reporting.
func (c *Config) Validate() error {
	var errs []error
	if !filepath.IsAbs(c.RunDir) {
		errs = append(errs, errors.New("run_dir must be an absolute path"))
	}
	if !filepath.IsAbs(c.ScratchRoot) {
		errs = append(errs, errors.New("scratch_root must be an absolute path"))
	}
	if c.FreezeTimeout <= 0 {
		errs = append(errs, errors.New("freeze_timeout must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

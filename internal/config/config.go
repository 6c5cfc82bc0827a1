package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/sigreer/lustrezfs/internal/db"
	"github.com/sigreer/lustrezfs/internal/hostid"
	"github.com/sigreer/lustrezfs/internal/logger"
)

type Config struct {
	Log     Log     `yaml:"log"`
	HostID  HostID  `yaml:"hostid"`
	History History `yaml:"history"`
	Mkfs    Mkfs    `yaml:"mkfs"`

	// Path is the file the config was loaded from, empty for defaults
	Path string `yaml:"-"`
}

type Log struct {
	// Mode: "production" (default) or "dev"
	Mode    string `yaml:"mode"`
	Verbose bool   `yaml:"verbose"`
}

type HostID struct {
	SPLPath    string `yaml:"spl_path"`
	HostIDPath string `yaml:"hostid_path"`
	SkipCheck  bool   `yaml:"skip_check"`
}

type History struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Path    string `yaml:"path"`
}

type Mkfs struct {
	// DeviceSize sizes file vdevs that do not exist yet, e.g. "10GiB"
	DeviceSize string `yaml:"device_size,omitempty"`
}

var defaultConfig = Config{
	Log: Log{
		Mode: logger.ModeProduction,
	},
	HostID: HostID{
		SPLPath:    hostid.DefaultSPLPath,
		HostIDPath: hostid.DefaultHostIDPath,
	},
	History: History{
		Path: db.DefaultPath,
	},
}

// Candidates lists the files Load tries, in order, when no path is given
func Candidates() []string {
	return []string{
		"/etc/lustrezfs/config.yaml",
		filepath.Join(os.Getenv("HOME"), ".config/lustrezfs/config.yaml"),
		"config.yaml",
	}
}

func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		for _, c := range Candidates() {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	var cfg Config
	if path == "" {
		cfg = defaultConfig
	} else {
		data, err := os.ReadFile(path)
		switch {
		case err != nil && explicit:
			return nil, fmt.Errorf("read config: %w", err)
		case err != nil:
			cfg = defaultConfig
			path = ""
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	cfg.Path = path

	// Apply defaults for missing settings
	if cfg.Log.Mode == "" {
		cfg.Log.Mode = defaultConfig.Log.Mode
	}
	if cfg.HostID.SPLPath == "" {
		cfg.HostID.SPLPath = defaultConfig.HostID.SPLPath
	}
	if cfg.HostID.HostIDPath == "" {
		cfg.HostID.HostIDPath = defaultConfig.HostID.HostIDPath
	}
	if cfg.History.Path == "" {
		cfg.History.Path = defaultConfig.History.Path
	}

	if _, err := cfg.DeviceKB(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// HistoryEnabled reports whether operations are recorded; on unless the
// config turns it off.
func (c *Config) HistoryEnabled() bool {
	return c.History.Enabled == nil || *c.History.Enabled
}

// DeviceKB returns mkfs.device_size in kibibytes, 0 when unset
func (c *Config) DeviceKB() (uint64, error) {
	return ParseSizeKB(c.Mkfs.DeviceSize)
}

// ParseSizeKB converts a human size ("10GiB", "512M", "1048576") to
// kibibytes. A bare number is taken as kibibytes.
func ParseSizeKB(size string) (uint64, error) {
	if size == "" {
		return 0, nil
	}

	if kb, err := strconv.ParseUint(size, 10, 64); err == nil {
		return kb, nil
	}

	bytes, err := humanize.ParseBytes(size)
	if err != nil {
		return 0, fmt.Errorf("invalid device size %q: %w", size, err)
	}
	return bytes / 1024, nil
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dmitrijs2005/ipdash/internal/flagx"
	"github.com/dmitrijs2005/ipdash/internal/timex"
)

// FileConfig is a DTO used exclusively for decoding config files. Intervals
// use timex.Duration, so they may be written as "5m" or as integer
// nanoseconds. Empty fields leave the current value untouched.
type FileConfig struct {
	BaseURL            string          `json:"base_url" yaml:"base_url"`
	RevalidateInterval *timex.Duration `json:"revalidate_interval" yaml:"revalidate_interval"`
	DBPath             *string         `json:"db_path" yaml:"db_path"`
	IPInfoURL          string          `json:"ipinfo_url" yaml:"ipinfo_url"`
	IPInfoToken        string          `json:"ipinfo_token" yaml:"ipinfo_token"`
	LogLevel           string          `json:"log_level" yaml:"log_level"`
}

// parseFile overlays cfg with the file named by -c/-config. Files ending in
// .yaml or .yml are decoded as YAML, everything else as JSON.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc FileConfig) apply(cfg *Config) {
	if fc.BaseURL != "" {
		cfg.BaseURL = fc.BaseURL
	}
	if fc.RevalidateInterval != nil {
		cfg.RevalidateInterval = fc.RevalidateInterval.Duration
	}
	if fc.DBPath != nil {
		cfg.DBPath = *fc.DBPath
	}
	if fc.IPInfoURL != "" {
		cfg.IPInfoURL = fc.IPInfoURL
	}
	if fc.IPInfoToken != "" {
		cfg.IPInfoToken = fc.IPInfoToken
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
}

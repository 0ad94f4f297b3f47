package config

import (
	"os"
	"time"
)

const (
	DefaultBaseURL            = "http://localhost:5000/api"
	DefaultRevalidateInterval = 5 * time.Minute
	DefaultDBPath             = "ipdash.db"
	DefaultIPInfoURL          = "https://ipinfo.io"
	DefaultLogLevel           = "info"
)

// Config holds runtime settings for the ipdash CLI.
//
// Fields:
//   - BaseURL: backend API origin including the /api prefix.
//   - RevalidateInterval: how often the session is re-validated.
//   - DBPath: local SQLite database holding the credential; empty keeps the
//     credential in memory for the lifetime of the process.
//   - IPInfoURL, IPInfoToken: geolocation provider endpoint and API token.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	BaseURL            string
	RevalidateInterval time.Duration
	DBPath             string
	IPInfoURL          string
	IPInfoToken        string
	LogLevel           string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.BaseURL = DefaultBaseURL
	c.RevalidateInterval = DefaultRevalidateInterval
	c.DBPath = DefaultDBPath
	c.IPInfoURL = DefaultIPInfoURL
	c.IPInfoToken = ""
	c.LogLevel = DefaultLogLevel
}

// Load builds a Config from defaults, then the config file named by
// -c/-config in args, then the environment, then flags in args. Later
// sources take precedence.
func Load(args []string, getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	parseEnv(cfg, getenv)
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig is Load over the process arguments and environment. It panics
// on an unreadable config file or invalid flags.
func LoadConfig() *Config {
	cfg, err := Load(os.Args[1:], os.Getenv)
	if err != nil {
		panic(err)
	}
	return cfg
}

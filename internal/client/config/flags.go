package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/ipdash/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   backend API base URL
//	-i int      session revalidation interval in seconds
//	-d string   path of the local database ("" keeps the credential in memory)
//	-l string   log level
//
// args are filtered with flagx.FilterArgs first, so flags owned by other
// parsers (such as -c) do not cause errors.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-i", "-d", "-l"})

	fs := flag.NewFlagSet("ipdash", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.BaseURL, "a", cfg.BaseURL, "backend API base URL")
	interval := fs.Int("i", int(cfg.RevalidateInterval.Seconds()), "session revalidation interval (in seconds)")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "local database path")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	seen := false
	fs.Visit(func(f *flag.Flag) { seen = seen || f.Name == "i" })
	if seen {
		if *interval <= 0 {
			return fmt.Errorf("revalidation interval must be positive, got %d", *interval)
		}
		cfg.RevalidateInterval = time.Duration(*interval) * time.Second
	}
	return nil
}

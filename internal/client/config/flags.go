package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/gophaccount/internal/flagx"
)

func parseFlags(cfg *Config) error {
	return parseFlagArgs(cfg, os.Args[1:])
}

func parseFlagArgs(cfg *Config, argv []string) error {
	args := flagx.FilterArgs(argv, []string{"-a", "-s", "-i"})

	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the account API")
	fs.StringVar(&cfg.SessionDB, "s", cfg.SessionDB, "path of the local session database")
	interval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	cfg.OnlineCheckInterval = time.Duration(*interval) * time.Second
	return nil
}

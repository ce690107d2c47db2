package config

import (
	"flag"
	"os"
	"time"

	"github.com/avetrano/matrixflow/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-r string   base URL of the remote store endpoint
//	-t int      remote call timeout in seconds
//	-d string   SQLite DSN of the local cache
//
// Only the flags handled here are parsed; everything else is filtered out
// via flagx.FilterArgs so other components can own their own flags.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-r", "-t", "-d"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.RemoteURL, "r", cfg.RemoteURL, "remote store base URL")
	timeout := fs.Int("t", int(cfg.RemoteTimeout.Seconds()), "remote call timeout (in seconds)")
	fs.StringVar(&cfg.CacheDSN, "d", cfg.CacheDSN, "local cache SQLite DSN")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RemoteTimeout = time.Duration(*timeout) * time.Second
}

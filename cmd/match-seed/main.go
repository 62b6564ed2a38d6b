package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/brandmatch/internal/seed"
	"github.com/okian/brandmatch/pkg/logger"
)

// Default configuration constants.
const (
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultSettle      = time.Minute
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		catalogue = flag.String("catalogue", "", "YAML catalogue to post")
		topK      = flag.Int("top", 0, "Matches per brand (0 uses the server default)")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Concurrent influencer submissions")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle    = flag.Duration("settle", defaultSettle, "Maximum wait for the ingest queue to drain")
		verbose   = flag.Bool("verbose", false, "Log every submission")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help || *catalogue == "" {
		seed.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultTestTimeout)
	defer cancel()

	cfg := &seed.Config{
		BaseURL:       *baseURL,
		CataloguePath: *catalogue,
		TopK:          *topK,
		Workers:       *workers,
		Timeout:       *timeout,
		Settle:        *settle,
		Verbose:       *verbose,
	}
	if _, err := seed.Run(ctx, cfg, os.Stdout); err != nil {
		_, _ = os.Stderr.WriteString("Seed failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}

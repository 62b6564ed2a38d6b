package seed

import "os"

// ShowHelp prints usage information for the seed tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`brandmatch seed tool
====================

Posts a YAML catalogue of brands and influencers to a running server, waits
for ingestion and prints the ranking of every brand.

Usage:
  go run ./cmd/match-seed -catalogue catalogue.yaml [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -catalogue string
        YAML catalogue to post (required)
  -top int
        Matches per brand (default: server default)
  -workers int
        Concurrent influencer submissions (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -settle duration
        Maximum wait for the ingest queue to drain (default 1m)
  -verbose
        Log every submission
  -help
        Show this help message
`)
}

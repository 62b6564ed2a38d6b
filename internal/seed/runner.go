package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/brandmatch/internal/catalogue"
	"github.com/okian/brandmatch/internal/domain/types"
	"github.com/okian/brandmatch/pkg/logger"
)

// ErrQueueNotDrained is returned when the ingest queue is still non-empty after Settle.
var ErrQueueNotDrained = errors.New("ingest queue did not drain")

// Ranking is the match result of one brand.
type Ranking struct {
	Brand    string
	Response types.MatchResponse
	Err      error
}

// Run executes a complete seeding run and writes the rankings to out.
func Run(ctx context.Context, config *Config, out io.Writer) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.NamedOrNop("seed")

	log.Info(ctx, "starting brandmatch seed",
		logger.String("baseURL", config.BaseURL),
		logger.String("catalogue", config.CataloguePath),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout))

	cat, err := catalogue.Load(config.CataloguePath)
	if err != nil {
		return stats, err
	}

	client := NewClient(config.BaseURL, config.Timeout)
	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	if err := postBrands(ctx, client, cat, stats); err != nil {
		return stats, err
	}
	submitInfluencers(ctx, config, client, cat, stats, log)

	if err := waitForIngest(ctx, config, client, log); err != nil {
		log.Warn(ctx, "continuing before ingest finished", logger.Error(err))
	}

	rankings := matchBrands(ctx, client, cat, config.TopK, stats)
	WriteRankings(out, rankings)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return stats, ctx.Err()
}

func postBrands(ctx context.Context, client *Client, cat *catalogue.Catalogue, stats *Stats) error {
	for _, b := range cat.Brands {
		if err := client.PutBrand(ctx, b.Name, b.Attributes.Wire()); err != nil {
			return fmt.Errorf("put brand %q: %w", b.Name, err)
		}
		stats.BrandsPosted++
	}
	return nil
}

// submitInfluencers posts every profile with at most config.Workers requests in flight.
func submitInfluencers(ctx context.Context, config *Config, client *Client, cat *catalogue.Catalogue, stats *Stats, log logger.Logger) {
	var accepted, duplicate, failed int64

	var g errgroup.Group
	g.SetLimit(max(config.Workers, 1))
	for _, p := range cat.Influencers {
		if ctx.Err() != nil {
			break
		}
		req := types.InfluencerRequest{Influencer: p.ID, Attributes: make(map[string]string, len(p.Texts))}
		for part, text := range p.Texts {
			req.Attributes[string(part)] = text
		}
		g.Go(func() error {
			dup, err := client.PostInfluencer(ctx, req)
			switch {
			case err != nil:
				atomic.AddInt64(&failed, 1)
				log.Warn(ctx, "influencer submission failed", logger.String("influencer", req.Influencer), logger.Error(err))
			case dup:
				atomic.AddInt64(&duplicate, 1)
			default:
				atomic.AddInt64(&accepted, 1)
			}
			if config.Verbose {
				log.Info(ctx, "influencer submitted", logger.String("influencer", req.Influencer), logger.Bool("duplicate", dup))
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.InfluencersAccepted = int(accepted)
	stats.InfluencersDuplicate = int(duplicate)
	stats.InfluencersFailed = int(failed)
	stats.InfluencersSubmitted = stats.InfluencersAccepted + stats.InfluencersDuplicate + stats.InfluencersFailed
}

// waitForIngest polls /stats until the server's ingest queue is empty.
func waitForIngest(ctx context.Context, config *Config, client *Client, log logger.Logger) error {
	if config.Settle <= 0 {
		return nil
	}
	interval := config.PollInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	deadline := time.NewTimer(config.Settle)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s, err := client.Stats(ctx)
		if err == nil {
			if n, ok := s["queueLength"].(float64); ok && n == 0 {
				log.Info(ctx, "ingest queue drained")
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrQueueNotDrained
		case <-ticker.C:
		}
	}
}

func matchBrands(ctx context.Context, client *Client, cat *catalogue.Catalogue, topK int, stats *Stats) []Ranking {
	out := make([]Ranking, 0, len(cat.Brands))
	for _, b := range cat.Brands {
		resp, err := client.Match(ctx, b.Name, topK)
		if err != nil {
			stats.MatchFailures++
		} else {
			stats.BrandsMatched++
		}
		out = append(out, Ranking{Brand: b.Name, Response: resp, Err: err})
	}
	return out
}

// WriteRankings prints one block per brand: rank, influencer, total and the
// per-attribute details in name order.
func WriteRankings(out io.Writer, rankings []Ranking) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, r := range rankings {
		fmt.Fprintf(tw, "== %s\n", r.Brand)
		if r.Err != nil {
			fmt.Fprintf(tw, "   error: %v\n", r.Err)
			continue
		}
		if len(r.Response.Matches) == 0 {
			fmt.Fprintln(tw, "   no matches")
		}
		for i, m := range r.Response.Matches {
			fmt.Fprintf(tw, "%d.\t%s\t%.2f\t%s\n", i+1, m.Influencer, m.TotalScore, formatDetails(m.Details))
		}
		for _, s := range r.Response.Skipped {
			fmt.Fprintf(tw, "   skipped %s: %s\n", s.Attribute, s.Reason)
		}
	}
	_ = tw.Flush()
}

func formatDetails(d map[string]float64) string {
	names := make([]string, 0, len(d))
	for k := range d {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%s=%.2f", k, d[k])
	}
	return strings.Join(parts, " ")
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	log.Info(ctx, "final statistics",
		logger.Int("brandsPosted", stats.BrandsPosted),
		logger.Int("influencersSubmitted", stats.InfluencersSubmitted),
		logger.Int("influencersAccepted", stats.InfluencersAccepted),
		logger.Int("influencersDuplicate", stats.InfluencersDuplicate),
		logger.Int("influencersFailed", stats.InfluencersFailed),
		logger.Int("brandsMatched", stats.BrandsMatched),
		logger.Int("matchFailures", stats.MatchFailures),
		logger.Duration("duration", stats.Duration))
}

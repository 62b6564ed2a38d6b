// Package service wires the matching pipeline together: brand lookup,
// per-attribute embedding and similarity queries, normalization, aggregation,
// and the asynchronous influencer ingest path.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/brandmatch/internal/adapters/embedding/hashing"
	"github.com/okian/brandmatch/internal/adapters/index/hnswindex"
	ingestqueue "github.com/okian/brandmatch/internal/adapters/mq/queue"
	workerpool "github.com/okian/brandmatch/internal/adapters/mq/worker"
	"github.com/okian/brandmatch/internal/adapters/repository"
	"github.com/okian/brandmatch/internal/domain/attribute"
	"github.com/okian/brandmatch/internal/domain/dedupe"
	"github.com/okian/brandmatch/internal/domain/embedding"
	"github.com/okian/brandmatch/internal/domain/model"
	"github.com/okian/brandmatch/internal/domain/ranking"
	"github.com/okian/brandmatch/internal/domain/scoring"
	"github.com/okian/brandmatch/internal/domain/similarity"
	"github.com/okian/brandmatch/pkg/logger"
	"github.com/okian/brandmatch/pkg/metrics"
)

const (
	defaultQueryTopN    = 10
	defaultMaxTopK      = 50
	defaultQueueSize    = 10_000
	defaultDedupeSize   = 100_000
	stopTimeout         = 10 * time.Second
	outcomeOK           = "ok"
	outcomePartial      = "partial"
	outcomeNoCandidates = "no_candidates"
	outcomeUnavailable  = "unavailable"
	outcomeCancelled    = "cancelled"
	outcomeInvalid      = "invalid"
)

// Service implements the matching and ingest operations used by the HTTP API.
// It is safe for concurrent use.
type Service struct {
	mu sync.RWMutex

	// Core components
	embedder   embedding.Provider
	index      similarity.Client
	writer     similarity.Writer
	brands     repository.BrandStore
	normalizer *scoring.Normalizer
	aggregator *ranking.Aggregator

	// Ingest
	deduper    dedupe.Deduper
	queue      ingestqueue.Queue
	workerPool *workerpool.Pool

	// Configuration
	queryTopN   int
	maxTopK     int
	workerCount int
	queueSize   int
	dedupeSize  int

	// State
	started       bool
	jobsProcessed atomic.Int64
	jobsFailed    atomic.Int64
	duplicates    atomic.Int64

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithEmbedder sets the embedding provider.
func WithEmbedder(p embedding.Provider) Option {
	return func(s *Service) {
		if p != nil {
			s.embedder = p
		}
	}
}

// WithIndex sets the similarity client. If it can also write, it becomes the
// ingest writer unless WithIndexWriter overrides it.
func WithIndex(c similarity.Client) Option {
	return func(s *Service) {
		if c != nil {
			s.index = c
		}
	}
}

// WithIndexWriter sets the writer used by ingest workers.
func WithIndexWriter(w similarity.Writer) Option {
	return func(s *Service) {
		if w != nil {
			s.writer = w
		}
	}
}

// WithBrandStore sets the brand document store. The service closes it on Stop.
func WithBrandStore(b repository.BrandStore) Option {
	return func(s *Service) {
		if b != nil {
			s.brands = b
		}
	}
}

// WithNormalizer sets the score normalizer.
func WithNormalizer(n *scoring.Normalizer) Option {
	return func(s *Service) {
		if n != nil {
			s.normalizer = n
		}
	}
}

// WithAggregator sets the rank aggregator.
func WithAggregator(a *ranking.Aggregator) Option {
	return func(s *Service) {
		if a != nil {
			s.aggregator = a
		}
	}
}

// WithQueryTopN sets how many neighbors are fetched per attribute.
func WithQueryTopN(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queryTopN = n
		}
	}
}

// WithMaxTopK caps the shortlist length callers may ask for.
func WithMaxTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.maxTopK = k
		}
	}
}

// WithWorkerCount sets the number of ingest workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the ingest queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the profile fingerprint cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. Components not supplied by options default to the
// in-process ones: hashing embedder, HNSW index and memory brand store.
func New(opts ...Option) *Service {
	s := &Service{
		queryTopN:   defaultQueryTopN,
		maxTopK:     defaultMaxTopK,
		workerCount: runtime.NumCPU(),
		queueSize:   defaultQueueSize,
		dedupeSize:  defaultDedupeSize,
		logger:      logger.NamedOrNop("service"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.embedder == nil {
		s.embedder = hashing.New()
	}
	if s.index == nil {
		ix := hnswindex.New(hnswindex.WithPartitions(attribute.Partitions()...))
		s.index = ix
		if s.writer == nil {
			s.writer = ix
		}
	}
	if s.writer == nil {
		if w, ok := s.index.(similarity.Writer); ok {
			s.writer = w
		}
	}
	if s.brands == nil {
		s.brands = repository.NewMemoryStore()
	}
	if s.normalizer == nil {
		s.normalizer = scoring.NewNormalizer()
	}
	if s.aggregator == nil {
		s.aggregator = ranking.NewAggregator()
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	return s
}

// Start builds the ingest queue and starts the worker pool. Without an index
// writer the service runs read-only and ingest calls fail with ErrNotStarted.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting match service...")

	if s.writer != nil {
		q := ingestqueue.NewInMemoryQueue(ingestqueue.WithCapacity(s.queueSize))
		s.queue = q
		s.workerPool = workerpool.NewPool(s.workerCount, q, s.embedder, s.writer,
			workerpool.WithResultHook(s.onJobDone))
		s.workerPool.Start(context.WithoutCancel(ctx))
	} else {
		s.logger.Warn(ctx, "index is read-only, influencer ingest disabled")
	}

	s.started = true
	s.logger.Info(ctx, "match service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("queryTopN", s.queryTopN),
	)
	return nil
}

// Stop drains the ingest queue and closes the brand store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping match service...")

	if s.workerPool != nil {
		if err := s.workerPool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
		}
	}
	if err := s.brands.Close(); err != nil {
		s.logger.Warn(ctx, "closing brand store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "match service stopped")
}

// RankCandidates ranks influencers for the stored brand named brandName.
func (s *Service) RankCandidates(ctx context.Context, brandName string, topK int) (ranking.Result, error) {
	b, err := s.brands.Get(ctx, brandName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.RecordMatchRequest(outcomeNoCandidates)
			return ranking.Result{}, fmt.Errorf("%w: %q", ErrBrandNotFound, brandName)
		}
		return ranking.Result{}, err
	}

	texts := b.Attributes.Clean()
	if len(texts) == 0 {
		metrics.RecordMatchRequest(outcomeNoCandidates)
		return ranking.Result{}, fmt.Errorf("%w: %q has no attributes", ErrBrandNotFound, brandName)
	}
	return s.RankAttributes(ctx, texts, topK)
}

// attributeResult is the outcome of one attribute's fetch.
type attributeResult struct {
	scores []model.NormalizedScore
	err    error
}

// RankAttributes ranks influencers for ad hoc brand attribute texts. Each
// attribute is fetched concurrently; a failed attribute is skipped and
// reported in Result.Skipped. When no attribute succeeds the error joins
// ranking.ErrNoCandidatesFound with every cause.
func (s *Service) RankAttributes(ctx context.Context, texts attribute.Texts, topK int) (ranking.Result, error) {
	start := time.Now()
	defer func() {
		metrics.RecordMatchLatency(float64(time.Since(start).Milliseconds()))
	}()

	texts = texts.Clean()
	keys := texts.Keys()
	if len(keys) == 0 {
		metrics.RecordMatchRequest(outcomeInvalid)
		return ranking.Result{}, fmt.Errorf("%w: no attribute text", ErrInvalidAttributes)
	}
	if topK > s.maxTopK {
		topK = s.maxTopK
	}

	results := make([]attributeResult, len(keys))
	var g errgroup.Group
	g.SetLimit(len(keys))
	for i, key := range keys {
		g.Go(func() error {
			scores, err := s.fetchAttribute(ctx, key, texts[key])
			results[i] = attributeResult{scores: scores, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		metrics.RecordMatchRequest(outcomeCancelled)
		return ranking.Result{}, err
	}

	per := make(map[attribute.Key][]model.NormalizedScore, len(keys))
	var failures []error
	var skipped []ranking.SkippedAttribute
	for i, key := range keys {
		r := results[i]
		if r.err != nil {
			kind := failureKind(r.err)
			metrics.RecordAttributeFailure(string(key), kind)
			s.logger.Warn(ctx, "attribute skipped",
				logger.String("attribute", string(key)),
				logger.String("kind", kind),
				logger.Error(r.err))
			failures = append(failures, &AttributeFailure{Key: key, Err: r.err})
			skipped = append(skipped, ranking.SkippedAttribute{Key: key, Reason: r.err.Error()})
			continue
		}
		per[key] = r.scores
	}

	res, err := s.aggregator.Aggregate(per, topK)
	if err != nil {
		if len(failures) == len(keys) {
			metrics.RecordMatchRequest(outcomeUnavailable)
			return ranking.Result{}, errors.Join(append([]error{err}, failures...)...)
		}
		metrics.RecordMatchRequest(outcomeNoCandidates)
		return ranking.Result{}, err
	}
	res.Skipped = skipped
	metrics.RecordCandidatesAggregated(res.Candidates)
	if len(skipped) > 0 {
		metrics.RecordMatchRequest(outcomePartial)
	} else {
		metrics.RecordMatchRequest(outcomeOK)
	}
	return res, nil
}

// fetchAttribute embeds one attribute text, queries its partition and
// normalizes the sanitized matches.
func (s *Service) fetchAttribute(ctx context.Context, key attribute.Key, text string) ([]model.NormalizedScore, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	partition := key.Partition()
	raw, err := s.index.Query(ctx, vec, partition, s.queryTopN)
	if err != nil {
		return nil, err
	}
	for i := range raw {
		raw[i].Attribute = key
	}
	clean, dropped := similarity.Sanitize(raw)
	if dropped > 0 {
		metrics.RecordMatchesDropped(string(partition), dropped)
		s.logger.Warn(ctx, "dropped matches with bad metadata",
			logger.String("partition", string(partition)),
			logger.Int("dropped", dropped))
	}
	return s.normalizer.Normalize(clean), nil
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, embedding.ErrEmbeddingUnavailable):
		return "embedding"
	case errors.Is(err, similarity.ErrIndexNotReady):
		return "index_not_ready"
	case errors.Is(err, similarity.ErrIndexUnavailable):
		return "index"
	default:
		return "other"
	}
}

// UpsertBrand stores a brand's attribute texts, normalized.
func (s *Service) UpsertBrand(ctx context.Context, name string, texts attribute.Texts) (model.Brand, error) {
	texts = texts.Clean()
	if len(texts) == 0 {
		return model.Brand{}, fmt.Errorf("%w: brand %q has no attribute text", ErrInvalidAttributes, name)
	}
	b, err := s.brands.Upsert(ctx, model.Brand{Name: name, Attributes: texts})
	if errors.Is(err, repository.ErrInvalidBrand) {
		return model.Brand{}, fmt.Errorf("%w: %w", ErrInvalidAttributes, err)
	}
	return b, err
}

// GetBrand returns the stored brand named name.
func (s *Service) GetBrand(ctx context.Context, name string) (model.Brand, error) {
	b, err := s.brands.Get(ctx, name)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Brand{}, fmt.Errorf("%w: %q", ErrBrandNotFound, name)
	}
	return b, err
}

// ListBrands returns every stored brand ordered by name.
func (s *Service) ListBrands(ctx context.Context) ([]model.Brand, error) {
	return s.brands.List(ctx)
}

// SubmitInfluencer enqueues a profile for indexing. An identical profile
// already submitted reports duplicate=true and is not enqueued again.
func (s *Service) SubmitInfluencer(ctx context.Context, p model.InfluencerProfile) (jobID string, duplicate bool, err error) {
	s.mu.RLock()
	started, q := s.started, s.queue
	s.mu.RUnlock()
	d := s.deduper
	if !started || q == nil {
		return "", false, ErrNotStarted
	}

	p, err = cleanProfile(p)
	if err != nil {
		return "", false, err
	}

	fp := dedupe.Fingerprint(p)
	if d.SeenAndRecord(ctx, fp) {
		s.duplicates.Add(1)
		s.logger.Debug(ctx, "duplicate profile, skipping", logger.String("influencer", p.ID))
		return "", true, nil
	}

	if p.SubmittedAt.IsZero() {
		p.SubmittedAt = time.Now()
	}
	job := model.IngestJob{JobID: uuid.NewString(), Profile: p}
	if err := q.Enqueue(ctx, job); err != nil {
		d.Unrecord(ctx, fp)
		return "", false, fmt.Errorf("enqueue %q: %w", p.ID, err)
	}
	metrics.RecordIngestJob("enqueued")
	metrics.UpdateQueueSize(q.Len())
	return job.JobID, false, nil
}

// cleanProfile trims the id and normalizes texts, dropping empty and unknown
// partitions.
func cleanProfile(p model.InfluencerProfile) (model.InfluencerProfile, error) {
	id := attribute.Normalize(p.ID)
	if id == "" {
		return p, fmt.Errorf("%w: influencer id is empty", ErrInvalidAttributes)
	}
	texts := make(map[attribute.Partition]string, len(p.Texts))
	for part, text := range p.Texts {
		if _, ok := part.Key(); !ok {
			return p, fmt.Errorf("%w: unknown partition %q", ErrInvalidAttributes, part)
		}
		if text = attribute.Normalize(text); text != "" {
			texts[part] = text
		}
	}
	if len(texts) == 0 {
		return p, fmt.Errorf("%w: influencer %q has no attribute text", ErrInvalidAttributes, id)
	}
	return model.InfluencerProfile{ID: id, Texts: texts, SubmittedAt: p.SubmittedAt}, nil
}

// onJobDone counts job outcomes. A failed profile is forgotten by the deduper
// so it can be submitted again. It runs on worker goroutines and must not take
// s.mu, which Stop holds while draining the pool.
func (s *Service) onJobDone(ctx context.Context, j workerpool.Job, err error) { //nolint:gocritic // hugeParam: matches the worker hook signature
	if err == nil {
		s.jobsProcessed.Add(1)
		return
	}
	s.jobsFailed.Add(1)
	s.deduper.Unrecord(ctx, dedupe.Fingerprint(j.Profile))
}

type sizer interface {
	Sizes() map[attribute.Partition]int
}

// IndexSizes reports candidates per partition when the index or its writer
// can tell.
func (s *Service) IndexSizes() map[attribute.Partition]int {
	if sz, ok := s.index.(sizer); ok {
		return sz.Sizes()
	}
	if sz, ok := s.writer.(sizer); ok {
		return sz.Sizes()
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":       s.started,
		"workerCount":   s.workerCount,
		"queueSize":     s.queueSize,
		"dedupeSize":    s.dedupeSize,
		"queryTopN":     s.queryTopN,
		"jobsProcessed": s.jobsProcessed.Load(),
		"jobsFailed":    s.jobsFailed.Load(),
		"duplicates":    s.duplicates.Load(),
	}

	if n, err := s.brands.Count(ctx); err == nil {
		stats["totalBrands"] = n
		metrics.UpdateBrandsTotal(n)
	}
	if s.started && s.queue != nil {
		queueLen := s.queue.Len()
		stats["queueLength"] = queueLen
		metrics.UpdateQueueSize(queueLen)
	}
	stats["dedupeEntries"] = s.deduper.Size()
	if sizes := s.IndexSizes(); sizes != nil {
		indexed := make(map[string]int, len(sizes))
		for p, n := range sizes {
			indexed[string(p)] = n
			metrics.UpdateIndexedCandidates(string(p), n)
		}
		stats["indexedCandidates"] = indexed
	}
	return stats
}

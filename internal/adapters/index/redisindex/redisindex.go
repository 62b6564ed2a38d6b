// Package redisindex stores candidate vectors in Redis hashes and queries
// them through RediSearch KNN, one search index per attribute partition.
//
// Layout:
//
//	index  <prefix>:<partition>
//	hash   <prefix>:<partition>:<candidate>  fields influencer, text, embedding
//
// The embedding field holds FLOAT32 little-endian bytes.
package redisindex

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/okian/brandmatch/internal/domain/attribute"
	"github.com/okian/brandmatch/internal/domain/embedding"
	"github.com/okian/brandmatch/internal/domain/model"
	"github.com/okian/brandmatch/internal/domain/similarity"
	"github.com/okian/brandmatch/pkg/logger"
	"github.com/okian/brandmatch/pkg/metrics"
)

const (
	fieldInfluencer = "influencer"
	fieldText       = "text"
	fieldEmbedding  = "embedding"
	fieldScore      = "score"
)

// Redis is the subset of the go-redis client used here.
type Redis interface {
	Do(ctx context.Context, args ...interface{}) *redis.Cmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Option applies a configuration option to the Index.
type Option func(*Index)

// WithPrefix sets the key and index name prefix.
func WithPrefix(prefix string) Option {
	return func(ix *Index) {
		if p := strings.TrimSpace(prefix); p != "" {
			ix.prefix = p
		}
	}
}

// WithDimension sets the vector length declared in created indexes and
// enforced on query and upsert.
func WithDimension(dim int) Option {
	return func(ix *Index) {
		if dim > 0 {
			ix.dim = dim
		}
	}
}

// WithAlgorithm selects the vector algorithm for created indexes: HNSW or FLAT.
func WithAlgorithm(algo string) Option {
	return func(ix *Index) {
		switch a := strings.ToUpper(strings.TrimSpace(algo)); a {
		case "HNSW", "FLAT":
			ix.algorithm = a
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(ix *Index) {
		if l != nil {
			ix.log = l
		}
	}
}

// Index implements similarity.Index on RediSearch.
type Index struct {
	rdb       Redis
	prefix    string
	dim       int
	algorithm string
	log       logger.Logger
}

var _ similarity.Index = (*Index)(nil)

// New creates an Index over rdb.
func New(rdb Redis, opts ...Option) *Index {
	ix := &Index{
		rdb:       rdb,
		prefix:    "brandmatch",
		dim:       embedding.Dimension,
		algorithm: "HNSW",
		log:       logger.NamedOrNop("redisindex"),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// IndexName returns the search index of partition p.
func (ix *Index) IndexName(p attribute.Partition) string {
	return ix.prefix + ":" + string(p)
}

func (ix *Index) docKey(p attribute.Partition, candidateID string) string {
	return ix.IndexName(p) + ":" + candidateID
}

// EnsureIndexes creates the search index of every partition that does not
// exist yet. Existing indexes are left alone.
func (ix *Index) EnsureIndexes(ctx context.Context, partitions ...attribute.Partition) error {
	if len(partitions) == 0 {
		partitions = attribute.Partitions()
	}
	for _, p := range partitions {
		name := ix.IndexName(p)
		err := ix.rdb.Do(ctx, "FT.INFO", name).Err()
		if err == nil {
			continue
		}
		if !isUnknownIndex(err) {
			return fmt.Errorf("%w: ft.info %s: %w", similarity.ErrIndexUnavailable, name, err)
		}
		if err := ix.rdb.Do(ctx, ix.createArgs(name)...).Err(); err != nil {
			return fmt.Errorf("%w: ft.create %s: %w", similarity.ErrIndexUnavailable, name, err)
		}
		ix.log.Info(ctx, "search index created",
			logger.String("index", name),
			logger.Int("dimension", ix.dim),
			logger.String("algorithm", ix.algorithm))
	}
	return nil
}

func (ix *Index) createArgs(name string) []interface{} {
	return []interface{}{
		"FT.CREATE", name,
		"ON", "HASH",
		"PREFIX", "1", name + ":",
		"SCHEMA",
		fieldInfluencer, "TAG",
		fieldText, "TEXT",
		fieldEmbedding, "VECTOR", ix.algorithm, "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(ix.dim),
		"DISTANCE_METRIC", "COSINE",
	}
}

// Query runs a KNN search in partition p. RediSearch reports cosine
// distance; the returned score is 1 - distance.
func (ix *Index) Query(ctx context.Context, vec embedding.Vector, p attribute.Partition, topN int) ([]model.RawMatch, error) {
	if topN <= 0 {
		return []model.RawMatch{}, nil
	}
	if len(vec) != ix.dim {
		return nil, fmt.Errorf("%w: %w: query dimension %d, want %d",
			similarity.ErrIndexUnavailable, embedding.ErrDataIntegrity, len(vec), ix.dim)
	}
	key, ok := p.Key()
	if !ok {
		return nil, fmt.Errorf("%w: unknown partition %q", similarity.ErrIndexNotReady, p)
	}

	start := time.Now()
	name := ix.IndexName(p)
	reply, err := ix.rdb.Do(ctx, ix.searchArgs(name, vec, topN)...).Result()
	metrics.RecordIndexQueryLatency(string(p), float64(time.Since(start).Milliseconds()))
	if err != nil {
		if isUnknownIndex(err) {
			return nil, fmt.Errorf("%w: %s", similarity.ErrIndexNotReady, name)
		}
		return nil, fmt.Errorf("%w: ft.search %s: %w", similarity.ErrIndexUnavailable, name, err)
	}

	matches, err := parseSearchReply(reply, key)
	if err != nil {
		return nil, fmt.Errorf("%w: ft.search %s: %w", similarity.ErrIndexUnavailable, name, err)
	}
	return matches, nil
}

func (ix *Index) searchArgs(name string, vec embedding.Vector, topN int) []interface{} {
	n := strconv.Itoa(topN)
	return []interface{}{
		"FT.SEARCH", name,
		"*=>[KNN " + n + " @" + fieldEmbedding + " $BLOB AS " + fieldScore + "]",
		"PARAMS", "2", "BLOB", EncodeVector(vec),
		"SORTBY", fieldScore,
		"RETURN", "2", fieldInfluencer, fieldScore,
		"LIMIT", "0", n,
		"DIALECT", "2",
	}
}

// Upsert writes the candidate hash of partition p.
func (ix *Index) Upsert(ctx context.Context, p attribute.Partition, candidateID, text string, vec embedding.Vector) error {
	if err := embedding.Validate(vec, ix.dim); err != nil {
		return err
	}
	err := ix.rdb.HSet(ctx, ix.docKey(p, candidateID),
		fieldInfluencer, candidateID,
		fieldText, text,
		fieldEmbedding, EncodeVector(vec),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: hset: %w", similarity.ErrIndexUnavailable, err)
	}
	return nil
}

// Delete removes the candidate hash of partition p.
func (ix *Index) Delete(ctx context.Context, p attribute.Partition, candidateID string) error {
	if err := ix.rdb.Del(ctx, ix.docKey(p, candidateID)).Err(); err != nil {
		return fmt.Errorf("%w: del: %w", similarity.ErrIndexUnavailable, err)
	}
	return nil
}

// EncodeVector packs vec as FLOAT32 little-endian bytes.
func EncodeVector(vec embedding.Vector) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// parseSearchReply decodes a RESP2 FT.SEARCH reply:
// [total, docKey, [field, value, ...], docKey, [...], ...].
// Documents without an influencer field keep an empty id so the caller's
// sanitizer can count them.
func parseSearchReply(reply interface{}, key attribute.Key) ([]model.RawMatch, error) {
	arr, ok := reply.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected reply type %T", reply)
	}
	if len(arr) == 0 {
		return []model.RawMatch{}, nil
	}
	out := make([]model.RawMatch, 0, (len(arr)-1)/2)
	for i := 1; i+1 < len(arr); i += 2 {
		fields, ok := arr[i+1].([]interface{})
		if !ok {
			return nil, fmt.Errorf("unexpected document type %T", arr[i+1])
		}
		m := model.RawMatch{Attribute: key, Score: math.NaN()}
		for j := 0; j+1 < len(fields); j += 2 {
			name, _ := fields[j].(string)
			value, _ := fields[j+1].(string)
			switch name {
			case fieldInfluencer:
				m.CandidateID = value
			case fieldScore:
				if d, err := strconv.ParseFloat(value, 64); err == nil {
					m.Score = 1 - d
				}
			}
		}
		out = append(out, m)
	}
	return out, nil
}

func isUnknownIndex(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown index name") || strings.Contains(msg, "no such index")
}

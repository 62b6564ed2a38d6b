// Package dedupe tracks influencer profiles already submitted so identical
// resubmissions are not re-embedded.
package dedupe

import (
	"container/list"
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/brandmatch/internal/domain/attribute"
	"github.com/okian/brandmatch/internal/domain/model"
)

const defaultMaxSize = 50_000

// Deduper records seen keys to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets key so it can be submitted again, e.g. after the
	// enqueue that followed SeenAndRecord was rejected.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// inMemoryDeduper evicts the oldest key once maxSize is reached.
// maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // front = newest
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
		seen:    make(map[string]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		if oldest := d.order.Back(); oldest != nil {
			d.order.Remove(oldest)
			delete(d.seen, oldest.Value.(string))
		}
	}
	d.seen[key] = d.order.PushFront(key)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		d.order.Remove(el)
		delete(d.seen, key)
	}
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}

// Fingerprint returns a stable content key for a profile: the influencer id
// plus every normalized partition text, independent of map order.
func Fingerprint(p model.InfluencerProfile) string {
	parts := make([]string, 0, len(p.Texts))
	for part := range p.Texts {
		parts = append(parts, string(part))
	}
	sort.Strings(parts)

	h := xxhash.New()
	_, _ = h.WriteString(p.ID)
	for _, part := range parts {
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(part)
		_, _ = h.WriteString("\x1f")
		_, _ = h.WriteString(attribute.Normalize(p.Texts[attribute.Partition(part)]))
	}
	return p.ID + ":" + strconv.FormatUint(h.Sum64(), 16)
}

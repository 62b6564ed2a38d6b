package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/brandmatch/internal/adapters/mq/queue"
	"github.com/okian/brandmatch/internal/adapters/mq/worker"
	"github.com/okian/brandmatch/internal/domain/attribute"
	"github.com/okian/brandmatch/internal/domain/embedding"
	"github.com/okian/brandmatch/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

type mockEmbedder struct {
	mu    sync.Mutex
	fails map[string]error
	calls []string
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{fails: make(map[string]error)}
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (embedding.Vector, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, text)
	if err, ok := m.fails[text]; ok {
		return nil, err
	}
	return embedding.Vector{float32(len(text)), 1}, nil
}

type upsert struct {
	partition attribute.Partition
	id        string
	text      string
}

type mockWriter struct {
	mu        sync.Mutex
	upserts   []upsert
	deletes   []attribute.Partition
	err       error
	deleteErr error
}

func (m *mockWriter) Upsert(_ context.Context, p attribute.Partition, id, text string, _ embedding.Vector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.upserts = append(m.upserts, upsert{partition: p, id: id, text: text})
	return nil
}

func (m *mockWriter) Delete(_ context.Context, p attribute.Partition, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletes = append(m.deletes, p)
	return nil
}

func (m *mockWriter) deleted() []attribute.Partition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]attribute.Partition(nil), m.deletes...)
}

func (m *mockWriter) snapshot() []upsert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]upsert(nil), m.upserts...)
}

type result struct {
	job worker.Job
	err error
}

func collector(n int) (chan result, worker.Option) {
	ch := make(chan result, n)
	return ch, worker.WithResultHook(func(_ context.Context, j worker.Job, err error) {
		ch <- result{job: j, err: err}
	})
}

func await(ch <-chan result) (result, bool) {
	select {
	case r := <-ch:
		return r, true
	case <-time.After(2 * time.Second):
		return result{}, false
	}
}

func profileJob(id string, texts map[attribute.Partition]string) worker.Job {
	return model.IngestJob{JobID: "job-" + id, Profile: model.InfluencerProfile{ID: id, Texts: texts}}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker reading from a queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		emb := newMockEmbedder()
		w := &mockWriter{}
		results, hook := collector(10)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		wk := worker.NewInMemoryWorker(q, emb, w, hook, worker.WithName("test-worker"))
		go wk.Run(ctx)

		convey.Convey("When a profile with several partitions is processed", func() {
			_ = q.Enqueue(ctx, profileJob("alice", map[attribute.Partition]string{
				"vision":          "  empower athletes ",
				"Type_of_content": "fitness",
				"positioning":     "   ",
			}))
			r, ok := await(results)

			convey.Convey("Then every non-empty partition is upserted with normalized text", func() {
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(r.err, convey.ShouldBeNil)
				convey.So(w.snapshot(), convey.ShouldResemble, []upsert{
					{partition: "Type_of_content", id: "alice", text: "fitness"},
					{partition: "vision", id: "alice", text: "empower athletes"},
				})
			})

			convey.Convey("Then partitions without text are cleared for the influencer", func() {
				convey.So(w.deleted(), convey.ShouldResemble, []attribute.Partition{
					"target_Audience", "positioning", "personality",
				})
			})
		})

		convey.Convey("When clearing a dropped partition fails", func() {
			w.deleteErr = errors.New("index offline")
			_ = q.Enqueue(ctx, profileJob("dave", map[attribute.Partition]string{"vision": "x"}))
			r, ok := await(results)

			convey.So(ok, convey.ShouldBeTrue)
			convey.So(r.err, convey.ShouldNotBeNil)
			convey.So(r.err.Error(), convey.ShouldContainSubstring, "positioning: delete")
			convey.So(w.snapshot(), convey.ShouldHaveLength, 1)
		})

		convey.Convey("When one partition fails to embed", func() {
			emb.fails["broken"] = embedding.ErrEmbeddingUnavailable
			_ = q.Enqueue(ctx, profileJob("bob", map[attribute.Partition]string{
				"vision":      "broken",
				"positioning": "premium",
			}))
			r, ok := await(results)

			convey.Convey("Then the other partition is still indexed and the job reports the failure", func() {
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(errors.Is(r.err, embedding.ErrEmbeddingUnavailable), convey.ShouldBeTrue)
				convey.So(r.err.Error(), convey.ShouldContainSubstring, "vision")
				convey.So(w.snapshot(), convey.ShouldHaveLength, 1)
			})
		})

		convey.Convey("When the writer fails", func() {
			w.err = errors.New("disk full")
			_ = q.Enqueue(ctx, profileJob("carol", map[attribute.Partition]string{"vision": "x"}))
			r, ok := await(results)

			convey.So(ok, convey.ShouldBeTrue)
			convey.So(r.err, convey.ShouldNotBeNil)
			convey.So(r.err.Error(), convey.ShouldContainSubstring, "upsert")
		})

		convey.Convey("When the queue is closed", func() {
			_ = q.Close()

			convey.Convey("Then the worker stops", func() {
				select {
				case <-wk.Done():
				case <-time.After(time.Second):
					convey.So("worker still running", convey.ShouldBeEmpty)
				}
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		emb := newMockEmbedder()
		w := &mockWriter{}
		results, hook := collector(100)

		convey.Convey("When creating a pool with default count", func() {
			pool := worker.NewPool(0, q, emb, w)
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
		})

		convey.Convey("When processing many jobs concurrently", func() {
			pool := worker.NewPool(4, q, emb, w, hook)
			pool.Start(context.Background())

			for i := 0; i < 50; i++ {
				id := fmt.Sprintf("inf-%02d", i)
				_ = q.Enqueue(context.Background(), profileJob(id, map[attribute.Partition]string{"vision": "v " + id}))
			}
			processed := 0
			for i := 0; i < 50; i++ {
				if _, ok := await(results); ok {
					processed++
				}
			}

			convey.Convey("Then every job is indexed exactly once", func() {
				convey.So(processed, convey.ShouldEqual, 50)
				seen := map[string]bool{}
				for _, u := range w.snapshot() {
					convey.So(seen[u.id], convey.ShouldBeFalse)
					seen[u.id] = true
				}
				convey.So(len(seen), convey.ShouldEqual, 50)
			})

			convey.Convey("Then shutdown closes the queue and waits for workers", func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When shutting down a pool that was never started", func() {
			pool := worker.NewPool(2, q, emb, w)
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
		})
	})
}

package breaker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/okian/brandmatch/internal/adapters/breaker"
	"github.com/okian/brandmatch/internal/domain/attribute"
	"github.com/okian/brandmatch/internal/domain/embedding"
	"github.com/okian/brandmatch/internal/domain/model"
	"github.com/okian/brandmatch/internal/domain/similarity"
	. "github.com/smartystreets/goconvey/convey"
)

type flakyProvider struct {
	calls atomic.Int32
	err   error
}

func (f *flakyProvider) Embed(context.Context, string) (embedding.Vector, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return embedding.Vector{1, 0}, nil
}

type clientFunc func(ctx context.Context, vec embedding.Vector, p attribute.Partition, n int) ([]model.RawMatch, error)

func (f clientFunc) Query(ctx context.Context, vec embedding.Vector, p attribute.Partition, n int) ([]model.RawMatch, error) {
	return f(ctx, vec, p, n)
}

func TestProviderBreaker(t *testing.T) {
	Convey("Given a provider guarded by a breaker", t, func() {
		ctx := context.Background()
		upstream := &flakyProvider{}
		p := breaker.NewProvider("embedding-test", upstream, breaker.WithMaxFailures(2), breaker.WithTimeout(50*time.Millisecond))

		Convey("When the upstream is healthy", func() {
			v, err := p.Embed(ctx, "x")
			So(err, ShouldBeNil)
			So(v, ShouldResemble, embedding.Vector{1, 0})
			So(p.State(), ShouldEqual, gobreaker.StateClosed)
		})

		Convey("When the upstream fails repeatedly", func() {
			upstream.err = embedding.Unavailable("fake", errors.New("503"))
			_, _ = p.Embed(ctx, "x")
			_, _ = p.Embed(ctx, "x")

			Convey("Then the breaker opens and short-circuits as unavailable", func() {
				So(p.State(), ShouldEqual, gobreaker.StateOpen)
				_, err := p.Embed(ctx, "x")
				So(errors.Is(err, embedding.ErrEmbeddingUnavailable), ShouldBeTrue)
				So(errors.Is(err, gobreaker.ErrOpenState), ShouldBeTrue)
				So(upstream.calls.Load(), ShouldEqual, 2)
			})

			Convey("Then it closes again after a successful probe", func() {
				time.Sleep(80 * time.Millisecond)
				upstream.err = nil
				_, err := p.Embed(ctx, "x")
				So(err, ShouldBeNil)
				So(p.State(), ShouldEqual, gobreaker.StateClosed)
			})
		})

		Convey("When callers cancel", func() {
			upstream.err = context.Canceled
			for i := 0; i < 5; i++ {
				_, _ = p.Embed(ctx, "x")
			}

			Convey("Then the breaker stays closed", func() {
				So(p.State(), ShouldEqual, gobreaker.StateClosed)
			})
		})
	})
}

func TestClientBreaker(t *testing.T) {
	Convey("Given an index client guarded by a breaker", t, func() {
		ctx := context.Background()
		var fail atomic.Bool
		var notReady atomic.Bool
		inner := clientFunc(func(_ context.Context, _ embedding.Vector, p attribute.Partition, _ int) ([]model.RawMatch, error) {
			switch {
			case notReady.Load():
				return nil, similarity.ErrIndexNotReady
			case fail.Load():
				return nil, similarity.ErrIndexUnavailable
			}
			return []model.RawMatch{{CandidateID: "c1", Attribute: attribute.Vision, Score: 0.5}}, nil
		})
		c := breaker.NewClient("index-test", inner, breaker.WithMaxFailures(1))

		Convey("When the partition is missing", func() {
			notReady.Store(true)
			for i := 0; i < 3; i++ {
				_, err := c.Query(ctx, nil, "vision", 10)
				So(errors.Is(err, similarity.ErrIndexNotReady), ShouldBeTrue)
			}

			Convey("Then the breaker does not trip", func() {
				So(c.State(), ShouldEqual, gobreaker.StateClosed)
			})
		})

		Convey("When the backend fails", func() {
			fail.Store(true)
			_, _ = c.Query(ctx, nil, "vision", 10)

			Convey("Then later queries fail fast as unavailable", func() {
				fail.Store(false)
				_, err := c.Query(ctx, nil, "vision", 10)
				So(errors.Is(err, similarity.ErrIndexUnavailable), ShouldBeTrue)
				So(errors.Is(err, gobreaker.ErrOpenState), ShouldBeTrue)
			})
		})

		Convey("When the backend is healthy", func() {
			out, err := c.Query(ctx, nil, "vision", 10)
			So(err, ShouldBeNil)
			So(out, ShouldHaveLength, 1)
		})
	})
}

package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/brandmatch/internal/adapters/embedding/openai"
	"github.com/okian/brandmatch/internal/domain/embedding"
	. "github.com/smartystreets/goconvey/convey"
)

func fakeAPI(t *testing.T, dim int, status int) (*httptest.Server, *map[string]any) {
	t.Helper()
	var last map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") || r.Header.Get("Authorization") != "Bearer test-key" {
			http.Error(w, `{"error":{"message":"bad request"}}`, http.StatusBadRequest)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&last)
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream down","type":"server_error"}}`))
			return
		}
		vec := make([]float64, dim)
		for i := range vec {
			vec[i] = 0.01 * float64(i%7)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "text-embedding-3-small",
			"data":   []any{map[string]any{"object": "embedding", "index": 0, "embedding": vec}},
			"usage":  map[string]any{"prompt_tokens": 3, "total_tokens": 3},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &last
}

func TestOpenAIEmbedder(t *testing.T) {
	Convey("Given an OpenAI embedder against a fake API", t, func() {
		ctx := context.Background()

		Convey("When the API returns a vector of the requested dimension", func() {
			srv, last := fakeAPI(t, 8, http.StatusOK)
			e, err := openai.New("test-key", openai.WithBaseURL(srv.URL+"/"), openai.WithDimension(8), openai.WithModel("text-embedding-3-small"))
			So(err, ShouldBeNil)

			vec, err := e.Embed(ctx, "fitness apparel")

			Convey("Then the vector is returned and the request carries model, input and dimensions", func() {
				So(err, ShouldBeNil)
				So(vec, ShouldHaveLength, 8)
				So((*last)["model"], ShouldEqual, "text-embedding-3-small")
				So((*last)["input"], ShouldEqual, "fitness apparel")
				So((*last)["dimensions"], ShouldEqual, 8)
			})
		})

		Convey("When the API returns the wrong dimension", func() {
			srv, _ := fakeAPI(t, 4, http.StatusOK)
			e, _ := openai.New("test-key", openai.WithBaseURL(srv.URL+"/"), openai.WithDimension(8))

			_, err := e.Embed(ctx, "fitness apparel")

			Convey("Then it fails as a data integrity error", func() {
				So(errors.Is(err, embedding.ErrEmbeddingUnavailable), ShouldBeTrue)
				So(errors.Is(err, embedding.ErrDataIntegrity), ShouldBeTrue)
			})
		})

		Convey("When the API fails", func() {
			srv, _ := fakeAPI(t, 8, http.StatusInternalServerError)
			e, _ := openai.New("test-key", openai.WithBaseURL(srv.URL+"/"), openai.WithDimension(8))

			_, err := e.Embed(ctx, "fitness apparel")

			Convey("Then it fails as unavailable without retrying", func() {
				So(errors.Is(err, embedding.ErrEmbeddingUnavailable), ShouldBeTrue)
				So(errors.Is(err, embedding.ErrDataIntegrity), ShouldBeFalse)
			})
		})

		Convey("When no API key is configured", func() {
			_, err := openai.New("")
			So(errors.Is(err, openai.ErrMissingAPIKey), ShouldBeTrue)
		})
	})
}

package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/tmdb-ratelimit/internal/limiter"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOGGING_LEVEL", "error")

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func fakeTMDb(t *testing.T, totalPages int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		fmt.Fprintf(w, `{"page":%s,"total_pages":%d,"results":[{"id":1},{"id":2}]}`,
			r.URL.Query().Get("page"), totalPages)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch(t *testing.T) {
	api := fakeTMDb(t, 10)
	t.Setenv("TMDB_API_KEY", "secret")
	t.Setenv("TMDB_BASE_URL", api.URL)

	out, err := execute(t, "fetch", "top-rated", "--pages", "3", "--priority", "high")
	require.NoError(t, err)

	dec := json.NewDecoder(bytes.NewBufferString(out))
	for page := 1; page <= 3; page++ {
		var s pageSummary
		require.NoError(t, dec.Decode(&s))
		assert.Equal(t, pageSummary{List: "top_rated", Page: page, TotalPages: 10, Results: 2}, s)
	}

	var stats limiter.Stats
	require.NoError(t, dec.Decode(&stats))
	assert.Equal(t, limiter.VariantInProcess, stats.Variant)
	assert.Equal(t, 3, stats.RequestsInWindow)
	assert.Zero(t, stats.ConsecutiveErrors)
}

func TestFetch_StopsAtLastPage(t *testing.T) {
	api := fakeTMDb(t, 2)
	t.Setenv("TMDB_API_KEY", "secret")
	t.Setenv("TMDB_BASE_URL", api.URL)

	out, err := execute(t, "fetch", "popular", "--pages", "5")
	require.NoError(t, err)

	dec := json.NewDecoder(bytes.NewBufferString(out))
	var first, second pageSummary
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))
	assert.Equal(t, 2, second.Page)

	var stats limiter.Stats
	require.NoError(t, dec.Decode(&stats))
	assert.Equal(t, 2, stats.RequestsInWindow)
}

func TestFetch_Errors(t *testing.T) {
	t.Run("missing api key", func(t *testing.T) {
		t.Setenv("TMDB_API_KEY", "")
		_, err := execute(t, "fetch", "popular")
		assert.ErrorIs(t, err, ErrMissingAPIKey)
	})

	t.Run("unknown list", func(t *testing.T) {
		_, err := execute(t, "fetch", "trending")
		assert.Error(t, err)
	})

	t.Run("bad pages", func(t *testing.T) {
		_, err := execute(t, "fetch", "popular", "--pages", "0")
		assert.Error(t, err)
	})

	t.Run("upstream failure", func(t *testing.T) {
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		t.Cleanup(api.Close)
		t.Setenv("TMDB_API_KEY", "secret")
		t.Setenv("TMDB_BASE_URL", api.URL)

		_, err := execute(t, "fetch", "upcoming")
		assert.ErrorContains(t, err, "returned 503")
	})
}

func TestProbe_InProcessWithoutRedis(t *testing.T) {
	t.Setenv("REDIS_ENABLED", "false")

	out, err := execute(t, "probe")
	require.NoError(t, err)

	var got struct {
		Limiter map[string]interface{} `json:"limiter"`
		Stats   limiter.Stats          `json:"stats"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "in_process", got.Limiter["current"])
	assert.Equal(t, 10.0, got.Stats.TokensAvailable)
	assert.Equal(t, 40.0, got.Stats.RequestsPerSecondLimit)
}

func TestProbe_FallsBackWhenRedisUnreachable(t *testing.T) {
	t.Setenv("REDIS_ENABLED", "true")
	// nothing listens on the discard port
	t.Setenv("REDIS_ADDR", "127.0.0.1:9")

	out, err := execute(t, "probe")
	require.NoError(t, err)
	assert.Contains(t, out, `"current": "in_process"`)
}

func TestInvalidConfig(t *testing.T) {
	t.Setenv("TMDB_REQUESTS_PER_SECOND", "-1")

	_, err := execute(t, "probe")
	assert.Error(t, err)
}

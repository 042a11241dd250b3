package rules

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	toll "toll-calculator/internal/toll/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileProvider(t *testing.T) {
	want := encoded(t, toll.DefaultRuleSet())

	for _, tc := range []struct {
		name    string
		content string
	}{
		{"rules.json", gothenburgJSON},
		{"rules.yaml", gothenburgYAML},
		{"rules.YML", gothenburgYAML},
	} {
		t.Run(tc.name, func(t *testing.T) {
			provider, err := NewFileProvider(writeFile(t, tc.name, tc.content))
			require.NoError(t, err)
			rules, err := provider.Fetch(context.Background())
			require.NoError(t, err)
			assert.Equal(t, want, encoded(t, rules))
		})
	}
}

func TestFileProvider_Errors(t *testing.T) {
	_, err := NewFileProvider(" ")
	assert.Error(t, err)

	provider, err := NewFileProvider(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	_, err = provider.Fetch(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = provider.Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPProvider(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/data/rules.json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(gothenburgJSON))
		case "/data/rules.yaml":
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = w.Write([]byte(gothenburgYAML))
		case "/data/broken.json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"dailyMaxFee": 60, "windowDurationMinutes": -5}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	want := encoded(t, toll.DefaultRuleSet())

	provider, err := NewHTTPProvider(srv.URL+"/data/rules.json", WithBearerToken("secret"))
	require.NoError(t, err)
	rules, err := provider.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, encoded(t, rules))
	assert.Equal(t, "Bearer secret", gotAuth.Load())

	provider, err = NewHTTPProvider(srv.URL+"/data/rules.yaml", WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	rules, err = provider.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, encoded(t, rules))

	provider, err = NewHTTPProvider(srv.URL + "/data/broken.json")
	require.NoError(t, err)
	_, err = provider.Fetch(context.Background())
	assert.ErrorIs(t, err, toll.ErrInvalidRuleSet)

	provider, err = NewHTTPProvider(srv.URL + "/data/missing.json")
	require.NoError(t, err)
	_, err = provider.Fetch(context.Background())
	assert.ErrorContains(t, err, "http 404")

	_, err = NewHTTPProvider("")
	assert.Error(t, err)
}

func TestHTTPProvider_HonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	provider, err := NewHTTPProvider(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = provider.Fetch(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFormatFromContentType(t *testing.T) {
	assert.Equal(t, FormatYAML, formatFromContentType("text/yaml; charset=utf-8", "http://x/rules"))
	assert.Equal(t, FormatJSON, formatFromContentType("application/json", "http://x/rules.yaml"))
	assert.Equal(t, FormatYAML, formatFromContentType("text/plain", "http://x/rules.yml?v=2"))
	assert.Equal(t, FormatJSON, formatFromContentType("", "http://x/rules"))
}

func TestRedisProvider_RequiresClient(t *testing.T) {
	_, err := NewRedisProvider(nil, "")
	assert.Error(t, err)
}

func TestPostgresProvider_NilDB(t *testing.T) {
	provider := NewPostgresProvider(nil)
	_, err := provider.Fetch(context.Background())
	assert.Error(t, err)
	_, err = provider.Save(context.Background(), toll.DefaultRuleSet())
	assert.Error(t, err)
}

func TestMinuteOfDay(t *testing.T) {
	assert.Equal(t, 390, minuteOfDay(toll.Clock(6, 30)))
	assert.Equal(t, 1440, minuteOfDay(toll.Clock(24, 0)))
}

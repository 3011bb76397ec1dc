// Copyright 2026 fanjia1024
// Tests for the backend client

package places

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placelens/pkg/config"
	perrors "placelens/pkg/errors"
	plog "placelens/pkg/log"
	"placelens/pkg/metrics"
)

// newTestClient 启动假后端，并用带多余 '/' 的地址创建客户端
func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	c, err := New(server.URL+"///", opts...)
	require.NoError(t, err)
	return c
}

func jpegUpload() *Upload {
	return NewUpload("cat.jpg", bytes.NewReader([]byte("\xff\xd8\xff\xe0fake-jpeg")))
}

func TestNew_TrimsTrailingSlashes(t *testing.T) {
	c, err := New("https://api.example.com///")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", c.BaseURL())

	c, err = New("  http://localhost:8000/  ")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", c.BaseURL())
}

func TestNew_MissingBaseURL(t *testing.T) {
	for _, in := range []string{"", "   ", "///"} {
		_, err := New(in)
		require.Error(t, err, "base %q", in)
		assert.True(t, errors.Is(err, ErrMissingBaseURL))
		assert.True(t, errors.Is(err, perrors.ErrMissingConfig))
	}
}

func TestNew_InvalidBaseURL(t *testing.T) {
	for _, in := range []string{"api.example.com", "ftp://api.example.com", "http://"} {
		_, err := New(in)
		require.Error(t, err, "base %q", in)
		assert.True(t, errors.Is(err, ErrInvalidBaseURL), "base %q", in)
	}
}

func TestNewFromConfig(t *testing.T) {
	origins := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origins <- r.Header.Get("Origin")
		w.Write([]byte(`{"place_id": "p1"}`))
	}))
	defer server.Close()

	c, err := NewFromConfig(config.ServerConfig{
		URL:     server.URL,
		Timeout: "5s",
		CORS:    config.CORSConfig{Enable: true, Origin: "https://app.example.com"},
	})
	require.NoError(t, err)

	_, err = c.GetPlaceID(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com", <-origins)
}

func TestNewFromConfig_BadTimeout(t *testing.T) {
	_, err := NewFromConfig(config.ServerConfig{URL: "https://api.example.com", Timeout: "never"})
	assert.True(t, errors.Is(err, perrors.ErrInvalidArg))
}

func TestClient_NoOriginWithoutCORS(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Origin"))
		w.Write([]byte(`{"place_id": 1}`))
	})
	_, err := c.GetPlaceID(context.Background(), "x")
	require.NoError(t, err)
}

func TestClient_NotFoundOnEveryOperation(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail": "Place not found"}`))
	})
	ctx := context.Background()

	ops := map[string]func() error{
		"recommend": func() error { _, err := c.GetRecommendedPlaces(ctx, jpegUpload()); return err },
		"place_id":  func() error { _, err := c.GetPlaceID(ctx, "nowhere"); return err },
		"vision":    func() error { _, err := c.AnalyzeImage(ctx, jpegUpload()); return err },
		"image":     func() error { _, err := c.UploadImage(ctx, jpegUpload()); return err },
		"video":     func() error { _, err := c.UploadVideo(ctx, jpegUpload()); return err },
		"region":    func() error { _, err := c.GetRegionPopulation(ctx, "r1", Page{}); return err },
		"gender":    func() error { _, err := c.GetGenderPopulation(ctx, "r1", TimeRange{}); return err },
		"age_min":   func() error { _, err := c.GetAgeMinPopulation(ctx, "r1", Page{}); return err },
		"age_max":   func() error { _, err := c.GetAgeMaxPopulation(ctx, "r1", Page{}); return err },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			err := op()
			require.Error(t, err)
			var re *RemoteRequestError
			require.True(t, errors.As(err, &re), "got %T", err)
			assert.Equal(t, http.StatusNotFound, re.StatusCode)
			assert.Equal(t, "Not Found", re.Status)
			assert.Equal(t, "Place not found", re.Detail)
			assert.Contains(t, err.Error(), "Not Found")
			assert.False(t, IsMalformed(err))
		})
	}
	assert.Equal(t, int32(len(ops)), calls.Load(), "no operation may retry")
}

func TestClient_ErrorPrefixNamesEndpoint(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	ctx := context.Background()

	_, err := c.GetRecommendedPlaces(ctx, jpegUpload())
	assert.True(t, strings.HasPrefix(err.Error(), "recommend: "), err.Error())
	_, err = c.GetPlaceID(ctx, "x")
	assert.True(t, strings.HasPrefix(err.Error(), "place_id: "), err.Error())
	_, err = c.AnalyzeImage(ctx, jpegUpload())
	assert.True(t, strings.HasPrefix(err.Error(), "vision_analyze: "), err.Error())
}

func TestClient_NoRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := c.GetRecommendedPlaces(context.Background(), jpegUpload())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_NonJSONBodyIsMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>gateway says hi</html>"))
	})
	ctx := context.Background()

	_, err := c.GetRecommendedPlaces(ctx, jpegUpload())
	assert.True(t, IsMalformed(err), "recommend: %v", err)
	_, err = c.GetPlaceID(ctx, "x")
	assert.True(t, IsMalformed(err), "place_id: %v", err)
	_, err = c.AnalyzeImage(ctx, jpegUpload())
	assert.True(t, IsMalformed(err), "vision: %v", err)

	assert.False(t, IsRemote(err))
}

func TestClient_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := server.URL
	server.Close()

	c, err := New(base)
	require.NoError(t, err)

	_, err = c.GetPlaceID(context.Background(), "x")
	require.Error(t, err)
	var re *RemoteRequestError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 0, re.StatusCode)
	assert.NotNil(t, re.Err)
	assert.Contains(t, err.Error(), "request failed")
}

func TestClient_ContextCanceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"place_id": "x"}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetPlaceID(ctx, "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	}, WithTimeout(50*time.Millisecond))
	defer close(release)

	_, err := c.GetPlaceID(context.Background(), "slow")
	require.Error(t, err)
	assert.True(t, IsRemote(err))
}

func TestClient_ConcurrentCalls(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"place_id": "` + strings.TrimPrefix(r.URL.Path, "/upload/places/") + `"}`))
	})

	var wg sync.WaitGroup
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	results := make([]PlaceID, len(names))
	errs := make([]error, len(names))
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			results[i], errs[i] = c.GetPlaceID(context.Background(), name)
		}(i, name)
	}
	wg.Wait()

	for i, name := range names {
		require.NoError(t, errs[i])
		assert.Equal(t, PlaceID(name), results[i])
	}
}

func TestClient_RecordsMetrics(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})
	before := testutil.ToFloat64(metrics.RequestTotal.WithLabelValues(opPlaceID, metrics.OutcomeMalformed))
	beforeOK := testutil.ToFloat64(metrics.RequestTotal.WithLabelValues(opPlaceID, metrics.OutcomeSuccess))

	_, err := c.GetPlaceID(context.Background(), "x")
	require.Error(t, err)

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RequestTotal.WithLabelValues(opPlaceID, metrics.OutcomeMalformed)))
	assert.Equal(t, beforeOK, testutil.ToFloat64(metrics.RequestTotal.WithLabelValues(opPlaceID, metrics.OutcomeSuccess)),
		"a malformed response must not also count as success")
}

func TestClient_LogsFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := plog.NewLoggerTo(&buf, &plog.Config{Level: "debug"})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, WithLogger(logger.Logger))

	_, err := c.GetPlaceID(context.Background(), "x")
	require.Error(t, err)
	out := buf.String()
	assert.Contains(t, out, "placelens request failed")
	assert.Contains(t, out, `"status":502`)
	assert.Contains(t, out, `"outcome":"remote_error"`)
}

func TestClient_InjectedHTTPClient(t *testing.T) {
	var used bool
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		used = true
		return &http.Response{
			StatusCode: http.StatusOK,
			Status:     "200 OK",
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(strings.NewReader(`{"place_id": "stub"}`)),
			Request:    r,
		}, nil
	})
	c, err := New("https://api.example.com/", WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)

	id, err := c.GetPlaceID(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, used)
	assert.Equal(t, PlaceID("stub"), id)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

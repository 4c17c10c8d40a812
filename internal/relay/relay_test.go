package relay

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/genmedia-gateway/internal/config"
)

func TestStreamPassesBytesAndHeadersThrough(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte("abcdefgh"), 4096)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
		_, _ = w.Write(payload)
	}))
	defer upstream.Close()

	rl := New(config.RelayConfig{TimeoutSeconds: 5}, nil)
	rec := httptest.NewRecorder()
	rl.Stream(rec, httptest.NewRequest(http.MethodGet, "/api/video/download-video", nil), upstream.URL)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, payload, rec.Body.Bytes())
}

func TestStreamForwardsUpstreamErrorVerbatim(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("expired signature"))
	}))
	defer upstream.Close()

	rl := New(config.RelayConfig{}, nil)
	rec := httptest.NewRecorder()
	rl.Stream(rec, httptest.NewRequest(http.MethodGet, "/", nil), upstream.URL)

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "expired signature", rec.Body.String())
}

func TestStreamForwardsRangeRequests(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bytes=0-99", r.Header.Get("Range"))
		w.Header().Set("Content-Range", "bytes 0-99/4000")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(make([]byte, 100))
	}))
	defer upstream.Close()

	rl := New(config.RelayConfig{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Range", "bytes=0-99")
	rec := httptest.NewRecorder()
	rl.Stream(rec, req, upstream.URL)

	require.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 0-99/4000", rec.Header().Get("Content-Range"))
	assert.Len(t, rec.Body.Bytes(), 100)
}

func TestStreamUnreachableUpstreamIsServerError(t *testing.T) {
	t.Parallel()

	rl := New(config.RelayConfig{TimeoutSeconds: 1}, nil)
	rec := httptest.NewRecorder()
	rl.Stream(rec, httptest.NewRequest(http.MethodGet, "/", nil), "http://127.0.0.1:1/media.mp4")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStreamSameURLTwiceIsByteIdentical(t *testing.T) {
	t.Parallel()

	payload := []byte("deterministic media body")
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer upstream.Close()

	rl := New(config.RelayConfig{}, nil)
	first := httptest.NewRecorder()
	rl.Stream(first, httptest.NewRequest(http.MethodGet, "/", nil), upstream.URL)
	second := httptest.NewRecorder()
	rl.Stream(second, httptest.NewRequest(http.MethodGet, "/", nil), upstream.URL)

	require.Equal(t, first.Body.Bytes(), second.Body.Bytes())
}

func TestStreamRejectsMalformedURL(t *testing.T) {
	t.Parallel()

	rl := New(config.RelayConfig{}, nil)
	rec := httptest.NewRecorder()
	rl.Stream(rec, httptest.NewRequest(http.MethodGet, "/", nil), "http://bad host/%zz")

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddRelayBytesOnCopy(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, 2048))
	}))
	defer upstream.Close()

	rl := New(config.RelayConfig{}, nil)
	rec := httptest.NewRecorder()
	rl.Stream(rec, httptest.NewRequest(http.MethodGet, "/", nil), upstream.URL)
	require.Len(t, rec.Body.Bytes(), 2048)
}

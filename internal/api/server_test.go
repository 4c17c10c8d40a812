package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/genmedia-gateway/internal/combine"
	"github.com/JakeFAU/genmedia-gateway/internal/config"
	"github.com/JakeFAU/genmedia-gateway/internal/credential"
	"github.com/JakeFAU/genmedia-gateway/internal/dispatch"
	"github.com/JakeFAU/genmedia-gateway/internal/endpoint"
	"github.com/JakeFAU/genmedia-gateway/internal/profile"
	"github.com/JakeFAU/genmedia-gateway/internal/relay"
)

type fakeEncoder struct {
	checkErr error
	output   []byte
}

func (f *fakeEncoder) Check() error { return f.checkErr }

func (f *fakeEncoder) Concat(_ context.Context, _ []string, output string) error {
	return os.WriteFile(output, f.output, 0o644)
}

func newTestServer(t *testing.T, providerHandler http.HandlerFunc, mutate func(*config.Config)) *Server {
	t.Helper()

	provider := httptest.NewServer(providerHandler)
	t.Cleanup(provider.Close)

	cfg := config.Config{}
	cfg.Server.TimeoutSeconds = 10
	cfg.Provider = config.ProviderConfig{
		Origin:         "https://app.genmedia.example",
		Referer:        "https://app.genmedia.example/",
		ClientHeader:   "X-Genmedia-Client",
		ClientID:       "gateway",
		TimeoutSeconds: 5,
	}
	cfg.Endpoints = config.EndpointsConfig{
		Mode:          "server",
		Host:          "app.example.com",
		DefaultRemote: provider.URL,
		RemotePool:    []string{provider.URL},
	}
	cfg.Combine = config.CombineConfig{
		TmpDir:       t.TempDir(),
		MaxFiles:     10,
		MaxFileBytes: 1 << 20,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	store := profile.NewMemory()
	store.SetToken("profile-token")
	resolver := credential.NewResolver(credential.NewMemorySession(), store, nil)
	selector := endpoint.NewSelector(cfg.Endpoints)
	dispatcher := dispatch.New(cfg.Provider, nil, nil, resolver, selector, nil, 0, nil, nil, nil)
	mediaRelay := relay.New(cfg.Relay, nil)
	combiner := combine.New(&fakeEncoder{output: []byte("joined clip")}, cfg.Combine, nil, nil, nil)

	return NewServer(dispatcher, mediaRelay, combiner, cfg, nil)
}

func okProvider(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"taskId":"t-9"}`))
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, okProvider, nil)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestDispatchActionPassthrough(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, okProvider, nil)
	body := bytes.NewBufferString(`{"prompt":"a fox"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/video/generate", body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "t-9", resp["taskId"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestDispatchActionInvalidJSON(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, okProvider, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/video/generate", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid JSON")
}

func TestDispatchActionNoCredentialIsUnauthorized(t *testing.T) {
	t.Parallel()

	provider := httptest.NewServer(http.HandlerFunc(okProvider))
	t.Cleanup(provider.Close)

	cfg := config.Config{}
	cfg.Endpoints = config.EndpointsConfig{Mode: "server", Host: "app.example.com", DefaultRemote: provider.URL}
	store := profile.NewMemory() // no token anywhere
	resolver := credential.NewResolver(credential.NewMemorySession(), store, nil)
	dispatcher := dispatch.New(cfg.Provider, nil, nil, resolver, endpoint.NewSelector(cfg.Endpoints), nil, 0, nil, nil, nil)
	srv := NewServer(dispatcher, relay.New(cfg.Relay, nil), nil, cfg, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/video/generate", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDispatchActionBadUpstreamIsBadGateway(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>oops</html>"))
	}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/video/generate", nil))

	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "<html>oops</html>")
}

func TestDispatchActionRetriableTagging(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"overloaded"}`))
	}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/video/generate", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("X-Retriable"))
}

func TestDownloadVideoRequiresURL(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, okProvider, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/video/download-video", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/video/download-video?url=ftp://x", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadVideoStreamsRemoteBytes(t *testing.T) {
	t.Parallel()

	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("media bytes"))
	}))
	t.Cleanup(media.Close)

	srv := newTestServer(t, okProvider, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/video/download-video?url="+media.URL, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, "media bytes", rec.Body.String())
}

func multipartBody(t *testing.T, sizes []int) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for i, size := range sizes {
		part, err := mw.CreateFormFile("videos", "clip.mp4")
		require.NoError(t, err)
		_, err = part.Write(bytes.Repeat([]byte{byte('a' + i)}, size))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestCombineVideosSuccess(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, okProvider, nil)
	body, contentType := multipartBody(t, []int{128, 256})
	req := httptest.NewRequest(http.MethodPost, "/api/video/combine", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	data, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, "joined clip", string(data))
}

func TestCombineVideosRejectsSingleFile(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, okProvider, nil)
	body, contentType := multipartBody(t, []int{128})
	req := httptest.NewRequest(http.MethodPost, "/api/video/combine", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "at least two")
}

func TestCombineVideosRejectsEleventhFile(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, okProvider, nil)
	sizes := make([]int, 11)
	for i := range sizes {
		sizes[i] = 64
	}
	body, contentType := multipartBody(t, sizes)
	req := httptest.NewRequest(http.MethodPost, "/api/video/combine", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "at most 10")
}

func TestCombineVideosRejectsOversizedFile(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, okProvider, func(cfg *config.Config) {
		cfg.Combine.MaxFileBytes = 100
	})
	body, contentType := multipartBody(t, []int{64, 200})
	req := httptest.NewRequest(http.MethodPost, "/api/video/combine", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestCombineVideosEncoderUnavailable(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, okProvider, nil)
	srv.combiner = combine.New(
		&fakeEncoder{checkErr: errors.New("no binary")},
		srv.cfg.Combine, nil, nil, nil)

	body, contentType := multipartBody(t, []int{64, 64})
	req := httptest.NewRequest(http.MethodPost, "/api/video/combine", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["suggestion"], "ffmpeg")
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, okProvider, func(cfg *config.Config) {
		cfg.Auth.Enabled = true
		cfg.Auth.APIKey = "secret"
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestActionKindMapping(t *testing.T) {
	t.Parallel()

	assert.Equal(t, dispatch.KindStatus, actionKind("status"))
	assert.Equal(t, dispatch.KindStatus, actionKind("task-status"))
	assert.Equal(t, dispatch.KindUpload, actionKind("upload"))
	assert.Equal(t, dispatch.KindHealth, actionKind("ping"))
	assert.Equal(t, dispatch.KindGeneration, actionKind("generate"))
}

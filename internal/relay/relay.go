// Package relay streams remote media bytes back to the caller without
// buffering the full object.
package relay

import (
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/genmedia-gateway/internal/config"
	"github.com/JakeFAU/genmedia-gateway/internal/telemetry"
)

// passthroughHeaders are copied from the upstream response when present.
var passthroughHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Content-Range",
	"Content-Disposition",
	"Accept-Ranges",
	"Last-Modified",
	"ETag",
}

// Relay proxies a single remote object to the caller as the bytes arrive.
type Relay struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// New builds a Relay. The timeout bounds the whole transfer; zero means
// no transfer deadline, which suits large media objects.
func New(cfg config.RelayConfig, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := &http.Client{}
	if cfg.TimeoutSeconds > 0 {
		client.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Relay{httpClient: client, logger: logger}
}

// Stream fetches remoteURL and pipes the body to w. Upstream non-2xx
// answers are forwarded verbatim, status and body both. A transport error
// before any header is written yields a 500; after headers the transfer
// simply ends short, since the status line is already on the wire.
func (rl *Relay) Stream(w http.ResponseWriter, r *http.Request, remoteURL string) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, remoteURL, nil)
	if err != nil {
		http.Error(w, "invalid media url", http.StatusBadRequest)
		return
	}
	// Byte-range requests pass through so callers can seek.
	if rng := r.Header.Get("Range"); rng != "" {
		req.Header.Set("Range", rng)
	}

	resp, err := rl.httpClient.Do(req)
	if err != nil {
		rl.logger.Warn("media fetch failed", zap.String("url", remoteURL), zap.Error(err))
		http.Error(w, "failed to fetch media", http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	for _, name := range passthroughHeaders {
		if v := resp.Header.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	n, err := io.Copy(w, resp.Body)
	telemetry.AddRelayBytes(n)
	if err != nil {
		// Headers are gone; all we can do is cut the stream and note it.
		rl.logger.Warn("media relay interrupted",
			zap.String("url", remoteURL),
			zap.Int64("bytes", n),
			zap.Error(err))
		return
	}
	rl.logger.Debug("media relayed", zap.String("url", remoteURL), zap.Int64("bytes", n))
}

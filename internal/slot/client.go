// Package slot performs the advisory rate-limit handshake against the
// shared external coordinator. Reservations are fire-and-forget: the
// coordinator is never a hard gate, and a failed reservation never blocks a
// dispatch.
package slot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/genmedia-gateway/internal/diag"
)

// Client posts reservations to the coordinator.
type Client struct {
	coordinatorURL string
	httpClient     *http.Client
	logger         *zap.Logger
	hub            *diag.Hub
}

// NewClient creates a reservation client. A nil hub disables diagnostics.
func NewClient(coordinatorURL string, timeout time.Duration, logger *zap.Logger, hub *diag.Hub) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		coordinatorURL: coordinatorURL,
		httpClient:     &http.Client{Timeout: timeout},
		logger:         logger,
		hub:            hub,
	}
}

type reservation struct {
	CooldownSeconds int    `json:"cooldown_seconds"`
	Endpoint        string `json:"endpoint"`
}

// Reserve spawns a detached reservation attempt and returns immediately.
// Failures are logged and swallowed, never propagated.
func (c *Client) Reserve(cooldownSeconds int, endpoint string) {
	if c == nil || c.coordinatorURL == "" {
		return
	}
	go func() {
		if err := c.reserve(context.Background(), cooldownSeconds, endpoint); err != nil {
			c.logger.Warn("slot reservation failed",
				zap.String("endpoint", endpoint),
				zap.Error(err),
			)
			c.hub.Emit(diag.Event{
				Kind:   diag.KindSlotReservation,
				Detail: endpoint,
				Err:    err.Error(),
			})
		}
	}()
}

func (c *Client) reserve(ctx context.Context, cooldownSeconds int, endpoint string) error {
	body, err := json.Marshal(reservation{CooldownSeconds: cooldownSeconds, Endpoint: endpoint})
	if err != nil {
		return fmt.Errorf("marshal reservation: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.coordinatorURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build reservation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call coordinator: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("coordinator returned %d", resp.StatusCode)
	}
	return nil
}

// Package endpoint chooses which backend gateway instance serves a request.
package endpoint

import (
	"math/rand/v2"
	"net"
	"net/url"
	"strings"

	"github.com/JakeFAU/genmedia-gateway/internal/config"
)

// Environment captures where the caller runs; it decides between loopback
// and the remote pool.
type Environment struct {
	// Desktop is true when the caller is the packaged desktop build.
	Desktop bool
	// Host is the host the caller's page was served from.
	Host string
}

// Selector applies the routing rules once per request start. The pool is
// process-wide configuration; membership does not change at runtime.
type Selector struct {
	cfg config.EndpointsConfig
}

// NewSelector creates a Selector over the configured endpoint pool.
func NewSelector(cfg config.EndpointsConfig) *Selector {
	return &Selector{cfg: cfg}
}

// DefaultEnvironment derives the caller environment from configuration.
func (s *Selector) DefaultEnvironment() Environment {
	return Environment{
		Desktop: s.cfg.Mode == "desktop",
		Host:    s.cfg.Host,
	}
}

// Select returns the endpoint URL for a single request.
func (s *Selector) Select(env Environment) string {
	if env.Desktop {
		return s.cfg.Local
	}
	if isLoopbackHost(env.Host) {
		if s.cfg.Override != "" && !isLoopbackURL(s.cfg.Override) {
			return s.cfg.Override
		}
		return s.cfg.Local
	}
	if s.cfg.Override != "" {
		return s.cfg.Override
	}
	return s.cfg.DefaultRemote
}

// SelectSibling picks an endpoint for one of N parallel sibling requests:
// uniform, with replacement, from the remote pool. Siblings coordinate only
// through this sampling, which spreads load and tolerates transient pool
// degradation without shared locking.
func (s *Selector) SelectSibling(env Environment) string {
	if env.Desktop || isLoopbackHost(env.Host) {
		return s.Select(env)
	}
	if len(s.cfg.RemotePool) == 0 {
		return s.Select(env)
	}
	return s.cfg.RemotePool[rand.IntN(len(s.cfg.RemotePool))]
}

// Pool returns the configured remote pool.
func (s *Selector) Pool() []string {
	return s.cfg.RemotePool
}

func isLoopbackHost(host string) bool {
	if host == "" {
		return false
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

func isLoopbackURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return isLoopbackHost(u.Host)
}

package endpoint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/genmedia-gateway/internal/config"
)

func baseCfg() config.EndpointsConfig {
	return config.EndpointsConfig{
		Mode:          "server",
		Local:         "http://127.0.0.1:8080",
		DefaultRemote: "https://gw-1.example.com",
		RemotePool: []string{
			"https://gw-1.example.com",
			"https://gw-2.example.com",
			"https://gw-3.example.com",
		},
	}
}

func TestSelectDesktopAlwaysLoopback(t *testing.T) {
	t.Parallel()

	cfg := baseCfg()
	cfg.Override = "https://custom.example.com"
	s := NewSelector(cfg)

	got := s.Select(Environment{Desktop: true, Host: "app.example.com"})
	require.Equal(t, "http://127.0.0.1:8080", got)
}

func TestSelectLoopbackHostPrefersNonLoopbackOverride(t *testing.T) {
	t.Parallel()

	cfg := baseCfg()
	cfg.Override = "https://custom.example.com"
	s := NewSelector(cfg)

	got := s.Select(Environment{Host: "localhost:3000"})
	require.Equal(t, "https://custom.example.com", got)

	// An override pointing back at loopback is ignored.
	cfg.Override = "http://127.0.0.1:9999"
	s = NewSelector(cfg)
	got = s.Select(Environment{Host: "127.0.0.1:3000"})
	require.Equal(t, "http://127.0.0.1:8080", got)
}

func TestSelectRemoteHostUsesOverrideThenDefault(t *testing.T) {
	t.Parallel()

	cfg := baseCfg()
	s := NewSelector(cfg)
	require.Equal(t, "https://gw-1.example.com", s.Select(Environment{Host: "app.example.com"}))

	cfg.Override = "https://custom.example.com"
	s = NewSelector(cfg)
	require.Equal(t, "https://custom.example.com", s.Select(Environment{Host: "app.example.com"}))
}

func TestSelectSiblingSamplesOnlyFromPool(t *testing.T) {
	t.Parallel()

	cfg := baseCfg()
	s := NewSelector(cfg)
	pool := map[string]bool{}
	for _, e := range cfg.RemotePool {
		pool[e] = true
	}

	env := Environment{Host: "app.example.com"}
	seen := map[string]bool{}
	for range 200 {
		got := s.SelectSibling(env)
		require.True(t, pool[got], "sibling selected %q outside the remote pool", got)
		seen[got] = true
	}
	// With 200 uniform draws over 3 endpoints, missing one is vanishingly unlikely.
	require.Len(t, seen, len(cfg.RemotePool))
}

func TestSelectSiblingLoopbackContextsDoNotSample(t *testing.T) {
	t.Parallel()

	s := NewSelector(baseCfg())
	require.Equal(t, "http://127.0.0.1:8080", s.SelectSibling(Environment{Desktop: true}))
	require.Equal(t, "http://127.0.0.1:8080", s.SelectSibling(Environment{Host: "localhost:3000"}))
}

func TestSelectSiblingEmptyPoolFallsBack(t *testing.T) {
	t.Parallel()

	cfg := baseCfg()
	cfg.RemotePool = nil
	s := NewSelector(cfg)
	require.Equal(t, "https://gw-1.example.com", s.SelectSibling(Environment{Host: "app.example.com"}))
}

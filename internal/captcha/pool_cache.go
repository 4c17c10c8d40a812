package captcha

import (
	"context"
	"sync"

	"github.com/JakeFAU/genmedia-gateway/internal/profile"
)

// poolKeyCache holds the shared solver key in-process and refetches it from
// the profile store when empty.
type poolKeyCache struct {
	mu  sync.Mutex
	key string
}

func (c *poolKeyCache) get(ctx context.Context, store profile.Store) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.key != "" {
		return c.key, nil
	}
	key, err := store.PooledCaptchaKey(ctx)
	if err != nil {
		return "", err
	}
	c.key = key
	return key, nil
}

func (c *poolKeyCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = ""
}

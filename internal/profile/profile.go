// Package profile exposes the credential-lookup capability the gateway
// consumes. The user-facing profile system lives outside this service; the
// gateway only reads the provider token and captcha keys recorded there.
package profile

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports that the backing store has no record for the account.
var ErrNotFound = errors.New("profile: record not found")

// Entitlement describes the account's elevated-plan state as recorded by the
// profile system.
type Entitlement struct {
	Active       bool
	Expiry       time.Time
	OptOutPooled bool
}

// Store is the narrow read surface the gateway depends on.
type Store interface {
	// FetchToken returns the provider bearer token for the account.
	FetchToken(ctx context.Context) (string, error)
	// PersonalCaptchaKey returns the account's individually registered
	// solver key, or "" when none is registered.
	PersonalCaptchaKey(ctx context.Context) (string, error)
	// PooledCaptchaKey returns the shared solver key the account may use.
	PooledCaptchaKey(ctx context.Context) (string, error)
	// FetchEntitlement returns the account's elevated-plan state.
	FetchEntitlement(ctx context.Context) (Entitlement, error)
}

// Noop is a Store that always reports missing records. Used when the
// gateway runs without a profile backing.
type Noop struct{}

// FetchToken always fails with ErrNotFound.
func (Noop) FetchToken(context.Context) (string, error) { return "", ErrNotFound }

// PersonalCaptchaKey always returns no key.
func (Noop) PersonalCaptchaKey(context.Context) (string, error) { return "", nil }

// PooledCaptchaKey always fails with ErrNotFound.
func (Noop) PooledCaptchaKey(context.Context) (string, error) { return "", ErrNotFound }

// FetchEntitlement reports an inactive entitlement.
func (Noop) FetchEntitlement(context.Context) (Entitlement, error) { return Entitlement{}, nil }

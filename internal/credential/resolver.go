// Package credential resolves the bearer token authorizing upstream calls.
package credential

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/genmedia-gateway/internal/profile"
)

// ErrAuthMissing reports that no credential source yielded a token.
var ErrAuthMissing = errors.New("credential: no usable token")

// Source identifies which link of the resolution chain produced the token.
type Source string

const (
	// SourceExplicit is a token supplied directly on the call.
	SourceExplicit Source = "explicit"
	// SourceSession is a token cached in local session state.
	SourceSession Source = "session"
	// SourceProfile is a token re-fetched from the profile store.
	SourceProfile Source = "profile"
)

// Credential is the resolved bearer token plus its origin. It lives for one
// request and is never persisted by this layer.
type Credential struct {
	Token  string
	Source Source
}

// SessionCache holds the process-local session token. Implementations must
// be safe for concurrent use.
type SessionCache interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
}

// Resolver walks the precedence chain: explicit, session cache, profile
// store. A token recovered from the profile store is written back to the
// session cache so later resolutions short-circuit.
type Resolver struct {
	session SessionCache
	store   profile.Store
	logger  *zap.Logger
}

// NewResolver wires the session cache and profile store.
func NewResolver(session SessionCache, store profile.Store, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{session: session, store: store, logger: logger}
}

// Resolve returns a usable credential or ErrAuthMissing.
func (r *Resolver) Resolve(ctx context.Context, explicit string) (Credential, error) {
	if explicit != "" {
		return Credential{Token: explicit, Source: SourceExplicit}, nil
	}

	if r.session != nil {
		token, err := r.session.Token(ctx)
		if err != nil {
			return Credential{}, fmt.Errorf("read session token: %w", err)
		}
		if token != "" {
			return Credential{Token: token, Source: SourceSession}, nil
		}
	}

	if r.store != nil {
		token, err := r.store.FetchToken(ctx)
		if err != nil && !errors.Is(err, profile.ErrNotFound) {
			return Credential{}, fmt.Errorf("fetch profile token: %w", err)
		}
		if token != "" {
			if r.session != nil {
				if err := r.session.SetToken(ctx, token); err != nil {
					r.logger.Warn("session token writeback failed", zap.Error(err))
				}
			}
			return Credential{Token: token, Source: SourceProfile}, nil
		}
	}

	return Credential{}, ErrAuthMissing
}

// Package captcha obtains solved anti-bot challenge tokens from a
// third-party solving service, choosing between the caller's individual key
// and a pooled key per tier rules.
package captcha

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/genmedia-gateway/internal/profile"
)

// Source names the solver key chosen for a solve attempt.
type Source string

const (
	// SourcePersonal uses the caller's individually registered key.
	SourcePersonal Source = "personal"
	// SourcePooled uses the shared key granted by an elevated plan.
	SourcePooled Source = "pooled"
	// SourceNone means no key is available; the call proceeds unchallenged.
	SourceNone Source = "none"
)

// Clock is the time source for entitlement expiry checks.
type Clock interface {
	Now() time.Time
}

// Solver submits a challenge to the solving service and returns the token.
type Solver interface {
	Solve(ctx context.Context, req SolveRequest) (string, error)
}

// SolveRequest carries everything the solving service needs so the returned
// token matches the same challenge context.
type SolveRequest struct {
	ClientKey string
	SiteKey   string
	ProjectID string
}

// keySource is the pure tier decision. The restricted service never falls
// back to the pooled key; giving it a personal key is the only way in.
func keySource(restricted, hasPersonal bool, ent profile.Entitlement, now time.Time) Source {
	if restricted {
		if hasPersonal {
			return SourcePersonal
		}
		return SourceNone
	}
	entitled := ent.Active && (ent.Expiry.IsZero() || now.Before(ent.Expiry))
	if entitled && !ent.OptOutPooled {
		return SourcePooled
	}
	if hasPersonal {
		return SourcePersonal
	}
	return SourceNone
}

// Adapter resolves the solver key per tier rules and requests a solve. Every
// returned token is single-use; nothing is cached across calls except the
// pooled key itself.
type Adapter struct {
	solver            Solver
	store             profile.Store
	clock             Clock
	siteKey           string
	restrictedService string
	logger            *zap.Logger

	pool poolKeyCache
}

// NewAdapter wires the solving service, profile store, and tier knobs.
func NewAdapter(solver Solver, store profile.Store, clock Clock, siteKey, restrictedService string, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		solver:            solver,
		store:             store,
		clock:             clock,
		siteKey:           siteKey,
		restrictedService: restrictedService,
		logger:            logger,
	}
}

// Solve returns a solved challenge token, or "" when no key applies or the
// solving service fails. "" is non-fatal: the dispatcher proceeds without an
// injected token and the provider is the authoritative gate.
func (a *Adapter) Solve(ctx context.Context, service, projectID string) string {
	if a.solver == nil || a.store == nil {
		return ""
	}

	personal, err := a.store.PersonalCaptchaKey(ctx)
	if err != nil {
		a.logger.Warn("personal captcha key lookup failed", zap.Error(err))
		personal = ""
	}
	ent, err := a.store.FetchEntitlement(ctx)
	if err != nil {
		a.logger.Warn("entitlement lookup failed", zap.Error(err))
		ent = profile.Entitlement{}
	}

	src := keySource(service == a.restrictedService, personal != "", ent, a.clock.Now())

	var key string
	switch src {
	case SourceNone:
		return ""
	case SourcePersonal:
		key = personal
	case SourcePooled:
		key, err = a.pool.get(ctx, a.store)
		if err != nil {
			if !errors.Is(err, profile.ErrNotFound) {
				a.logger.Warn("pooled captcha key fetch failed", zap.Error(err))
			}
			// Pooled tier without a pooled key does not steal the
			// personal-key path; the call proceeds unchallenged.
			return ""
		}
	}

	token, err := a.solver.Solve(ctx, SolveRequest{
		ClientKey: key,
		SiteKey:   a.siteKey,
		ProjectID: projectID,
	})
	if err != nil {
		if src == SourcePooled {
			// The shared key may have rotated; refetch on the next call.
			a.pool.invalidate()
		}
		a.logger.Warn("captcha solve failed",
			zap.String("service", service),
			zap.String("source", string(src)),
			zap.Error(err),
		)
		return ""
	}
	return token
}

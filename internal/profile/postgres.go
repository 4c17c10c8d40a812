package profile

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresConfig controls the Postgres connection pool backing the store.
type PostgresConfig struct {
	DSN             string
	Table           string
	Account         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Postgres reads profile rows written by the account system.
type Postgres struct {
	pool    querier
	table   string
	account string
}

// NewPostgres creates a Postgres-backed Store using the provided config.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("profile.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewPostgresWithPool(pool, cfg.Table, cfg.Account)
}

// NewPostgresWithPool wires an existing pool; tests inject pgxmock here.
func NewPostgresWithPool(pool querier, table, account string) (*Postgres, error) {
	if table == "" {
		table = "provider_profiles"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if account == "" {
		return nil, fmt.Errorf("profile.account is required")
	}
	return &Postgres{pool: pool, table: table, account: account}, nil
}

// FetchToken returns the provider bearer token for the configured account.
func (p *Postgres) FetchToken(ctx context.Context) (string, error) {
	query := fmt.Sprintf("SELECT provider_token FROM %s WHERE account = $1", p.table)
	var token string
	if err := p.pool.QueryRow(ctx, query, p.account).Scan(&token); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("fetch provider token: %w", err)
	}
	if token == "" {
		return "", ErrNotFound
	}
	return token, nil
}

// PersonalCaptchaKey returns the account's own solver key, "" when absent.
func (p *Postgres) PersonalCaptchaKey(ctx context.Context) (string, error) {
	query := fmt.Sprintf("SELECT COALESCE(personal_captcha_key, '') FROM %s WHERE account = $1", p.table)
	var key string
	if err := p.pool.QueryRow(ctx, query, p.account).Scan(&key); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("fetch personal captcha key: %w", err)
	}
	return key, nil
}

// PooledCaptchaKey returns the shared solver key for the account's tier.
func (p *Postgres) PooledCaptchaKey(ctx context.Context) (string, error) {
	query := fmt.Sprintf("SELECT COALESCE(pooled_captcha_key, '') FROM %s WHERE account = $1", p.table)
	var key string
	if err := p.pool.QueryRow(ctx, query, p.account).Scan(&key); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("fetch pooled captcha key: %w", err)
	}
	if key == "" {
		return "", ErrNotFound
	}
	return key, nil
}

// FetchEntitlement returns the account's elevated-plan state.
func (p *Postgres) FetchEntitlement(ctx context.Context) (Entitlement, error) {
	query := fmt.Sprintf(
		"SELECT plan_active, COALESCE(plan_expires_at, 'epoch'::timestamptz), pooled_opt_out FROM %s WHERE account = $1",
		p.table,
	)
	var ent Entitlement
	if err := p.pool.QueryRow(ctx, query, p.account).Scan(&ent.Active, &ent.Expiry, &ent.OptOutPooled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entitlement{}, nil
		}
		return Entitlement{}, fmt.Errorf("fetch entitlement: %w", err)
	}
	return ent, nil
}

// Close releases the underlying pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

package profile

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestPostgresFetchToken(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostgresWithPool(mock, "provider_profiles", "acct-1")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT provider_token FROM provider_profiles").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows([]string{"provider_token"}).AddRow("tok-abc"))

	token, err := store.FetchToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-abc", token)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFetchTokenEmptyIsNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostgresWithPool(mock, "provider_profiles", "acct-1")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT provider_token FROM provider_profiles").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows([]string{"provider_token"}).AddRow(""))

	_, err = store.FetchToken(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFetchEntitlement(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostgresWithPool(mock, "provider_profiles", "acct-1")
	require.NoError(t, err)

	expiry := time.Unix(1900000000, 0).UTC()
	mock.ExpectQuery("SELECT plan_active").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows([]string{"plan_active", "plan_expires_at", "pooled_opt_out"}).
			AddRow(true, expiry, false))

	ent, err := store.FetchEntitlement(context.Background())
	require.NoError(t, err)
	require.True(t, ent.Active)
	require.Equal(t, expiry, ent.Expiry)
	require.False(t, ent.OptOutPooled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgresWithPoolValidation(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewPostgresWithPool(mock, "bad;table", "acct-1")
	require.Error(t, err)

	_, err = NewPostgresWithPool(mock, "", "")
	require.Error(t, err)
}

package services

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureCustomer(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`INSERT INTO customer_users .* ON CONFLICT \(tg_user_id\)`).
		WithArgs(int64(42), "Ada").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "signed_in"}).AddRow("u1", "Ada", false))

	c, err := repo.EnsureCustomer(context.Background(), 42, "Ada")
	require.NoError(t, err)
	assert.Equal(t, "u1", c.ID)
	assert.Equal(t, int64(42), c.TgUserID)
	assert.False(t, c.SignedIn)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCustomer_Unknown(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`FROM customer_users WHERE tg_user_id = \$1`).
		WithArgs(int64(7)).
		WillReturnError(pgx.ErrNoRows)

	c, err := repo.GetCustomer(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestSetSignedIn(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(`UPDATE customer_users SET signed_in = \$1`).
		WithArgs(true, int64(42)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.SetSignedIn(context.Background(), 42, true))
	require.NoError(t, mock.ExpectationsWereMet())
}

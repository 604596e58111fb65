package services

import (
	"context"
	"errors"

	"unieats/models"

	"github.com/jackc/pgx/v5"
)

// EnsureCustomer returns the customer row for a Telegram user, creating it on
// first contact. A new customer is not signed in.
func (r *Repo) EnsureCustomer(ctx context.Context, tgUserID int64, name string) (*models.Customer, error) {
	c := models.Customer{TgUserID: tgUserID}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO customer_users (tg_user_id, name)
		VALUES ($1, $2)
		ON CONFLICT (tg_user_id) DO UPDATE SET updated_at = now()
		RETURNING id::text, name, signed_in`,
		tgUserID, name,
	).Scan(&c.ID, &c.Name, &c.SignedIn)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCustomer returns nil without error when the Telegram user is unknown.
func (r *Repo) GetCustomer(ctx context.Context, tgUserID int64) (*models.Customer, error) {
	c := models.Customer{TgUserID: tgUserID}
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, signed_in FROM customer_users WHERE tg_user_id = $1`,
		tgUserID,
	).Scan(&c.ID, &c.Name, &c.SignedIn)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// SetSignedIn records a sign-in or sign-out of the Telegram user.
func (r *Repo) SetSignedIn(ctx context.Context, tgUserID int64, signedIn bool) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE customer_users SET signed_in = $1, updated_at = now()
		WHERE tg_user_id = $2`,
		signedIn, tgUserID,
	)
	return err
}

package services

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
)

// CheckoutCooldownCapSeconds caps the wait after repeated failed placements.
const CheckoutCooldownCapSeconds = 30

// CheckoutWaitSeconds returns how many seconds the user must wait before trying to place an order again (0 if no cooldown).
func (r *Repo) CheckoutWaitSeconds(ctx context.Context, tgUserID int64) (int, error) {
	var cooldownUntil *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT cooldown_until FROM checkout_throttle WHERE tg_user_id = $1`,
		tgUserID,
	).Scan(&cooldownUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil // no row = no throttle
	}
	if err != nil {
		return 0, err
	}
	if cooldownUntil == nil {
		return 0, nil
	}
	until := *cooldownUntil
	if time.Now().Before(until) {
		return int(time.Until(until).Seconds()) + 1, nil // round up
	}
	return 0, nil
}

// RecordCheckoutFailed increments fail_count and sets cooldown_until = now() + min(30, 2^fail_count) seconds.
func (r *Repo) RecordCheckoutFailed(ctx context.Context, tgUserID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO checkout_throttle (tg_user_id, fail_count, last_failed_at, cooldown_until, updated_at)
		VALUES ($1, 1, now(), now() + (LEAST(30, POWER(2, 1)::int) || ' seconds')::interval, now())
		ON CONFLICT (tg_user_id) DO UPDATE SET
			fail_count = checkout_throttle.fail_count + 1,
			last_failed_at = now(),
			cooldown_until = now() + (LEAST(30, POWER(2, checkout_throttle.fail_count + 1)::int) || ' seconds')::interval,
			updated_at = now()`,
		tgUserID,
	)
	return err
}

// RecordCheckoutSuccess resets fail_count and cooldown_until for the user.
func (r *Repo) RecordCheckoutSuccess(ctx context.Context, tgUserID int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE checkout_throttle SET
			fail_count = 0,
			last_failed_at = NULL,
			cooldown_until = NULL,
			updated_at = now()
		WHERE tg_user_id = $1`,
		tgUserID,
	)
	return err
}

// CooldownSecondsForFailCount returns min(30, 2^failCount), the cooldown the
// SQL above applies.
func CooldownSecondsForFailCount(failCount int) int {
	s := int(math.Pow(2, float64(failCount)))
	if s > CheckoutCooldownCapSeconds {
		return CheckoutCooldownCapSeconds
	}
	return s
}

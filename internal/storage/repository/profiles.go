package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/content-subscriptions/internal/models"
	"github.com/magabrotheeeer/content-subscriptions/internal/storage"
)

const profileSelect = `SELECT sp.user_uid, sp.external_subscription_id, sp.subscription_end, sp.cancel_at_period_end,
       p.id, p.name, p.external_price_ref, p.level
FROM subscriber_profiles sp
LEFT JOIN plans p ON p.id = sp.current_plan_id`

func scanProfile(row rowScanner) (*models.Profile, error) {
	var pr models.Profile
	var extID sql.NullString
	var end sql.NullTime
	var plan nullablePlan

	dest := append([]any{&pr.UserUID, &extID, &end, &pr.CancelAtPeriodEnd}, plan.dest()...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if extID.Valid {
		pr.ExternalSubscriptionID = &extID.String
	}
	if end.Valid {
		t := end.Time
		pr.SubscriptionEnd = &t
	}
	pr.CurrentPlan = plan.plan()
	return &pr, nil
}

// GetProfile возвращает профиль подписчика вместе с текущим планом.
func (s *Storage) GetProfile(ctx context.Context, userUID string) (*models.Profile, error) {
	const op = "storage.GetProfile"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	pr, err := scanProfile(s.DB.QueryRowContext(ctx, profileSelect+` WHERE sp.user_uid = $1`, userUID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return pr, nil
}

// CreateProfile создаёт профиль с указанным планом, если его ещё нет.
func (s *Storage) CreateProfile(ctx context.Context, userUID string, planID *int64) error {
	const op = "storage.CreateProfile"
	if err := ctxErr(ctx, op); err != nil {
		return err
	}

	_, err := s.DB.ExecContext(ctx, `INSERT INTO subscriber_profiles (user_uid, current_plan_id)
		VALUES ($1, $2)
		ON CONFLICT (user_uid) DO NOTHING`, userUID, planID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	return nil
}

// ApplyPlanChange переводит подписчика на план planID с подпиской провайдера
// externalSubscriptionID и концом периода periodEnd. Флаг отмены сбрасывается.
// Строка профиля блокируется на время транзакции; если профиля нет, он создаётся.
func (s *Storage) ApplyPlanChange(ctx context.Context, userUID string, planID int64, externalSubscriptionID string, periodEnd *time.Time) error {
	const op = "storage.ApplyPlanChange"
	if err := ctxErr(ctx, op); err != nil {
		return err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var locked string
	err = tx.QueryRowContext(ctx,
		`SELECT user_uid FROM subscriber_profiles WHERE user_uid = $1 FOR UPDATE`, userUID).Scan(&locked)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `INSERT INTO subscriber_profiles
			(user_uid, current_plan_id, external_subscription_id, subscription_end, cancel_at_period_end)
			VALUES ($1, $2, $3, $4, FALSE)`,
			userUID, planID, nullString(externalSubscriptionID), periodEnd)
	case err == nil:
		_, err = tx.ExecContext(ctx, `UPDATE subscriber_profiles
			SET current_plan_id = $2,
			    external_subscription_id = $3,
			    subscription_end = $4,
			    cancel_at_period_end = FALSE,
			    updated_at = NOW()
			WHERE user_uid = $1`,
			userUID, planID, nullString(externalSubscriptionID), periodEnd)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RequestCancellation выставляет флаг отмены в конце периода.
func (s *Storage) RequestCancellation(ctx context.Context, userUID string) error {
	const op = "storage.RequestCancellation"
	if err := ctxErr(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, `UPDATE subscriber_profiles
		SET cancel_at_period_end = TRUE, updated_at = NOW()
		WHERE user_uid = $1`, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return requireAffected(op, res)
}

// DowngradeToFree переводит подписчика на бесплатный план и очищает данные подписки.
func (s *Storage) DowngradeToFree(ctx context.Context, userUID string, freePlanID int64) error {
	const op = "storage.DowngradeToFree"
	if err := ctxErr(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, `UPDATE subscriber_profiles
		SET current_plan_id = $2,
		    external_subscription_id = NULL,
		    subscription_end = NULL,
		    cancel_at_period_end = FALSE,
		    updated_at = NOW()
		WHERE user_uid = $1`, userUID, freePlanID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	return requireAffected(op, res)
}

// DowngradeExpired делает то же, что DowngradeToFree, но только если период
// подписки всё ещё истёк на момент now. Возвращает false, если профиль успели продлить.
func (s *Storage) DowngradeExpired(ctx context.Context, userUID string, freePlanID int64, now time.Time) (bool, error) {
	const op = "storage.DowngradeExpired"
	if err := ctxErr(ctx, op); err != nil {
		return false, err
	}

	res, err := s.DB.ExecContext(ctx, `UPDATE subscriber_profiles
		SET current_plan_id = $2,
		    external_subscription_id = NULL,
		    subscription_end = NULL,
		    cancel_at_period_end = FALSE,
		    updated_at = NOW()
		WHERE user_uid = $1 AND subscription_end < $3`, userUID, freePlanID, now)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// ListExpiredPaidProfiles возвращает профили платных планов с истёкшим периодом.
func (s *Storage) ListExpiredPaidProfiles(ctx context.Context, now time.Time) ([]*models.Profile, error) {
	const op = "storage.ListExpiredPaidProfiles"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, profileSelect+`
WHERE sp.subscription_end < $1 AND p.level > 0
ORDER BY sp.subscription_end`, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Profile
	for rows.Next() {
		pr, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func requireAffected(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

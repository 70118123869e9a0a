package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/content-subscriptions/internal/models"
)

// RecordPayment добавляет запись об оплате. Повтор с тем же
// ExternalTransactionID ничего не меняет и возвращает false.
func (s *Storage) RecordPayment(ctx context.Context, rec *models.PaymentRecord) (bool, error) {
	const op = "storage.RecordPayment"
	if err := ctxErr(ctx, op); err != nil {
		return false, err
	}

	err := s.DB.QueryRowContext(ctx, `INSERT INTO payment_records
			(user_uid, amount, status, external_transaction_id, plan_name)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (external_transaction_id) DO NOTHING
		RETURNING id, created_at`,
		rec.UserUID, rec.Amount, rec.Status, rec.ExternalTransactionID, rec.PlanName,
	).Scan(&rec.ID, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return true, nil
}

// ListPayments возвращает платежи пользователя, новые первыми.
func (s *Storage) ListPayments(ctx context.Context, userUID string) ([]*models.PaymentRecord, error) {
	const op = "storage.ListPayments"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT id, user_uid, amount, status, external_transaction_id, plan_name, created_at
		FROM payment_records
		WHERE user_uid = $1
		ORDER BY created_at DESC, id DESC`, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.PaymentRecord
	for rows.Next() {
		var r models.PaymentRecord
		if err := rows.Scan(&r.ID, &r.UserUID, &r.Amount, &r.Status, &r.ExternalTransactionID, &r.PlanName, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

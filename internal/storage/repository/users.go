package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/content-subscriptions/internal/models"
)

// RegisterUser создаёт пользователя и его профиль в одной транзакции.
// Профиль получает план уровня 0, если такой есть.
func (s *Storage) RegisterUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.RegisterUser"
	if err := ctxErr(ctx, op); err != nil {
		return "", err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var uid string
	err = tx.QueryRowContext(ctx, `INSERT INTO users (username, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING uid`,
		user.Username, user.Email, user.PasswordHash, user.Role).Scan(&uid)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, mapError(err))
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO subscriber_profiles (user_uid, current_plan_id)
		VALUES ($1, (SELECT id FROM plans WHERE level = 0 ORDER BY id LIMIT 1))`, uid)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, mapError(err))
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return uid, nil
}

const userColumns = `uid, email, username, password_hash, role, created_at`

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.UUID, &u.Email, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByUsername ищет пользователя по имени.
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.GetUserByUsername"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	u, err := scanUser(s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return u, nil
}

// GetUser ищет пользователя по uid.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	u, err := scanUser(s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE uid = $1`, userUID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return u, nil
}

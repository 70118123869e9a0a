// Package users регистрирует пользователей и выдаёт JWT.
// Профиль подписчика создаётся в той же транзакции, что и пользователь.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/content-subscriptions/internal/lib/jwt"
	"github.com/magabrotheeeer/content-subscriptions/internal/lib/password"
	"github.com/magabrotheeeer/content-subscriptions/internal/models"
	"github.com/magabrotheeeer/content-subscriptions/internal/storage"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type UserRepository interface {
	// RegisterUser сохраняет пользователя вместе с профилем и возвращает его uid.
	RegisterUser(ctx context.Context, user models.User) (string, error)
	// GetUserByUsername возвращает пользователя по имени.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Service регистрация и вход.
type Service struct {
	users    UserRepository
	jwtMaker jwt.Maker
	log      *slog.Logger
}

// New создаёт Service.
func New(users UserRepository, jwtMaker jwt.Maker, log *slog.Logger) *Service {
	return &Service{
		users:    users,
		jwtMaker: jwtMaker,
		log:      log,
	}
}

// Register создаёт пользователя с ролью user и профилем на бесплатном плане.
func (s *Service) Register(ctx context.Context, email, username, rawPassword string) (string, error) {
	const op = "users.Register"

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	uid, err := s.users.RegisterUser(ctx, models.User{
		Email:        email,
		Username:     username,
		PasswordHash: hashed,
		Role:         models.RoleUser,
	})
	if errors.Is(err, storage.ErrAlreadyExists) {
		return "", fmt.Errorf("%s: %w", op, ErrUserExists)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user registered", slog.String("user_uid", uid))
	return uid, nil
}

// Login проверяет пароль и выпускает JWT. Возвращает токен и роль.
func (s *Service) Login(ctx context.Context, username, rawPassword string) (string, string, error) {
	const op = "users.Login"

	user, err := s.users.GetUserByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return "", "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return "", "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, err := s.jwtMaker.GenerateToken(user.UUID, user.Username, user.Role)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	return token, user.Role, nil
}

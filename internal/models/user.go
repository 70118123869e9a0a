package models

import "time"

// Роли пользователей.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User зарегистрированный пользователь.
type User struct {
	UUID         string
	Email        string
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

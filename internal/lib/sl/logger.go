package sl

import (
	"io"
	"log/slog"
)

// Окружения из поля env конфига.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// New создаёт текстовый логгер: debug для local и dev, info для остальных окружений.
func New(env string, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch env {
	case EnvLocal, EnvDev:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})).
		With(slog.String("env", env))
}

// Команда check-subscriptions один раз переводит подписчиков с истёкшим
// платным периодом на бесплатный план. Запускается из cron хоста.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/content-subscriptions/internal/app/scheduler"
	"github.com/magabrotheeeer/content-subscriptions/internal/config"
	"github.com/magabrotheeeer/content-subscriptions/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.New(cfg.Env, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := scheduler.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize sweeper", sl.Err(err))
		os.Exit(1)
	}
	defer app.Close()

	// Ошибки отдельных подписчиков уже в отчёте и в логе, код выхода от них не зависит.
	if _, err := app.RunOnce(ctx); err != nil {
		app.Close()
		os.Exit(1)
	}
}

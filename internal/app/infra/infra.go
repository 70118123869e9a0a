// Package infra поднимает общие для процессов платформы зависимости:
// PostgreSQL с миграциями, Redis и публикацию событий в RabbitMQ.
package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/content-subscriptions/internal/cache"
	"github.com/magabrotheeeer/content-subscriptions/internal/config"
	"github.com/magabrotheeeer/content-subscriptions/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/content-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/content-subscriptions/internal/migrations"
	"github.com/magabrotheeeer/content-subscriptions/internal/storage/repository"
)

const (
	dbReadyAttempts = 10
	dbReadyDelay    = 3 * time.Second
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

type Deps struct {
	Storage   *repository.Storage
	Cache     *cache.Cache
	Publisher Publisher

	conn *amqp.Connection
	ch   *amqp.Channel
	log  *slog.Logger
}

type Options struct {
	// Migrate применить миграции перед проверкой готовности базы.
	Migrate bool
}

// Open подключается к базе, Redis и, если включено, к RabbitMQ.
// При ошибке уже открытые соединения закрываются.
func Open(ctx context.Context, cfg *config.Config, opts Options, log *slog.Logger) (*Deps, error) {
	const op = "infra.Open"

	d := &Deps{log: log, Publisher: rabbitmq.NopPublisher{}}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	d.Storage = db

	if opts.Migrate {
		if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
			d.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if err := WaitForDB(ctx, db, dbReadyAttempts, dbReadyDelay); err != nil {
		d.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	d.Cache = c

	if cfg.RabbitMQEnabled {
		conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		d.conn = conn

		ch, err := rabbitmq.SetupChannel(conn, rabbitmq.SubscriptionQueues())
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		d.ch = ch
		d.Publisher = rabbitmq.NewPublisher(ch)
		log.Info("subscription events are published to RabbitMQ", slog.String("exchange", rabbitmq.Exchange))
	}

	return d, nil
}

// WaitForDB ждёт, пока в базе появятся таблицы платформы.
func WaitForDB(ctx context.Context, db *repository.Storage, attempts int, delay time.Duration) error {
	var err error
	for range attempts {
		if err = repository.CheckDatabaseReady(ctx, db); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("database not ready after %d attempts: %w", attempts, err)
}

// Close закрывает всё, что было открыто.
func (d *Deps) Close() {
	if d.ch != nil {
		if err := d.ch.Close(); err != nil {
			d.log.Error("failed to close channel", sl.Err(err))
		}
	}
	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			d.log.Error("failed to close connection", sl.Err(err))
		}
	}
	if d.Cache != nil {
		if err := d.Cache.Close(); err != nil {
			d.log.Error("failed to close redis", sl.Err(err))
		}
	}
	if d.Storage != nil {
		if err := d.Storage.Close(); err != nil {
			d.log.Error("failed to close storage", sl.Err(err))
		}
	}
}

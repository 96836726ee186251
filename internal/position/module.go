package position

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sultanlodh/Stream/internal/config"
)

// Module provides the configured checkpoint store to Fx.
var Module = fx.Provide(NewStore)

// NewStore initialises the configured checkpoint store (file or redis).
func NewStore(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Store, error) {
	store, closeFn, err := Open(cfg.Checkpoint)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if rs, ok := store.(*RedisStore); ok {
				if err := rs.client.Ping(ctx).Err(); err != nil {
					return fmt.Errorf("ping checkpoint redis: %w", err)
				}
			}
			logger.Info("checkpoint store ready", zap.String("driver", cfg.Checkpoint.Driver))
			return nil
		},
		OnStop: func(context.Context) error {
			return closeFn()
		},
	})

	return store, nil
}

// Open builds a store without lifecycle hooks; the returned func releases its resources.
func Open(cfg config.Checkpoint) (Store, func() error, error) {
	switch cfg.Driver {
	case "file":
		return NewFileStore(cfg.File), func() error { return nil }, nil
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisStore(client, cfg.RedisKey), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported checkpoint driver: %s", cfg.Driver)
	}
}

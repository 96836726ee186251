package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ErrLockNotAcquired is returned when the named lock is held by another session.
var ErrLockNotAcquired = errors.New("lock not acquired")

// LockOptions tunes WithLock.
type LockOptions struct {
	// Timeout in seconds passed to GET_LOCK.
	Timeout uint

	// PingInterval is how often the lock connection is checked for aliveness.
	PingInterval time.Duration

	// Cooldown is waited after acquisition before running the callback, so a previous
	// holder that lost its connection notices on its next ping. Must be >= PingInterval.
	Cooldown time.Duration

	Logger *zap.Logger
}

// WithLock holds a MySQL named lock (GET_LOCK) on a dedicated connection and runs do
// until ctx is done or the lock connection dies, in which case the context passed to
// do is cancelled.
//
// Two holders can briefly overlap when the first one loses its connection without
// noticing before the second acquires the lock; Cooldown narrows that window.
func WithLock(ctx context.Context, db *bun.DB, name string, opts LockOptions, do func(context.Context)) error {
	if opts.PingInterval <= 0 {
		opts.PingInterval = time.Second
	}
	if opts.Cooldown < opts.PingInterval {
		opts.Cooldown = opts.PingInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("lock", name))

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get lock connection: %w", err)
	}
	defer conn.Close()

	var locked sql.NullInt32
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", name, opts.Timeout).Scan(&locked); err != nil {
		return fmt.Errorf("get_lock: %w", err)
	}
	if !locked.Valid {
		return errors.New("get_lock: invalid result")
	}
	if locked.Int32 != 1 {
		return ErrLockNotAcquired
	}

	logger.Info("lock acquired")
	defer func() {
		var released sql.NullInt32
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = conn.QueryRowContext(releaseCtx, "SELECT RELEASE_LOCK(?)", name).Scan(&released)
		logger.Info("lock released")
	}()

	wg := &sync.WaitGroup{}
	defer wg.Wait()

	subCtx, subCancel := context.WithCancel(ctx)
	defer subCancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer subCancel()

		ticker := time.NewTicker(opts.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-subCtx.Done():
				return
			case <-ticker.C:
				if err := conn.PingContext(subCtx); err != nil {
					if subCtx.Err() == nil {
						logger.Error("lock connection lost", zap.Error(err))
					}
					return
				}
			}
		}
	}()

	select {
	case <-subCtx.Done():
		if err := ctx.Err(); err != nil {
			return err
		}
		return errors.New("lock connection lost during cooldown")
	case <-time.After(opts.Cooldown):
	}

	do(subCtx)
	return nil
}

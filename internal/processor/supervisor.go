package processor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/sultanlodh/Stream/internal/config"
	"github.com/sultanlodh/Stream/internal/database"
)

// lockWaitSeconds bounds each GET_LOCK attempt of a standby instance.
const lockWaitSeconds = 5

// Runner is the work a Supervisor keeps alive.
type Runner interface {
	Run(ctx context.Context) error
}

// Supervisor runs a Runner under the processor lock and restarts it with exponential
// backoff until stopped.
type Supervisor struct {
	runner Runner
	db     *bun.DB
	cfg    config.Processor
	logger *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSupervisor builds a Supervisor. With a nil db the lock is skipped.
func NewSupervisor(runner Runner, db *bun.DB, cfg config.Processor, logger *zap.Logger) *Supervisor {
	return &Supervisor{runner: runner, db: db, cfg: cfg, logger: logger}
}

// Start launches the supervision loop in the background.
func (s *Supervisor) Start(context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(runCtx)
	}()
	s.logger.Info("processor supervisor started", zap.String("lock", s.cfg.LockName))
	return nil
}

// Stop cancels the loop and waits for the current run to return.
func (s *Supervisor) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		s.logger.Info("processor supervisor stopped")
		return nil
	}
}

func (s *Supervisor) loop(ctx context.Context) {
	backoff := s.cfg.MinBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		started := time.Now()
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}

		wait := backoff
		switch {
		case errors.Is(err, database.ErrLockNotAcquired):
			s.logger.Info("processor lock held by another instance; standing by")
			wait = s.cfg.MinBackoff
		default:
			if time.Since(started) > s.cfg.MaxBackoff {
				backoff = s.cfg.MinBackoff
				wait = backoff
			}
			s.logger.Error("processor stopped; restarting", zap.Error(err), zap.Duration("backoff", wait))
			backoff = nextBackoff(backoff, s.cfg.MaxBackoff)
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}
}

func (s *Supervisor) runOnce(ctx context.Context) error {
	if s.db == nil {
		return s.runner.Run(ctx)
	}

	var runErr error
	err := database.WithLock(ctx, s.db, s.cfg.LockName, database.LockOptions{
		Timeout:      lockWaitSeconds,
		PingInterval: s.cfg.LockPingInterval,
		Cooldown:     s.cfg.LockCooldown,
		Logger:       s.logger,
	}, func(lockCtx context.Context) {
		runErr = s.runner.Run(lockCtx)
		if ctx.Err() == nil && errors.Is(runErr, context.Canceled) {
			runErr = errors.New("processor lock lost")
		}
	})
	if err != nil {
		return err
	}
	return runErr
}

func nextBackoff(current, limit time.Duration) time.Duration {
	next := current * 2
	if next > limit {
		return limit
	}
	return next
}

package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/perch-social/perch/internal/observability"
	"github.com/perch-social/perch/internal/repository"
)

// Sweeper periodically deletes expired sessions and finished device-flow
// records. Each pass is just the same atomic delete any request handler
// could issue; it holds no lock that a concurrent validate would wait on.
type Sweeper struct {
	sessions  repository.SessionRepository
	devices   repository.DeviceAuthRepository
	interval  time.Duration
	retention time.Duration
	logger    *slog.Logger
}

func NewSweeper(
	sessions repository.SessionRepository,
	devices repository.DeviceAuthRepository,
	interval time.Duration,
	retention time.Duration,
	logger *slog.Logger,
) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		sessions:  sessions,
		devices:   devices,
		interval:  interval,
		retention: retention,
		logger:    logger,
	}
}

// Run sweeps once immediately and then on every tick until the context is
// cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	now := time.Now().UTC()

	sessionsRemoved, err := s.sessions.DeleteExpired(now)
	if err != nil {
		s.logger.ErrorContext(ctx, "session sweep failed", "error", err)
	} else {
		observability.RecordSessionsSwept("session", sessionsRemoved)
	}

	devicesRemoved, err := s.devices.DeleteFinished(now, s.retention)
	if err != nil {
		s.logger.ErrorContext(ctx, "device auth sweep failed", "error", err)
	} else {
		observability.RecordSessionsSwept("device_auth", devicesRemoved)
	}

	if sessionsRemoved > 0 || devicesRemoved > 0 {
		s.logger.InfoContext(ctx, "sweep completed",
			"sessions_removed", sessionsRemoved,
			"device_auths_removed", devicesRemoved,
		)
	}
}

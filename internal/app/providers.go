package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/perch-social/perch/internal/config"
	"github.com/perch-social/perch/internal/health"
	"github.com/perch-social/perch/internal/http/handler"
	"github.com/perch-social/perch/internal/http/router"
	"github.com/perch-social/perch/internal/observability"
	"github.com/perch-social/perch/internal/provider"
	"github.com/perch-social/perch/internal/repository"
	"github.com/perch-social/perch/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func provideLogger(runtime *observability.Runtime) *slog.Logger {
	return runtime.Logger
}

func provideIdentityProvider(cfg *config.Config) service.IdentityProvider {
	return provider.NewGitHubProvider(cfg)
}

// provideValidationCache picks Redis when an address is configured and the
// in-process cache otherwise.
func provideValidationCache(cfg *config.Config) service.ValidationCacheStore {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return service.NewRedisValidationCacheStore(client, "")
	}
	return service.NewInMemoryValidationCacheStore(0)
}

func provideSessionService(
	cfg *config.Config,
	sessions repository.SessionRepository,
	users repository.UserRepository,
	cache service.ValidationCacheStore,
) *service.SessionService {
	return service.NewSessionService(sessions, users, cache, cfg.TokenPepper, cfg.SessionTTL, cfg.ValidationCacheTTL)
}

func provideDeviceFlowService(
	cfg *config.Config,
	devices repository.DeviceAuthRepository,
	users repository.UserRepository,
	sessions *service.SessionService,
	identity service.IdentityProvider,
) *service.DeviceFlowService {
	return service.NewDeviceFlowService(devices, users, sessions, identity, cfg.TokenPepper)
}

func provideSweeper(
	cfg *config.Config,
	logger *slog.Logger,
	sessions repository.SessionRepository,
	devices repository.DeviceAuthRepository,
) *service.Sweeper {
	return service.NewSweeper(sessions, devices, cfg.SweepInterval, cfg.DeviceRetention, logger)
}

func provideReadiness(db *gorm.DB) *health.ProbeRunner {
	return health.NewProbeRunner(2*time.Second, 5*time.Second,
		health.DatabasePing("database", DatabasePinger(db)),
	)
}

func provideRouter(
	cfg *config.Config,
	authHandler *handler.AuthHandler,
	sessions *service.SessionService,
	readiness *health.ProbeRunner,
) http.Handler {
	return router.NewRouter(router.Dependencies{
		AuthHandler:      authHandler,
		SessionValidator: sessions,
		AuthRateLimitRPM: cfg.AuthRateLimitRPM,
		Readiness:        readiness,
		EnableOTelHTTP:   cfg.OTELTracesEnabled,
	})
}

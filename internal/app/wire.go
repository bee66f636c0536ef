//go:build wireinject

package app

import (
	"context"

	"github.com/perch-social/perch/internal/config"
	"github.com/perch-social/perch/internal/http/handler"
	"github.com/perch-social/perch/internal/observability"
	"github.com/perch-social/perch/internal/repository"

	"github.com/google/wire"
)

func Initialize(ctx context.Context, cfg *config.Config) (*App, error) {
	wire.Build(
		observability.InitRuntime,
		provideLogger,
		OpenDatabase,
		repository.NewSessionRepository,
		repository.NewUserRepository,
		repository.NewDeviceAuthRepository,
		provideValidationCache,
		provideIdentityProvider,
		provideSessionService,
		provideDeviceFlowService,
		provideSweeper,
		provideReadiness,
		handler.NewAuthHandler,
		provideRouter,
		NewHTTPServer,
		New,
	)
	return nil, nil
}

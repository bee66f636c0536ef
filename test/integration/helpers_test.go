package integration

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/perch-social/perch/internal/domain"
	"github.com/perch-social/perch/internal/health"
	"github.com/perch-social/perch/internal/http/handler"
	"github.com/perch-social/perch/internal/http/router"
	"github.com/perch-social/perch/internal/repository"
	"github.com/perch-social/perch/internal/service"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeProvider approves the handshake after a configurable number of
// pending polls.
type fakeProvider struct {
	mu           sync.Mutex
	pendingPolls int
	denyAll      bool
	polls        int
}

func (p *fakeProvider) StartDeviceAuth(context.Context) (*service.DeviceGrant, error) {
	return &service.DeviceGrant{
		DeviceCode:      "provider-device-code",
		UserCode:        "WDJB-MJHT",
		VerificationURI: "https://provider.example/device",
		ExpiresAt:       time.Now().UTC().Add(15 * time.Minute),
	}, nil
}

func (p *fakeProvider) PollDeviceToken(context.Context, string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.polls++
	if p.denyAll {
		return "", service.ErrAccessDenied
	}
	if p.polls <= p.pendingPolls {
		return "", service.ErrAuthorizationPending
	}
	return "provider-access-token", nil
}

func (p *fakeProvider) FetchProfile(context.Context, string) (*service.Profile, error) {
	return &service.Profile{ExternalID: 4242, Login: "finch"}, nil
}

type testStack struct {
	server   *httptest.Server
	db       *gorm.DB
	sessions *service.SessionService
	devices  repository.DeviceAuthRepository
	sweeper  *service.Sweeper
}

func newTestStack(t *testing.T, provider service.IdentityProvider) *testStack {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&domain.User{}, &domain.Session{}, &domain.DeviceAuthorization{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	sessionsRepo := repository.NewSessionRepository(db)
	usersRepo := repository.NewUserRepository(db)
	devicesRepo := repository.NewDeviceAuthRepository(db)
	sessions := service.NewSessionService(sessionsRepo, usersRepo, service.NewInMemoryValidationCacheStore(0), "integration-pepper", time.Hour, 30*time.Second)
	deviceFlow := service.NewDeviceFlowService(devicesRepo, usersRepo, sessions, provider, "integration-pepper")
	sweeper := service.NewSweeper(sessionsRepo, devicesRepo, time.Hour, 10*time.Minute, nil)

	h := router.NewRouter(router.Dependencies{
		AuthHandler:      handler.NewAuthHandler(deviceFlow, sessions),
		SessionValidator: sessions,
		AuthRateLimitRPM: 10000,
		Readiness: health.NewProbeRunner(time.Second, 0,
			health.DatabasePing("database", func(ctx context.Context) error {
				return sqlDB.PingContext(ctx)
			}),
		),
	})

	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return &testStack{server: server, db: db, sessions: sessions, devices: devicesRepo, sweeper: sweeper}
}

// rewindPollTimestamps lets back-to-back polls through the server's
// per-device interval throttle.
func (s *testStack) rewindPollTimestamps(t *testing.T) {
	t.Helper()
	err := s.db.Model(&domain.DeviceAuthorization{}).
		Where("last_polled_at IS NOT NULL").
		Update("last_polled_at", time.Now().UTC().Add(-time.Minute)).Error
	if err != nil {
		t.Fatalf("rewind poll timestamps: %v", err)
	}
}

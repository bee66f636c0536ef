package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/perch-social/perch/internal/domain"
	"github.com/perch-social/perch/internal/repository"
	"github.com/perch-social/perch/internal/security"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testRepos struct {
	db       *gorm.DB
	sessions repository.SessionRepository
	users    repository.UserRepository
	devices  repository.DeviceAuthRepository
}

func newTestRepos(t *testing.T) testRepos {
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
	return testRepos{
		db:       db,
		sessions: repository.NewSessionRepository(db),
		users:    repository.NewUserRepository(db),
		devices:  repository.NewDeviceAuthRepository(db),
	}
}

// hashForTest matches the pepper every service under test is built with.
func hashForTest(token string) string {
	return security.HashToken(token, "test-pepper")
}

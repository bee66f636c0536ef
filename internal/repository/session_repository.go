package repository

import (
	"context"
	"errors"
	"time"

	"github.com/perch-social/perch/internal/domain"
	"github.com/perch-social/perch/internal/observability"

	"gorm.io/gorm"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrDuplicateSession = errors.New("session token already exists")
)

type SessionRepository interface {
	Create(s *domain.Session) error
	FindByTokenHash(hash string) (*domain.Session, error)
	DeleteByTokenHash(hash string) error
	DeleteExpired(now time.Time) (int64, error)
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) Create(s *domain.Session) error {
	err := r.db.Create(s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			observability.RecordRepositoryOperation(context.Background(), "session", "create", "duplicate")
			return ErrDuplicateSession
		}
		observability.RecordRepositoryOperation(context.Background(), "session", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "create", "success")
	return nil
}

func (r *GormSessionRepository) FindByTokenHash(hash string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.Where("token_hash = ?", hash).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "session", "find_by_token_hash", "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "session", "find_by_token_hash", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "find_by_token_hash", "success")
	return &s, nil
}

// DeleteByTokenHash is idempotent; deleting an absent token is not an error.
func (r *GormSessionRepository) DeleteByTokenHash(hash string) error {
	err := r.db.Where("token_hash = ?", hash).Delete(&domain.Session{}).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "delete_by_token_hash", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "delete_by_token_hash", "success")
	return nil
}

// DeleteExpired removes only rows whose expiry had already passed at the
// supplied instant, so sessions created concurrently with a sweep are never
// touched.
func (r *GormSessionRepository) DeleteExpired(now time.Time) (int64, error) {
	res := r.db.Where("expires_at < ?", now).Delete(&domain.Session{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "delete_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "delete_expired", "success")
	return res.RowsAffected, nil
}

package repository

import (
	"context"
	"errors"

	"github.com/perch-social/perch/internal/domain"
	"github.com/perch-social/perch/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	GetOrCreate(externalID int64, externalLogin string) (*domain.User, error)
	FindByID(id uint) (*domain.User, error)
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

// GetOrCreate resolves an external identity to exactly one User row. The
// insert rides on the unique index over external_id (ON CONFLICT DO
// NOTHING), so two concurrent calls for the same identity both land on the
// same row; there is no check-then-insert race.
func (r *GormUserRepository) GetOrCreate(externalID int64, externalLogin string) (*domain.User, error) {
	u := domain.User{ExternalID: externalID, ExternalLogin: externalLogin}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoNothing: true,
	}).Create(&u).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "get_or_create", "error")
		return nil, err
	}

	var existing domain.User
	if err := r.db.Where("external_id = ?", externalID).First(&existing).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "get_or_create", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "get_or_create", "success")
	return &existing, nil
}

func (r *GormUserRepository) FindByID(id uint) (*domain.User, error) {
	var u domain.User
	err := r.db.First(&u, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "success")
	return &u, nil
}

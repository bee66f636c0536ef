package repository

import (
	"context"
	"errors"
	"time"

	"github.com/perch-social/perch/internal/domain"
	"github.com/perch-social/perch/internal/observability"

	"gorm.io/gorm"
)

var ErrDeviceAuthNotFound = errors.New("device authorization not found")

type DeviceAuthRepository interface {
	Create(d *domain.DeviceAuthorization) error
	FindByDeviceCodeHash(hash string) (*domain.DeviceAuthorization, error)
	TouchPoll(id uint, at time.Time) error
	Approve(id uint, userID uint, sessionToken string, at time.Time) (bool, error)
	MarkTerminal(id uint, status domain.DeviceAuthStatus, at time.Time) (bool, error)
	DeleteFinished(now time.Time, retention time.Duration) (int64, error)
}

type GormDeviceAuthRepository struct{ db *gorm.DB }

func NewDeviceAuthRepository(db *gorm.DB) DeviceAuthRepository {
	return &GormDeviceAuthRepository{db: db}
}

func (r *GormDeviceAuthRepository) Create(d *domain.DeviceAuthorization) error {
	err := r.db.Create(d).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "device_auth", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "device_auth", "create", "success")
	return nil
}

func (r *GormDeviceAuthRepository) FindByDeviceCodeHash(hash string) (*domain.DeviceAuthorization, error) {
	var d domain.DeviceAuthorization
	err := r.db.Where("device_code_hash = ?", hash).First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "device_auth", "find_by_device_code_hash", "not_found")
			return nil, ErrDeviceAuthNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "device_auth", "find_by_device_code_hash", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "device_auth", "find_by_device_code_hash", "success")
	return &d, nil
}

func (r *GormDeviceAuthRepository) TouchPoll(id uint, at time.Time) error {
	err := r.db.Model(&domain.DeviceAuthorization{}).
		Where("id = ?", id).
		Update("last_polled_at", at).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "device_auth", "touch_poll", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "device_auth", "touch_poll", "success")
	return nil
}

// Approve is the single compare-and-set of the device flow: only a row still
// in Pending transitions to Approved, and only that transition records the
// minted session token. Concurrent duplicate polls observe changed=false and
// re-read the already-approved row.
func (r *GormDeviceAuthRepository) Approve(id uint, userID uint, sessionToken string, at time.Time) (bool, error) {
	res := r.db.Model(&domain.DeviceAuthorization{}).
		Where("id = ? AND status = ?", id, domain.DeviceAuthPending).
		Updates(map[string]any{
			"status":        domain.DeviceAuthApproved,
			"user_id":       userID,
			"session_token": sessionToken,
			"completed_at":  at,
		})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "device_auth", "approve", "error")
		return false, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "device_auth", "approve", "success")
	return res.RowsAffected > 0, nil
}

// MarkTerminal moves a pending row to Denied or Expired with the same
// compare-and-set guard as Approve.
func (r *GormDeviceAuthRepository) MarkTerminal(id uint, status domain.DeviceAuthStatus, at time.Time) (bool, error) {
	if !status.Terminal() {
		return false, errors.New("mark terminal requires a terminal status")
	}
	res := r.db.Model(&domain.DeviceAuthorization{}).
		Where("id = ? AND status = ?", id, domain.DeviceAuthPending).
		Updates(map[string]any{"status": status, "completed_at": at})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "device_auth", "mark_terminal", "error")
		return false, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "device_auth", "mark_terminal", "success")
	return res.RowsAffected > 0, nil
}

// DeleteFinished purges terminal rows past the retention window and pending
// rows whose code expiry is older than the window. Retention keeps recently
// approved rows around long enough for duplicate polls to stay idempotent.
func (r *GormDeviceAuthRepository) DeleteFinished(now time.Time, retention time.Duration) (int64, error) {
	cutoff := now.Add(-retention)
	res := r.db.
		Where("(status <> ? AND completed_at < ?) OR (status = ? AND expires_at < ?)",
			domain.DeviceAuthPending, cutoff, domain.DeviceAuthPending, cutoff).
		Delete(&domain.DeviceAuthorization{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "device_auth", "delete_finished", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "device_auth", "delete_finished", "success")
	return res.RowsAffected, nil
}

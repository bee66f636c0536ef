package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/perch-social/perch/internal/domain"
)

func newPendingDeviceAuth(t *testing.T, repo DeviceAuthRepository, hash string, expiresAt time.Time) *domain.DeviceAuthorization {
	t.Helper()
	d := &domain.DeviceAuthorization{
		DeviceCodeHash:  hash,
		UserCode:        "WXYZ-" + hash[4:],
		VerificationURI: "https://id.example.com/activate",
		Status:          domain.DeviceAuthPending,
		Interval:        5,
		ExpiresAt:       expiresAt,
	}
	if err := repo.Create(d); err != nil {
		t.Fatalf("create device auth: %v", err)
	}
	return d
}

func TestDeviceAuthRepositoryApproveIsCompareAndSet(t *testing.T) {
	repo := NewDeviceAuthRepository(newTestDB(t))
	d := newPendingDeviceAuth(t, repo, "hash0001", time.Now().Add(10*time.Minute))

	now := time.Now().UTC()
	changed, err := repo.Approve(d.ID, 42, "tok-first", now)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !changed {
		t.Fatal("expected first approve to transition the row")
	}

	changed, err = repo.Approve(d.ID, 99, "tok-second", now)
	if err != nil {
		t.Fatalf("second approve: %v", err)
	}
	if changed {
		t.Fatal("approved row must never transition again")
	}

	got, err := repo.FindByDeviceCodeHash("hash0001")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Status != domain.DeviceAuthApproved {
		t.Fatalf("unexpected status %q", got.Status)
	}
	if got.SessionToken != "tok-first" {
		t.Fatalf("expected the first minted token to stick, got %q", got.SessionToken)
	}
	if got.UserID == nil || *got.UserID != 42 {
		t.Fatalf("unexpected user id %v", got.UserID)
	}
}

func TestDeviceAuthRepositoryMarkTerminalOnlyFromPending(t *testing.T) {
	repo := NewDeviceAuthRepository(newTestDB(t))
	d := newPendingDeviceAuth(t, repo, "hash0002", time.Now().Add(10*time.Minute))

	now := time.Now().UTC()
	changed, err := repo.MarkTerminal(d.ID, domain.DeviceAuthDenied, now)
	if err != nil {
		t.Fatalf("mark denied: %v", err)
	}
	if !changed {
		t.Fatal("expected pending row to transition to denied")
	}

	changed, err = repo.MarkTerminal(d.ID, domain.DeviceAuthExpired, now)
	if err != nil {
		t.Fatalf("mark expired after denied: %v", err)
	}
	if changed {
		t.Fatal("terminal row must not transition again")
	}

	if _, err := repo.MarkTerminal(d.ID, domain.DeviceAuthPending, now); err == nil {
		t.Fatal("expected error when marking a non-terminal status")
	}
}

func TestDeviceAuthRepositoryDeleteFinishedHonorsRetention(t *testing.T) {
	db := newTestDB(t)
	repo := NewDeviceAuthRepository(db)
	now := time.Now().UTC()
	retention := 10 * time.Minute

	newPendingDeviceAuth(t, repo, "hashfres", now.Add(10*time.Minute))

	recentDone := newPendingDeviceAuth(t, repo, "hashrece", now.Add(10*time.Minute))
	if _, err := repo.Approve(recentDone.ID, 1, "tok-recent", now.Add(-time.Minute)); err != nil {
		t.Fatalf("approve recent: %v", err)
	}

	oldDone := newPendingDeviceAuth(t, repo, "hasholdd", now.Add(10*time.Minute))
	if _, err := repo.Approve(oldDone.ID, 2, "tok-old", now.Add(-time.Hour)); err != nil {
		t.Fatalf("approve old: %v", err)
	}

	newPendingDeviceAuth(t, repo, "hashstal", now.Add(-time.Hour))

	removed, err := repo.DeleteFinished(now, retention)
	if err != nil {
		t.Fatalf("delete finished: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 purged rows, got %d", removed)
	}

	if _, err := repo.FindByDeviceCodeHash("hashfres"); err != nil {
		t.Fatalf("fresh pending row should survive: %v", err)
	}
	if _, err := repo.FindByDeviceCodeHash("hashrece"); err != nil {
		t.Fatalf("recently approved row must stay for idempotent polls: %v", err)
	}
	if _, err := repo.FindByDeviceCodeHash("hasholdd"); !errors.Is(err, ErrDeviceAuthNotFound) {
		t.Fatalf("old terminal row should be purged, got %v", err)
	}
	if _, err := repo.FindByDeviceCodeHash("hashstal"); !errors.Is(err, ErrDeviceAuthNotFound) {
		t.Fatalf("stale pending row should be purged, got %v", err)
	}
}

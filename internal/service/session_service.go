package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/perch-social/perch/internal/domain"
	"github.com/perch-social/perch/internal/observability"
	"github.com/perch-social/perch/internal/repository"
	"github.com/perch-social/perch/internal/security"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// tokenMintAttempts bounds the retry loop on a token-hash uniqueness
// collision. With 122-bit tokens one retry is already astronomical.
const tokenMintAttempts = 3

type SessionService struct {
	sessions repository.SessionRepository
	users    repository.UserRepository
	cache    ValidationCacheStore
	pepper   string
	ttl      time.Duration
	cacheTTL time.Duration
}

func NewSessionService(
	sessions repository.SessionRepository,
	users repository.UserRepository,
	cache ValidationCacheStore,
	pepper string,
	ttl time.Duration,
	cacheTTL time.Duration,
) *SessionService {
	if cache == nil {
		cache = NewNoopValidationCacheStore()
	}
	if cacheTTL >= ttl {
		cacheTTL = ttl / 2
	}
	return &SessionService{
		sessions: sessions,
		users:    users,
		cache:    cache,
		pepper:   pepper,
		ttl:      ttl,
		cacheTTL: cacheTTL,
	}
}

// Create mints a session for the user and returns the plaintext token; only
// its hash is persisted. A uniqueness collision on the hash retries with a
// fresh token instead of overwriting.
func (s *SessionService) Create(userID uint) (string, *domain.Session, error) {
	for attempt := 0; attempt < tokenMintAttempts; attempt++ {
		token := security.NewSessionToken()
		sess := &domain.Session{
			TokenHash: security.HashToken(token, s.pepper),
			UserID:    userID,
			ExpiresAt: time.Now().UTC().Add(s.ttl),
		}
		err := s.sessions.Create(sess)
		if errors.Is(err, repository.ErrDuplicateSession) {
			slog.Warn("session token collision, regenerating", "attempt", attempt+1)
			continue
		}
		if err != nil {
			return "", nil, err
		}
		return token, sess, nil
	}
	return "", nil, fmt.Errorf("minting a unique session token failed after %d attempts", tokenMintAttempts)
}

// Validate resolves a token to its user. Expiry is checked here against the
// row itself; sweep timing is irrelevant. Storage errors propagate so the
// caller fails closed.
func (s *SessionService) Validate(ctx context.Context, token string) (*domain.User, error) {
	hash := security.HashToken(token, s.pepper)

	if userID, ok, err := s.cache.Get(ctx, hash); err != nil {
		slog.Warn("validation cache read failed, falling through to store", "error", err)
	} else if ok {
		user, err := s.users.FindByID(userID)
		if err == nil {
			observability.RecordSessionValidation("valid", "cache")
			return user, nil
		}
		// Cached user vanished: drop the entry and take the slow path.
		_ = s.cache.Invalidate(ctx, hash)
	}

	sess, err := s.sessions.FindByTokenHash(hash)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			observability.RecordSessionValidation("not_found", "store")
			return nil, ErrSessionNotFound
		}
		observability.RecordSessionValidation("error", "store")
		return nil, err
	}
	if sess.Expired(time.Now().UTC()) {
		observability.RecordSessionValidation("expired", "store")
		return nil, ErrSessionExpired
	}

	user, err := s.users.FindByID(sess.UserID)
	if err != nil {
		observability.RecordSessionValidation("error", "store")
		return nil, err
	}
	// The cached entry must never outlive the session itself, or an expired
	// token would keep validating until the cache entry lapses.
	if err := s.cache.Set(ctx, hash, user.ID, min(s.cacheTTL, time.Until(sess.ExpiresAt))); err != nil {
		slog.Warn("validation cache write failed", "error", err)
	}
	observability.RecordSessionValidation("valid", "store")
	return user, nil
}

// Logout deletes the session and drops any cached validation. Deleting an
// unknown token is a no-op.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	hash := security.HashToken(token, s.pepper)
	if err := s.sessions.DeleteByTokenHash(hash); err != nil {
		return err
	}
	return s.cache.Invalidate(ctx, hash)
}

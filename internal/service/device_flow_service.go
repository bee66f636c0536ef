package service

import (
	"context"
	"errors"
	"time"

	"github.com/perch-social/perch/internal/domain"
	"github.com/perch-social/perch/internal/observability"
	"github.com/perch-social/perch/internal/repository"
	"github.com/perch-social/perch/internal/security"
)

type StartResult struct {
	DeviceCode      string
	UserCode        string
	VerificationURI string
	ExpiresIn       int
	Interval        int
}

type PollResult struct {
	SessionToken string
	User         *domain.User
}

// DeviceFlowService proxies the provider's device-authorization handshake.
// The client never sees the provider's device code: we mint our own, hand it
// out, and keep the provider code server-side for upstream polling.
type DeviceFlowService struct {
	devices  repository.DeviceAuthRepository
	users    repository.UserRepository
	sessions *SessionService
	provider IdentityProvider
	pepper   string
}

func NewDeviceFlowService(
	devices repository.DeviceAuthRepository,
	users repository.UserRepository,
	sessions *SessionService,
	provider IdentityProvider,
	pepper string,
) *DeviceFlowService {
	return &DeviceFlowService{
		devices:  devices,
		users:    users,
		sessions: sessions,
		provider: provider,
		pepper:   pepper,
	}
}

// Start opens a handshake with the provider and records it as Pending. The
// user code and verification URI are the provider's, since approval happens
// there; the device code handed back is ours.
func (s *DeviceFlowService) Start(ctx context.Context) (*StartResult, error) {
	grant, err := s.provider.StartDeviceAuth(ctx)
	if err != nil {
		observability.RecordDeviceStart("provider_error")
		return nil, err
	}

	deviceCode := security.NewSessionToken()
	interval := int(grant.Interval / time.Second)
	if interval <= 0 {
		interval = 5
	}
	d := &domain.DeviceAuthorization{
		DeviceCodeHash:     security.HashToken(deviceCode, s.pepper),
		ProviderDeviceCode: grant.DeviceCode,
		UserCode:           grant.UserCode,
		VerificationURI:    grant.VerificationURI,
		Status:             domain.DeviceAuthPending,
		Interval:           interval,
		ExpiresAt:          grant.ExpiresAt.UTC(),
	}
	if err := s.devices.Create(d); err != nil {
		observability.RecordDeviceStart("store_error")
		return nil, err
	}

	observability.RecordDeviceStart("success")
	return &StartResult{
		DeviceCode:      deviceCode,
		UserCode:        d.UserCode,
		VerificationURI: d.VerificationURI,
		ExpiresIn:       int(time.Until(d.ExpiresAt) / time.Second),
		Interval:        interval,
	}, nil
}

// Poll advances one handshake. Terminal states are final: an approved code
// always returns the token minted on first approval, so retried exchanges
// never create a second session. An unknown device code reports expired
// rather than leaking whether it ever existed.
func (s *DeviceFlowService) Poll(ctx context.Context, deviceCode string) (*PollResult, error) {
	hash := security.HashToken(deviceCode, s.pepper)
	d, err := s.devices.FindByDeviceCodeHash(hash)
	if err != nil {
		if errors.Is(err, repository.ErrDeviceAuthNotFound) {
			observability.RecordDevicePoll("unknown")
			return nil, ErrExpiredToken
		}
		observability.RecordDevicePoll("store_error")
		return nil, err
	}

	now := time.Now().UTC()
	switch d.Status {
	case domain.DeviceAuthApproved:
		return s.approvedResult(d)
	case domain.DeviceAuthDenied:
		observability.RecordDevicePoll("denied")
		return nil, ErrAccessDenied
	case domain.DeviceAuthExpired:
		observability.RecordDevicePoll("expired")
		return nil, ErrExpiredToken
	}

	if d.Expired(now) {
		if _, err := s.devices.MarkTerminal(d.ID, domain.DeviceAuthExpired, now); err != nil {
			return nil, err
		}
		observability.RecordDevicePoll("expired")
		return nil, ErrExpiredToken
	}

	if d.LastPolledAt != nil && now.Sub(*d.LastPolledAt) < time.Duration(d.Interval)*time.Second {
		observability.RecordDevicePoll("slow_down")
		return nil, ErrSlowDown
	}
	if err := s.devices.TouchPoll(d.ID, now); err != nil {
		return nil, err
	}

	accessToken, err := s.provider.PollDeviceToken(ctx, d.ProviderDeviceCode)
	switch {
	case errors.Is(err, ErrAuthorizationPending):
		observability.RecordDevicePoll("pending")
		return nil, ErrAuthorizationPending
	case errors.Is(err, ErrSlowDown):
		observability.RecordDevicePoll("slow_down")
		return nil, ErrSlowDown
	case errors.Is(err, ErrAccessDenied):
		if _, err := s.devices.MarkTerminal(d.ID, domain.DeviceAuthDenied, now); err != nil {
			return nil, err
		}
		observability.RecordDevicePoll("denied")
		return nil, ErrAccessDenied
	case errors.Is(err, ErrExpiredToken):
		if _, err := s.devices.MarkTerminal(d.ID, domain.DeviceAuthExpired, now); err != nil {
			return nil, err
		}
		observability.RecordDevicePoll("expired")
		return nil, ErrExpiredToken
	case err != nil:
		observability.RecordDevicePoll("provider_error")
		return nil, err
	}

	profile, err := s.provider.FetchProfile(ctx, accessToken)
	if err != nil {
		observability.RecordDevicePoll("provider_error")
		return nil, err
	}
	user, err := s.users.GetOrCreate(profile.ExternalID, profile.Login)
	if err != nil {
		return nil, err
	}
	token, _, err := s.sessions.Create(user.ID)
	if err != nil {
		return nil, err
	}

	changed, err := s.devices.Approve(d.ID, user.ID, token, now)
	if err != nil {
		return nil, err
	}
	if !changed {
		// Lost the approve race: drop the session we just minted and hand
		// back whatever the winning poll recorded.
		if err := s.sessions.Logout(ctx, token); err != nil {
			return nil, err
		}
		d, err = s.devices.FindByDeviceCodeHash(hash)
		if err != nil {
			return nil, err
		}
		return s.approvedResult(d)
	}

	observability.RecordDevicePoll("approved")
	return &PollResult{SessionToken: token, User: user}, nil
}

func (s *DeviceFlowService) approvedResult(d *domain.DeviceAuthorization) (*PollResult, error) {
	if d.Status != domain.DeviceAuthApproved || d.UserID == nil || d.SessionToken == "" {
		observability.RecordDevicePoll("expired")
		return nil, ErrExpiredToken
	}
	user, err := s.users.FindByID(*d.UserID)
	if err != nil {
		return nil, err
	}
	observability.RecordDevicePoll("approved")
	return &PollResult{SessionToken: d.SessionToken, User: user}, nil
}

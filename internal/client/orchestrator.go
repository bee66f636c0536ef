package client

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// LoginNotice is shown to the user as soon as the handshake opens; approval
// happens in their browser against the verification URI.
type LoginNotice struct {
	UserCode        string
	VerificationURI string
}

type LoginResult struct {
	SessionToken string
	User         User
}

// Orchestrator drives the full login handshake: start, prompt, poll until a
// terminal outcome.
type Orchestrator struct {
	api    *APIClient
	notify func(LoginNotice)

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewOrchestrator(api *APIClient, notify func(LoginNotice)) *Orchestrator {
	if notify == nil {
		notify = func(LoginNotice) {}
	}
	return &Orchestrator{api: api, notify: notify, sleep: sleepCtx}
}

// Login runs the device flow to completion. slow_down responses stretch the
// polling interval by five seconds, as RFC 8628 prescribes; the loop gives
// up when the device code's lifetime runs out or the context is cancelled.
func (o *Orchestrator) Login(ctx context.Context) (*LoginResult, error) {
	start, err := o.api.StartDeviceFlow(ctx)
	if err != nil {
		return nil, fmt.Errorf("start device flow: %w", err)
	}
	o.notify(LoginNotice{UserCode: start.UserCode, VerificationURI: start.VerificationURI})

	interval := time.Duration(start.Interval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	deadline := time.Now().Add(time.Duration(start.ExpiresIn) * time.Second)

	for {
		if time.Now().After(deadline) {
			return nil, ErrExpiredCode
		}
		if err := o.sleep(ctx, interval); err != nil {
			return nil, err
		}

		outcome, err := o.api.PollDevice(ctx, start.DeviceCode)
		switch {
		case errors.Is(err, ErrAuthorizationPending):
			continue
		case errors.Is(err, ErrSlowDown):
			interval += 5 * time.Second
			continue
		case err != nil:
			return nil, err
		}
		return &LoginResult{SessionToken: outcome.SessionToken, User: outcome.User}, nil
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

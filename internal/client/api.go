package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Poll and auth outcomes surfaced by the server, mapped back to errors the
// login loop can branch on.
var (
	ErrAuthorizationPending = errors.New("authorization pending")
	ErrSlowDown             = errors.New("slow down")
	ErrAccessDenied         = errors.New("access denied")
	ErrExpiredCode          = errors.New("device code expired")
	ErrUnauthorized         = errors.New("unauthorized")
)

type APIClient struct {
	baseURL string
	http    *http.Client
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type DeviceStart struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

type User struct {
	ID    uint   `json:"id"`
	Login string `json:"login"`
}

type PollOutcome struct {
	SessionToken string `json:"session_token"`
	User         User   `json:"user"`
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *APIClient) StartDeviceFlow(ctx context.Context) (*DeviceStart, error) {
	var out DeviceStart
	if err := c.do(ctx, http.MethodPost, "/auth/device/start", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) PollDevice(ctx context.Context, deviceCode string) (*PollOutcome, error) {
	body := map[string]string{"device_code": deviceCode}
	var out PollOutcome
	if err := c.do(ctx, http.MethodPost, "/auth/device/poll", body, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) Validate(ctx context.Context, token string) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/validate", nil, token, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (c *APIClient) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, token, nil)
}

func (c *APIClient) do(ctx context.Context, method, path string, body any, token string, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("X-Session-Token", token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response from %s (status %d): %w", path, resp.StatusCode, err)
	}
	if env.Error != nil {
		if mapped := mapErrorCode(env.Error.Code); mapped != nil {
			return mapped
		}
		return fmt.Errorf("server error %s: %s", env.Error.Code, env.Error.Message)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode payload from %s: %w", path, err)
		}
	}
	return nil
}

func mapErrorCode(code string) error {
	switch code {
	case "authorization_pending":
		return ErrAuthorizationPending
	case "slow_down":
		return ErrSlowDown
	case "access_denied":
		return ErrAccessDenied
	case "expired_token":
		return ErrExpiredCode
	case "UNAUTHORIZED":
		return ErrUnauthorized
	default:
		return nil
	}
}

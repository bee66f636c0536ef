package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/perch-social/perch/internal/config"
	"github.com/perch-social/perch/internal/service"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

const deviceGrantType = "urn:ietf:params:oauth:grant-type:device_code"

// GitHubProvider drives GitHub's device-authorization endpoints. The start
// leg goes through x/oauth2; the poll leg is a direct token-endpoint call
// because oauth2.DeviceAccessToken blocks until the flow resolves, while we
// need single-shot polls that report pending and slow_down upward.
type GitHubProvider struct {
	oauth      *oauth2.Config
	profileURL string
	httpClient *http.Client
}

func NewGitHubProvider(cfg *config.Config) *GitHubProvider {
	return &GitHubProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ProviderClientID,
			ClientSecret: cfg.ProviderClientSecret,
			Endpoint: oauth2.Endpoint{
				DeviceAuthURL: cfg.ProviderDeviceAuthURL,
				TokenURL:      cfg.ProviderTokenURL,
			},
			Scopes: []string{"read:user"},
		},
		profileURL: cfg.ProviderProfileURL,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   15 * time.Second,
		},
	}
}

func (p *GitHubProvider) StartDeviceAuth(ctx context.Context) (*service.DeviceGrant, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	resp, err := p.oauth.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("device auth request: %w", err)
	}
	return &service.DeviceGrant{
		DeviceCode:      resp.DeviceCode,
		UserCode:        resp.UserCode,
		VerificationURI: resp.VerificationURI,
		Interval:        time.Duration(resp.Interval) * time.Second,
		ExpiresAt:       resp.Expiry,
	}, nil
}

type tokenEndpointResponse struct {
	AccessToken string `json:"access_token"`
	Error       string `json:"error"`
}

// PollDeviceToken performs one exchange attempt against the token endpoint
// and maps the RFC 8628 error codes onto the service sentinels.
func (p *GitHubProvider) PollDeviceToken(ctx context.Context, deviceCode string) (string, error) {
	form := url.Values{
		"client_id":     {p.oauth.ClientID},
		"client_secret": {p.oauth.ClientSecret},
		"device_code":   {deviceCode},
		"grant_type":    {deviceGrantType},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.oauth.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("token response: %w", err)
	}
	var parsed tokenEndpointResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("token response status %d: %w", resp.StatusCode, err)
	}

	switch parsed.Error {
	case "":
	case "authorization_pending":
		return "", service.ErrAuthorizationPending
	case "slow_down":
		return "", service.ErrSlowDown
	case "access_denied":
		return "", service.ErrAccessDenied
	case "expired_token":
		return "", service.ErrExpiredToken
	default:
		return "", fmt.Errorf("token endpoint error %q", parsed.Error)
	}
	if parsed.AccessToken == "" {
		return "", errors.New("token endpoint returned no access token")
	}
	return parsed.AccessToken, nil
}

type profileResponse struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

func (p *GitHubProvider) FetchProfile(ctx context.Context, accessToken string) (*service.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.profileURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile status: %d", resp.StatusCode)
	}

	var parsed profileResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("profile response: %w", err)
	}
	if parsed.ID == 0 || parsed.Login == "" {
		return nil, errors.New("missing required profile fields")
	}
	return &service.Profile{ExternalID: parsed.ID, Login: parsed.Login}, nil
}

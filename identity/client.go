// identity/client.go
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	logger "github.com/flowgate/api/logging"
	"github.com/flowgate/api/model"
)

// ErrProfileNotFound means the provider answered and the id or email does not
// exist. Transport and non-2xx failures are returned as ordinary errors so
// callers can tell "no such user" apart from "lookup failed".
var ErrProfileNotFound = errors.New("identity profile not found")

// Provider is the external identity system of record. This service never
// creates identity, it only caches what the provider returns.
type Provider interface {
	Resolve(ctx context.Context, userID string) (*model.IdentityProfile, error)
	ResolveByEmail(ctx context.Context, email string) (*model.IdentityProfile, error)
}

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ Provider = &HTTPClient{}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Resolve looks up a profile by the provider's own user id.
func (c *HTTPClient) Resolve(ctx context.Context, userID string) (*model.IdentityProfile, error) {
	endpoint := fmt.Sprintf("%s/users/%s", c.baseURL, url.PathEscape(userID))
	return c.fetchProfile(ctx, endpoint)
}

// ResolveByEmail looks up a profile by email. Used as the reconciliation
// fallback when a stored user id has gone stale.
func (c *HTTPClient) ResolveByEmail(ctx context.Context, email string) (*model.IdentityProfile, error) {
	endpoint := fmt.Sprintf("%s/users/by-email?email=%s", c.baseURL, url.QueryEscape(email))
	return c.fetchProfile(ctx, endpoint)
}

func (c *HTTPClient) fetchProfile(ctx context.Context, endpoint string) (*model.IdentityProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn("Identity provider lookup failed", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, fmt.Errorf("identity provider request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrProfileNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("identity provider returned status %d", resp.StatusCode)
	}

	var profile model.IdentityProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode identity profile: %w", err)
	}
	return &profile, nil
}

package rolesync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ngx-workshop/user-metadata-api/internal/usermeta"
)

const (
	defaultClientTimeout = 5 * time.Second
	bearerPrefix         = "Bearer "
)

var (
	errMissingBaseURL    = errors.New("rolesync: remote authority base url required")
	errMissingCookieName = errors.New("rolesync: access token cookie name required")
)

// ClientConfig configures the remote authority HTTP client.
type ClientConfig struct {
	BaseURL    string
	CookieName string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// AuthClient pushes role changes to the remote authority. The remote side is
// the system of record for role grants; this client only informs it of the
// locally committed value.
type AuthClient struct {
	baseURL    string
	cookieName string
	httpClient *http.Client
}

// NewAuthClient constructs a client for the remote authority.
func NewAuthClient(cfg ClientConfig) (*AuthClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errMissingBaseURL
	}
	cookieName := strings.TrimSpace(cfg.CookieName)
	if cookieName == "" {
		return nil, errMissingCookieName
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultClientTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &AuthClient{
		baseURL:    baseURL,
		cookieName: cookieName,
		httpClient: httpClient,
	}, nil
}

type rolePushPayload struct {
	UUID string `json:"uuid"`
	Role string `json:"role"`
}

// PushRole issues the propagation call. The caller's token is forwarded both
// as the access-token cookie and as a bearer header so either scheme the
// authority expects is satisfied. Any non-2xx response or transport failure
// is a propagation failure.
func (c *AuthClient) PushRole(ctx context.Context, uuid string, role usermeta.Role, token string) error {
	body, err := json.Marshal(rolePushPayload{UUID: uuid, Role: role.String()})
	if err != nil {
		return fmt.Errorf("rolesync: encode payload: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/role", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("rolesync: build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", bearerPrefix+token)
	request.AddCookie(&http.Cookie{Name: c.cookieName, Value: token})

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("rolesync: push role: %w", err)
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, response.Body)

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("rolesync: remote authority responded %d", response.StatusCode)
	}
	return nil
}

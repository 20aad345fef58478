package garmin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/stridehub/sync-server-go/internal/config"
)

var (
	// ErrTokenRejected means the provider rejected the refresh token
	// outright (HTTP 400/401). Terminal: the user must reconnect.
	ErrTokenRejected = errors.New("garmin rejected the refresh token")

	// ErrUnauthorized means the access token was not accepted on an
	// authenticated call. Terminal for the current token.
	ErrUnauthorized = errors.New("garmin rejected the access token")

	// ErrDuplicateRange means the backfill window was already processed
	// by the provider (HTTP 409).
	ErrDuplicateRange = errors.New("garmin already processed this backfill range")

	// ErrPermissionDenied means the user did not grant the required
	// permission scope (HTTP 403).
	ErrPermissionDenied = errors.New("garmin permission not granted")
)

const (
	tokenPath    = "/di-oauth2-service/oauth/token"
	backfillPath = "/wellness-api/rest/backfill/activities"
)

// TokenResponse is the provider's token endpoint payload.
type TokenResponse struct {
	AccessToken           string `json:"access_token"`
	RefreshToken          string `json:"refresh_token"`
	ExpiresIn             int    `json:"expires_in"`
	RefreshTokenExpiresIn int    `json:"refresh_token_expires_in"`
}

// API is the subset of the Garmin Connect API this service calls.
type API interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenResponse, error)
	RequestBackfill(ctx context.Context, accessToken string, startTS, endTS int64) error
}

type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

func NewClient(clientID, clientSecret, baseURL string) *Client {
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: config.GarminHTTPTimeout},
	}
}

// RefreshAccessToken exchanges a refresh token for a new token pair.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"refresh_token": {refreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+tokenPath, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		log.Warn().Int("status", resp.StatusCode).Msg("garmin token refresh rejected")
		return nil, ErrTokenRejected
	}
	if resp.StatusCode != http.StatusOK {
		log.Error().Int("status", resp.StatusCode).Msg("garmin token refresh failed")
		return nil, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token endpoint returned empty access token")
	}

	return &tokenResp, nil
}

// RequestBackfill asks the provider to push historical summaries for one time
// window. The data arrives later through the webhook, not in this response.
func (c *Client) RequestBackfill(ctx context.Context, accessToken string, startTS, endTS int64) error {
	params := url.Values{
		"summaryStartTimeInSeconds": {strconv.FormatInt(startTS, 10)},
		"summaryEndTimeInSeconds":   {strconv.FormatInt(endTS, 10)},
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+backfillPath+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create backfill request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backfill request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
		return nil
	case http.StatusConflict:
		return ErrDuplicateRange
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrPermissionDenied
	default:
		return fmt.Errorf("backfill endpoint returned status %d", resp.StatusCode)
	}
}

package pixivapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TokenResponse is the upstream OAuth token endpoint's payload (§6.4:
// "POST to the refresh endpoint with the stored refresh token").
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`

	// User carries the upstream account record returned alongside the
	// token; pixback only reads ID, but the full record round-trips.
	User User `json:"user"`
}

type tokenEnvelope struct {
	TokenResponse
	// Some upstream deployments nest the payload under "response".
	Response *TokenResponse `json:"response"`
}

// RefreshToken exchanges a refresh token for a fresh access token. It is
// the sole OAuth operation pixback performs — there is no interactive
// authorization-code flow, since the daemon is provisioned with a
// long-lived refresh token up front (§6.3, `pixbackd test`).
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, fmt.Errorf("refresh token is empty")
	}

	form := url.Values{}
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("get_secure_url", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authHost()+"/auth/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, newStatusError(resp)
	}

	var env tokenEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}

	tok := env.TokenResponse
	if env.Response != nil {
		tok = *env.Response
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("token response carried no access_token")
	}
	return &tok, nil
}

// ExpiresAt converts the response's relative expires_in into an absolute
// deadline, anchored at the moment the caller supplies (normally the
// instant the response was received).
func (t *TokenResponse) ExpiresAt(now time.Time) time.Time {
	if t.ExpiresIn <= 0 {
		return now
	}
	return now.Add(time.Duration(t.ExpiresIn) * time.Second)
}

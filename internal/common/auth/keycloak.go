// internal/common/auth/keycloak.go
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"travel-concierge/internal/common/errors"
)

// KeycloakClient talks to the Keycloak admin REST API with a service-account token.
type KeycloakClient struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// User represents a user in Keycloak.
type User struct {
	ID               string `json:"id,omitempty"`
	Email            string `json:"email"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Username         string `json:"username"`
	Enabled          bool   `json:"enabled"`
	EmailVerified    bool   `json:"emailVerified"`
	CreatedTimestamp int64  `json:"createdTimestamp,omitempty"`
}

// TokenResponse holds the response from Keycloak's token endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func NewKeycloakClient(baseURL, realm, clientID, clientSecret string) *KeycloakClient {
	return &KeycloakClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// getAccessToken fetches a token with the client credentials flow and caches it until expiry.
func (k *KeycloakClient) getAccessToken(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.accessToken != "" && k.tokenExpiry.After(time.Now()) {
		return k.accessToken, nil
	}

	tokenURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", k.baseURL, k.realm)

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("keycloak token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	k.accessToken = tokenResp.AccessToken
	// refresh a little early so an in-flight call never carries an expired token
	k.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - 10*time.Second)

	return k.accessToken, nil
}

// ListUsers returns one page of realm users. first is a zero-based offset.
func (k *KeycloakClient) ListUsers(ctx context.Context, search string, first, max int) ([]User, error) {
	q := url.Values{}
	q.Set("first", fmt.Sprint(first))
	q.Set("max", fmt.Sprint(max))
	q.Set("briefRepresentation", "false")
	if search != "" {
		q.Set("search", search)
	}

	var users []User
	if err := k.adminCall(ctx, "list_users", http.MethodGet, "/users?"+q.Encode(), nil, http.StatusOK, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CountUsers returns the total number of users matching search.
func (k *KeycloakClient) CountUsers(ctx context.Context, search string) (int, error) {
	path := "/users/count"
	if search != "" {
		path += "?search=" + url.QueryEscape(search)
	}
	var count int
	if err := k.adminCall(ctx, "count_users", http.MethodGet, path, nil, http.StatusOK, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// GetUser retrieves a user by their unique ID.
func (k *KeycloakClient) GetUser(ctx context.Context, userID string) (*User, error) {
	var user User
	if err := k.adminCall(ctx, "get_user", http.MethodGet, "/users/"+url.PathEscape(userID), nil, http.StatusOK, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail looks a user up with an exact email match.
func (k *KeycloakClient) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var users []User
	path := "/users?exact=true&email=" + url.QueryEscape(email)
	if err := k.adminCall(ctx, "search_user", http.MethodGet, path, nil, http.StatusOK, &users); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, errors.NewResourceNotFoundError("keycloak", fmt.Sprintf("no user found with email: %s", email))
	}
	return &users[0], nil
}

// SetUserEnabled enables or disables a user account.
func (k *KeycloakClient) SetUserEnabled(ctx context.Context, userID string, enabled bool) error {
	body := map[string]interface{}{"enabled": enabled}
	return k.adminCall(ctx, "update_user", http.MethodPut, "/users/"+url.PathEscape(userID), body, http.StatusNoContent, nil)
}

// SendVerifyEmail asks Keycloak to resend the account confirmation email.
func (k *KeycloakClient) SendVerifyEmail(ctx context.Context, userID string) error {
	path := fmt.Sprintf("/users/%s/send-verify-email", url.PathEscape(userID))
	if k.clientID != "" {
		path += "?client_id=" + url.QueryEscape(k.clientID)
	}
	return k.adminCall(ctx, "send_verify_email", http.MethodPut, path, nil, http.StatusNoContent, nil)
}

// Ping checks the realm is reachable with the configured credentials.
func (k *KeycloakClient) Ping(ctx context.Context) error {
	if _, err := k.getAccessToken(ctx); err != nil {
		return errors.NewIdentityProviderError("token", err)
	}
	return nil
}

func (k *KeycloakClient) adminCall(ctx context.Context, op, method, path string, in interface{}, wantStatus int, out interface{}) error {
	token, err := k.getAccessToken(ctx)
	if err != nil {
		return errors.NewIdentityProviderError(op, err)
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return errors.NewInvalidPayloadError(err.Error())
		}
		body = bytes.NewReader(payload)
	}

	reqURL := fmt.Sprintf("%s/admin/realms/%s%s", k.baseURL, k.realm, path)
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return errors.NewIdentityProviderError(op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return errors.NewIdentityProviderError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errors.NewResourceNotFoundError("keycloak", fmt.Sprintf("%s %s", method, path))
	}
	if resp.StatusCode != wantStatus {
		raw, _ := io.ReadAll(resp.Body)
		stdErr := errors.NewIdentityProviderError(op, fmt.Errorf("status %d: %s", resp.StatusCode, string(raw)))
		stdErr.Retryable = isTransientHTTPError(resp.StatusCode)
		return stdErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewIdentityProviderError(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func isTransientHTTPError(statusCode int) bool {
	switch statusCode {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

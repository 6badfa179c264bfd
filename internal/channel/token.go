package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	_maxResponseSize = 64 * 1024
	loginEndpoint    = "api/accounts/login/"
)

// Authenticator obtains the token sent on the websocket handshake
type Authenticator struct {
	logger   *zap.Logger
	client   *http.Client
	baseURL  string
	login    string
	password string
	token    string
}

// NewAuthenticator creates an authenticator. A static token skips the login
// request; without token nor login the handshake is anonymous.
func NewAuthenticator(logger *zap.Logger, baseURL, login, password, token string) *Authenticator {
	return &Authenticator{
		logger: logger,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:  baseURL,
		login:    login,
		password: password,
		token:    token,
	}
}

// Header returns the handshake headers, logging in when needed
func (a *Authenticator) Header(ctx context.Context) (http.Header, error) {
	header := http.Header{}
	header.Set("User-Agent", "karaplayer/1.0")

	if a.token == "" && a.login != "" {
		token, err := a.Login(ctx)
		if err != nil {
			return nil, err
		}
		a.token = token
	}
	if a.token != "" {
		header.Set("Authorization", "Token "+a.token)
	}
	return header, nil
}

// Login exchanges the credentials for a token
func (a *Authenticator) Login(ctx context.Context) (string, error) {
	endpoint, err := joinURL(a.baseURL, loginEndpoint)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(map[string]string{
		"username": a.login,
		"password": a.password,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "karaplayer/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login refused: unexpected status code: %d", resp.StatusCode)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, _maxResponseSize)).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode login response: %w", err)
	}
	if payload.Token == "" {
		return "", fmt.Errorf("login response has no token")
	}

	a.logger.Info("Logged in to server", zap.String("login", a.login))
	return payload.Token, nil
}

// Reset forgets a token obtained by login, so the next handshake logs in again
func (a *Authenticator) Reset() {
	if a.login != "" {
		a.token = ""
	}
}

func joinURL(base, endpoint string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server address %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid server address %q", base)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(endpoint, "/")
	return u.String(), nil
}

// WebsocketURL derives the websocket address from the HTTP server address
func WebsocketURL(base, endpoint string) (string, error) {
	raw, err := joinURL(base, endpoint)
	if err != nil {
		return "", err
	}
	u, _ := url.Parse(raw)
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}

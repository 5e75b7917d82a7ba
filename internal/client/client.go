// Package client talks to the session authority over HTTP the way the
// terminal page does: cookie-carried session, JSON bodies.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"github.com/DrorShokoPeer/ttydx/internal/auth"
)

const defaultTimeout = 10 * time.Second

// Status is the caller's view of its own session.
type Status struct {
	Authenticated bool
	User          *auth.PrincipalInfo
}

// LoginResult is a successful login response.
type LoginResult struct {
	Redirect string
	User     auth.PrincipalInfo
}

// Client holds the session cookie between calls.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the gateway at baseURL. A nil httpClient gets a
// default with its own cookie jar.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		jar, _ := cookiejar.New(nil)
		httpClient = &http.Client{Timeout: defaultTimeout, Jar: jar}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.httpClient.Do(req)
}

func httpError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%s: HTTP %d: %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
}

// Status asks whether the held session is valid. Any failure reports
// unauthenticated along with the error.
func (c *Client) Status(ctx context.Context) (Status, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/auth/status", nil)
	if err != nil {
		return Status{}, fmt.Errorf("auth status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Status{}, httpError("auth status", resp)
	}

	var body struct {
		Authenticated bool                `json:"authenticated"`
		User          *auth.PrincipalInfo `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Status{}, fmt.Errorf("auth status: decode: %w", err)
	}
	if !body.Authenticated {
		return Status{}, nil
	}
	return Status{Authenticated: true, User: body.User}, nil
}

// Login submits credentials. 400, 401 and 429 map to auth.ErrBadRequest,
// auth.ErrInvalidCredentials and *auth.ErrRateLimited.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/login", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadRequest:
		return nil, auth.ErrBadRequest
	case http.StatusUnauthorized:
		return nil, auth.ErrInvalidCredentials
	case http.StatusTooManyRequests:
		retry := time.Second
		if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && s > 0 {
			retry = time.Duration(s) * time.Second
		}
		return nil, &auth.ErrRateLimited{RetryAfter: retry}
	default:
		return nil, httpError("login", resp)
	}

	var body struct {
		Success  bool               `json:"success"`
		Redirect string             `json:"redirect"`
		User     auth.PrincipalInfo `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("login: decode: %w", err)
	}
	if !body.Success {
		return nil, fmt.Errorf("login: server reported failure")
	}
	return &LoginResult{Redirect: body.Redirect, User: body.User}, nil
}

// Logout ends the session and returns the redirect target.
func (c *Client) Logout(ctx context.Context) (string, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/logout", nil)
	if err != nil {
		return "", fmt.Errorf("logout: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", httpError("logout", resp)
	}
	var body struct {
		Redirect string `json:"redirect"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("logout: decode: %w", err)
	}
	return body.Redirect, nil
}

// Package client talks to the storefront API and keeps a shopper's local
// state (tokens, cart, favorites, history) in a Store.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"storefront/entities"
	"storefront/telemetry"
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// Tokens is the persisted sign-in state.
type Tokens struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	ExpiresAt    time.Time     `json:"expiresAt"`
	User         entities.User `json:"user"`
}

type Client struct {
	baseURL string
	http    *http.Client
	store   Store
	// refreshMu serializes token refreshes between concurrent requests.
	refreshMu sync.Mutex
}

// New returns a client for the API at baseURL. transport may be nil.
func New(baseURL string, store Store, transport http.RoundTripper) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: telemetry.Transport(transport),
			Timeout:   30 * time.Second,
		},
		store: store,
	}
}

func (c *Client) tokens() (Tokens, error) {
	var t Tokens
	_, err := c.store.Load(KeyAuth, &t)
	return t, err
}

func (c *Client) setTokens(res entities.AuthResponse) error {
	return c.store.Save(KeyAuth, Tokens{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    res.ExpiresAt,
		User:         res.User,
	})
}

func (c *Client) clearTokens() error {
	return c.store.Delete(KeyAuth)
}

// CurrentUser returns the signed-in user from local state.
func (c *Client) CurrentUser() (entities.User, bool) {
	t, err := c.tokens()
	if err != nil || t.AccessToken == "" {
		return entities.User{}, false
	}
	return t.User, true
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload []byte, accessToken string) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	return req, nil
}

// Do sends a JSON request and decodes a JSON answer into out, which may be
// nil. A 401 on a signed-in client triggers one token refresh and one retry
// of the same request. If the refresh fails the stored tokens are dropped and
// the original 401 is returned.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	return c.send(ctx, method, path, in, out, true)
}

// send is Do with the token handling optional. Sign-in calls go out without a
// bearer token and never trigger a refresh.
func (c *Client) send(ctx context.Context, method, path string, in, out any, withAuth bool) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	var tok Tokens
	if withAuth {
		var err error
		if tok, err = c.tokens(); err != nil {
			return err
		}
	}

	req, err := c.newRequest(ctx, method, path, payload, tok.AccessToken)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized && tok.RefreshToken != "" {
		original := readError(resp)
		fresh, ok := c.refresh(ctx, tok.AccessToken)
		if !ok {
			return original
		}
		if req.GetBody != nil {
			if req.Body, err = req.GetBody(); err != nil {
				return fmt.Errorf("reset request body for retry: %w", err)
			}
		}
		req.Header.Set("Authorization", "Bearer "+fresh)
		if resp, err = c.http.Do(req); err != nil {
			return err
		}
	}
	return decodeResponse(resp, out)
}

// refresh trades the stored refresh token for a new pair. When another request
// already refreshed since staleAccess was read, the newer token is used as is.
func (c *Client) refresh(ctx context.Context, staleAccess string) (string, bool) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	tok, err := c.tokens()
	if err != nil || tok.RefreshToken == "" {
		return "", false
	}
	if tok.AccessToken != "" && tok.AccessToken != staleAccess {
		return tok.AccessToken, true
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/auth/refresh", mustJSON(map[string]string{"refreshToken": tok.RefreshToken}), "")
	if err != nil {
		return "", false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("refresh: %v", err)
		return "", false
	}
	var res entities.AuthResponse
	if err = decodeResponse(resp, &res); err != nil {
		log.Printf("refresh: %v", err)
		if e := c.clearTokens(); e != nil {
			log.Printf("refresh: %v", e)
		}
		return "", false
	}
	if err = c.setTokens(res); err != nil {
		log.Printf("refresh: %v", err)
		return "", false
	}
	return res.AccessToken, true
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func readError(resp *http.Response) *APIError {
	defer resp.Body.Close()
	apiErr := &APIError{Status: resp.StatusCode}
	var msg entities.MessageResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if json.Unmarshal(data, &msg) == nil {
		apiErr.Message = msg.Message
	}
	return apiErr
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readError(resp)
	}
	defer resp.Body.Close()
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if w, ok := out.(io.Writer); ok {
		_, err := io.Copy(w, resp.Body)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Package client talks to a postroom daemon over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/postroom/postroom/models"
	"github.com/postroom/postroom/pkg/robusthttp"
	"github.com/postroom/postroom/postcache"
)

// Error is a non-2xx response from the daemon.
type Error struct {
	StatusCode int
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("postroom: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("postroom: HTTP %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsCode reports whether err is an *Error with the given error code.
func IsCode(err error, code string) bool {
	var cerr *Error
	return errors.As(err, &cerr) && cerr.Code == code
}

type PostStats struct {
	OwnerID    models.Uid      `json:"user_id"`
	TotalPosts int64           `json:"total_posts"`
	CacheInfo  postcache.Stats `json:"cache_info"`
}

type Client struct {
	Host  string
	Token string

	// AdminPassword is sent as basic auth on /admin requests
	AdminPassword string

	HTTP *http.Client
}

func New(host string) *Client {
	return &Client{
		Host: strings.TrimSuffix(host, "/"),
		HTTP: robusthttp.NewClient(),
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Host+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if strings.HasPrefix(path, "/admin/") {
		req.SetBasicAuth("admin", c.AdminPassword)
	} else if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		cerr := &Error{StatusCode: resp.StatusCode}
		// best effort; not every failure has a JSON body
		_ = json.NewDecoder(resp.Body).Decode(cerr)
		return cerr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Signup registers an account and keeps the returned token on the client.
func (c *Client) Signup(ctx context.Context, email, password string) error {
	var out tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/signup", credentials{email, password}, &out); err != nil {
		return err
	}
	c.Token = out.AccessToken
	return nil
}

// Login keeps the returned token on the client.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var out tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", credentials{email, password}, &out); err != nil {
		return err
	}
	c.Token = out.AccessToken
	return nil
}

func (c *Client) CreatePost(ctx context.Context, text string) (*models.Post, error) {
	var out models.Post
	if err := c.do(ctx, http.MethodPost, "/posts", map[string]string{"text": text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListPosts(ctx context.Context) ([]models.Post, error) {
	var out []models.Post
	if err := c.do(ctx, http.MethodGet, "/posts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeletePost(ctx context.Context, postID uint64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/posts/%d", postID), nil, nil)
}

func (c *Client) Stats(ctx context.Context) (*PostStats, error) {
	var out PostStats
	if err := c.do(ctx, http.MethodGet, "/posts/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdminDeleteAccount(ctx context.Context, owner models.Uid) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/admin/accounts/%d", owner), nil, nil)
}

func (c *Client) AdminPurgeCache(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/admin/cache/purge", nil, nil)
}

// Health returns nil when the daemon reports itself healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/_health", nil, nil)
}

// Package sessions is the HTTP client for the remote session store, which keeps
// the single active study session keyed by its Slack message timestamp.
//
// Every call is one request/response round trip with no retries. Failures are
// logged here and returned so callers can treat them as "absent".
package sessions

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"github.com/onnwee/study-bridge/telemetry"
)

// Session is the remote record of one study session.
type Session struct {
	Ref             string    `json:"slack_timestamp"`
	CreatedAt       time.Time `json:"created_at"`
	JoinedMemberIDs []string  `json:"joined_member_ids"`
}

// CreateParams is the body of POST /sessions.
type CreateParams struct {
	JoinedMemberIDs []string `json:"joined_member_ids"`
	Ref             string   `json:"slack_timestamp"`
}

// UpdateParams is the body of PUT /sessions/{ref}.
type UpdateParams struct {
	JoinedMemberIDs []string `json:"joined_member_ids"`
}

// Client talks to the session store API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// EncodeKey derives the bearer credential the store expects from the raw API key.
func EncodeKey(apiKey string) string {
	return base64.StdEncoding.EncodeToString([]byte(apiKey))
}

// New returns a Client whose requests carry the bearer credential for apiKey.
// A zero timeout leaves requests bounded only by their context.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: EncodeKey(apiKey), TokenType: "Bearer"})
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: timeout,
			Transport: &oauth2.Transport{
				Source: src,
				Base:   otelhttp.NewTransport(http.DefaultTransport),
			},
		},
	}
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// GetLatest returns the current session. It returns (nil, nil) when the store
// has no session.
func (c *Client) GetLatest(ctx context.Context) (*Session, error) {
	var s *Session
	err := c.do(ctx, "get_latest", http.MethodGet, "/sessions/latest", nil, &s)
	if Classify(err) == ErrorKindNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if s == nil || s.Ref == "" {
		return nil, nil
	}
	return s, nil
}

// Create stores a new session and returns its ref. The store may echo the
// created record; when it does not, the ref that was sent is returned.
func (c *Client) Create(ctx context.Context, p CreateParams) (string, error) {
	if p.Ref == "" {
		return "", fmt.Errorf("create session: empty ref")
	}
	var s *Session
	if err := c.do(ctx, "create", http.MethodPost, "/sessions", p, &s); err != nil {
		return "", err
	}
	if s != nil && s.Ref != "" {
		return s.Ref, nil
	}
	return p.Ref, nil
}

// Update replaces the membership of the session identified by ref.
func (c *Client) Update(ctx context.Context, ref string, p UpdateParams) (*Session, error) {
	if ref == "" {
		return nil, fmt.Errorf("update session: empty ref")
	}
	var s *Session
	if err := c.do(ctx, "update", http.MethodPut, "/sessions/"+url.PathEscape(ref), p, &s); err != nil {
		return nil, err
	}
	return s, nil
}

// Delete removes the session identified by ref.
func (c *Client) Delete(ctx context.Context, ref string) error {
	if ref == "" {
		return fmt.Errorf("delete session: empty ref")
	}
	return c.do(ctx, "delete", http.MethodDelete, "/sessions/"+url.PathEscape(ref), nil, nil)
}

// do performs one round trip. out may be nil; an empty 200 body leaves it untouched.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) (err error) {
	defer func() {
		telemetry.CountStore(op, err)
		if err == nil {
			return
		}
		lvl := slog.LevelWarn
		if Classify(err) == ErrorKindNotFound {
			lvl = slog.LevelDebug
		}
		telemetry.LoggerWithCorr(ctx).Log(ctx, lvl, "session store request failed",
			slog.String("component", "session_store"),
			slog.String("op", op),
			slog.String("kind", Classify(err).String()),
			slog.Any("err", err))
	}()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http().Do(req)
	if err != nil {
		return fmt.Errorf("session store %s: %w", op, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

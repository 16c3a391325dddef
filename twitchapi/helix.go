// Package twitchapi contains minimal helpers for the Twitch Helix API, used to
// turn chat logins into display names.
package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

// DefaultHelixURL is the Helix API root.
const DefaultHelixURL = "https://api.twitch.tv/helix"

// maxLoginsPerRequest is the Helix limit for repeated login parameters.
const maxLoginsPerRequest = 100

// User is a Helix user record.
type User struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

// HelixClient calls Helix with an app access token.
type HelixClient struct {
	ClientID   string
	BaseURL    string
	HTTPClient *http.Client
}

// NewHelixClient returns a client whose requests are authorized by src.
func NewHelixClient(clientID string, src oauth2.TokenSource) *HelixClient {
	return &HelixClient{
		ClientID: clientID,
		BaseURL:  DefaultHelixURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &oauth2.Transport{
				Source: oauth2.ReuseTokenSource(nil, src),
				Base:   otelhttp.NewTransport(http.DefaultTransport),
			},
		},
	}
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) baseURL() string {
	if hc.BaseURL == "" {
		return DefaultHelixURL
	}
	return strings.TrimRight(hc.BaseURL, "/")
}

// GetUsers looks up users by login. Unknown logins are simply absent from the
// result.
func (hc *HelixClient) GetUsers(ctx context.Context, logins []string) ([]User, error) {
	if len(logins) == 0 {
		return nil, fmt.Errorf("logins empty")
	}
	if len(logins) > maxLoginsPerRequest {
		return nil, fmt.Errorf("too many logins: %d > %d", len(logins), maxLoginsPerRequest)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hc.baseURL()+"/users", nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	for _, l := range logins {
		q.Add("login", strings.ToLower(l))
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", hc.ClientID)
	resp, err := hc.http().Do(req)
	if err != nil {
		return nil, fmt.Errorf("helix users: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("helix users: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	var body struct {
		Data []User `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode helix users: %w", err)
	}
	return body.Data, nil
}

// NameResolver resolves chat logins to Helix display names and caches hits.
// It satisfies names.Resolver.
type NameResolver struct {
	helix *HelixClient

	mu    sync.RWMutex
	cache map[string]string
}

// NewNameResolver returns a resolver backed by hc.
func NewNameResolver(hc *HelixClient) *NameResolver {
	return &NameResolver{helix: hc, cache: make(map[string]string)}
}

// DisplayName returns the display name for login.
func (r *NameResolver) DisplayName(ctx context.Context, login string) (string, bool) {
	login = strings.ToLower(login)
	if login == "" {
		return "", false
	}
	r.mu.RLock()
	n, ok := r.cache[login]
	r.mu.RUnlock()
	if ok {
		return n, true
	}

	users, err := r.helix.GetUsers(ctx, []string{login})
	if err != nil {
		slog.Debug("helix user lookup failed", slog.String("component", "twitchapi"), slog.String("login", login), slog.Any("err", err))
		return "", false
	}
	for _, u := range users {
		if strings.EqualFold(u.Login, login) && u.DisplayName != "" {
			r.mu.Lock()
			r.cache[login] = u.DisplayName
			r.mu.Unlock()
			return u.DisplayName, true
		}
	}
	return "", false
}

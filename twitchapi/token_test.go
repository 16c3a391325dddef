package twitchapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func tokenServer(t *testing.T, expiresIn int, tokens ...string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "client_credentials" {
			t.Errorf("grant_type = %q", r.PostForm.Get("grant_type"))
		}
		tok := tokens[len(tokens)-1]
		if n <= len(tokens) {
			tok = tokens[n-1]
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": tok, "expires_in": expiresIn, "token_type": "bearer"})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestTokenSource_Cached(t *testing.T) {
	srv, calls := tokenServer(t, 3600, "test-token-123")
	ts := &TokenSource{ClientID: "test-client", ClientSecret: "test-secret", TokenURL: srv.URL}

	token1, err := ts.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token1.AccessToken != "test-token-123" {
		t.Errorf("Token() = %s, want test-token-123", token1.AccessToken)
	}
	token2, err := ts.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token2.AccessToken != token1.AccessToken {
		t.Errorf("cached token = %s, want %s", token2.AccessToken, token1.AccessToken)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 API call, got %d", calls.Load())
	}
}

func TestTokenSource_RefreshesNearExpiry(t *testing.T) {
	// Tokens inside the one minute buffer are treated as expired.
	srv, calls := tokenServer(t, 30, "test-token-1", "test-token-2")
	ts := &TokenSource{ClientID: "test-client", ClientSecret: "test-secret", TokenURL: srv.URL}

	token1, err := ts.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	token2, err := ts.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token1.AccessToken != "test-token-1" || token2.AccessToken != "test-token-2" {
		t.Errorf("tokens = %s, %s; want test-token-1, test-token-2", token1.AccessToken, token2.AccessToken)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 API calls, got %d", calls.Load())
	}
}

func TestTokenSource_BearerWithExpiry(t *testing.T) {
	srv, _ := tokenServer(t, 3600, "oauth-token")
	ts := &TokenSource{ClientID: "test-client", ClientSecret: "test-secret", TokenURL: srv.URL}

	tok, err := ts.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok.AccessToken != "oauth-token" || tok.Type() != "Bearer" {
		t.Errorf("Token() = %+v", tok)
	}
	if time.Until(tok.Expiry) < 59*time.Minute {
		t.Errorf("expiry too soon: %v", tok.Expiry)
	}
}

func TestTokenSource_MissingCredentials(t *testing.T) {
	ts := &TokenSource{}
	_, err := ts.Token()
	if err == nil || !strings.Contains(err.Error(), "missing client id/secret") {
		t.Errorf("Token() error = %v, want error about missing credentials", err)
	}
}

func TestTokenSource_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer srv.Close()

	ts := &TokenSource{ClientID: "bad-client", ClientSecret: "bad-secret", TokenURL: srv.URL}
	_, err := ts.Token()
	if err == nil || !strings.Contains(err.Error(), "invalid_client") {
		t.Errorf("Token() error = %v, want server error body", err)
	}
}

func TestTokenSource_EmptyToken(t *testing.T) {
	srv, _ := tokenServer(t, 3600, "")
	ts := &TokenSource{ClientID: "test-client", ClientSecret: "test-secret", TokenURL: srv.URL}

	_, err := ts.Token()
	if err == nil || !strings.Contains(err.Error(), "access_token") {
		t.Errorf("Token() error = %v, want error about missing access_token", err)
	}
}

func TestTokenSource_ConcurrentAccess(t *testing.T) {
	srv, calls := tokenServer(t, 3600, "test-token")
	ts := &TokenSource{ClientID: "test-client", ClientSecret: "test-secret", TokenURL: srv.URL}

	results := make(chan string, 5)
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		go func() {
			token, err := ts.Token()
			if err != nil {
				errs <- err
				return
			}
			results <- token.AccessToken
		}()
	}
	for i := 0; i < 5; i++ {
		select {
		case err := <-errs:
			t.Errorf("Token() error = %v", err)
		case token := <-results:
			if token != "test-token" {
				t.Errorf("Token() = %s, want test-token", token)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for concurrent Token calls")
		}
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 API call with concurrent access, got %d", calls.Load())
	}
}

package twitchapi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultTokenURL is the Twitch client credentials endpoint.
const DefaultTokenURL = "https://id.twitch.tv/oauth2/token"

// tokenExpiryBuffer is how long before expiry a cached app token is replaced.
const tokenExpiryBuffer = time.Minute

// TokenSource hands out a Twitch app access (client credentials) token and
// fetches a new one shortly before the cached one expires. Safe for
// concurrent use. App tokens cannot be used for IRC; chat needs the bot's
// user token.
type TokenSource struct {
	ClientID     string
	ClientSecret string
	// TokenURL defaults to DefaultTokenURL.
	TokenURL   string
	HTTPClient *http.Client

	once sync.Once
	src  oauth2.TokenSource
}

// Token implements oauth2.TokenSource.
func (ts *TokenSource) Token() (*oauth2.Token, error) {
	if ts.ClientID == "" || ts.ClientSecret == "" {
		return nil, errors.New("missing client id/secret for twitch app token")
	}
	ts.once.Do(func() {
		tokenURL := ts.TokenURL
		if tokenURL == "" {
			tokenURL = DefaultTokenURL
		}
		f := &appTokenFetcher{
			cfg: clientcredentials.Config{
				ClientID:     ts.ClientID,
				ClientSecret: ts.ClientSecret,
				TokenURL:     tokenURL,
				AuthStyle:    oauth2.AuthStyleInParams,
			},
			hc: ts.HTTPClient,
		}
		ts.src = oauth2.ReuseTokenSourceWithExpiry(nil, f, tokenExpiryBuffer)
	})
	return ts.src.Token()
}

// appTokenFetcher requests a new token on every call; caching is left to the
// wrapping ReuseTokenSource.
type appTokenFetcher struct {
	cfg clientcredentials.Config
	hc  *http.Client
}

func (f *appTokenFetcher) Token() (*oauth2.Token, error) {
	ctx := context.Background()
	if f.hc != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, f.hc)
	}
	return f.cfg.Token(ctx)
}

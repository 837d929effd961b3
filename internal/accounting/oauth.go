package accounting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

// tokenSkew is subtracted from a token's reported expiry so callers never
// hand out a token that is about to expire mid-flight (spec §4.3: "expiry
// minus 5 minutes skew").
const tokenSkew = 5 * time.Minute

// TokenProvider hands out a valid OAuth access token, refreshing it at
// most once across any number of concurrent callers. It is the single
// shared instance spec §5 describes, guarded by a refresh latch.
type TokenProvider struct {
	cfg   clientcredentials.Config
	mu    sync.RWMutex
	group singleflight.Group

	cached *oauth2.Token
}

// NewTokenProvider builds a provider against the accounting system's token
// endpoint using the long-lived client credentials held by the credential
// store (out of scope; passed in here as clientID/clientSecret).
func NewTokenProvider(tokenURL, clientID, clientSecret string, scopes []string) *TokenProvider {
	return &TokenProvider{
		cfg: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       scopes,
		},
	}
}

// Token returns a valid access token, refreshing under a single-flight
// latch if the cached token is missing or within the expiry skew window.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.RLock()
	tok := p.cached
	p.mu.RUnlock()

	if tokenFresh(tok) {
		return tok.AccessToken, nil
	}

	v, err, _ := p.group.Do("refresh", func() (interface{}, error) {
		p.mu.RLock()
		current := p.cached
		p.mu.RUnlock()
		if tokenFresh(current) {
			return current, nil
		}

		fresh, err := p.cfg.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("refresh accounting oauth token: %w", err)
		}
		p.mu.Lock()
		p.cached = fresh
		p.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return "", err
	}
	return v.(*oauth2.Token).AccessToken, nil
}

func tokenFresh(tok *oauth2.Token) bool {
	if tok == nil || tok.AccessToken == "" {
		return false
	}
	if tok.Expiry.IsZero() {
		return true
	}
	return time.Now().Add(tokenSkew).Before(tok.Expiry)
}

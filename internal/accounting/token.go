package accounting

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"estimatesync/internal/config"
)

const zohoTokenType = "Zoho-oauthtoken"

// zohoTokenSource rewrites the token type so oauth2.Transport sends
// "Authorization: Zoho-oauthtoken <token>".
type zohoTokenSource struct {
	base oauth2.TokenSource
}

func (s zohoTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	out := *tok
	out.TokenType = zohoTokenType
	return &out, nil
}

// TokenSource refreshes access tokens from the configured refresh token.
func TokenSource(ctx context.Context, cfg config.Config) oauth2.TokenSource {
	conf := &oauth2.Config{
		ClientID:     cfg.ZohoClientID,
		ClientSecret: cfg.ZohoClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  cfg.ZohoTokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	base := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.ZohoRefreshToken})
	return oauth2.ReuseTokenSource(nil, zohoTokenSource{base: base})
}

func NewTokenHTTPClient(ctx context.Context, cfg config.Config) *http.Client {
	return &http.Client{
		Timeout: time.Duration(cfg.ZohoTimeoutMs) * time.Millisecond,
		Transport: &oauth2.Transport{
			Source: TokenSource(ctx, cfg),
			Base:   http.DefaultTransport,
		},
	}
}

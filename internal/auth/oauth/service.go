// Package oauth talks to the Google identity provider: it builds the
// authorization redirect, exchanges codes for tokens and normalizes the
// userinfo payload.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	authconfig "github.com/smallbiznis/authr/internal/auth/config"
	"github.com/smallbiznis/authr/internal/auth/domain"
	obstracing "github.com/smallbiznis/authr/internal/observability/tracing"
	"go.uber.org/fx"
	"golang.org/x/oauth2"
)

const maxUserInfoBytes = 1 << 20

var Module = fx.Module("auth.oauth",
	fx.Provide(NewService),
)

// Service is the identity provider client used by the login flow.
type Service interface {
	// AuthCodeURL returns the provider URL the user agent is redirected to.
	AuthCodeURL(state, verifier string) string
	// Exchange trades an authorization code and its PKCE verifier for an
	// access token.
	Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error)
	FetchIdentity(ctx context.Context, token *oauth2.Token) (domain.Identity, error)
}

type service struct {
	provider    string
	oauth       *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

func NewService(cfg authconfig.ProviderConfig) Service {
	return &service{
		provider: cfg.Name,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfoURL: cfg.UserInfoURL,
		httpClient:  newHTTPClient(cfg),
	}
}

// newHTTPClient never follows redirects so a hostile provider response
// cannot steer the server to arbitrary hosts.
func newHTTPClient(cfg authconfig.ProviderConfig) *http.Client {
	return &http.Client{
		Timeout:   cfg.HTTPTimeout,
		Transport: obstracing.WrapTransport("oauth."+cfg.Name, nil),
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (s *service) AuthCodeURL(state, verifier string) string {
	return s.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

func (s *service) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	token, err := s.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: token exchange: %s", domain.ErrUpstreamAuth, describe(err))
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return nil, fmt.Errorf("%w: empty access token", domain.ErrUpstreamAuth)
	}
	return token, nil
}

func (s *service) FetchIdentity(ctx context.Context, token *oauth2.Token) (domain.Identity, error) {
	if token == nil || strings.TrimSpace(token.AccessToken) == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing access token", domain.ErrUpstreamAuth)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return domain.Identity{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: userinfo: %s", domain.ErrUpstreamAuth, describe(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Identity{}, fmt.Errorf("%w: userinfo status %d", domain.ErrUpstreamAuth, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoBytes))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: read userinfo: %s", domain.ErrUpstreamAuth, err)
	}

	var info UserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return domain.Identity{}, fmt.Errorf("%w: decode userinfo", domain.ErrUpstreamAuth)
	}
	return Normalize(s.provider, info)
}

// describe keeps provider error codes but drops response bodies and URLs,
// which may echo the authorization code.
func describe(err error) string {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		if retrieve.ErrorCode != "" {
			return retrieve.ErrorCode
		}
		if retrieve.Response != nil {
			return fmt.Sprintf("status %d", retrieve.Response.StatusCode)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	return "request failed"
}

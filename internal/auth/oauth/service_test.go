package oauth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	authconfig "github.com/smallbiznis/authr/internal/auth/config"
	"github.com/smallbiznis/authr/internal/auth/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type stubIdP struct {
	server       *httptest.Server
	lastVerifier string
	userInfo     map[string]any
	tokenStatus  int
}

func newStubIdP(t *testing.T) *stubIdP {
	t.Helper()
	idp := &stubIdP{
		tokenStatus: http.StatusOK,
		userInfo: map[string]any{
			"id":             "1234",
			"email":          "ada@example.com",
			"verified_email": true,
			"name":           "Ada Lovelace",
			"picture":        "https://example.com/ada.png",
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		idp.lastVerifier = r.PostForm.Get("code_verifier")
		if idp.tokenStatus != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(idp.tokenStatus)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-" + r.PostForm.Get("code"),
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(idp.userInfo)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"late","token_type":"Bearer"}`))
	})
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://169.254.169.254/latest/meta-data", http.StatusFound)
	})
	idp.server = httptest.NewServer(mux)
	t.Cleanup(idp.server.Close)
	return idp
}

func (idp *stubIdP) config() authconfig.ProviderConfig {
	return authconfig.ProviderConfig{
		Name:         "google",
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8080/auth/google/callback",
		AuthURL:      idp.server.URL + "/auth",
		TokenURL:     idp.server.URL + "/token",
		UserInfoURL:  idp.server.URL + "/userinfo",
		Scopes:       []string{"email", "profile"},
		HTTPTimeout:  2 * time.Second,
	}
}

func TestAuthCodeURLCarriesPKCEChallenge(t *testing.T) {
	idp := newStubIdP(t)
	svc := NewService(idp.config())

	verifier := oauth2.GenerateVerifier()
	raw := svc.AuthCodeURL("state-123", verifier)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	sum := sha256.Sum256([]byte(verifier))

	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "client", q.Get("client_id"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), q.Get("code_challenge"))
	assert.Equal(t, "email profile", q.Get("scope"))
}

func TestExchangeAndFetchIdentity(t *testing.T) {
	idp := newStubIdP(t)
	svc := NewService(idp.config())

	token, err := svc.Exchange(context.Background(), "good", "the-verifier")
	require.NoError(t, err)
	assert.Equal(t, "the-verifier", idp.lastVerifier)

	identity, err := svc.FetchIdentity(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "google/1234", identity.ExternalGUID)
	assert.Equal(t, "Ada Lovelace", identity.DisplayName)
	assert.Equal(t, "ada@example.com", identity.Email)
	assert.Equal(t, "https://example.com/ada.png", identity.AvatarURL)
}

func TestExchangeRejectedByProvider(t *testing.T) {
	idp := newStubIdP(t)
	idp.tokenStatus = http.StatusBadRequest
	svc := NewService(idp.config())

	_, err := svc.Exchange(context.Background(), "bad", "v")
	require.ErrorIs(t, err, domain.ErrUpstreamAuth)
	assert.Contains(t, err.Error(), "invalid_grant")
	assert.NotContains(t, err.Error(), "bad")
}

func TestFetchIdentityUnauthorized(t *testing.T) {
	idp := newStubIdP(t)
	svc := NewService(idp.config())

	_, err := svc.FetchIdentity(context.Background(), &oauth2.Token{AccessToken: "wrong"})
	assert.ErrorIs(t, err, domain.ErrUpstreamAuth)
}

func TestClientDoesNotFollowRedirects(t *testing.T) {
	idp := newStubIdP(t)
	cfg := idp.config()
	cfg.UserInfoURL = idp.server.URL + "/redirect"
	svc := NewService(cfg)

	_, err := svc.FetchIdentity(context.Background(), &oauth2.Token{AccessToken: "good"})
	require.ErrorIs(t, err, domain.ErrUpstreamAuth)
	assert.Contains(t, err.Error(), "status 302")
}

func TestSlowProviderTimesOut(t *testing.T) {
	tests := []struct {
		name string
		call func(svc Service) error
		set  func(cfg *authconfig.ProviderConfig, url string)
	}{
		{
			name: "token endpoint",
			set:  func(cfg *authconfig.ProviderConfig, url string) { cfg.TokenURL = url },
			call: func(svc Service) error {
				_, err := svc.Exchange(context.Background(), "good", "v")
				return err
			},
		},
		{
			name: "userinfo endpoint",
			set:  func(cfg *authconfig.ProviderConfig, url string) { cfg.UserInfoURL = url },
			call: func(svc Service) error {
				_, err := svc.FetchIdentity(context.Background(), &oauth2.Token{AccessToken: "good"})
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idp := newStubIdP(t)
			cfg := idp.config()
			cfg.HTTPTimeout = 200 * time.Millisecond
			tt.set(&cfg, idp.server.URL+"/slow")
			svc := NewService(cfg)

			start := time.Now()
			err := tt.call(svc)
			elapsed := time.Since(start)

			require.ErrorIs(t, err, domain.ErrUpstreamAuth)
			assert.Contains(t, err.Error(), "timeout")
			assert.Less(t, elapsed, time.Second)
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		info    UserInfo
		want    domain.Identity
		wantErr bool
	}{
		{
			name: "numeric id and given names",
			info: UserInfo{ID: json.RawMessage(`42`), Email: "g@example.com", VerifiedEmail: true, GivenName: "Grace", FamilyName: "Hopper"},
			want: domain.Identity{ExternalGUID: "google/42", DisplayName: "Grace Hopper", Email: "g@example.com"},
		},
		{
			name: "unverified email dropped",
			info: UserInfo{ID: json.RawMessage(`"7"`), Email: "x@example.com", Name: "X"},
			want: domain.Identity{ExternalGUID: "google/7", DisplayName: "X"},
		},
		{
			name: "name falls back to email",
			info: UserInfo{ID: json.RawMessage(`"8"`), Email: "e@example.com", VerifiedEmail: true},
			want: domain.Identity{ExternalGUID: "google/8", DisplayName: "e@example.com", Email: "e@example.com"},
		},
		{
			name:    "missing id",
			info:    UserInfo{Email: "e@example.com"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize("google", tt.info)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrUpstreamAuth)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/authr/internal/auth/domain"
	"go.uber.org/zap"
)

const (
	oauthErrorRedirectTo   = "/login?error=oauth_login"
	loginSuccessRedirectTo = "/"
)

// OAuthLogin starts the authorization code flow.
func (s *Server) OAuthLogin(c *gin.Context) {
	if allowed, retryAfter := s.limiter.Allow(c.Request.Context(), c.ClientIP()); !allowed {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
		AbortWithError(c, ErrTooManyRequests)
		return
	}

	redirectURL, err := s.authsvc.Login(c.Request.Context())
	if err != nil {
		// Nothing was recorded, so send the user back to start over.
		s.log.Warn("oauth login could not start", zap.Error(err))
		c.Redirect(http.StatusFound, loginSuccessRedirectTo)
		return
	}
	c.Redirect(http.StatusFound, redirectURL)
}

func (s *Server) OAuthCallback(c *gin.Context) {
	state := c.Query("state")
	if providerErr := strings.TrimSpace(c.Query("error")); providerErr != "" {
		s.log.Info("oauth provider returned error", zap.String("error", providerErr))
		s.authsvc.Abort(c.Request.Context(), state)
		c.Redirect(http.StatusFound, oauthErrorRedirectTo)
		return
	}

	sess, err := s.authsvc.Callback(c.Request.Context(), state, c.Query("code"))
	if err != nil {
		if !errors.Is(err, authdomain.ErrUnauthenticated) {
			s.log.Warn("oauth callback failed", zap.Error(err))
		}
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c, sess.Token, sess.ExpiresAt)
	c.Redirect(http.StatusFound, loginSuccessRedirectTo)
}

func (s *Server) Logout(c *gin.Context) {
	if token, ok := s.sessions.ReadToken(c); ok {
		if err := s.authsvc.Logout(c.Request.Context(), token); err != nil {
			AbortWithError(c, err)
			return
		}
	}
	s.sessions.Clear(c)
	c.Status(http.StatusNoContent)
}

type meResponse struct {
	authdomain.Identity
	Admin     bool      `json:"admin"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) Me(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	p, _ := currentPrincipal(c, s.authzSvc)
	c.JSON(http.StatusOK, meResponse{
		Identity:  sess.Identity,
		Admin:     p.admin,
		ExpiresAt: sess.ExpiresAt.UTC(),
	})
}

package server

import (
	"strconv"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/authr/internal/auth/domain"
	"github.com/smallbiznis/authr/internal/authorization"
	obscontext "github.com/smallbiznis/authr/internal/observability/context"
	"github.com/smallbiznis/authr/internal/records"
)

const (
	contextSessionKey = "session"
	actorTypeUser     = "user"
)

// principal is the authenticated caller as seen by the data handlers.
type principal struct {
	actor authorization.Actor
	admin bool
}

func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		sess, err := s.authsvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextSessionKey, sess)
		ctx := obscontext.WithActor(c.Request.Context(), actorTypeUser, strconv.FormatInt(sess.Identity.UserID, 10))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireAccess checks the casbin policy for the normalized data path. Unknown
// kinds are reported as not found before any policy is consulted.
func (s *Server) RequireAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, err := records.ParseKind(c.Param("kind"))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		path := "/data/" + kind.String()
		if id := c.Param("id"); id != "" {
			path += "/" + id
		}

		p, ok := currentPrincipal(c, s.authzSvc)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), p.actor, path, c.Request.Method); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func currentSession(c *gin.Context) (authdomain.Session, bool) {
	value, ok := c.Get(contextSessionKey)
	if !ok {
		return authdomain.Session{}, false
	}
	sess, ok := value.(authdomain.Session)
	return sess, ok
}

func currentPrincipal(c *gin.Context, authz authorization.Service) (principal, bool) {
	sess, ok := currentSession(c)
	if !ok {
		return principal{}, false
	}
	actor := authorization.Actor{UserID: sess.Identity.UserID, Email: sess.Identity.Email}
	return principal{actor: actor, admin: authz.IsAdmin(actor)}, true
}

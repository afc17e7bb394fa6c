// Package authorization decides which data routes an authenticated actor may
// call. Roles are derived per request: admins come from the access config,
// everyone else is a plain user.
package authorization

import (
	"context"
	_ "embed"
	"errors"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/smallbiznis/authr/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:embed model.conf
var modelText string

const (
	RoleUser  = "role:user"
	RoleAdmin = "role:admin"
)

var (
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidActor = errors.New("invalid actor")
)

var Module = fx.Module("authorization",
	fx.Provide(NewEnforcer),
	fx.Provide(NewService),
)

// Actor is the authenticated principal of a request.
type Actor struct {
	UserID int64
	Email  string
}

type Service interface {
	// Authorize returns ErrForbidden unless actor may perform method on path.
	Authorize(ctx context.Context, actor Actor, path, method string) error
	IsAdmin(actor Actor) bool
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	Access   *config.AccessConfigHolder
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	access   *config.AccessConfigHolder
}

// NewEnforcer builds an in-memory enforcer seeded with the route policies.
func NewEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		access:   p.Access,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor Actor, path, method string) error {
	if actor.UserID == 0 {
		return ErrInvalidActor
	}
	path = strings.TrimSpace(path)
	method = strings.ToUpper(strings.TrimSpace(method))

	role := s.roleFor(actor)
	allowed, err := s.enforcer.Enforce(role, path, method)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Info("authorization denied",
			zap.Int64("user_id", actor.UserID),
			zap.String("role", role),
			zap.String("path", path),
			zap.String("method", method),
		)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) IsAdmin(actor Actor) bool {
	return s.roleFor(actor) == RoleAdmin
}

func (s *ServiceImpl) roleFor(actor Actor) string {
	if s.access != nil && s.access.Get().IsAdmin(actor.Email) {
		return RoleAdmin
	}
	return RoleUser
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Users manage notes; handlers scope them to the owner.
		{RoleUser, "/data/notes", "^(GET|POST)$"},
		{RoleUser, "/data/notes/:id", "^(GET|PUT|DELETE)$"},
		// Users may read a user record; handlers restrict it to self.
		{RoleUser, "/data/users/:id", "^GET$"},

		{RoleAdmin, "/data/*", "^(GET|POST|PUT|DELETE)$"},
	}
	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	if _, err := enforcer.AddGroupingPolicy(RoleAdmin, RoleUser); err != nil {
		return err
	}
	return nil
}

package auth

import (
	authconfig "github.com/smallbiznis/authr/internal/auth/config"
	"github.com/smallbiznis/authr/internal/auth/oauth"
	"github.com/smallbiznis/authr/internal/auth/pending"
	"github.com/smallbiznis/authr/internal/auth/service"
	"github.com/smallbiznis/authr/internal/auth/session"
	"go.uber.org/fx"
)

var Module = fx.Module("auth",
	authconfig.Module,
	oauth.Module,
	pending.Module,
	session.Module,
	fx.Provide(service.New),
)

package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/authr/internal/clock"
	"github.com/smallbiznis/authr/internal/config"
	"github.com/smallbiznis/authr/internal/observability"
	"github.com/smallbiznis/authr/internal/server"
	"github.com/smallbiznis/authr/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

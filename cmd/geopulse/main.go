package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/geopulselabs/geopulse/internal/audit"
	"github.com/geopulselabs/geopulse/internal/batch"
	"github.com/geopulselabs/geopulse/internal/change"
	"github.com/geopulselabs/geopulse/internal/clock"
	"github.com/geopulselabs/geopulse/internal/config"
	"github.com/geopulselabs/geopulse/internal/imagery"
	"github.com/geopulselabs/geopulse/internal/migration"
	"github.com/geopulselabs/geopulse/internal/observability"
	"github.com/geopulselabs/geopulse/internal/property"
	"github.com/geopulselabs/geopulse/internal/quota"
	"github.com/geopulselabs/geopulse/internal/report"
	"github.com/geopulselabs/geopulse/internal/server"
	"github.com/geopulselabs/geopulse/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		clock.Module,

		fx.Invoke(func(conn *gorm.DB) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return migration.RunMigrations(sqlDB)
		}),

		audit.Module,
		quota.Module,
		property.Module,
		imagery.Module,
		change.Module,
		batch.Module,
		report.Module,
		server.Module,
	)
	app.Run()
}

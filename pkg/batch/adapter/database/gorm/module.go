package gorm

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/wrfcycle/pkg/batch/adapter/database"
)

// Module provides the connection resolver. Concrete DBProviders come from the dialect packages.
var Module = fx.Options(
	fx.Provide(NewGormDBConnectionResolver),
	fx.Provide(func(r *GormDBConnectionResolver) database.DBConnectionResolver { return r }),
	fx.Invoke(registerCloser),
)

func registerCloser(lc fx.Lifecycle, r *GormDBConnectionResolver) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return r.CloseAll()
		},
	})
}

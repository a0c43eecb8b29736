package mysql

import (
	"go.uber.org/fx"

	"github.com/tigerroll/wrfcycle/pkg/batch/adapter/database"
)

// Module exports the mysql DBProvider into the db_providers group.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewProvider,
			fx.As(new(database.DBProvider)),
			fx.ResultTags(`group:"`+database.DBProviderGroup+`"`),
		),
	),
)

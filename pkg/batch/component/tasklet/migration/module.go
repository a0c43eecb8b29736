package migration

import (
	"go.uber.org/fx"

	"github.com/tigerroll/wrfcycle/pkg/batch/component/tasklet/migration/filesystem"
)

// Module provides the ledger migration Runner and its embedded migrations.
var Module = fx.Options(
	filesystem.Module,
	fx.Provide(NewRunner),
)

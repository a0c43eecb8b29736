package backup

import (
	"go.uber.org/fx"

	"github.com/tigerroll/wrfcycle/pkg/batch/engine/driver"
)

// Module provides the static backup as the driver's StaticBackup.
var Module = fx.Options(
	fx.Provide(NewStaticBackup),
	fx.Provide(func(b *StaticBackup) driver.StaticBackup { return b }),
)

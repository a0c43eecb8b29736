package filesystem

import (
	"go.uber.org/fx"

	repository "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/repository"
)

// Module provides the file-backed restart counter store.
var Module = fx.Options(
	fx.Provide(NewRestartCounterFileStore),
	fx.Provide(func(s *RestartCounterFileStore) repository.RestartCounterStore { return s }),
)

package local

import (
	"go.uber.org/fx"

	storageAdapter "github.com/tigerroll/wrfcycle/pkg/batch/adapter/storage"
)

// Module adds the local provider to the storage_providers group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewLocalProvider,
		fx.As(new(storageAdapter.StorageProvider)),
		fx.ResultTags(`group:"`+storageAdapter.StorageProviderGroup+`"`),
	)),
)

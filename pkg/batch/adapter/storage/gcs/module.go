package gcs

import (
	"go.uber.org/fx"

	storageAdapter "github.com/tigerroll/wrfcycle/pkg/batch/adapter/storage"
)

// Module adds the GCS provider to the storage_providers group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewGCSProvider,
		fx.As(new(storageAdapter.StorageProvider)),
		fx.ResultTags(`group:"`+storageAdapter.StorageProviderGroup+`"`),
	)),
)

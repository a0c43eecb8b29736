package storage

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/fx"

	storageConfig "github.com/tigerroll/wrfcycle/pkg/batch/adapter/storage/config"
	coreConfig "github.com/tigerroll/wrfcycle/pkg/batch/core/config"
)

// DecodeConfig decodes the connection called name from adapter.storage.
func DecodeConfig(cfg *coreConfig.Config, name string) (storageConfig.StorageConfig, error) {
	var sc storageConfig.StorageConfig
	raw, ok := cfg.Wrfcycle.Adapter.Storage[name]
	if !ok {
		return sc, fmt.Errorf("storage configuration '%s' not found under adapter.storage", name)
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &sc,
		TagName: "yaml",
	})
	if err != nil {
		return sc, fmt.Errorf("failed to create decoder for storage config '%s': %w", name, err)
	}
	if err := decoder.Decode(raw); err != nil {
		return sc, fmt.Errorf("failed to decode storage config for '%s': %w", name, err)
	}
	return sc, nil
}

// Resolver dispatches a connection name to the provider registered for its configured type.
type Resolver struct {
	providers map[string]StorageProvider
	cfg       *coreConfig.Config
}

// ResolverParams collects the resolver's dependencies.
type ResolverParams struct {
	fx.In
	Providers []StorageProvider `group:"storage_providers"`
	Cfg       *coreConfig.Config
}

// NewResolver creates a Resolver over every registered provider.
func NewResolver(p ResolverParams) *Resolver {
	providers := make(map[string]StorageProvider, len(p.Providers))
	for _, provider := range p.Providers {
		providers[provider.Type()] = provider
	}
	return &Resolver{providers: providers, cfg: p.Cfg}
}

// ResolveStorageConnection implements StorageConnectionResolver.
func (r *Resolver) ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error) {
	sc, err := DecodeConfig(r.cfg, name)
	if err != nil {
		return nil, err
	}
	provider, ok := r.providers[sc.Type]
	if !ok {
		return nil, fmt.Errorf("no storage provider found for type '%s' (connection '%s')", sc.Type, name)
	}
	conn, err := provider.GetConnection(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get storage connection '%s' from provider '%s': %w", name, sc.Type, err)
	}
	return conn, nil
}

// CloseAll closes the connections of every provider.
func (r *Resolver) CloseAll() error {
	var lastErr error
	for _, p := range r.providers {
		if err := p.CloseAll(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Module provides the storage resolver. Backends are added by the local and gcs packages.
var Module = fx.Options(
	fx.Provide(NewResolver),
	fx.Provide(func(r *Resolver) StorageConnectionResolver { return r }),
	fx.Invoke(func(lc fx.Lifecycle, r *Resolver) {
		lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return r.CloseAll() }})
	}),
)

// Package storage defines the object storage abstraction used for static-input backups and ledger reports.
// Backends (GCS, local file system) register a StorageProvider; callers resolve connections by name.
package storage

import (
	"context"
	"io"
)

// StorageExecutor defines generic object storage operations.
type StorageExecutor interface {
	// Upload writes data to objectName in bucket. An empty bucket selects the connection's default.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download opens objectName in bucket. The caller closes the returned reader.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for every object below prefix.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
	// DeleteObject removes objectName; a missing object is not an error.
	DeleteObject(ctx context.Context, bucket, objectName string) error
}

// StorageConnection is one named storage connection.
type StorageConnection interface {
	StorageExecutor

	Name() string
	Type() string
	Close() error
}

// StorageProvider opens and caches the connections of one storage type.
type StorageProvider interface {
	// GetConnection retrieves the connection with the specified name.
	GetConnection(name string) (StorageConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the storage type handled by this provider.
	Type() string
}

// StorageConnectionResolver resolves storage connections by name.
type StorageConnectionResolver interface {
	ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error)
}

// StorageProviderGroup is the Fx value group collecting every StorageProvider.
const StorageProviderGroup = "storage_providers"

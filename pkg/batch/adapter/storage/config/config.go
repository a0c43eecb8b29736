package config

// StorageConfig holds configuration for a single storage connection under adapter.storage.
type StorageConfig struct {
	Type            string `yaml:"type"`             // Type of storage ("gcs", "local").
	BucketName      string `yaml:"bucket_name"`      // Default bucket name for operations.
	CredentialsFile string `yaml:"credentials_file"` // Service account key for GCS; empty uses application default credentials.
	BaseDir         string `yaml:"base_dir"`         // Base directory for local file system operations.
}

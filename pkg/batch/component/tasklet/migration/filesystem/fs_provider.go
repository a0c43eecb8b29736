// Package filesystem embeds the ledger schema migrations, one directory per database dialect.
package filesystem

import (
	"embed"
	"io/fs"
)

//go:embed resource
var rawMigrationFS embed.FS

// ProvideMigrationsFS returns the embedded migrations rooted at the dialect directories.
func ProvideMigrationsFS() (fs.FS, error) {
	return fs.Sub(rawMigrationFS, "resource")
}

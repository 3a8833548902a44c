// Package migrations contains the embedded SQL migrations for the app.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed *.sql
var sqlFS embed.FS

// FS contains all migration files.
var FS fs.FS = sqlFS

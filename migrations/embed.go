package migrations

import "embed"

// Files contains the schema migrations for every supported SQL dialect,
// one sub-directory per dialect.
//
//go:embed sqlite/*.sql postgres/*.sql
var Files embed.FS

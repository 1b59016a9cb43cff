// Package migrations embeds the SQL schema files for the device store and
// the hub's Postgres store.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed local/*.sql
var localFS embed.FS

//go:embed hub/*.sql
var hubFS embed.FS

// Local returns the device store's SQL migrations. Versions that transform
// data are registered as Go migrations by the store package.
func Local() fs.FS {
	return mustSub(localFS, "local")
}

// Hub returns the hub's Postgres migrations.
func Hub() fs.FS {
	return mustSub(hubFS, "hub")
}

func mustSub(fsys embed.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

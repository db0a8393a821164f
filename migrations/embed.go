// Package migrations embeds SQL migration files into the binary.
//
// This lets Panel Core migrate its local store without shipping SQL files
// alongside the executable.
package migrations

import (
	"embed"

	"github.com/homematrix/panel-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}

// Package migrations embeds the run history schema into the binary.
package migrations

import (
	"embed"

	"github.com/nerrad567/rustfs-launcher/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}

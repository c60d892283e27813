// Package database provides the SQLite connection behind the launcher's
// run history.
//
// This package manages:
//   - Opening the database file with WAL mode and a busy timeout
//   - Schema migrations embedded in the binary
//   - Health checks and lifecycle management
//
// The database is optional. When database.enabled is false the launcher
// runs without history and this package is never opened.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql, and are registered through MigrationsFS by the
// migrations package.
package database

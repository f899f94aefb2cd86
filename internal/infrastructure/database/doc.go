// Package database provides the SQLite store behind the operation journal.
//
// This package manages:
//   - Opening the journal database with WAL mode and a busy timeout
//   - Versioned schema migrations read from an fs.FS
//
// Security Considerations:
//   - All queries use parameterised statements
//   - The database file is created with 0600 permissions
//
// Usage:
//
//	db, err := database.Open(cfg.Journal)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database

// Package database provides SQLite connectivity and embedded schema
// migrations.
//
// The import engine keeps its known/enabled device sets and descriptors
// here. Migrations are loaded from the embed.FS registered by the
// migrations package and applied in version order.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are additive: new columns must be nullable or carry a default,
// and every .up.sql has a matching .down.sql.
package database

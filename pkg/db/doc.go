// Package db provides database connection utilities for datamapper
// repositories.
//
// This package opens GORM connections for postgres and sqlite URLs and
// registers the matching adapter for each configured repository.
//
// # Connection
//
//	database, err := db.Connect(db.Config{URL: "postgres://localhost/library"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Repositories
//
//	conns, err := db.Setup(mapper, config.Get(), logger)
//	defer db.Close(conns)
package db

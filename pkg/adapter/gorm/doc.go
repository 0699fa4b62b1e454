// Package gorm provides a datamapper adapter backed by a *gorm.DB.
//
// Statements are written as SQL with gorm placeholders and run through
// db.Raw and db.Exec, so one adapter serves every dialector gorm supports.
// Identifiers are quoted by the dialector.
//
//	database, err := db.Connect(db.Config{URL: "postgres://localhost/library"})
//	if err != nil {
//	    return err
//	}
//	mapper.Setup(datamapper.DefaultRepositoryName, gorm.New(database))
//
// Serial keys are read back with INSERT ... RETURNING, which postgres and
// sqlite (3.35 and later) both support.
package gorm

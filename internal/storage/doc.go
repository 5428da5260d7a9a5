// Package storage provides SQLite-based persistence for the course catalog.
//
// The catalog is the backing record store behind the search cache. It holds
// universities (search scopes), their faculties and courses, and answers
// substring searches over course code and name.
//
// # Database Schema
//
// Tables:
//   - universities: one row per catalog scope, unique code
//   - faculties: per-university faculty codes, used as a search filter
//   - courses: catalog records, unique (university_id, code)
//   - schema_version: applied migrations
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("catalog.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	uni := &storage.University{Code: "ualberta", Name: "University of Alberta"}
//	if err := db.UpsertUniversity(ctx, uni); err != nil {
//	    return err
//	}
//
//	results, err := db.SearchCourses(ctx, uni.ID, "cmput", nil, 50)
//
// SearchCourses uses LIKE with escaped wildcards, so matching is
// case-insensitive for ASCII and returns rows in storage order. Relevance
// ordering is the caller's job (see package ranking).
//
// # Transactions
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	_ = tx.UpsertFaculty(ctx, faculty)
//	_ = tx.UpsertCourse(ctx, course)
//
//	if err := tx.Commit(); err != nil {
//	    return err
//	}
//
// # Build Modes
//
// The default build uses modernc.org/sqlite. Building with the sqlite_cgo tag
// switches to github.com/mattn/go-sqlite3.
package storage

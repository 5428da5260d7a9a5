// Package importer loads course catalog documents into the catalog store.
//
// A catalog document is a JSON object describing one university, its
// faculties and its courses:
//
//	{
//	  "university": {"code": "ualberta", "name": "University of Alberta"},
//	  "faculties":  [{"code": "SC", "name": "Faculty of Science"}],
//	  "courses":    [{"code": "CMPUT 201", "name": "Practical Programming Methodology", "faculty_code": "SC"}]
//	}
//
// Records are upserted, so re-importing a catalog updates it in place.
//
// # Usage
//
//	imp := importer.New(store, importer.WithAfterImport(srch.ClearCache))
//	stats, err := imp.ImportPath(ctx, "/data/catalogs", nil)
//
// ImportPath accepts a single file or a directory; every .json file beneath
// a directory is imported, hidden directories excepted. Files are decoded
// concurrently (Config.Workers) and courses are committed in transactions of
// Config.BatchSize. A file that fails to decode or write is counted in
// Statistics.FilesFailed and does not stop the run. Courses missing a code or
// name are skipped; courses naming an unknown faculty are stored without one.
//
// Only one import runs at a time per Importer; a concurrent call returns
// ErrImportInProgress.
//
// Search results cached before an import may be stale afterwards, which is
// what the WithAfterImport hook is for.
package importer

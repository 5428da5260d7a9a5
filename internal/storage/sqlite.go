package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/catalogsearch-mcp/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned when a record is missing required fields
	ErrInvalidInput = errors.New("invalid input")
)

// likeEscaper escapes LIKE wildcards so queries match literally
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer; this also keeps :memory: databases
	// on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) querier() querier {
	return t.tx
}

func (s *SQLiteStorage) querier() querier {
	return s.db
}

// University operations

func upsertUniversity(ctx context.Context, q querier, university *University) error {
	if university.Code == "" || university.Name == "" {
		return fmt.Errorf("%w: university code and name are required", ErrInvalidInput)
	}

	query := `
		INSERT INTO universities (code, name, country, region, website_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			country = excluded.country,
			region = excluded.region,
			website_url = excluded.website_url,
			updated_at = excluded.updated_at
		RETURNING id, created_at
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		university.Code, university.Name, university.Country, university.Region,
		university.WebsiteURL, now, now).Scan(&university.ID, &university.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert university: %w", err)
	}
	university.UpdatedAt = now
	return nil
}

const universityColumns = `id, code, name, country, region, website_url, created_at, updated_at`

func scanUniversity(row interface{ Scan(...interface{}) error }) (*University, error) {
	var u University
	err := row.Scan(&u.ID, &u.Code, &u.Name, &u.Country, &u.Region, &u.WebsiteURL, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func getUniversity(ctx context.Context, q querier, code string) (*University, error) {
	query := `SELECT ` + universityColumns + ` FROM universities WHERE code = ?`
	return scanUniversity(q.QueryRowContext(ctx, query, code))
}

func getUniversityByID(ctx context.Context, q querier, universityID int64) (*University, error) {
	query := `SELECT ` + universityColumns + ` FROM universities WHERE id = ?`
	return scanUniversity(q.QueryRowContext(ctx, query, universityID))
}

func (s *SQLiteStorage) UpsertUniversity(ctx context.Context, university *University) error {
	return upsertUniversity(ctx, s.querier(), university)
}

func (s *SQLiteStorage) GetUniversity(ctx context.Context, code string) (*University, error) {
	return getUniversity(ctx, s.querier(), code)
}

// Faculty operations

func upsertFaculty(ctx context.Context, q querier, faculty *Faculty) error {
	if faculty.UniversityID == 0 || faculty.Code == "" || faculty.Name == "" {
		return fmt.Errorf("%w: faculty university, code and name are required", ErrInvalidInput)
	}

	query := `
		INSERT INTO faculties (university_id, code, name, website_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(university_id, code) DO UPDATE SET
			name = excluded.name,
			website_url = excluded.website_url,
			updated_at = excluded.updated_at
		RETURNING id, created_at
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		faculty.UniversityID, faculty.Code, faculty.Name, faculty.WebsiteURL, now, now,
	).Scan(&faculty.ID, &faculty.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert faculty: %w", err)
	}
	faculty.UpdatedAt = now
	return nil
}

const facultyColumns = `id, university_id, code, name, website_url, created_at, updated_at`

func scanFaculty(row interface{ Scan(...interface{}) error }) (*Faculty, error) {
	var f Faculty
	err := row.Scan(&f.ID, &f.UniversityID, &f.Code, &f.Name, &f.WebsiteURL, &f.CreatedAt, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func getFaculty(ctx context.Context, q querier, universityID int64, code string) (*Faculty, error) {
	query := `SELECT ` + facultyColumns + ` FROM faculties WHERE university_id = ? AND code = ?`
	return scanFaculty(q.QueryRowContext(ctx, query, universityID, code))
}

func listFaculties(ctx context.Context, q querier, universityID int64) ([]*Faculty, error) {
	query := `SELECT ` + facultyColumns + ` FROM faculties WHERE university_id = ? ORDER BY code`
	rows, err := q.QueryContext(ctx, query, universityID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	faculties := make([]*Faculty, 0)
	for rows.Next() {
		f, err := scanFaculty(rows)
		if err != nil {
			return nil, err
		}
		faculties = append(faculties, f)
	}
	return faculties, rows.Err()
}

func (s *SQLiteStorage) UpsertFaculty(ctx context.Context, faculty *Faculty) error {
	return upsertFaculty(ctx, s.querier(), faculty)
}

func (s *SQLiteStorage) GetFaculty(ctx context.Context, universityID int64, code string) (*Faculty, error) {
	return getFaculty(ctx, s.querier(), universityID, code)
}

func (s *SQLiteStorage) ListFaculties(ctx context.Context, universityID int64) ([]*Faculty, error) {
	return listFaculties(ctx, s.querier(), universityID)
}

// Course operations

func upsertCourse(ctx context.Context, q querier, course *Course) error {
	if course.UniversityID == 0 || course.Code == "" || course.Name == "" {
		return fmt.Errorf("%w: course university, code and name are required", ErrInvalidInput)
	}

	query := `
		INSERT INTO courses (university_id, faculty_id, code, name, description, credit_hours,
		                     level, website_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(university_id, code) DO UPDATE SET
			faculty_id = excluded.faculty_id,
			name = excluded.name,
			description = excluded.description,
			credit_hours = excluded.credit_hours,
			level = excluded.level,
			website_url = excluded.website_url,
			updated_at = excluded.updated_at
		RETURNING id, created_at
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		course.UniversityID, course.FacultyID, course.Code, course.Name, course.Description,
		course.CreditHours, course.Level, course.WebsiteURL, now, now,
	).Scan(&course.ID, &course.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert course: %w", err)
	}
	course.UpdatedAt = now
	return nil
}

const courseColumns = `id, university_id, faculty_id, code, name, description, credit_hours,
		       level, website_url, created_at, updated_at`

func scanCourse(row interface{ Scan(...interface{}) error }) (*Course, error) {
	var c Course
	var facultyID sql.NullInt64
	var creditHours sql.NullFloat64
	err := row.Scan(
		&c.ID, &c.UniversityID, &facultyID, &c.Code, &c.Name, &c.Description, &creditHours,
		&c.Level, &c.WebsiteURL, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if facultyID.Valid {
		c.FacultyID = &facultyID.Int64
	}
	if creditHours.Valid {
		c.CreditHours = &creditHours.Float64
	}
	return &c, nil
}

func getCourse(ctx context.Context, q querier, universityID int64, code string) (*Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE university_id = ? AND code = ? COLLATE NOCASE`
	return scanCourse(q.QueryRowContext(ctx, query, universityID, code))
}

func listCourses(ctx context.Context, q querier, universityID int64, limit, offset int) ([]*Course, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + courseColumns + ` FROM courses WHERE university_id = ? ORDER BY code LIMIT ? OFFSET ?`
	rows, err := q.QueryContext(ctx, query, universityID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	courses := make([]*Course, 0)
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

func deleteCourse(ctx context.Context, q querier, courseID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM courses WHERE id = ?`, courseID)
	return err
}

func (s *SQLiteStorage) UpsertCourse(ctx context.Context, course *Course) error {
	return upsertCourse(ctx, s.querier(), course)
}

func (s *SQLiteStorage) GetCourse(ctx context.Context, universityID int64, code string) (*Course, error) {
	return getCourse(ctx, s.querier(), universityID, code)
}

func (s *SQLiteStorage) ListCourses(ctx context.Context, universityID int64, limit, offset int) ([]*Course, error) {
	return listCourses(ctx, s.querier(), universityID, limit, offset)
}

func (s *SQLiteStorage) DeleteCourse(ctx context.Context, courseID int64) error {
	return deleteCourse(ctx, s.querier(), courseID)
}

// Search operations

// searchCourses matches query as a substring of course code or name,
// ignoring case with Unicode folding on both sides.
// Rows come back in storage (id) order; a limit <= 0 returns every match.
func searchCourses(ctx context.Context, q querier, universityID int64, query string, facultyCode *string, limit int) ([]types.CourseResult, error) {
	pattern := "%" + likeEscaper.Replace(casefold(strings.TrimSpace(query))) + "%"
	if limit <= 0 {
		limit = -1
	}

	var sqlQuery strings.Builder
	args := []interface{}{universityID, pattern, pattern}
	sqlQuery.WriteString(`
		SELECT c.id, c.code, c.name
		FROM courses c`)
	if facultyCode != nil {
		sqlQuery.WriteString(`
		JOIN faculties f ON c.faculty_id = f.id`)
	}
	sqlQuery.WriteString(`
		WHERE c.university_id = ?
		  AND (` + foldFunc + `(c.code) LIKE ? ESCAPE '\' OR ` + foldFunc + `(c.name) LIKE ? ESCAPE '\')`)
	if facultyCode != nil {
		sqlQuery.WriteString(`
		  AND f.code = ?`)
		args = append(args, *facultyCode)
	}
	sqlQuery.WriteString(`
		ORDER BY c.id
		LIMIT ?`)
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, sqlQuery.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search courses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]types.CourseResult, 0)
	for rows.Next() {
		var r types.CourseResult
		if err := rows.Scan(&r.ID, &r.Code, &r.Name); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// SearchCourses runs the backing catalog search for one university
func (s *SQLiteStorage) SearchCourses(ctx context.Context, universityID int64, query string, facultyCode *string, limit int) ([]types.CourseResult, error) {
	return searchCourses(ctx, s.querier(), universityID, query, facultyCode, limit)
}

// Status operations

func getStatus(ctx context.Context, q querier, universityID int64) (*CatalogStatus, error) {
	university, err := getUniversityByID(ctx, q, universityID)
	if err != nil {
		return nil, err
	}

	status := &CatalogStatus{University: university}

	err = q.QueryRowContext(ctx, "SELECT COUNT(*) FROM faculties WHERE university_id = ?", universityID).Scan(&status.FacultiesCount)
	if err != nil {
		return nil, err
	}

	err = q.QueryRowContext(ctx, "SELECT COUNT(*) FROM courses WHERE university_id = ?", universityID).Scan(&status.CoursesCount)
	if err != nil {
		return nil, err
	}

	var pageCount, pageSize int
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.DatabaseSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	status.Health = HealthStatus{
		DatabaseAccessible: true,
		HasCourses:         status.CoursesCount > 0,
	}

	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context, universityID int64) (*CatalogStatus, error) {
	return getStatus(ctx, s.querier(), universityID)
}

// Transaction implementations run every statement on the transaction

func (t *sqliteTx) UpsertUniversity(ctx context.Context, university *University) error {
	return upsertUniversity(ctx, t.querier(), university)
}

func (t *sqliteTx) GetUniversity(ctx context.Context, code string) (*University, error) {
	return getUniversity(ctx, t.querier(), code)
}

func (t *sqliteTx) UpsertFaculty(ctx context.Context, faculty *Faculty) error {
	return upsertFaculty(ctx, t.querier(), faculty)
}

func (t *sqliteTx) GetFaculty(ctx context.Context, universityID int64, code string) (*Faculty, error) {
	return getFaculty(ctx, t.querier(), universityID, code)
}

func (t *sqliteTx) ListFaculties(ctx context.Context, universityID int64) ([]*Faculty, error) {
	return listFaculties(ctx, t.querier(), universityID)
}

func (t *sqliteTx) UpsertCourse(ctx context.Context, course *Course) error {
	return upsertCourse(ctx, t.querier(), course)
}

func (t *sqliteTx) GetCourse(ctx context.Context, universityID int64, code string) (*Course, error) {
	return getCourse(ctx, t.querier(), universityID, code)
}

func (t *sqliteTx) ListCourses(ctx context.Context, universityID int64, limit, offset int) ([]*Course, error) {
	return listCourses(ctx, t.querier(), universityID, limit, offset)
}

func (t *sqliteTx) DeleteCourse(ctx context.Context, courseID int64) error {
	return deleteCourse(ctx, t.querier(), courseID)
}

func (t *sqliteTx) SearchCourses(ctx context.Context, universityID int64, query string, facultyCode *string, limit int) ([]types.CourseResult, error) {
	return searchCourses(ctx, t.querier(), universityID, query, facultyCode, limit)
}

func (t *sqliteTx) GetStatus(ctx context.Context, universityID int64) (*CatalogStatus, error) {
	return getStatus(ctx, t.querier(), universityID)
}

func (t *sqliteTx) Close() error {
	return fmt.Errorf("cannot close storage from within transaction")
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

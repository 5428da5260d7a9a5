package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/catalogsearch-mcp/internal/log"
	"github.com/dshills/catalogsearch-mcp/internal/storage"
)

const (
	// DefaultBatchSize is the number of courses committed per transaction
	DefaultBatchSize = 200

	catalogExt = ".json"
)

var (
	// ErrImportInProgress is returned when another import holds the lock
	ErrImportInProgress = errors.New("another import is already running")

	// ErrInvalidCatalog is returned for unreadable or incomplete catalog documents
	ErrInvalidCatalog = errors.New("invalid catalog")
)

// Importer loads catalog documents into storage
type Importer struct {
	storage     storage.Storage
	lock        ImportLock
	afterImport func(ctx context.Context) error
}

// Option configures an Importer
type Option func(*Importer)

// WithAfterImport registers a hook run once after any import that wrote
// records, typically the query cache flush.
func WithAfterImport(fn func(ctx context.Context) error) Option {
	return func(imp *Importer) {
		imp.afterImport = fn
	}
}

// Config contains configuration for an import run
type Config struct {
	Workers   int // Files decoded concurrently (default: runtime.NumCPU())
	BatchSize int // Courses committed per transaction (default: DefaultBatchSize)
}

// Statistics contains statistics about an import run
type Statistics struct {
	FilesImported  int
	FilesFailed    int
	Universities   int
	Faculties      int
	Courses        int
	CoursesSkipped int
	Duration       time.Duration
	ErrorMessages  []string
}

// counters accumulates statistics across concurrent file imports
type counters struct {
	filesImported  atomic.Int32
	filesFailed    atomic.Int32
	universities   atomic.Int32
	faculties      atomic.Int32
	courses        atomic.Int32
	coursesSkipped atomic.Int32

	mu       sync.Mutex
	messages []string
}

func (c *counters) addError(format string, args ...interface{}) {
	c.mu.Lock()
	c.messages = append(c.messages, fmt.Sprintf(format, args...))
	c.mu.Unlock()
}

func (c *counters) statistics(start time.Time) *Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	messages := make([]string, len(c.messages))
	copy(messages, c.messages)
	return &Statistics{
		FilesImported:  int(c.filesImported.Load()),
		FilesFailed:    int(c.filesFailed.Load()),
		Universities:   int(c.universities.Load()),
		Faculties:      int(c.faculties.Load()),
		Courses:        int(c.courses.Load()),
		CoursesSkipped: int(c.coursesSkipped.Load()),
		Duration:       time.Since(start),
		ErrorMessages:  messages,
	}
}

// New creates a new Importer
func New(store storage.Storage, opts ...Option) *Importer {
	imp := &Importer{storage: store}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// ImportPath imports a single catalog file or every .json file under a
// directory. Per-file failures are recorded in the statistics and do not
// abort the run.
func (imp *Importer) ImportPath(ctx context.Context, path string, config *Config) (*Statistics, error) {
	if !imp.lock.TryAcquire() {
		return nil, ErrImportInProgress
	}
	defer imp.lock.Release()

	config = normalizeConfig(config)
	start := time.Now()

	files, err := discoverFiles(path)
	if err != nil {
		return nil, fmt.Errorf("failed to discover catalog files: %w", err)
	}

	c := &counters{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Workers)
	for _, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := imp.importFile(gctx, file, config, c); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				c.filesFailed.Add(1)
				c.addError("%s: %v", file, err)
				return nil
			}
			c.filesImported.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("import cancelled: %w", err)
	}

	imp.finish(ctx, c)
	return c.statistics(start), nil
}

// Import imports one catalog document read from r
func (imp *Importer) Import(ctx context.Context, r io.Reader, config *Config) (*Statistics, error) {
	if !imp.lock.TryAcquire() {
		return nil, ErrImportInProgress
	}
	defer imp.lock.Release()

	config = normalizeConfig(config)
	start := time.Now()

	catalog, err := DecodeCatalog(r)
	if err != nil {
		return nil, err
	}

	c := &counters{}
	if err := imp.importCatalog(ctx, catalog, config, c); err != nil {
		return nil, err
	}
	c.filesImported.Add(1)

	imp.finish(ctx, c)
	return c.statistics(start), nil
}

func normalizeConfig(config *Config) *Config {
	out := Config{Workers: runtime.NumCPU(), BatchSize: DefaultBatchSize}
	if config != nil {
		if config.Workers > 0 {
			out.Workers = config.Workers
		}
		if config.BatchSize > 0 {
			out.BatchSize = config.BatchSize
		}
	}
	return &out
}

// finish runs the after-import hook when anything was written
func (imp *Importer) finish(ctx context.Context, c *counters) {
	if imp.afterImport == nil || c.universities.Load() == 0 {
		return
	}
	if err := imp.afterImport(ctx); err != nil {
		logger := log.Ctx(ctx)
		logger.Warn().Err(err).Msg("post-import hook failed")
		c.addError("after import: %v", err)
	}
}

// discoverFiles returns path itself when it is a file, or the sorted .json
// files beneath it when it is a directory. Hidden directories are skipped.
func discoverFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != path && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(p), catalogExt) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (imp *Importer) importFile(ctx context.Context, path string, config *Config, c *counters) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	catalog, err := DecodeCatalog(f)
	if err != nil {
		return err
	}
	return imp.importCatalog(ctx, catalog, config, c)
}

// importCatalog writes the university and faculties in one transaction,
// then the courses in BatchSize transactions
func (imp *Importer) importCatalog(ctx context.Context, catalog *Catalog, config *Config, c *counters) error {
	university, facultyIDs, err := imp.importUniversity(ctx, catalog, c)
	if err != nil {
		return err
	}

	logger := log.Ctx(ctx).With().
		Str("university", university.Code).
		Int64(log.FieldUniversityID, university.ID).
		Logger()

	courses := catalog.Courses
	for i := 0; i < len(courses); i += config.BatchSize {
		end := min(i+config.BatchSize, len(courses))
		if err := imp.importCourses(ctx, university, facultyIDs, courses[i:end], c); err != nil {
			return fmt.Errorf("failed to import courses %d-%d: %w", i, end-1, err)
		}
	}

	logger.Info().
		Int("faculties", len(catalog.Faculties)).
		Int("courses", len(courses)).
		Msg("catalog imported")
	return nil
}

func (imp *Importer) importUniversity(ctx context.Context, catalog *Catalog, c *counters) (*storage.University, map[string]int64, error) {
	tx, err := imp.storage.BeginTx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	university := &storage.University{
		Code:       catalog.University.Code,
		Name:       catalog.University.Name,
		Country:    catalog.University.Country,
		Region:     catalog.University.Region,
		WebsiteURL: catalog.University.WebsiteURL,
	}
	if err := tx.UpsertUniversity(ctx, university); err != nil {
		return nil, nil, fmt.Errorf("failed to upsert university: %w", err)
	}

	existing, err := tx.ListFaculties(ctx, university.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list faculties: %w", err)
	}
	facultyIDs := make(map[string]int64, len(existing)+len(catalog.Faculties))
	for _, f := range existing {
		facultyIDs[f.Code] = f.ID
	}

	var faculties int32
	for _, rec := range catalog.Faculties {
		faculty := &storage.Faculty{
			UniversityID: university.ID,
			Code:         rec.Code,
			Name:         rec.Name,
			WebsiteURL:   rec.WebsiteURL,
		}
		if err := tx.UpsertFaculty(ctx, faculty); err != nil {
			c.addError("%s: faculty %q: %v", university.Code, rec.Code, err)
			continue
		}
		facultyIDs[faculty.Code] = faculty.ID
		faculties++
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit university: %w", err)
	}
	c.universities.Add(1)
	c.faculties.Add(faculties)
	return university, facultyIDs, nil
}

func (imp *Importer) importCourses(ctx context.Context, university *storage.University, facultyIDs map[string]int64, batch []CourseRecord, c *counters) error {
	tx, err := imp.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var imported, skipped int32
	for _, rec := range batch {
		if rec.Code == "" || rec.Name == "" {
			skipped++
			c.addError("%s: course %q: code and name are required", university.Code, rec.Code)
			continue
		}

		course := &storage.Course{
			UniversityID: university.ID,
			Code:         rec.Code,
			Name:         rec.Name,
			Description:  rec.Description,
			CreditHours:  rec.CreditHours,
			Level:        rec.Level,
			WebsiteURL:   rec.WebsiteURL,
		}
		if rec.FacultyCode != "" {
			id, ok := facultyIDs[rec.FacultyCode]
			if !ok {
				c.addError("%s: course %q: unknown faculty %q", university.Code, rec.Code, rec.FacultyCode)
			} else {
				course.FacultyID = &id
			}
		}

		if err := tx.UpsertCourse(ctx, course); err != nil {
			skipped++
			c.addError("%s: course %q: %v", university.Code, rec.Code, err)
			continue
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit courses: %w", err)
	}
	c.courses.Add(imported)
	c.coursesSkipped.Add(skipped)
	return nil
}

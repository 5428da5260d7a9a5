package storage

import (
	"context"
	"time"

	"github.com/dshills/catalogsearch-mcp/pkg/types"
)

// Storage defines the interface for persisting and querying the course catalog
type Storage interface {
	// University operations
	UpsertUniversity(ctx context.Context, university *University) error
	GetUniversity(ctx context.Context, code string) (*University, error)

	// Faculty operations
	UpsertFaculty(ctx context.Context, faculty *Faculty) error
	GetFaculty(ctx context.Context, universityID int64, code string) (*Faculty, error)
	ListFaculties(ctx context.Context, universityID int64) ([]*Faculty, error)

	// Course operations
	UpsertCourse(ctx context.Context, course *Course) error
	GetCourse(ctx context.Context, universityID int64, code string) (*Course, error)
	ListCourses(ctx context.Context, universityID int64, limit, offset int) ([]*Course, error)
	DeleteCourse(ctx context.Context, courseID int64) error

	// Search operations
	SearchCourses(ctx context.Context, universityID int64, query string, facultyCode *string, limit int) ([]types.CourseResult, error)

	// Status operations
	GetStatus(ctx context.Context, universityID int64) (*CatalogStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// University is a catalog scope; its ID partitions every search
type University struct {
	ID         int64
	Code       string
	Name       string
	Country    string
	Region     string
	WebsiteURL string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Faculty groups courses within a university
type Faculty struct {
	ID           int64
	UniversityID int64
	Code         string
	Name         string
	WebsiteURL   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Course is a catalog record
type Course struct {
	ID           int64
	UniversityID int64
	FacultyID    *int64 // Nullable
	Code         string
	Name         string
	Description  string
	CreditHours  *float64 // Nullable
	Level        string
	WebsiteURL   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CatalogStatus contains statistics about one university's catalog
type CatalogStatus struct {
	University     *University
	FacultiesCount int
	CoursesCount   int
	DatabaseSizeMB float64
	Health         HealthStatus
}

// HealthStatus represents the health of the catalog store
type HealthStatus struct {
	DatabaseAccessible bool
	HasCourses         bool
}

// ToResult converts a Course to the search result shape
func (c *Course) ToResult() types.CourseResult {
	return types.CourseResult{
		ID:   c.ID,
		Code: c.Code,
		Name: c.Name,
	}
}

package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/catalogsearch-mcp/pkg/types"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	return storage
}

// seedCatalog creates one university with two faculties and a handful of courses
func seedCatalog(t *testing.T, s *SQLiteStorage) (*University, map[string]*Faculty) {
	ctx := context.Background()

	uni := &University{Code: "UTEST", Name: "Test University", Country: "CA"}
	require.NoError(t, s.UpsertUniversity(ctx, uni))

	faculties := map[string]*Faculty{
		"SCI": {UniversityID: uni.ID, Code: "SCI", Name: "Science"},
		"ART": {UniversityID: uni.ID, Code: "ART", Name: "Arts"},
	}
	for _, code := range []string{"SCI", "ART"} {
		require.NoError(t, s.UpsertFaculty(ctx, faculties[code]))
	}

	courses := []struct {
		code, name, faculty string
	}{
		{"MATH101", "Calculus I", "SCI"},
		{"MATH201", "Linear Algebra", "SCI"},
		{"CS101", "Intro to Programming", "SCI"},
		{"HIST110", "Mathematics in History", "ART"},
		{"ENGL100", "Composition", "ART"},
	}
	for _, c := range courses {
		fid := faculties[c.faculty].ID
		require.NoError(t, s.UpsertCourse(ctx, &Course{
			UniversityID: uni.ID,
			FacultyID:    &fid,
			Code:         c.code,
			Name:         c.name,
		}))
	}

	return uni, faculties
}

func codes(results []types.CourseResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Code
	}
	return out
}

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	assert.NotNil(t, storage)
	assert.NotNil(t, storage.db)
}

func TestClose(t *testing.T) {
	storage := setupTestDB(t)
	err := storage.Close()
	assert.NoError(t, err)
}

func TestUpsertUniversity(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	uni := &University{Code: "UBC", Name: "University of British Columbia"}
	require.NoError(t, storage.UpsertUniversity(ctx, uni))
	assert.Greater(t, uni.ID, int64(0))
	firstID := uni.ID

	// Upserting the same code updates in place
	again := &University{Code: "UBC", Name: "UBC Vancouver", Region: "BC"}
	require.NoError(t, storage.UpsertUniversity(ctx, again))
	assert.Equal(t, firstID, again.ID)

	got, err := storage.GetUniversity(ctx, "UBC")
	require.NoError(t, err)
	assert.Equal(t, "UBC Vancouver", got.Name)
	assert.Equal(t, "BC", got.Region)

	status, err := storage.GetStatus(ctx, firstID)
	require.NoError(t, err)
	assert.Equal(t, "UBC", status.University.Code)

	// Missing required fields
	err = storage.UpsertUniversity(ctx, &University{Code: "X"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetUniversityNotFound(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	_, err := storage.GetUniversity(ctx, "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = storage.GetStatus(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFaculties(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	uni, faculties := seedCatalog(t, storage)

	got, err := storage.GetFaculty(ctx, uni.ID, "SCI")
	require.NoError(t, err)
	assert.Equal(t, faculties["SCI"].ID, got.ID)
	assert.Equal(t, "Science", got.Name)

	list, err := storage.ListFaculties(ctx, uni.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ART", list[0].Code)
	assert.Equal(t, "SCI", list[1].Code)

	_, err = storage.GetFaculty(ctx, uni.ID, "LAW")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCourses(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	uni, faculties := seedCatalog(t, storage)

	course, err := storage.GetCourse(ctx, uni.ID, "MATH101")
	require.NoError(t, err)
	assert.Equal(t, "Calculus I", course.Name)
	require.NotNil(t, course.FacultyID)
	assert.Equal(t, faculties["SCI"].ID, *course.FacultyID)
	assert.Nil(t, course.CreditHours)

	// Code lookup ignores case
	lower, err := storage.GetCourse(ctx, uni.ID, "math101")
	require.NoError(t, err)
	assert.Equal(t, course.ID, lower.ID)

	// Update keeps the id
	credits := 3.0
	course.Name = "Calculus I (Honours)"
	course.CreditHours = &credits
	require.NoError(t, storage.UpsertCourse(ctx, course))

	updated, err := storage.GetCourse(ctx, uni.ID, "MATH101")
	require.NoError(t, err)
	assert.Equal(t, course.ID, updated.ID)
	assert.Equal(t, "Calculus I (Honours)", updated.Name)
	require.NotNil(t, updated.CreditHours)
	assert.InDelta(t, 3.0, *updated.CreditHours, 0.001)

	all, err := storage.ListCourses(ctx, uni.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	page, err := storage.ListCourses(ctx, uni.ID, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "ENGL100", page[0].Code)

	require.NoError(t, storage.DeleteCourse(ctx, course.ID))
	_, err = storage.GetCourse(ctx, uni.ID, "MATH101")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchCourses(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	uni, _ := seedCatalog(t, storage)

	tests := []struct {
		name    string
		query   string
		faculty *string
		limit   int
		want    []string
	}{
		{name: "code substring", query: "math", want: []string{"MATH101", "MATH201", "HIST110"}},
		{name: "name substring", query: "algebra", want: []string{"MATH201"}},
		{name: "case insensitive", query: "CALCULUS", want: []string{"MATH101"}},
		{name: "trimmed", query: "  cs101  ", want: []string{"CS101"}},
		{name: "faculty filter", query: "math", faculty: strPtr("ART"), want: []string{"HIST110"}},
		{name: "unknown faculty", query: "math", faculty: strPtr("LAW"), want: []string{}},
		{name: "limited", query: "math", limit: 2, want: []string{"MATH101", "MATH201"}},
		{name: "no match", query: "zoology", want: []string{}},
		{name: "wildcard is literal", query: "%", want: []string{}},
		{name: "underscore is literal", query: "_", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := storage.SearchCourses(ctx, uni.ID, tt.query, tt.faculty, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, codes(results))
		})
	}
}

func TestSearchCoursesUnicodeCaseInsensitive(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	uni := &University{Code: "ULAVAL", Name: "Université Laval"}
	require.NoError(t, storage.UpsertUniversity(ctx, uni))
	for _, c := range []*Course{
		{UniversityID: uni.ID, Code: "FRN 1001", Name: "École du français écrit"},
		{UniversityID: uni.ID, Code: "ÉTU 2000", Name: "Études québécoises"},
		{UniversityID: uni.ID, Code: "GEO 1000", Name: "Géographie"},
	} {
		require.NoError(t, storage.UpsertCourse(ctx, c))
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"école", []string{"FRN 1001"}},
		{"ÉCOLE", []string{"FRN 1001"}},
		{"étu", []string{"ÉTU 2000"}},
		{"QUÉBÉC", []string{"ÉTU 2000"}},
		{"géo", []string{"GEO 1000"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			results, err := storage.SearchCourses(ctx, uni.ID, tt.query, nil, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, codes(results))
		})
	}
}

func TestSearchCoursesScopedByUniversity(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	uni, _ := seedCatalog(t, storage)

	other := &University{Code: "OTHER", Name: "Other University"}
	require.NoError(t, storage.UpsertUniversity(ctx, other))
	require.NoError(t, storage.UpsertCourse(ctx, &Course{UniversityID: other.ID, Code: "MATH999", Name: "Topology"}))

	results, err := storage.SearchCourses(ctx, uni.ID, "math", nil, 0)
	require.NoError(t, err)
	assert.NotContains(t, codes(results), "MATH999")

	results, err = storage.SearchCourses(ctx, other.ID, "math", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"MATH999"}, codes(results))
}

func TestGetStatus(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	uni, _ := seedCatalog(t, storage)

	status, err := storage.GetStatus(ctx, uni.ID)
	require.NoError(t, err)
	assert.Equal(t, "UTEST", status.University.Code)
	assert.Equal(t, 2, status.FacultiesCount)
	assert.Equal(t, 5, status.CoursesCount)
	assert.True(t, status.Health.DatabaseAccessible)
	assert.True(t, status.Health.HasCourses)
	assert.GreaterOrEqual(t, status.DatabaseSizeMB, 0.0)

	_, err = storage.GetStatus(ctx, 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransaction(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		tx, err := storage.BeginTx(ctx)
		require.NoError(t, err)

		uni := &University{Code: "TXC", Name: "Committed"}
		require.NoError(t, tx.UpsertUniversity(ctx, uni))
		require.NoError(t, tx.UpsertCourse(ctx, &Course{UniversityID: uni.ID, Code: "A1", Name: "Alpha"}))

		results, err := tx.SearchCourses(ctx, uni.ID, "alpha", nil, 0)
		require.NoError(t, err)
		assert.Len(t, results, 1)

		require.NoError(t, tx.Commit())

		_, err = storage.GetUniversity(ctx, "TXC")
		assert.NoError(t, err)
	})

	t.Run("rollback", func(t *testing.T) {
		tx, err := storage.BeginTx(ctx)
		require.NoError(t, err)

		require.NoError(t, tx.UpsertUniversity(ctx, &University{Code: "TXR", Name: "Rolled back"}))
		require.NoError(t, tx.Rollback())

		_, err = storage.GetUniversity(ctx, "TXR")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("nested not supported", func(t *testing.T) {
		tx, err := storage.BeginTx(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Rollback() }()

		_, err = tx.BeginTx(ctx)
		assert.Error(t, err)
		assert.Error(t, tx.Close())
	})
}

func strPtr(s string) *string {
	return &s
}

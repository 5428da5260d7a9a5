package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/catalogsearch-mcp/internal/querycache"
	"github.com/dshills/catalogsearch-mcp/internal/searcher"
	"github.com/dshills/catalogsearch-mcp/internal/storage"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorInfo      `json:"error"`
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	uni := &storage.University{Code: "ualberta", Name: "University of Alberta"}
	require.NoError(t, store.UpsertUniversity(ctx, uni))
	sci := &storage.Faculty{UniversityID: uni.ID, Code: "SCI", Name: "Science"}
	require.NoError(t, store.UpsertFaculty(ctx, sci))

	credits := 3.0
	for _, c := range []storage.Course{
		{Code: "MATH 100", Name: "Calculus for Engineers"},
		{Code: "CMPUT 201", Name: "Practical Programming Methodology", FacultyID: &sci.ID},
		{Code: "CMPUT 101", Name: "Introduction to Computing", FacultyID: &sci.ID, CreditHours: &credits},
		{Code: "CMPUT", Name: "Computing Science Seminar"},
	} {
		course := c
		course.UniversityID = uni.ID
		require.NoError(t, store.UpsertCourse(ctx, &course))
	}

	cache, err := querycache.NewMemoryStore(10, time.Minute)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	srch := searcher.New(store,
		searcher.WithStore(cache),
		searcher.WithMetrics(searcher.NewMetrics(reg)),
	)

	return NewRouter(NewHandler(store, srch), zerolog.Nop(), reg)
}

func do(t *testing.T, r *gin.Engine, method, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestHealth(t *testing.T) {
	r := setupRouter(t)

	w, _ := do(t, r, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSearchCourses(t *testing.T) {
	r := setupRouter(t)

	w, env := do(t, r, http.MethodGet, "/api/v1/universities/ualberta/search?q=cmput")
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, env.Success)

	var body SearchResponse
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "ualberta", body.University)
	assert.True(t, body.Ranked)
	assert.False(t, body.CacheHit)
	require.Len(t, body.Results, 3)
	assert.Equal(t, "CMPUT", body.Results[0].Code)
	assert.Equal(t, "exact_code", body.Results[0].Match)
	assert.Equal(t, "CMPUT 101", body.Results[1].Code)
	assert.Equal(t, "CMPUT 201", body.Results[2].Code)

	_, env = do(t, r, http.MethodGet, "/api/v1/universities/ualberta/search?q=CMPUT")
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.True(t, body.CacheHit)
}

func TestSearchCoursesUnrankedFiltered(t *testing.T) {
	r := setupRouter(t)

	w, env := do(t, r, http.MethodGet, "/api/v1/universities/ualberta/search?q=cmput&faculty=SCI&ranked=false&limit=1")
	require.Equal(t, http.StatusOK, w.Code)

	var body SearchResponse
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "SCI", body.Faculty)
	assert.False(t, body.Ranked)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "CMPUT 201", body.Results[0].Code)
	assert.Empty(t, body.Results[0].Match)
}

func TestSearchCoursesErrors(t *testing.T) {
	r := setupRouter(t)

	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{name: "missing q", path: "/api/v1/universities/ualberta/search", status: http.StatusBadRequest, code: "BAD_REQUEST"},
		{name: "blank q", path: "/api/v1/universities/ualberta/search?q=%20%20", status: http.StatusBadRequest, code: "BAD_REQUEST"},
		{name: "negative limit", path: "/api/v1/universities/ualberta/search?q=math&limit=-1", status: http.StatusBadRequest, code: "BAD_REQUEST"},
		{name: "unknown university", path: "/api/v1/universities/mit/search?q=math", status: http.StatusNotFound, code: "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := do(t, r, http.MethodGet, tt.path)
			assert.Equal(t, tt.status, w.Code)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestGetCourse(t *testing.T) {
	r := setupRouter(t)

	w, env := do(t, r, http.MethodGet, "/api/v1/universities/ualberta/courses/"+url.PathEscape("CMPUT 101"))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "CMPUT 101", body["code"])
	assert.Equal(t, 3.0, body["credit_hours"])

	w, _ = do(t, r, http.MethodGet, "/api/v1/universities/ualberta/courses/NOPE")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListCourses(t *testing.T) {
	r := setupRouter(t)

	w, env := do(t, r, http.MethodGet, "/api/v1/universities/ualberta/courses?limit=2&offset=1")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Courses []struct {
			Code string `json:"code"`
		} `json:"courses"`
		Count  int `json:"count"`
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, 2, body.Limit)
	assert.Equal(t, 1, body.Offset)
	require.Len(t, body.Courses, 2)
	assert.Equal(t, "CMPUT 101", body.Courses[0].Code)
	assert.Equal(t, "CMPUT 201", body.Courses[1].Code)

	_, env = do(t, r, http.MethodGet, "/api/v1/universities/ualberta/courses")
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, 4, body.Count)
	assert.Equal(t, DefaultListLimit, body.Limit)

	w, _ = do(t, r, http.MethodGet, "/api/v1/universities/ualberta/courses?offset=-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodGet, "/api/v1/universities/nope/courses")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteCourseFlushesCache(t *testing.T) {
	r := setupRouter(t)
	path := "/api/v1/universities/ualberta/courses/" + url.PathEscape("MATH 100")

	_, env := do(t, r, http.MethodGet, "/api/v1/universities/ualberta/search?q=calculus")
	var search SearchResponse
	require.NoError(t, json.Unmarshal(env.Data, &search))
	require.Equal(t, 1, search.Count)

	w, env := do(t, r, http.MethodDelete, path)
	require.Equal(t, http.StatusOK, w.Code)
	var deleted map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &deleted))
	assert.Equal(t, true, deleted["deleted"])
	assert.Equal(t, true, deleted["cache_cleared"])

	_, env = do(t, r, http.MethodGet, "/api/v1/universities/ualberta/search?q=calculus")
	require.NoError(t, json.Unmarshal(env.Data, &search))
	assert.False(t, search.CacheHit)
	assert.Equal(t, 0, search.Count)

	w, _ = do(t, r, http.MethodGet, path)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = do(t, r, http.MethodDelete, path)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFaculties(t *testing.T) {
	r := setupRouter(t)

	w, env := do(t, r, http.MethodGet, "/api/v1/universities/ualberta/faculties")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Faculties []map[string]interface{} `json:"faculties"`
		Count     int                      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, "SCI", list.Faculties[0]["code"])

	w, env = do(t, r, http.MethodGet, "/api/v1/universities/ualberta/faculties/SCI")
	require.Equal(t, http.StatusOK, w.Code)
	var faculty map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &faculty))
	assert.Equal(t, "Science", faculty["name"])

	w, _ = do(t, r, http.MethodGet, "/api/v1/universities/ualberta/faculties/ART")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetStatus(t *testing.T) {
	r := setupRouter(t)

	w, env := do(t, r, http.MethodGet, "/api/v1/universities/ualberta/status")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.EqualValues(t, 4, body["courses_count"])
	assert.EqualValues(t, 1, body["faculties_count"])

	cache := body["cache"].(map[string]interface{})
	assert.Equal(t, true, cache["enabled"])
	assert.EqualValues(t, 10, cache["max_size"])
	assert.EqualValues(t, 60, cache["ttl_seconds"])
}

func TestCacheEndpoints(t *testing.T) {
	r := setupRouter(t)

	_, _ = do(t, r, http.MethodGet, "/api/v1/universities/ualberta/search?q=math")

	_, env := do(t, r, http.MethodGet, "/api/v1/cache/stats")
	var stats CacheStatsResponse
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.True(t, stats.Enabled)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Active)

	w, env := do(t, r, http.MethodPost, "/api/v1/cache/clear")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	_, env = do(t, r, http.MethodGet, "/api/v1/cache/stats")
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 0, stats.Total)
}

func TestMetricsEndpoint(t *testing.T) {
	r := setupRouter(t)

	_, _ = do(t, r, http.MethodGet, "/api/v1/universities/ualberta/search?q=math")
	_, _ = do(t, r, http.MethodGet, "/api/v1/universities/ualberta/search?q=math")

	w, _ := do(t, r, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "catalogsearch_cache_hits_total 1")
	assert.Contains(t, w.Body.String(), "catalogsearch_cache_misses_total 1")
}

package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dshills/catalogsearch-mcp/internal/log"
	"github.com/dshills/catalogsearch-mcp/internal/querycache"
	"github.com/dshills/catalogsearch-mcp/internal/ranking"
	"github.com/dshills/catalogsearch-mcp/internal/searcher"
	"github.com/dshills/catalogsearch-mcp/internal/storage"
	"github.com/dshills/catalogsearch-mcp/pkg/types"
)

// Handler serves the catalog search HTTP API
type Handler struct {
	storage  storage.Storage
	searcher *searcher.Searcher
}

// NewHandler creates a new HTTP handler
func NewHandler(store storage.Storage, srch *searcher.Searcher) *Handler {
	return &Handler{
		storage:  store,
		searcher: srch,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		uni := api.Group("/universities/:university")
		uni.GET("/search", h.SearchCourses)
		uni.GET("/faculties", h.ListFaculties)
		uni.GET("/faculties/:faculty", h.GetFaculty)
		uni.GET("/courses", h.ListCourses)
		uni.GET("/courses/:code", h.GetCourse)
		uni.DELETE("/courses/:code", h.DeleteCourse)
		uni.GET("/status", h.GetStatus)

		api.GET("/cache/stats", h.CacheStats)
		api.POST("/cache/clear", h.ClearCache)
	}
}

// NewRouter builds the Gin engine with logging, recovery, health and metrics
// endpoints. gatherer may be nil to omit /metrics.
func NewRouter(h *Handler, logger zerolog.Logger, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(log.GinMiddleware(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	h.RegisterRoutes(r)
	return r
}

// SearchParams are the query parameters of a course search
type SearchParams struct {
	Query   string `form:"q" binding:"required"`
	Faculty string `form:"faculty"`
	Limit   int    `form:"limit" binding:"min=0"`
	Ranked  *bool  `form:"ranked"`
}

// ListParams page through a catalog listing
type ListParams struct {
	Limit  int `form:"limit" binding:"min=0,max=1000"`
	Offset int `form:"offset" binding:"min=0"`
}

// DefaultListLimit applies when a listing has no limit
const DefaultListLimit = 100

// CourseResult is a search hit as rendered by the API
type CourseResult struct {
	ID    int64  `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Match string `json:"match,omitempty"`
}

// SearchResponse is the body of a successful search
type SearchResponse struct {
	University string         `json:"university"`
	Query      string         `json:"query"`
	Faculty    string         `json:"faculty,omitempty"`
	Results    []CourseResult `json:"results"`
	Count      int            `json:"count"`
	Ranked     bool           `json:"ranked"`
	CacheHit   bool           `json:"cache_hit"`
	DurationMS int64          `json:"duration_ms"`
}

// CacheStatsResponse is the body of the cache stats endpoint
type CacheStatsResponse struct {
	Enabled bool `json:"enabled"`
	querycache.Stats
	TTLSeconds int64 `json:"ttl_seconds"`
}

// SearchCourses handles a course search within one university
func (h *Handler) SearchCourses(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	university, ok := h.resolveUniversity(c)
	if !ok {
		return
	}

	var params SearchParams
	if err := c.ShouldBindQuery(&params); err != nil {
		l.Warn().Err(err).Msg("invalid search request")
		badRequest(c, err.Error())
		return
	}

	ranked := true
	if params.Ranked != nil {
		ranked = *params.Ranked
	}
	var faculty *string
	if f := strings.TrimSpace(params.Faculty); f != "" {
		faculty = &f
	}

	resp, err := h.searcher.Search(ctx, searcher.SearchRequest{
		UniversityID: university.ID,
		Query:        params.Query,
		FacultyCode:  faculty,
		Limit:        params.Limit,
		Rank:         ranked,
	})
	if errors.Is(err, types.ErrInvalidQuery) {
		badRequest(c, err.Error())
		return
	}
	if err != nil {
		l.Error().Err(err).Str(log.FieldQuery, params.Query).Msg("search failed")
		internalError(c, "search failed")
		return
	}

	results := make([]CourseResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		item := CourseResult{ID: r.ID, Code: r.Code, Name: r.Name}
		if ranked {
			item.Match = ranking.Classify(r, params.Query).String()
		}
		results = append(results, item)
	}

	body := SearchResponse{
		University: university.Code,
		Query:      params.Query,
		Results:    results,
		Count:      len(results),
		Ranked:     resp.Ranked,
		CacheHit:   resp.CacheHit,
		DurationMS: resp.Duration.Milliseconds(),
	}
	if faculty != nil {
		body.Faculty = *faculty
	}
	success(c, body)
}

// GetCourse returns one course by code, bypassing the query cache
func (h *Handler) GetCourse(c *gin.Context) {
	ctx := c.Request.Context()

	university, ok := h.resolveUniversity(c)
	if !ok {
		return
	}

	course, err := h.storage.GetCourse(ctx, university.ID, c.Param("code"))
	if errors.Is(err, storage.ErrNotFound) {
		notFound(c, "course not found")
		return
	}
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("course lookup failed")
		internalError(c, "course lookup failed")
		return
	}

	success(c, courseBody(university, course))
}

// ListCourses pages through a university's courses in code order
func (h *Handler) ListCourses(c *gin.Context) {
	ctx := c.Request.Context()

	university, ok := h.resolveUniversity(c)
	if !ok {
		return
	}

	var params ListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		badRequest(c, err.Error())
		return
	}
	if params.Limit == 0 {
		params.Limit = DefaultListLimit
	}

	courses, err := h.storage.ListCourses(ctx, university.ID, params.Limit, params.Offset)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("course listing failed")
		internalError(c, "course listing failed")
		return
	}

	items := make([]gin.H, 0, len(courses))
	for _, course := range courses {
		items = append(items, courseBody(university, course))
	}
	success(c, gin.H{
		"university": university.Code,
		"courses":    items,
		"count":      len(items),
		"limit":      params.Limit,
		"offset":     params.Offset,
	})
}

// DeleteCourse removes one course and flushes the query cache, which may
// still hold it
func (h *Handler) DeleteCourse(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	university, ok := h.resolveUniversity(c)
	if !ok {
		return
	}

	course, err := h.storage.GetCourse(ctx, university.ID, c.Param("code"))
	if errors.Is(err, storage.ErrNotFound) {
		notFound(c, "course not found")
		return
	}
	if err != nil {
		l.Error().Err(err).Msg("course lookup failed")
		internalError(c, "course lookup failed")
		return
	}

	if err := h.storage.DeleteCourse(ctx, course.ID); err != nil {
		l.Error().Err(err).Str("code", course.Code).Msg("course delete failed")
		internalError(c, "course delete failed")
		return
	}

	cacheCleared := true
	if err := h.searcher.ClearCache(ctx); err != nil {
		l.Warn().Err(err).Msg("cache flush after delete failed")
		cacheCleared = false
	}
	success(c, gin.H{
		"deleted":       true,
		"code":          course.Code,
		"cache_cleared": cacheCleared,
	})
}

// ListFaculties returns every faculty of a university
func (h *Handler) ListFaculties(c *gin.Context) {
	ctx := c.Request.Context()

	university, ok := h.resolveUniversity(c)
	if !ok {
		return
	}

	faculties, err := h.storage.ListFaculties(ctx, university.ID)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("faculty listing failed")
		internalError(c, "faculty listing failed")
		return
	}

	items := make([]gin.H, 0, len(faculties))
	for _, f := range faculties {
		items = append(items, facultyBody(f))
	}
	success(c, gin.H{
		"university": university.Code,
		"faculties":  items,
		"count":      len(items),
	})
}

// GetFaculty returns one faculty by code
func (h *Handler) GetFaculty(c *gin.Context) {
	ctx := c.Request.Context()

	university, ok := h.resolveUniversity(c)
	if !ok {
		return
	}

	faculty, err := h.storage.GetFaculty(ctx, university.ID, c.Param("faculty"))
	if errors.Is(err, storage.ErrNotFound) {
		notFound(c, "faculty not found")
		return
	}
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("faculty lookup failed")
		internalError(c, "faculty lookup failed")
		return
	}
	success(c, facultyBody(faculty))
}

func courseBody(university *storage.University, course *storage.Course) gin.H {
	return gin.H{
		"id":           course.ID,
		"university":   university.Code,
		"code":         course.Code,
		"name":         course.Name,
		"faculty_id":   course.FacultyID,
		"description":  course.Description,
		"credit_hours": course.CreditHours,
		"level":        course.Level,
		"website_url":  course.WebsiteURL,
	}
}

func facultyBody(f *storage.Faculty) gin.H {
	return gin.H{
		"id":          f.ID,
		"code":        f.Code,
		"name":        f.Name,
		"website_url": f.WebsiteURL,
	}
}

// GetStatus returns catalog counts for one university plus cache occupancy
func (h *Handler) GetStatus(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	university, ok := h.resolveUniversity(c)
	if !ok {
		return
	}

	status, err := h.storage.GetStatus(ctx, university.ID)
	if err != nil {
		l.Error().Err(err).Msg("status lookup failed")
		internalError(c, "status lookup failed")
		return
	}

	body := gin.H{
		"university":       university.Code,
		"name":             university.Name,
		"faculties_count":  status.FacultiesCount,
		"courses_count":    status.CoursesCount,
		"database_size_mb": status.DatabaseSizeMB,
		"health": gin.H{
			"database_accessible": status.Health.DatabaseAccessible,
			"has_courses":         status.Health.HasCourses,
		},
	}
	if stats, err := h.searcher.CacheStats(ctx); err == nil {
		body["cache"] = h.cacheStats(stats)
	} else {
		l.Warn().Err(err).Msg("cache stats unavailable")
	}
	success(c, body)
}

// CacheStats reports query cache occupancy
func (h *Handler) CacheStats(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := h.searcher.CacheStats(ctx)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("cache stats failed")
		internalError(c, "cache stats failed")
		return
	}
	success(c, h.cacheStats(stats))
}

// ClearCache drops every cached search result
func (h *Handler) ClearCache(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.searcher.ClearCache(ctx); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("cache clear failed")
		internalError(c, "cache clear failed")
		return
	}
	success(c, gin.H{"cleared": true})
}

func (h *Handler) cacheStats(stats querycache.Stats) CacheStatsResponse {
	return CacheStatsResponse{
		Enabled:    h.searcher.CachingEnabled(),
		Stats:      stats,
		TTLSeconds: stats.TTLSeconds(),
	}
}

// resolveUniversity loads the university named in the path, writing the
// error response itself when it cannot
func (h *Handler) resolveUniversity(c *gin.Context) (*storage.University, bool) {
	ctx := c.Request.Context()
	code := c.Param("university")

	university, err := h.storage.GetUniversity(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		notFound(c, "university not found")
		return nil, false
	}
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str("university", code).Msg("university lookup failed")
		internalError(c, "university lookup failed")
		return nil, false
	}
	return university, true
}

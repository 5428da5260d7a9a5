package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/catalogsearch-mcp/internal/importer"
	"github.com/dshills/catalogsearch-mcp/internal/log"
	"github.com/dshills/catalogsearch-mcp/internal/querycache"
	"github.com/dshills/catalogsearch-mcp/internal/ranking"
	"github.com/dshills/catalogsearch-mcp/internal/searcher"
	"github.com/dshills/catalogsearch-mcp/internal/storage"
	"github.com/dshills/catalogsearch-mcp/pkg/types"
)

// Listing bounds for list_courses
const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeUniversityNotFound = -32001 // No catalog for the university code
	ErrorCodeImportInProgress   = -32002 // Another import is already running
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

// Path validation errors
var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
)

// handleSearchCourses handles the search_courses tool invocation
func (s *Server) handleSearchCourses(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = withToolLogger(ctx, request.Params.Name)

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	university, err := s.resolveUniversity(ctx, args)
	if err != nil {
		return nil, err
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 0)
	if limit < 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be positive", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	var facultyCode *string
	if fc := strings.TrimSpace(getStringDefault(args, "faculty_code", "")); fc != "" {
		facultyCode = &fc
	}

	ranked := getBoolDefault(args, "ranked", true)

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		UniversityID: university.ID,
		Query:        query,
		FacultyCode:  facultyCode,
		Limit:        limit,
		Rank:         ranked,
	})
	if errors.Is(err, types.ErrInvalidQuery) {
		return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), map[string]interface{}{
			"param": "query",
			"value": query,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"university":  university.Code,
		"query":       query,
		"results":     formatResults(resp.Results, query, ranked),
		"count":       len(resp.Results),
		"ranked":      resp.Ranked,
		"cache_hit":   resp.CacheHit,
		"duration_ms": resp.Duration.Milliseconds(),
	}
	if facultyCode != nil {
		response["faculty_code"] = *facultyCode
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListFaculties handles the list_faculties tool invocation
func (s *Server) handleListFaculties(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = withToolLogger(ctx, request.Params.Name)

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	university, err := s.resolveUniversity(ctx, args)
	if err != nil {
		return nil, err
	}

	faculties, err := s.storage.ListFaculties(ctx, university.ID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list faculties", map[string]interface{}{
			"error": err.Error(),
		})
	}

	items := make([]map[string]interface{}, 0, len(faculties))
	for _, f := range faculties {
		items = append(items, map[string]interface{}{
			"code":        f.Code,
			"name":        f.Name,
			"website_url": f.WebsiteURL,
		})
	}

	response := map[string]interface{}{
		"university": university.Code,
		"faculties":  items,
		"count":      len(items),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListCourses handles the list_courses tool invocation
func (s *Server) handleListCourses(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = withToolLogger(ctx, request.Params.Name)

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	university, err := s.resolveUniversity(ctx, args)
	if err != nil {
		return nil, err
	}

	limit := getIntDefault(args, "limit", defaultListLimit)
	if limit < 1 || limit > maxListLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", maxListLimit), map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}
	offset := getIntDefault(args, "offset", 0)
	if offset < 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "offset must not be negative", map[string]interface{}{
			"param": "offset",
			"value": offset,
		})
	}

	courses, err := s.storage.ListCourses(ctx, university.ID, limit, offset)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list courses", map[string]interface{}{
			"error": err.Error(),
		})
	}

	items := make([]map[string]interface{}, 0, len(courses))
	for _, c := range courses {
		item := map[string]interface{}{
			"id":   c.ID,
			"code": c.Code,
			"name": c.Name,
		}
		if c.CreditHours != nil {
			item["credit_hours"] = *c.CreditHours
		}
		if c.Level != "" {
			item["level"] = c.Level
		}
		items = append(items, item)
	}

	response := map[string]interface{}{
		"university": university.Code,
		"courses":    items,
		"count":      len(items),
		"limit":      limit,
		"offset":     offset,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = withToolLogger(ctx, request.Params.Name)

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	university, err := s.resolveUniversity(ctx, args)
	if err != nil {
		return nil, err
	}

	status, err := s.storage.GetStatus(ctx, university.ID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"university": map[string]interface{}{
			"code":    university.Code,
			"name":    university.Name,
			"country": university.Country,
			"region":  university.Region,
		},
		"statistics": map[string]interface{}{
			"faculties_count":  status.FacultiesCount,
			"courses_count":    status.CoursesCount,
			"database_size_mb": fmt.Sprintf("%.2f", status.DatabaseSizeMB),
		},
		"health": map[string]interface{}{
			"database_accessible": status.Health.DatabaseAccessible,
			"has_courses":         status.Health.HasCourses,
		},
	}

	// Cache stats are informational; a failing store does not fail the status call
	if stats, err := s.searcher.CacheStats(ctx); err == nil {
		response["cache"] = s.formatCacheStats(stats)
	} else {
		logger := log.Ctx(ctx)
		logger.Warn().Err(err).Msg("cache stats unavailable")
		response["cache"] = map[string]interface{}{"error": err.Error()}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleCacheStats handles the cache_stats tool invocation
func (s *Server) handleCacheStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = withToolLogger(ctx, request.Params.Name)

	stats, err := s.searcher.CacheStats(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get cache stats", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(s.formatCacheStats(stats))), nil
}

// handleClearCache handles the clear_cache tool invocation
func (s *Server) handleClearCache(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = withToolLogger(ctx, request.Params.Name)

	if err := s.searcher.ClearCache(ctx); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to clear cache", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"cleared": true,
		"enabled": s.searcher.CachingEnabled(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleImportCatalog handles the import_catalog tool invocation
func (s *Server) handleImportCatalog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = withToolLogger(ctx, request.Params.Name)

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path := getStringDefault(args, "path", "")
	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	batchSize := getIntDefault(args, "batch_size", importer.DefaultBatchSize)
	if batchSize < 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "batch_size must be positive", map[string]interface{}{
			"param": "batch_size",
			"value": batchSize,
		})
	}

	stats, err := s.importer.ImportPath(ctx, path, &importer.Config{BatchSize: batchSize})
	if errors.Is(err, importer.ErrImportInProgress) {
		return nil, newMCPError(ErrorCodeImportInProgress, err.Error(), nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "import failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"imported":        stats.FilesImported > 0,
		"files_imported":  stats.FilesImported,
		"files_failed":    stats.FilesFailed,
		"universities":    stats.Universities,
		"faculties":       stats.Faculties,
		"courses":         stats.Courses,
		"courses_skipped": stats.CoursesSkipped,
		"duration_ms":     stats.Duration.Milliseconds(),
	}

	if len(stats.ErrorMessages) > 0 {
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// resolveUniversity maps the university code argument to its catalog scope
func (s *Server) resolveUniversity(ctx context.Context, args map[string]interface{}) (*storage.University, error) {
	code, ok := args["university"].(string)
	code = strings.TrimSpace(code)
	if !ok || code == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "university parameter is required", map[string]interface{}{
			"param":  "university",
			"reason": "missing or empty",
		})
	}

	university, err := s.storage.GetUniversity(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newMCPError(ErrorCodeUniversityNotFound, "university not found", map[string]interface{}{
			"param": "university",
			"value": code,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to look up university", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return university, nil
}

// Helper functions

// validatePath checks that path is an absolute, readable file or directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()
	return nil
}

func withToolLogger(ctx context.Context, tool string) context.Context {
	logger := log.Ctx(ctx)
	return log.WithLogger(ctx, logger.With().Str(log.FieldTool, tool).Logger())
}

func formatResults(results []types.CourseResult, query string, ranked bool) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		item := map[string]interface{}{
			"id":   r.ID,
			"code": r.Code,
			"name": r.Name,
		}
		if ranked {
			item["match"] = ranking.Classify(r, query).String()
		}
		out = append(out, item)
	}
	return out
}

func (s *Server) formatCacheStats(stats querycache.Stats) map[string]interface{} {
	return map[string]interface{}{
		"enabled":         s.searcher.CachingEnabled(),
		"total_entries":   stats.Total,
		"expired_entries": stats.Expired,
		"active_entries":  stats.Active,
		"max_size":        stats.Capacity,
		"ttl_seconds":     stats.TTLSeconds(),
	}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchCoursesTool returns the tool definition for search_courses
func searchCoursesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_courses",
		Description: "Search a university's course catalog by course code or name",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"university": map[string]interface{}{
					"type":        "string",
					"description": "University code, e.g. 'ualberta'",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Substring of a course code or name, e.g. 'cmput 2' or 'calculus'",
				},
				"faculty_code": map[string]interface{}{
					"type":        "string",
					"description": "Optional faculty code to restrict results to",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100, default 50)",
					"minimum":     1,
					"maximum":     100,
				},
				"ranked": map[string]interface{}{
					"type":        "boolean",
					"description": "Order results by relevance: exact code, code prefix, name prefix, then other matches",
					"default":     true,
				},
			},
			Required: []string{"university", "query"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report catalog statistics for a university and query cache occupancy",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"university": map[string]interface{}{
					"type":        "string",
					"description": "University code",
				},
			},
			Required: []string{"university"},
		},
	}
}

// cacheStatsTool returns the tool definition for cache_stats
func cacheStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "cache_stats",
		Description: "Report query cache occupancy and configuration",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// clearCacheTool returns the tool definition for clear_cache
func clearCacheTool() mcp.Tool {
	return mcp.Tool{
		Name:        "clear_cache",
		Description: "Drop every cached search result",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// importCatalogTool returns the tool definition for import_catalog
func importCatalogTool() mcp.Tool {
	return mcp.Tool{
		Name:        "import_catalog",
		Description: "Import JSON catalog files into the course store and flush the query cache",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to a catalog .json file or a directory of them",
				},
				"batch_size": map[string]interface{}{
					"type":        "integer",
					"description": "Courses committed per transaction (default 200)",
					"minimum":     1,
				},
			},
			Required: []string{"path"},
		},
	}
}

// listFacultiesTool returns the tool definition for list_faculties
func listFacultiesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_faculties",
		Description: "List a university's faculties; their codes are valid search_courses faculty_code filters",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"university": map[string]interface{}{
					"type":        "string",
					"description": "University code",
				},
			},
			Required: []string{"university"},
		},
	}
}

// listCoursesTool returns the tool definition for list_courses
func listCoursesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_courses",
		Description: "Page through a university's courses in course code order",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"university": map[string]interface{}{
					"type":        "string",
					"description": "University code",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Page size (1-1000, default 100)",
					"minimum":     1,
					"maximum":     1000,
				},
				"offset": map[string]interface{}{
					"type":        "integer",
					"description": "Number of courses to skip (default 0)",
					"minimum":     0,
				},
			},
			Required: []string{"university"},
		},
	}
}

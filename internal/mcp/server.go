package mcp

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/catalogsearch-mcp/internal/importer"
	"github.com/dshills/catalogsearch-mcp/internal/searcher"
	"github.com/dshills/catalogsearch-mcp/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "catalogsearch-mcp"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	storage  storage.Storage
	searcher *searcher.Searcher
	importer *importer.Importer
}

// NewServer creates a new MCP server over an open catalog store and searcher
func NewServer(store storage.Storage, srch *searcher.Searcher, version string) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if srch == nil {
		return nil, fmt.Errorf("searcher is required")
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		mcp:      mcpServer,
		storage:  store,
		searcher: srch,
		importer: importer.New(store, importer.WithAfterImport(srch.ClearCache)),
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Serve runs the MCP server on stdio and blocks until stdin closes or ctx
// is cancelled
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(searchCoursesTool(), s.handleSearchCourses)
	s.mcp.AddTool(listFacultiesTool(), s.handleListFaculties)
	s.mcp.AddTool(listCoursesTool(), s.handleListCourses)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(cacheStatsTool(), s.handleCacheStats)
	s.mcp.AddTool(clearCacheTool(), s.handleClearCache)
	s.mcp.AddTool(importCatalogTool(), s.handleImportCatalog)
	return nil
}

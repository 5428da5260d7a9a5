// Package log wraps zerolog with a process-wide logger, context-scoped
// child loggers and a Gin request middleware.
//
// Output is always stderr because stdout carries the MCP stdio transport.
package log

// Package mcp implements the Model Context Protocol (MCP) server for the
// course catalog.
//
// The server exposes seven tools:
//   - search_courses: search one university's catalog, cached and optionally ranked
//   - list_faculties: a university's faculties (valid faculty_code filters)
//   - list_courses: page through a university's courses in code order
//   - get_status: catalog counts for a university plus cache occupancy
//   - cache_stats: query cache occupancy and configuration
//   - clear_cache: drop every cached search result
//   - import_catalog: load JSON catalog files, then flush the query cache
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Logs go to stderr so they never interleave with protocol messages.
//
// # Tool: search_courses
//
//	Request:
//	{
//	  "university": "ualberta",
//	  "query": "cmput 2",
//	  "faculty_code": "SCI",   // optional
//	  "limit": 20,             // optional, 1-100, default 50
//	  "ranked": true           // optional, default true
//	}
//
//	Response:
//	{
//	  "university": "ualberta",
//	  "query": "cmput 2",
//	  "results": [
//	    {"id": 12, "code": "CMPUT 201", "name": "Practical Programming Methodology", "match": "code_prefix"}
//	  ],
//	  "count": 1,
//	  "ranked": true,
//	  "cache_hit": false,
//	  "duration_ms": 3
//	}
//
// # Error Codes
//
//	-32602  Invalid params (missing university, query shorter than the minimum)
//	-32603  Internal error (backing search or cache administration failed)
//	-32001  University not found
//	-32002  Another import is already running
//	-32004  Empty query
//
// Cache faults never surface as errors; the lookup falls through to the
// catalog instead.
package mcp

// Package httpapi serves the course search over HTTP with Gin.
//
// Routes:
//
//	GET  /api/v1/universities/:university/search?q=&faculty=&limit=&ranked=
//	GET  /api/v1/universities/:university/courses/:code
//	GET  /api/v1/universities/:university/status
//	GET  /api/v1/cache/stats
//	POST /api/v1/cache/clear
//	GET  /health
//	GET  /metrics
//
// Every /api response uses the {success, data, error} envelope.
package httpapi

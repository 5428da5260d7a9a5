package log

// ServiceName is attached to every log line
const ServiceName = "catalogsearch"

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Service
	FieldService = "service"

	// Search
	FieldUniversityID = "university_id"
	FieldQuery        = "query"
	FieldCacheKey     = "cache_key"
	FieldCacheOp      = "cache_op"
	FieldResults      = "results"
	FieldTool         = "tool"
)

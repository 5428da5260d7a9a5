// Package config loads service configuration with viper.
//
// Values come from defaults, an optional config.yaml and environment
// variables, later sources winning. Every key can be set as CATALOG_<KEY>
// with dots replaced by underscores (CATALOG_CACHE_BACKEND=redis). The
// legacy names COURSE_CACHE_SIZE, COURSE_CACHE_TTL (seconds), REDIS_URL,
// API_HOST, API_PORT and CATALOG_DB_PATH are honored as well.
package config

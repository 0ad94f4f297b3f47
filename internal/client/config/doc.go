// Package config loads runtime configuration for the ipdash CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected via -c or -config; YAML when the name
//     ends in .yaml/.yml, JSON otherwise.
//  3. Environment: IPDASH_API_URL and IPINFO_TOKEN.
//  4. Command-line flags, which override everything else.
//
// Supported flags
//
//	-a string   backend API base URL (default http://localhost:5000/api)
//	-i int      session revalidation interval (seconds, default 300)
//	-d string   local database path (default ipdash.db)
//	-l string   log level (default info)
//
// # File schema
//
//	base_url: http://localhost:5000/api
//	revalidate_interval: 5m
//	db_path: ipdash.db
//	ipinfo_url: https://ipinfo.io
//	ipinfo_token: ""
//	log_level: info
//
// The same keys are used in JSON files.
package config

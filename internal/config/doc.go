// Package config handles configuration loading for the hallway server.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from HALLWAY_CONFIG environment variable
//  2. ./hallway.yaml (current directory)
//  3. ~/.config/hallway/hallway.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${HALLWAY_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	auth:
//	  session_ttl: "168h"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	  base_url: "https://chat.example.com"  # Used in verification links
//
// Database:
//
//	database:
//	  path: "/var/lib/hallway/hallway.db"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${HALLWAY_JWT_SECRET}"  # Required
//	  session_ttl: "168h"                  # Default: 168h (7 days)
//
// Outbound mail (verification links are logged when disabled):
//
//	smtp:
//	  enabled: true
//	  host: "smtp.example.com"
//	  port: 587
//	  from: "hallway@example.com"
//	  username: "mailer"
//	  password: "${HALLWAY_SMTP_PASSWORD}"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config

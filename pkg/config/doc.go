// Package config loads jobportal configuration.
//
// Values are resolved in layers: built-in defaults, then an optional YAML file
// named by JOBPORTAL_CONFIG_FILE, then JOBPORTAL_* environment variables. A
// .env file in the working directory (or JOBPORTAL_ENV_FILE) is read before the
// environment without replacing variables that are already set.
//
// Common variables:
//
//	JOBPORTAL_PORT="8080"
//	JOBPORTAL_SESSION_SECRET="..."          # at least 32 characters
//	JOBPORTAL_STORAGE_TYPE="postgres"       # memory, postgres
//	JOBPORTAL_POSTGRES_URL="postgres://localhost/jobportal?sslmode=disable"
//	JOBPORTAL_REDIS_URL="redis://localhost:6379/0"
//	JOBPORTAL_S3_BUCKET="jobportal-uploads"
//	JOBPORTAL_GOOGLE_CLIENT_ID="...apps.googleusercontent.com"
//	JOBPORTAL_SMTP_HOST="smtp.example.com"
//	JOBPORTAL_LOG_LEVEL="info"              # debug, info, warn, error
//
// The YAML file mirrors the Config struct:
//
//	server:
//	  port: "9000"
//	storage:
//	  type: postgres
//	  postgres_url: postgres://db/jobportal
//	rate_limit:
//	  otp:
//	    requests_per_window: 3
//	    window_duration: 1m
package config

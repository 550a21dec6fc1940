// Package config handles configuration loading for the chatbot service.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults; every field is optional
// except what Validate enforces.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	llm:
//	  api_key: "${CHATBOT_LLM_API_KEY}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	llm:
//	  request_timeout: "60s"
//	capabilities:
//	  dispatch_timeout: "30s"
//
// # Configuration Sections
//
// Server:
//
//	server:
//	  http_addr: "0.0.0.0:8000"
//
// Model service:
//
//	llm:
//	  api_key: "${CHATBOT_LLM_API_KEY}"
//	  base_url: "https://api.openai.com/v1"
//	  model: "gpt-4o"
//	  max_rounds: 5        # model round-trips per user turn
//	  max_retries: 2       # client retries on 429/5xx
//	  request_timeout: "60s"
//
// Product database:
//
//	database:
//	  path: "data/chatbot.db"
//
// Session transcripts:
//
//	session:
//	  backend: "memory"    # memory, sqlite, redis
//	  redis_addr: "localhost:6379"
//	  history_limit: 200
//
// Capabilities:
//
//	capabilities:
//	  active: "city,weather"   # empty activates all discovered capabilities
//	  dispatch_timeout: "30s"
//	  weather:
//	    api_key: "${OPENWEATHERMAP_API_KEY}"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config

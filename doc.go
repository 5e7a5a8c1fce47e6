// Package notely is a rate-limited AI assistant service for a note-taking app.
//
// A client posts a question together with its notes; notely asks a Gemini
// model and returns a markdown answer. Every caller is held to two fixed
// windows, a per-minute and a per-day request quota, before any model call
// is made.
//
// # Quick Start
//
// Install notely:
//
//	go install github.com/kadirpekel/notely/cmd/notely@latest
//
// Start the server with defaults (5 requests/minute, 20 requests/day):
//
//	export GEMINI_API_KEY=...
//	notely serve
//
// Or with a config file:
//
//	rate_limit:
//	  requests_per_minute: 10
//	  requests_per_day: 100
//	llm:
//	  api_key: ${GEMINI_API_KEY}
//	  model: gemini-2.0-flash
//
//	notely serve --config notely.yaml --watch
//
// Ask a question:
//
//	curl -X POST localhost:8080/api/chat \
//	  -d '{"message": "Summarize my notes", "notes": "Note Title: Groceries\nContent: milk"}'
//
// # Using as Go Library
//
// The limiter is usable on its own:
//
//	import "github.com/kadirpekel/notely/pkg/ratelimit"
//
//	limiter, err := ratelimit.New(ratelimit.Config{RequestsPerMinute: 5, RequestsPerDay: 20})
//	if err != nil {
//		return err
//	}
//	defer limiter.Close()
//
//	result, err := limiter.Check(clientIP)
//	if err == nil && !result.Success {
//		// reject with 429, result.RetryAfter tells when to come back
//	}
package notely

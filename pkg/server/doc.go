// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel

// Package server provides the HTTP API of notely.
//
// Routes:
//
//	POST /api/chat         ask the notes assistant (rate limited)
//	GET  /api/test-gemini  smoke-test the model connection (rate limited)
//	GET  /api/ratelimit    current quota of the caller, without counting
//	GET  /health           liveness
//	GET  /metrics          Prometheus exposition, when metrics are enabled
//
// Limited routes answer 429 with X-RateLimit-* and Retry-After headers once
// either the per-minute or the per-day quota of the caller is exhausted.
package server

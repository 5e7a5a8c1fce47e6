// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kadirpekel/notely/pkg/chat"
	"github.com/kadirpekel/notely/pkg/config"
	"github.com/kadirpekel/notely/pkg/observability"
	"github.com/kadirpekel/notely/pkg/ratelimit"
)

// HTTPServer is the notely HTTP server.
type HTTPServer struct {
	cfg     config.ServerConfig
	limiter ratelimit.Checker
	chat    *chat.Service
	version string

	// Observability: tracing and metrics
	observability *observability.Manager

	handler http.Handler

	mu     sync.Mutex
	server *http.Server
}

// HTTPServerOption configures the HTTP server.
type HTTPServerOption func(*HTTPServer)

// WithObservability sets the observability manager for tracing and metrics.
func WithObservability(obs *observability.Manager) HTTPServerOption {
	return func(s *HTTPServer) {
		s.observability = obs
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(version string) HTTPServerOption {
	return func(s *HTTPServer) {
		s.version = version
	}
}

// NewHTTPServer creates the server. The limiter gates the AI routes and the
// chat service answers them.
func NewHTTPServer(cfg config.ServerConfig, limiter ratelimit.Checker, chatService *chat.Service, opts ...HTTPServerOption) (*HTTPServer, error) {
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if chatService == nil {
		return nil, fmt.Errorf("chat service is required")
	}

	cfg.SetDefaults()

	s := &HTTPServer{
		cfg:     cfg,
		limiter: limiter,
		chat:    chatService,
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}

	s.handler = s.setupRoutes()
	return s, nil
}

// Handler returns the fully wired HTTP handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

// Address returns the configured listen address.
func (s *HTTPServer) Address() string {
	return s.cfg.Address()
}

func (s *HTTPServer) setupRoutes() http.Handler {
	r := chi.NewRouter()

	// Order: request id -> recoverer -> observability -> logging -> cors
	r.Use(requestIDMiddleware)
	r.Use(middleware.Recoverer)
	if s.observability != nil {
		r.Use(observability.HTTPMiddleware(s.observability.Tracer("notely/server"), s.observability.Metrics()))
	}
	r.Use(loggingMiddleware)
	r.Use(corsMiddleware(s.cfg.CORSOrigins))

	r.Get("/health", s.handleHealth)

	if s.observability != nil && s.observability.Metrics().Enabled() {
		endpoint := s.observability.Config().Metrics.Endpoint
		r.Handle(endpoint, s.observability.Metrics().Handler())
		slog.Info("Prometheus metrics enabled", "endpoint", endpoint)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/ratelimit", s.handleRateLimit)

		r.Group(func(r chi.Router) {
			r.Use(ratelimit.Middleware(ratelimit.MiddlewareConfig{
				Limiter:        s.limiter,
				IdentifierFunc: s.identifierFunc(),
			}))

			r.With(maxBodyMiddleware(s.cfg.MaxBodyBytes)).Post("/chat", s.handleChat)
			r.Get("/test-gemini", s.handleTestGemini)
		})
	})

	return r
}

// identifierFunc picks the client identity used for rate limiting.
func (s *HTTPServer) identifierFunc() ratelimit.IdentifierFunc {
	if s.cfg.TrustsProxy() {
		return ratelimit.ForwardedIdentifier
	}
	return ratelimit.RemoteIdentifier
}

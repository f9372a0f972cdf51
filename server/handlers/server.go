// Package handlers implements the Snowflake wire endpoints and the
// operator API on a chi router.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/snowglobe-io/snowglobe/pkg/catalog"
	"github.com/snowglobe-io/snowglobe/pkg/config"
	"github.com/snowglobe-io/snowglobe/pkg/executor"
	"github.com/snowglobe-io/snowglobe/pkg/history"
	"github.com/snowglobe-io/snowglobe/pkg/logbuf"
	"github.com/snowglobe-io/snowglobe/pkg/session"
	"github.com/snowglobe-io/snowglobe/pkg/worksheet"
	"github.com/snowglobe-io/snowglobe/server/middleware"
)

// Tokens never expire on their own; the drivers still renew on this
// advertised validity.
const tokenValiditySeconds = 3600 * 4

// Server bundles everything the HTTP layer needs.
type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	sessions   *session.Manager
	exec       *executor.Executor
	catalog    *catalog.Store
	history    *history.Recorder
	logs       *logbuf.Sink
	worksheets *worksheet.Store
}

// New assembles a Server from its parts.
func New(cfg *config.Config, log *logrus.Logger, sessions *session.Manager, exec *executor.Executor,
	cat *catalog.Store, hist *history.Recorder, logs *logbuf.Sink, ws *worksheet.Store) *Server {
	return &Server{
		cfg:        cfg,
		log:        log,
		sessions:   sessions,
		exec:       exec,
		catalog:    cat,
		history:    hist,
		logs:       logs,
		worksheets: ws,
	}
}

// Routes builds the router with all endpoints mounted.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))
	r.Use(middleware.Gunzip)
	r.Use(middleware.RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	// Snowflake wire protocol.
	r.Post("/session/v1/login-request", s.handleLogin)
	r.Post("/session/token-request", s.handleRenew)
	r.Post("/session/v1/login-request:renew", s.handleRenew)
	r.Post("/session", s.handleSessionDelete)
	r.Post("/queries/v1/query-request", s.handleQuery)
	r.Post("/queries/v1/abort-request", s.handleAbort)

	// Operator surface.
	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/queries", s.handleListQueries)
		r.Delete("/queries/history", s.handleClearHistory)
		r.Get("/databases", s.handleDatabases)
		r.Get("/databases/{db}/schemas", s.handleSchemas)
		r.Get("/databases/{db}/schemas/{schema}/objects", s.handleSchemaObjects)
		r.Get("/dropped", s.handleDropped)
		r.Post("/execute", s.handleExecute)
		r.Get("/logs", s.handleLogs)

		r.Route("/worksheets", func(r chi.Router) {
			r.Get("/", s.handleListWorksheets)
			r.Post("/", s.handleCreateWorksheet)
			r.Get("/{id}", s.handleGetWorksheet)
			r.Put("/{id}", s.handleUpdateWorksheet)
			r.Delete("/{id}", s.handleDeleteWorksheet)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": config.ServerVersion,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

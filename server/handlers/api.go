package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/snowglobe-io/snowglobe/pkg/catalog"
	"github.com/snowglobe-io/snowglobe/pkg/worksheet"
	"github.com/snowglobe-io/snowglobe/server/apierror"
)

// apiStatus maps error kinds to REST status codes. The operator API is
// plain REST, unlike the wire protocol which reports app failures in a
// 200 body.
func apiStatus(kind apierror.Kind) int {
	switch kind {
	case apierror.KindBadRequest, apierror.KindTranslation:
		return http.StatusBadRequest
	case apierror.KindUnauthenticated:
		return http.StatusUnauthorized
	case apierror.KindNotFound:
		return http.StatusNotFound
	case apierror.KindAlreadyExists, apierror.KindNameInUse, apierror.KindNotEmpty:
		return http.StatusConflict
	case apierror.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeAPIError(w http.ResponseWriter, err error) {
	e := apierror.From(err)
	writeJSON(w, apiStatus(e.Kind), map[string]string{
		"error": e.Message,
		"code":  string(e.Kind),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats := s.history.Stats()
	stats.ActiveSessions = s.sessions.Count()

	dbs, schemas, tables, views := s.catalog.Summary()
	writeJSON(w, http.StatusOK, map[string]any{
		"stats": stats,
		"catalog": map[string]int{
			"databases": dbs,
			"schemas":   schemas,
			"tables":    tables,
			"views":     views,
		},
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.sessions.List()})
}

func (s *Server) handleListQueries(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeAPIError(w, apierror.New(apierror.KindBadRequest, "invalid limit %q", v))
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, map[string]any{"queries": s.history.Recent(limit)})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, _ *http.Request) {
	s.history.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// handleDatabases returns the full catalog tree.
func (s *Server) handleDatabases(w http.ResponseWriter, _ *http.Request) {
	type schemaNode struct {
		Name   string              `json:"name"`
		Tables []catalog.TableInfo `json:"tables"`
		Views  []catalog.ViewInfo  `json:"views"`
	}
	type dbNode struct {
		Name      string       `json:"name"`
		CreatedAt time.Time    `json:"created_at"`
		Schemas   []schemaNode `json:"schemas"`
	}

	var out []dbNode
	for _, db := range s.catalog.ListDatabases() {
		node := dbNode{Name: db.Name, CreatedAt: db.CreatedAt}
		schemas, err := s.catalog.ListSchemas(db.Name)
		if err != nil {
			continue
		}
		for _, sc := range schemas {
			tables, _ := s.catalog.ListTables(db.Name, sc.Name)
			views, _ := s.catalog.ListViews(db.Name, sc.Name)
			node.Schemas = append(node.Schemas, schemaNode{Name: sc.Name, Tables: tables, Views: views})
		}
		out = append(out, node)
	}
	writeJSON(w, http.StatusOK, map[string]any{"databases": out})
}

func (s *Server) handleSchemas(w http.ResponseWriter, r *http.Request) {
	schemas, err := s.catalog.ListSchemas(chi.URLParam(r, "db"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schemas": schemas})
}

func (s *Server) handleSchemaObjects(w http.ResponseWriter, r *http.Request) {
	db := chi.URLParam(r, "db")
	schema := chi.URLParam(r, "schema")
	tables, err := s.catalog.ListTables(db, schema)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	views, err := s.catalog.ListViews(db, schema)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables, "views": views})
}

func (s *Server) handleDropped(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var out []catalog.DroppedInfo
	for _, kind := range []catalog.ObjectKind{
		catalog.KindDatabase, catalog.KindSchema, catalog.KindTable, catalog.KindView,
	} {
		out = append(out, s.catalog.ListDropped(kind, q.Get("database"), q.Get("schema"))...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"dropped": out})
}

type executeRequest struct {
	SQL      string `json:"sql"`
	Database string `json:"database,omitempty"`
	Schema   string `json:"schema,omitempty"`
}

// handleExecute runs one ad-hoc statement on a throwaway session. It
// backs the operator worksheet UI.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAPIError(w, apierror.New(apierror.KindBadRequest, "malformed execute request: %s", err))
		return
	}
	if req.SQL == "" {
		writeAPIError(w, apierror.New(apierror.KindBadRequest, "sql is required"))
		return
	}

	sess := s.sessions.Create("operator", "LOCAL", req.Database, req.Schema)
	defer s.sessions.Close(sess.Token)

	queryID := uuid.NewString()
	started := time.Now()
	resp, err := s.exec.Execute(r.Context(), sess, queryID, req.SQL)
	elapsed := float64(time.Since(started).Microseconds()) / 1000
	if err != nil {
		writeAPIError(w, err)
		return
	}

	cols := make([]string, len(resp.Columns))
	typs := make([]string, len(resp.Columns))
	for i, c := range resp.Columns {
		cols[i] = c.Name
		typs[i] = c.SFType
	}
	rows := make([][]any, len(resp.Rows))
	for i, row := range resp.Rows {
		out := make([]any, len(row))
		for j, cell := range row {
			if cell != nil {
				out[j] = *cell
			}
		}
		rows[i] = out
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query_id":    queryID,
		"columns":     cols,
		"types":       typs,
		"rows":        rows,
		"row_count":   len(rows),
		"duration_ms": elapsed,
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 100
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeAPIError(w, apierror.New(apierror.KindBadRequest, "invalid limit %q", v))
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"logs": s.logs.Recent(limit, q.Get("level")),
	})
}

type worksheetRequest struct {
	Name     string `json:"name"`
	Content  string `json:"content"`
	Context  string `json:"context,omitempty"`
	Position int    `json:"position,omitempty"`
	Favorite bool   `json:"favorite,omitempty"`
}

func (r worksheetRequest) fields() worksheet.Fields {
	return worksheet.Fields{
		Name:     r.Name,
		Content:  r.Content,
		Context:  r.Context,
		Position: r.Position,
		Favorite: r.Favorite,
	}
}

func (s *Server) handleListWorksheets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"worksheets": s.worksheets.List()})
}

func (s *Server) handleCreateWorksheet(w http.ResponseWriter, r *http.Request) {
	var req worksheetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAPIError(w, apierror.New(apierror.KindBadRequest, "malformed worksheet request: %s", err))
		return
	}
	ws, err := s.worksheets.Create(req.fields())
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ws)
}

func (s *Server) handleGetWorksheet(w http.ResponseWriter, r *http.Request) {
	ws, err := s.worksheets.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) handleUpdateWorksheet(w http.ResponseWriter, r *http.Request) {
	var req worksheetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAPIError(w, apierror.New(apierror.KindBadRequest, "malformed worksheet request: %s", err))
		return
	}
	ws, err := s.worksheets.Update(chi.URLParam(r, "id"), req.fields())
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) handleDeleteWorksheet(w http.ResponseWriter, r *http.Request) {
	if err := s.worksheets.Delete(chi.URLParam(r, "id")); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

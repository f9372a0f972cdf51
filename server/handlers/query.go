package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/snowglobe-io/snowglobe/pkg/executor"
	"github.com/snowglobe-io/snowglobe/pkg/history"
	"github.com/snowglobe-io/snowglobe/server/apierror"
	"github.com/snowglobe-io/snowglobe/server/middleware"
	"github.com/snowglobe-io/snowglobe/server/types"
)

// queryErrorResponse is the failure envelope; Data carries the query id
// and sqlState the drivers look for.
type queryErrorResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Code    string           `json:"code"`
	Data    *types.ErrorData `json:"data"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(middleware.SessionToken(r))
	if err != nil {
		e := apierror.From(err)
		writeJSON(w, http.StatusUnauthorized, queryErrorResponse{
			Message: e.Message,
			Code:    string(e.Kind),
			Data:    &types.ErrorData{SQLState: apierror.SQLStateFor(e.Kind)},
		})
		return
	}

	var req types.QueryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusOK, queryErrorResponse{
			Message: "malformed query request: " + err.Error(),
			Code:    string(apierror.KindBadRequest),
			Data:    &types.ErrorData{SQLState: apierror.SQLStateFor(apierror.KindBadRequest)},
		})
		return
	}

	queryID := uuid.NewString()
	started := time.Now()
	resp, err := s.exec.Execute(r.Context(), sess, queryID, req.SQLText)
	elapsed := time.Since(started)

	entry := history.Entry{
		QueryID:    queryID,
		SessionID:  sess.ID,
		SQL:        req.SQLText,
		DurationMS: float64(elapsed.Microseconds()) / 1000,
		StartedAt:  started.UTC(),
	}
	if err != nil {
		e := apierror.From(err)
		entry.Status = "error"
		entry.Error = e.Message
		s.history.Record(entry)
		s.log.WithField("logger", "query").
			WithField("query_id", queryID).
			WithField("kind", string(e.Kind)).
			Warnf("statement failed: %s", e.Message)
		writeJSON(w, http.StatusOK, queryErrorResponse{
			Message: e.Message,
			Code:    string(e.Kind),
			Data:    &types.ErrorData{QueryID: queryID, SQLState: apierror.SQLStateFor(e.Kind)},
		})
		return
	}

	entry.Status = "success"
	entry.Rows = int64(len(resp.Rows))
	if resp.ExecutedSQL != "" {
		entry.SQL = resp.ExecutedSQL
	}
	s.history.Record(entry)

	writeJSON(w, http.StatusOK, types.QueryResponse{
		Success: true,
		Data:    querySuccess(queryID, resp),
	})
}

func querySuccess(queryID string, resp *executor.Response) *types.QuerySuccessData {
	cols := make([]types.ColumnMetadata, len(resp.Columns))
	for i, c := range resp.Columns {
		cols[i] = types.ColumnMetadata{
			Name:     c.Name,
			Type:     strings.ToLower(c.SFType),
			Nullable: true,
		}
		if c.SFType == "FIXED" {
			cols[i].Precision = 38
		}
	}

	rows := make([][]any, len(resp.Rows))
	for i, row := range resp.Rows {
		out := make([]any, len(row))
		for j, cell := range row {
			if cell == nil {
				out[j] = nil
			} else {
				out[j] = *cell
			}
		}
		rows[i] = out
	}

	return &types.QuerySuccessData{
		QueryID:           queryID,
		SQLState:          apierror.SQLStateSuccess,
		StatementTypeID:   resp.StatementTypeID,
		RowType:           cols,
		RowSet:            rows,
		Total:             int64(len(rows)),
		Returned:          int64(len(rows)),
		QueryResultFormat: "json",
	}
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	if _, err := s.sessions.Get(middleware.SessionToken(r)); err != nil {
		e := apierror.From(err)
		writeJSON(w, http.StatusUnauthorized, types.AbortResponse{
			Success: false,
			Message: e.Message,
			Code:    string(e.Kind),
		})
		return
	}

	var req types.AbortRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusOK, types.AbortResponse{
			Success: false,
			Message: "malformed abort request: " + err.Error(),
			Code:    string(apierror.KindBadRequest),
		})
		return
	}

	// Aborting a statement that already finished is a success as far as
	// the client is concerned.
	s.exec.Abort(req.QueryID)
	writeJSON(w, http.StatusOK, types.AbortResponse{Success: true})
}

package handlers

import (
	"hash/fnv"
	"net/http"

	"github.com/snowglobe-io/snowglobe/server/apierror"
	"github.com/snowglobe-io/snowglobe/server/middleware"
	"github.com/snowglobe-io/snowglobe/server/types"
)

// numericSessionID folds the session UUID into the positive integer the
// drivers expect in the sessionId field.
func numericSessionID(id string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return int64(h.Sum64() & 0x7fffffffffffffff)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusOK, types.LoginResponse{
			Success: false,
			Message: "malformed login request: " + err.Error(),
			Code:    string(apierror.KindBadRequest),
		})
		return
	}

	// Any credentials are accepted; this is an emulator.
	sess := s.sessions.Create(req.Data.LoginName, req.Data.AccountName, req.Data.DatabaseName, req.Data.SchemaName)
	if req.Data.WarehouseName != "" {
		sess.UseWarehouse(req.Data.WarehouseName)
	}
	if req.Data.RoleName != "" {
		sess.UseRole(req.Data.RoleName)
	}
	for name, value := range req.Data.SessionParams {
		sess.SetVar(name, value)
	}

	db, sc := sess.Context()
	s.log.WithField("logger", "session").
		WithField("user", sess.User).
		WithField("session_id", sess.ID).
		Info("session opened")

	writeJSON(w, http.StatusOK, types.LoginResponse{
		Success: true,
		Data: &types.LoginSuccessData{
			Token:                   sess.Token,
			MasterToken:             sess.MasterToken,
			ValidityInSeconds:       tokenValiditySeconds,
			MasterValidityInSeconds: tokenValiditySeconds * 4,
			SessionID:               numericSessionID(sess.ID),
			Parameters: []types.ParameterBinding{
				{Name: "AUTOCOMMIT", Value: "true"},
				{Name: "TIMEZONE", Value: "UTC"},
				{Name: "CLIENT_SESSION_KEEP_ALIVE", Value: "false"},
				{Name: "CLIENT_PREFETCH_THREADS", Value: "4"},
				{Name: "QUERY_RESULT_FORMAT", Value: "json"},
				{Name: "TIMESTAMP_OUTPUT_FORMAT", Value: "YYYY-MM-DD HH24:MI:SS.FF3"},
				{Name: "DATE_OUTPUT_FORMAT", Value: "YYYY-MM-DD"},
			},
			SessionInfo: types.SessionInfo{
				DatabaseName:  db,
				SchemaName:    sc,
				WarehouseName: sess.Warehouse(),
				RoleName:      sess.Role(),
			},
		},
	})
}

// handleRenew exchanges the master token in the Authorization header for
// a fresh token pair.
func (s *Server) handleRenew(w http.ResponseWriter, r *http.Request) {
	var req types.RenewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusOK, types.RenewResponse{
			Success: false,
			Message: "malformed renew request: " + err.Error(),
			Code:    string(apierror.KindBadRequest),
		})
		return
	}

	sess, err := s.sessions.Renew(middleware.SessionToken(r))
	if err != nil {
		e := apierror.From(err)
		writeJSON(w, http.StatusUnauthorized, types.RenewResponse{
			Success: false,
			Message: e.Message,
			Code:    string(e.Kind),
		})
		return
	}

	writeJSON(w, http.StatusOK, types.RenewResponse{
		Success: true,
		Data: &types.RenewSuccessData{
			SessionToken:            sess.Token,
			ValidityInSeconds:       tokenValiditySeconds,
			MasterToken:             sess.MasterToken,
			MasterValidityInSeconds: tokenValiditySeconds * 4,
			SessionID:               numericSessionID(sess.ID),
		},
	})
}

// handleSessionDelete answers POST /session?delete=true, which is how
// the drivers close a session.
func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("delete") != "true" {
		writeJSON(w, http.StatusOK, types.CloseResponse{
			Success: false,
			Message: "unsupported session operation",
			Code:    string(apierror.KindBadRequest),
		})
		return
	}
	s.sessions.Close(middleware.SessionToken(r))
	writeJSON(w, http.StatusOK, types.CloseResponse{Success: true})
}

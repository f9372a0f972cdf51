// Package types defines the JSON bodies of the Snowflake wire protocol
// as the official drivers expect them.
package types

// LoginRequest is the body of /session/v1/login-request.
type LoginRequest struct {
	Data LoginRequestData `json:"data"`
}

type LoginRequestData struct {
	ClientAppID      string            `json:"CLIENT_APP_ID"`
	ClientAppVersion string            `json:"CLIENT_APP_VERSION"`
	AccountName      string            `json:"ACCOUNT_NAME"`
	LoginName        string            `json:"LOGIN_NAME"`
	Password         string            `json:"PASSWORD"`
	DatabaseName     string            `json:"databaseName,omitempty"`
	SchemaName       string            `json:"schemaName,omitempty"`
	WarehouseName    string            `json:"warehouseName,omitempty"`
	RoleName         string            `json:"roleName,omitempty"`
	SessionParams    map[string]string `json:"SESSION_PARAMETERS,omitempty"`
}

type LoginResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Code    string            `json:"code,omitempty"`
	Data    *LoginSuccessData `json:"data,omitempty"`
}

// LoginSuccessData carries both token kinds. SessionID is numeric on the
// wire because the drivers decode it as an integer; the canonical UUID
// session id is surfaced through CURRENT_SESSION() and the operator API.
type LoginSuccessData struct {
	Token                   string             `json:"token"`
	MasterToken             string             `json:"masterToken"`
	ValidityInSeconds       int64              `json:"validityInSeconds"`
	MasterValidityInSeconds int64              `json:"masterValidityInSeconds"`
	SessionID               int64              `json:"sessionId"`
	Parameters              []ParameterBinding `json:"parameters"`
	SessionInfo             SessionInfo        `json:"sessionInfo"`
}

type ParameterBinding struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type SessionInfo struct {
	DatabaseName  string `json:"databaseName"`
	SchemaName    string `json:"schemaName"`
	WarehouseName string `json:"warehouseName"`
	RoleName      string `json:"roleName"`
}

// RenewRequest is the body of /session/v1/login-request:renew.
type RenewRequest struct {
	OldSessionToken string `json:"oldSessionToken,omitempty"`
	RequestType     string `json:"requestType"` // RENEW or ISSUE
}

type RenewResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Code    string            `json:"code,omitempty"`
	Data    *RenewSuccessData `json:"data,omitempty"`
}

type RenewSuccessData struct {
	SessionToken            string `json:"sessionToken"`
	ValidityInSeconds       int64  `json:"validityInSecondsST"`
	MasterToken             string `json:"masterToken"`
	MasterValidityInSeconds int64  `json:"validityInSecondsMT"`
	SessionID               int64  `json:"sessionId"`
}

// QueryRequest is the body of /queries/v1/query-request.
type QueryRequest struct {
	SQLText    string            `json:"sqlText"`
	Bindings   map[string]any    `json:"bindings,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
	RequestID  string            `json:"requestId,omitempty"`
}

type QueryResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Code    string            `json:"code,omitempty"`
	Data    *QuerySuccessData `json:"data,omitempty"`
}

// QuerySuccessData is the result envelope. RowSet cells are strings or
// null regardless of column type; RowType tells the driver how to decode
// them.
type QuerySuccessData struct {
	QueryID           string           `json:"queryId"`
	SQLState          string           `json:"sqlState,omitempty"`
	StatementTypeID   int64            `json:"statementTypeId"`
	RowType           []ColumnMetadata `json:"rowtype"`
	RowSet            [][]any          `json:"rowset"`
	Total             int64            `json:"total"`
	Returned          int64            `json:"returned"`
	QueryResultFormat string           `json:"queryResultFormat"`
}

type ColumnMetadata struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Length    int64  `json:"length,omitempty"`
	Precision int64  `json:"precision,omitempty"`
	Scale     int64  `json:"scale,omitempty"`
	Nullable  bool   `json:"nullable"`
}

// ErrorData is the data section of a failed query response; the drivers
// read the query id and sqlState out of it.
type ErrorData struct {
	QueryID  string `json:"queryId,omitempty"`
	SQLState string `json:"sqlState,omitempty"`
}

// AbortRequest is the body of /queries/v1/abort-request.
type AbortRequest struct {
	QueryID   string `json:"queryId,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type AbortResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// CloseResponse answers DELETE /session.
type CloseResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Package session tracks authenticated client sessions and their
// per-session context: current database, schema, warehouse, role and
// SQL variables.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/snowglobe-io/snowglobe/server/apierror"
)

// Session is one authenticated connection. Context fields are guarded by
// the session's own lock; the manager lock only covers the token maps.
type Session struct {
	mu sync.RWMutex

	ID          string
	Token       string
	MasterToken string
	User        string
	Account     string

	database  string
	schema    string
	warehouse string
	role      string
	variables map[string]string

	CreatedAt time.Time
	lastUsed  time.Time
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = time.Now().UTC()
	s.mu.Unlock()
}

// LastUsed returns the time of the most recent request on this session.
func (s *Session) LastUsed() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUsed
}

// Context returns the current database and schema.
func (s *Session) Context() (database, schema string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.database, s.schema
}

// Database returns the session's current database.
func (s *Session) Database() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.database
}

// Schema returns the session's current schema.
func (s *Session) Schema() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schema
}

// Warehouse returns the session's current warehouse.
func (s *Session) Warehouse() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.warehouse
}

// Role returns the session's current role.
func (s *Session) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// UseDatabase switches the current database and resets the schema to
// PUBLIC, matching what USE DATABASE does in Snowflake.
func (s *Session) UseDatabase(name string) {
	s.mu.Lock()
	s.database = name
	s.schema = "PUBLIC"
	s.mu.Unlock()
}

// UseSchema switches the current schema.
func (s *Session) UseSchema(name string) {
	s.mu.Lock()
	s.schema = name
	s.mu.Unlock()
}

// UseWarehouse switches the current warehouse.
func (s *Session) UseWarehouse(name string) {
	s.mu.Lock()
	s.warehouse = name
	s.mu.Unlock()
}

// UseRole switches the current role.
func (s *Session) UseRole(name string) {
	s.mu.Lock()
	s.role = name
	s.mu.Unlock()
}

// SetVar stores a session variable. Names are case-insensitive.
func (s *Session) SetVar(name, value string) {
	s.mu.Lock()
	s.variables[upper(name)] = value
	s.mu.Unlock()
}

// UnsetVar removes a session variable.
func (s *Session) UnsetVar(name string) {
	s.mu.Lock()
	delete(s.variables, upper(name))
	s.mu.Unlock()
}

// Var reads a session variable.
func (s *Session) Var(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.variables[upper(name)]
	return v, ok
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

// Defaults are the initial session context values.
type Defaults struct {
	Database  string
	Schema    string
	Warehouse string
	Role      string
}

// Manager owns all live sessions. idle bounds inactivity; zero means
// sessions never expire.
type Manager struct {
	mu       sync.RWMutex
	byToken  map[string]*Session
	byMaster map[string]*Session
	defaults Defaults
	idle     time.Duration
}

// NewManager returns an empty session manager.
func NewManager(defaults Defaults, idle time.Duration) *Manager {
	return &Manager{
		byToken:  map[string]*Session{},
		byMaster: map[string]*Session{},
		defaults: defaults,
		idle:     idle,
	}
}

func newToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("session: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// Create opens a session for a successful login. Empty database or
// schema fall back to the configured defaults.
func (m *Manager) Create(user, account, database, schema string) *Session {
	if database == "" {
		database = m.defaults.Database
	}
	if schema == "" {
		schema = m.defaults.Schema
	}
	now := time.Now().UTC()
	s := &Session{
		ID:          uuid.NewString(),
		Token:       newToken(),
		MasterToken: newToken(),
		User:        user,
		Account:     account,
		database:    database,
		schema:      schema,
		warehouse:   m.defaults.Warehouse,
		role:        m.defaults.Role,
		variables:   map[string]string{},
		CreatedAt:   now,
		lastUsed:    now,
	}
	m.mu.Lock()
	m.byToken[s.Token] = s
	m.byMaster[s.MasterToken] = s
	m.mu.Unlock()
	return s
}

// Get resolves a session token, touches the session and enforces the
// idle expiry.
func (m *Manager) Get(token string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.byToken[token]
	m.mu.RUnlock()
	if !ok {
		return nil, apierror.New(apierror.KindUnauthenticated, "session token is invalid or expired")
	}
	if m.idle > 0 && time.Since(s.LastUsed()) > m.idle {
		m.remove(s)
		return nil, apierror.New(apierror.KindUnauthenticated, "session expired after %s of inactivity", m.idle)
	}
	s.touch()
	return s, nil
}

// Renew exchanges a master token for fresh session and master tokens.
// The old tokens stop working immediately.
func (m *Manager) Renew(masterToken string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byMaster[masterToken]
	if !ok {
		return nil, apierror.New(apierror.KindUnauthenticated, "master token is invalid or expired")
	}
	delete(m.byToken, s.Token)
	delete(m.byMaster, s.MasterToken)
	s.Token = newToken()
	s.MasterToken = newToken()
	m.byToken[s.Token] = s
	m.byMaster[s.MasterToken] = s
	s.touch()
	return s, nil
}

// Close ends a session. Closing an unknown token is not an error; the
// client already got what it wanted.
func (m *Manager) Close(token string) {
	m.mu.RLock()
	s, ok := m.byToken[token]
	m.mu.RUnlock()
	if ok {
		m.remove(s)
	}
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	delete(m.byToken, s.Token)
	delete(m.byMaster, s.MasterToken)
	m.mu.Unlock()
}

// Count returns the number of live sessions after pruning expired ones.
func (m *Manager) Count() int {
	m.prune()
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byToken)
}

// Info is a session listing row for the operator API. Only a token
// prefix is exposed.
type Info struct {
	ID          string    `json:"session_id"`
	User        string    `json:"user"`
	TokenPrefix string    `json:"token_prefix"`
	Database    string    `json:"database"`
	Schema      string    `json:"schema"`
	Warehouse   string    `json:"warehouse"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	LastUsed    time.Time `json:"last_used"`
}

// List snapshots all live sessions, most recently created first.
func (m *Manager) List() []Info {
	m.prune()
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Info, 0, len(m.byToken))
	for _, s := range m.byToken {
		db, sc := s.Context()
		out = append(out, Info{
			ID:          s.ID,
			User:        s.User,
			TokenPrefix: s.Token[:8],
			Database:    db,
			Schema:      sc,
			Warehouse:   s.Warehouse(),
			Role:        s.Role(),
			CreatedAt:   s.CreatedAt,
			LastUsed:    s.LastUsed(),
		})
	}
	sortInfos(out)
	return out
}

func sortInfos(infos []Info) {
	for i := 1; i < len(infos); i++ {
		for j := i; j > 0 && infos[j].CreatedAt.After(infos[j-1].CreatedAt); j-- {
			infos[j], infos[j-1] = infos[j-1], infos[j]
		}
	}
}

func (m *Manager) prune() {
	if m.idle <= 0 {
		return
	}
	m.mu.RLock()
	var expired []*Session
	for _, s := range m.byToken {
		if time.Since(s.LastUsed()) > m.idle {
			expired = append(expired, s)
		}
	}
	m.mu.RUnlock()
	for _, s := range expired {
		m.remove(s)
	}
}

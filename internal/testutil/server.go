package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// DefaultToken is the token the mock server issues on login.
const DefaultToken = "abc"

// Hit records one request received by a TuitionServer.
type Hit struct {
	Method        string
	Path          string
	Authorization string
}

// TuitionServer mimics the tuition-matching API closely enough for probes:
// health, login, per-role dashboards, job boards and student widgets.
// Protected routes require "Authorization: Bearer <token>".
type TuitionServer struct {
	*httptest.Server

	token       string
	validToken  func(string) bool
	loginStatus int
	denyStats   bool

	mu   sync.Mutex
	hits []Hit
}

// ServerOption customizes a TuitionServer.
type ServerOption func(*TuitionServer)

// WithToken changes the token returned by login and accepted by protected routes.
func WithToken(tok string) ServerOption {
	return func(s *TuitionServer) {
		s.token = tok
	}
}

// WithTokenValidator accepts bearer tokens for which valid returns true,
// in addition to the login token.
func WithTokenValidator(valid func(string) bool) ServerOption {
	return func(s *TuitionServer) {
		s.validToken = valid
	}
}

// WithLoginStatus makes every login fail with status.
func WithLoginStatus(status int) ServerOption {
	return func(s *TuitionServer) {
		s.loginStatus = status
	}
}

// WithUnauthorizedStats makes every dashboard stats call return 401.
func WithUnauthorizedStats() ServerOption {
	return func(s *TuitionServer) {
		s.denyStats = true
	}
}

// NewTuitionServer starts a mock server that is closed when t finishes.
func NewTuitionServer(t testing.TB, opts ...ServerOption) *TuitionServer {
	t.Helper()

	s := &TuitionServer{token: DefaultToken}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/{role}/dashboard/stats", s.protected(func(w http.ResponseWriter, r *http.Request) {
		if s.denyStats {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Token is not valid"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"stats": map[string]any{}})
	}))
	mux.HandleFunc("GET /api/{role}/jobs", s.protected(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"jobs": []any{}})
	}))
	mux.HandleFunc("POST /api/{role}/jobs", s.protected(func(w http.ResponseWriter, r *http.Request) {
		var job map[string]any
		if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid job"})
			return
		}
		job["id"] = "job-1"
		writeJSON(w, http.StatusCreated, map[string]any{"job": job})
	}))
	for _, widget := range []string{"kpis", "activity", "recommendations"} {
		mux.HandleFunc("GET /api/student/"+widget, s.protected(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{widget: []any{}})
		}))
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not found"})
	})

	s.Server = httptest.NewServer(s.record(mux))
	t.Cleanup(s.Close)
	return s
}

// Hits returns the requests received so far.
func (s *TuitionServer) Hits() []Hit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Hit(nil), s.hits...)
}

func (s *TuitionServer) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits = append(s.hits, Hit{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *TuitionServer) login(w http.ResponseWriter, r *http.Request) {
	if s.loginStatus != 0 {
		writeJSON(w, s.loginStatus, map[string]any{"message": "Invalid credentials"})
		return
	}

	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Email and password are required"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"token": s.token})
}

func (s *TuitionServer) protected(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		tok, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || tok == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "No token, authorization denied"})
			return
		}
		if tok != s.token && (s.validToken == nil || !s.validToken(tok)) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Token is not valid"})
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

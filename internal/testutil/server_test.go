package testutil

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, url, bearer string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, strings.TrimSpace(string(body))
}

func TestTuitionServer_Login(t *testing.T) {
	srv := NewTuitionServer(t)

	resp, err := http.Post(srv.URL+"/api/auth/login", "application/json",
		strings.NewReader(`{"email":"student@test.com","password":"password123"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"token":"abc"}`, string(body))
}

func TestTuitionServer_LoginStatus(t *testing.T) {
	srv := NewTuitionServer(t, WithLoginStatus(http.StatusUnauthorized))

	resp, err := http.Post(srv.URL+"/api/auth/login", "application/json",
		strings.NewReader(`{"email":"student@test.com","password":"x"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTuitionServer_ProtectedRoutes(t *testing.T) {
	srv := NewTuitionServer(t)

	status, body := get(t, srv.URL+"/api/student/dashboard/stats", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body, "No token")

	status, body = get(t, srv.URL+"/api/student/dashboard/stats", "wrong")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body, "not valid")

	status, body = get(t, srv.URL+"/api/student/dashboard/stats", "abc")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"stats":{}}`, body)

	status, _ = get(t, srv.URL+"/api/student/kpis", "abc")
	assert.Equal(t, http.StatusOK, status)
}

func TestTuitionServer_UnauthorizedStats(t *testing.T) {
	srv := NewTuitionServer(t, WithUnauthorizedStats())

	status, _ := get(t, srv.URL+"/api/student/dashboard/stats", "abc")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestTuitionServer_TokenValidator(t *testing.T) {
	srv := NewTuitionServer(t, WithTokenValidator(func(tok string) bool { return tok == "minted" }))

	status, _ := get(t, srv.URL+"/api/student/activity", "minted")
	assert.Equal(t, http.StatusOK, status)
}

func TestTuitionServer_RecordsHits(t *testing.T) {
	srv := NewTuitionServer(t)

	get(t, srv.URL+"/api/health", "")
	get(t, srv.URL+"/api/nowhere", "abc")

	hits := srv.Hits()
	require.Len(t, hits, 2)
	assert.Equal(t, Hit{Method: "GET", Path: "/api/health"}, hits[0])
	assert.Equal(t, Hit{Method: "GET", Path: "/api/nowhere", Authorization: "Bearer abc"}, hits[1])
}

package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tutorprobe/internal/store"
	"github.com/roach88/tutorprobe/internal/testutil"
)

// recordRuns runs scenarios once each against srv into db and returns
// their run IDs.
func recordRuns(t *testing.T, srv *testutil.TuitionServer, db string, scenarios ...string) []string {
	t.Helper()
	var ids []string
	for _, name := range scenarios {
		stdout, _, err := execute(t, "run", name, "--base-url", srv.URL, "--db", db, "--format", "json")
		require.NoError(t, err)
		var resp runJSON
		require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
		ids = append(ids, resp.Data.Scenarios[0].RunID)
	}
	return ids
}

func TestHistoryCommand_List(t *testing.T) {
	cleanEnv(t)
	srv := testutil.NewTuitionServer(t)
	db := filepath.Join(t.TempDir(), "runs.db")
	ids := recordRuns(t, srv, db, "health", "student-dashboard", "login")

	stdout, _, err := execute(t, "history", "--db", db)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(stdout, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "1  "+ids[0]+"  "))
	assert.True(t, strings.HasSuffix(lines[0], "  health  1 steps: 1 attempted, 0 skipped, 1 succeeded, 0 failed"))
	assert.True(t, strings.HasPrefix(lines[2], "3  "+ids[2]+"  "))

	stdout, _, err = execute(t, "history", "--db", db, "--limit", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(stdout, "\n"))
	assert.Contains(t, stdout, ids[2])
}

func TestHistoryCommand_Empty(t *testing.T) {
	cleanEnv(t)
	db := filepath.Join(t.TempDir(), "runs.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	stdout, _, err := execute(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "No runs recorded.\n", stdout)
}

func TestHistoryCommand_ShowRun(t *testing.T) {
	cleanEnv(t)
	srv := testutil.NewTuitionServer(t, testutil.WithUnauthorizedStats())
	db := filepath.Join(t.TempDir(), "runs.db")
	ids := recordRuns(t, srv, db, "tutor-dashboard")

	stdout, _, err := execute(t, "history", "--db", db, "--run", ids[0])
	require.NoError(t, err)

	assert.Contains(t, stdout, "=== tutor-dashboard (run "+ids[0]+", "+srv.URL+", ")
	assert.Contains(t, stdout, "✓ login: 200 ")
	assert.Contains(t, stdout, "✗ stats: 401 ")
	assert.Contains(t, stdout, "✓ jobs: 200 ")
	assert.Contains(t, stdout, "--- tutor-dashboard: 3 steps: 3 attempted, 0 skipped, 2 succeeded, 1 failed\n")
}

func TestHistoryCommand_ShowRunJSON(t *testing.T) {
	cleanEnv(t)
	srv := testutil.NewTuitionServer(t)
	db := filepath.Join(t.TempDir(), "runs.db")
	ids := recordRuns(t, srv, db, "health")

	stdout, _, err := execute(t, "history", "--db", db, "--run", ids[0], "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   store.Run `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, ids[0], resp.Data.ID)
	require.Len(t, resp.Data.Outcomes, 1)
	assert.Equal(t, `{"status":"ok"}`, resp.Data.Outcomes[0].Body)
}

func TestHistoryCommand_Errors(t *testing.T) {
	cleanEnv(t)
	db := filepath.Join(t.TempDir(), "runs.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, _, err = execute(t, "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "db" not set`)

	_, _, err = execute(t, "history", "--db", filepath.Join(t.TempDir(), "absent.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")

	_, _, err = execute(t, "history", "--db", db, "--run", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "run not found")
}

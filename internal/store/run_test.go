package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tutorprobe/internal/harness"
	"github.com/roach88/tutorprobe/internal/probe"
	"github.com/roach88/tutorprobe/internal/testutil"
)

var recordNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// sequentialIDs returns IDs run-1, run-2, ...
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("run-%d", n)
	}
}

type cannedProber map[string]probe.Outcome

func (c cannedProber) Probe(_ context.Context, req probe.Request, _ time.Duration) probe.Outcome {
	if out, ok := c[req.URL]; ok {
		return out
	}
	return probe.ConnectionRefused("connection refused")
}

// loginResult runs a two-step login/stats scenario against canned outcomes.
func loginResult(stats probe.Outcome) *harness.Result {
	p := cannedProber{
		"http://localhost:5000/api/auth/login":    probe.Success(200, probe.JSONBody(`{"token":"secret-token","user":{"role":"student"}}`)),
		"http://localhost:5000/api/student/stats": stats,
		"http://localhost:5000/api/health":        probe.Success(200, probe.TextBody("ok")),
	}
	return harness.NewRunner(p).Run(context.Background(), "student-dashboard", []harness.Step{
		{
			Name:    "login",
			Capture: "token",
			Build: func(*harness.Result) (probe.Request, error) {
				return probe.NewRequest("POST", "http://localhost:5000/api/auth/login"), nil
			},
		},
		{
			Name: "stats",
			Build: func(res *harness.Result) (probe.Request, error) {
				tok, err := harness.RequireToken(res, "login")
				if err != nil {
					return probe.Request{}, err
				}
				return probe.NewRequest("GET", "http://localhost:5000/api/student/stats").WithBearer(tok), nil
			},
		},
		{
			Name: "after",
			Build: func(res *harness.Result) (probe.Request, error) {
				if err := harness.RequireSuccess(res, "stats"); err != nil {
					return probe.Request{}, err
				}
				return probe.NewRequest("GET", "http://localhost:5000/api/health"), nil
			},
		},
	})
}

func TestNewRun_RedactsTokens(t *testing.T) {
	out := probe.HTTPError(401, probe.JSONBody(`{"message":"Token secret-token is not valid"}`))
	run := NewRun("http://localhost:5000", loginResult(out))

	assert.Equal(t, "student-dashboard", run.Scenario)
	assert.Equal(t, "http://localhost:5000", run.BaseURL)
	require.Len(t, run.Outcomes, 3)

	assert.Equal(t, `{"token":"[redacted]","user":{"role":"student"}}`, run.Outcomes[0].Body)
	assert.Equal(t, `{"message":"Token [redacted] is not valid"}`, run.Outcomes[1].Body)
	assert.Equal(t, probe.KindHTTPError, run.Outcomes[1].Kind)
	assert.Equal(t, 401, run.Outcomes[1].StatusCode)

	assert.Equal(t, harness.StatusSkipped, run.Outcomes[2].Status)
	assert.Equal(t, `"stats" failed`, run.Outcomes[2].Reason)
	assert.Empty(t, run.Outcomes[2].Kind)

	assert.Equal(t, harness.Summary{Total: 3, Attempted: 2, Skipped: 1, Succeeded: 1, Failed: 1}, run.Summary)
}

func TestRecordRun_RoundTrip(t *testing.T) {
	clock := testutil.NewFixedClock(recordNow)
	s := createTestStore(t, WithClock(clock.Now), WithIDs(sequentialIDs()))
	ctx := context.Background()

	stats := probe.Success(200, probe.JSONBody(`{"stats":{"sessions":3}}`))
	stats.Elapsed = 42 * time.Millisecond
	recorded, err := s.RecordRun(ctx, NewRun("http://localhost:5000", loginResult(stats)))
	require.NoError(t, err)
	assert.Equal(t, "run-1", recorded.ID)
	assert.Equal(t, int64(1), recorded.Seq)
	assert.Equal(t, recordNow, recorded.StartedAt)

	got, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, recorded, got)
	assert.Equal(t, int64(42), got.Outcomes[1].ElapsedMS)
	assert.Equal(t, `{"stats":{"sessions":3}}`, got.Outcomes[1].Body)
}

func TestRecordRun_NeverStoresTokens(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.RecordRun(ctx, NewRun("http://localhost:5000", loginResult(probe.Success(200, nil))))
	require.NoError(t, err)

	var n int
	err = s.db.QueryRow(`
		SELECT COUNT(*) FROM outcomes
		WHERE body LIKE '%secret-token%' OR message LIKE '%secret-token%'
	`).Scan(&n)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecordRun_AssignsSequence(t *testing.T) {
	clock := testutil.NewFixedClock(recordNow)
	s := createTestStore(t, WithClock(clock.Now))
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		run, err := s.RecordRun(ctx, Run{Scenario: fmt.Sprintf("s%d", i), BaseURL: "http://localhost:5000"})
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), run.Seq)
		ids = append(ids, run.ID)
		clock.Advance(time.Minute)
	}

	// UUIDv7 IDs are distinct.
	assert.Len(t, map[string]bool{ids[0]: true, ids[1]: true, ids[2]: true}, 3)
}

func TestRecordRun_DuplicateIDFails(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.RecordRun(ctx, Run{ID: "same", Scenario: "health", BaseURL: "x"})
	require.NoError(t, err)
	_, err = s.RecordRun(ctx, Run{ID: "same", Scenario: "health", BaseURL: "x"})
	require.Error(t, err)

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRecordRun_RollsBackOnBadOutcome(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.RecordRun(ctx, Run{
		ID:       "bad",
		Scenario: "health",
		BaseURL:  "x",
		Outcomes: []Outcome{{StepIndex: 0, StepName: "health", Status: "exploded"}},
	})
	require.Error(t, err)

	_, err = s.ReadRun(ctx, "bad")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRuns(t *testing.T) {
	clock := testutil.NewFixedClock(recordNow)
	s := createTestStore(t, WithClock(clock.Now), WithIDs(sequentialIDs()))
	ctx := context.Background()

	empty, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for i := 0; i < 4; i++ {
		_, err := s.RecordRun(ctx, NewRun("http://localhost:5000", loginResult(probe.Success(200, nil))))
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	all, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, run := range all {
		assert.Equal(t, fmt.Sprintf("run-%d", i+1), run.ID)
		assert.Nil(t, run.Outcomes)
		assert.Equal(t, harness.Summary{Total: 3, Attempted: 3, Succeeded: 3}, run.Summary)
	}

	recent, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "run-3", recent[0].ID)
	assert.Equal(t, "run-4", recent[1].ID)
	assert.Equal(t, recordNow.Add(3*time.Second), recent[1].StartedAt)
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "missing")
}

func TestReadRun_NoOutcomes(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run, err := s.RecordRun(ctx, Run{Scenario: "empty", BaseURL: "x"})
	require.NoError(t, err)

	got, err := s.ReadRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, []Outcome{}, got.Outcomes)
	assert.Equal(t, harness.Summary{}, got.Summary)
}

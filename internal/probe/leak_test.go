package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// A timed-out probe must not leave its request running.
func TestProbe_TimeoutLeavesNoGoroutines(t *testing.T) {
	ignore := goleak.IgnoreCurrent()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))

	p := New()
	out := p.Probe(context.Background(), NewRequest("GET", srv.URL), 50*time.Millisecond)
	require.Equal(t, KindTimeout, out.Kind)

	p.Close()
	close(release)
	srv.Close()

	goleak.VerifyNone(t, ignore)
}

func TestProbe_SuccessLeavesNoGoroutines(t *testing.T) {
	ignore := goleak.IgnoreCurrent()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))

	p := New()
	out := p.Probe(context.Background(), NewRequest("GET", srv.URL), time.Second)
	require.Equal(t, KindSuccess, out.Kind)

	p.Close()
	srv.Close()

	goleak.VerifyNone(t, ignore)
}

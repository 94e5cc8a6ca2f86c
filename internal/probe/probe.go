package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"
)

// DefaultTimeout applies when Probe is called with a non-positive timeout.
const DefaultTimeout = 5000 * time.Millisecond

// maxBodyBytes caps how much of a response body is captured.
const maxBodyBytes = 1 << 20

// Prober sends probe requests. A Prober is safe for sequential reuse; the
// harness never issues concurrent probes.
type Prober struct {
	client *http.Client
	logger *slog.Logger
}

// Option configures a Prober.
type Option func(*Prober)

// WithClient replaces the HTTP client. The client's own Timeout should be
// zero; Probe enforces the deadline through the request context.
func WithClient(c *http.Client) Option {
	return func(p *Prober) {
		p.client = c
	}
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Prober) {
		p.logger = l
	}
}

// New creates a Prober with a private transport.
func New(opts ...Option) *Prober {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	p := &Prober{
		client: &http.Client{Transport: transport},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Close releases idle connections held by the prober's transport.
func (p *Prober) Close() {
	p.client.CloseIdleConnections()
}

// Probe sends req once and classifies the result. The call is bounded by
// timeout; when it expires the in-flight request is cancelled before Probe
// returns.
func (p *Prober) Probe(ctx context.Context, req Request, timeout time.Duration) Outcome {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	out := p.do(ctx, req, timeout)
	out.Elapsed = time.Since(start)

	p.logger.Debug("probe finished",
		"method", req.Method,
		"url", req.URL,
		"kind", out.Kind,
		"status", out.StatusCode,
		"elapsed", out.Elapsed,
	)
	return out
}

func (p *Prober) do(ctx context.Context, req Request, timeout time.Duration) Outcome {
	httpReq, err := req.build(ctx)
	if err != nil {
		return UnknownFailure(fmt.Sprintf("build request: %v", err))
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return classifyError(ctx, err, httpReq.URL, timeout)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if isTimeout(ctx, err) {
			return Timeout(timeoutMessage(timeout))
		}
		return UnknownFailure(fmt.Sprintf("read response body: %v", err))
	}

	body := decodeBody(resp.Header.Get("Content-Type"), raw)
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return Success(resp.StatusCode, body)
	}
	return HTTPError(resp.StatusCode, body)
}

// classifyError maps a transport error onto an outcome. Refusal is checked
// first: a refused dial is never a timeout.
func classifyError(ctx context.Context, err error, target *url.URL, timeout time.Duration) Outcome {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return ConnectionRefused(fmt.Sprintf("connection refused (is the server running at %s?)", target.Host))
	case isTimeout(ctx, err):
		return Timeout(timeoutMessage(timeout))
	case isDialFailure(err):
		return ConnectionRefused(fmt.Sprintf("cannot connect to %s: %v", target.Host, err))
	default:
		return UnknownFailure(err.Error())
	}
}

// isDialFailure reports a failed connection attempt other than name
// resolution, such as an unreachable host or network.
func isDialFailure(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return false
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func timeoutMessage(timeout time.Duration) string {
	return fmt.Sprintf("timed out after %dms", timeout.Milliseconds())
}

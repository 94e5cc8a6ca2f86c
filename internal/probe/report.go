package probe

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxReportBody is the number of runes of a body printed in a report.
const maxReportBody = 300

// Report is everything printed for one probe.
type Report struct {
	Step    string
	Request Request
	Outcome Outcome

	// Expect is the expected-status hint; zero means none. A mismatch is
	// printed but does not change the outcome.
	Expect int
}

// Icon returns the status glyph for an outcome kind.
func Icon(k Kind) string {
	switch k {
	case KindSuccess:
		return "✓"
	case KindTimeout:
		return "⏱"
	default:
		return "✗"
	}
}

// WriteReport renders r as line-oriented text:
//
//	✓ login: POST http://localhost:5000/api/auth/login
//	  status: 200 OK
//	  body: {"token":"abc"}
func WriteReport(w io.Writer, r Report) error {
	var b strings.Builder
	out := r.Outcome

	if r.Request.Method == "" && r.Request.URL == "" {
		fmt.Fprintf(&b, "%s %s\n", Icon(out.Kind), r.Step)
	} else {
		fmt.Fprintf(&b, "%s %s: %s %s\n", Icon(out.Kind), r.Step, r.Request.Method, r.Request.URL)
	}

	switch out.Kind {
	case KindSuccess, KindHTTPError:
		fmt.Fprintf(&b, "  status: %s\n", statusLine(out.StatusCode))
		if r.Expect != 0 && r.Expect != out.StatusCode {
			fmt.Fprintf(&b, "  expected: %s\n", statusLine(r.Expect))
		}
		if s := out.Body.String(); s != "" {
			fmt.Fprintf(&b, "  body: %s\n", truncate(s, maxReportBody))
		}
	default:
		fmt.Fprintf(&b, "  error: %s\n", out.Message)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func statusLine(code int) string {
	if text := http.StatusText(code); text != "" {
		return fmt.Sprintf("%d %s", code, text)
	}
	return fmt.Sprintf("%d", code)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

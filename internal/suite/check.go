package suite

import (
	"fmt"

	"github.com/Checker-Finance/qa-suite/internal/httpclient"
)

// expect returns an error built from format when ok is false.
func expect(ok bool, format string, args ...any) error {
	if ok {
		return nil
	}
	return fmt.Errorf(format, args...)
}

// expectStatus fails unless resp carries the wanted status; the body is
// included to make the failure readable.
func expectStatus(resp *httpclient.Response, want int) error {
	if resp.StatusCode == want {
		return nil
	}
	return fmt.Errorf("expected status %d, got %d: %s", want, resp.StatusCode, truncate(resp.Text(), 500))
}

func expectOK(resp *httpclient.Response) error {
	if resp.OK() {
		return nil
	}
	return fmt.Errorf("expected 2xx, got %d: %s", resp.StatusCode, truncate(resp.Text(), 500))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

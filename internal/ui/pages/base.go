package pages

import (
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// DefaultTimeout bounds visibility waits when the caller passes zero.
const DefaultTimeout = 10 * time.Second

// BasePage carries the page every facade drives.
type BasePage struct {
	Page playwright.Page
}

// NormalizePath returns endpoint with exactly one leading slash; empty becomes "/".
func NormalizePath(endpoint string) string {
	if endpoint == "" {
		return "/"
	}
	if strings.HasPrefix(endpoint, "/") {
		return endpoint
	}
	return "/" + endpoint
}

// Navigate goes to endpoint relative to the context base URL.
func (b BasePage) Navigate(endpoint string) error {
	path := NormalizePath(endpoint)
	if _, err := b.Page.Goto(path); err != nil {
		return fmt.Errorf("navigate %s: %w", path, err)
	}
	return nil
}

// ExpectVisible waits for loc to become visible.
func ExpectVisible(loc playwright.Locator, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

package browser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/qa-suite/internal/ui/pages"
)

// Config controls browser launch and the authenticated fixture.
type Config struct {
	BaseURL          string
	Headless         bool
	Timeout          time.Duration
	StorageStatePath string
	Username         string
	Password         string
	Screenshots      bool
	ScreenshotDir    string
	Install          bool
	ViewportWidth    int
	ViewportHeight   int
}

func (c Config) viewport() *playwright.Size {
	w, h := c.ViewportWidth, c.ViewportHeight
	if w == 0 || h == 0 {
		w, h = 1920, 720
	}
	return &playwright.Size{Width: w, Height: h}
}

// Session owns the playwright driver and one Chromium instance.
type Session struct {
	cfg     Config
	logger  *zap.Logger
	pw      *playwright.Playwright
	Browser playwright.Browser
}

// Launch starts the playwright driver and Chromium.
func Launch(cfg Config, logger *zap.Logger) (*Session, error) {
	if cfg.Install {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	logger.Info("browser.launched", zap.Bool("headless", cfg.Headless), zap.String("base_url", cfg.BaseURL))
	return &Session{cfg: cfg, logger: logger, pw: pw, Browser: b}, nil
}

// NewSession wraps an already running browser. Close then only closes the browser.
func NewSession(cfg Config, logger *zap.Logger, b playwright.Browser) *Session {
	return &Session{cfg: cfg, logger: logger, Browser: b}
}

func (s *Session) contextOptions() playwright.BrowserNewContextOptions {
	return playwright.BrowserNewContextOptions{
		BaseURL:  playwright.String(s.cfg.BaseURL),
		Viewport: s.cfg.viewport(),
	}
}

// NewContext opens a fresh, logged-out context.
func (s *Session) NewContext() (playwright.BrowserContext, error) {
	bc, err := s.Browser.NewContext(s.contextOptions())
	if err != nil {
		return nil, fmt.Errorf("open context: %w", err)
	}
	return bc, nil
}

// AuthenticatedContext returns a context that is already logged in. A saved
// storage state is reused when present; otherwise the fixture logs in through
// the UI, waits for the account icon, and saves the state for later runs.
func (s *Session) AuthenticatedContext() (playwright.BrowserContext, error) {
	opts := s.contextOptions()

	if path := s.cfg.StorageStatePath; path != "" {
		if _, err := os.Stat(path); err == nil {
			opts.StorageStatePath = playwright.String(path)
			bc, err := s.Browser.NewContext(opts)
			if err != nil {
				return nil, fmt.Errorf("open context from %s: %w", path, err)
			}
			s.logger.Info("browser.storage_state_reused", zap.String("path", path))
			return bc, nil
		}
	}

	bc, err := s.Browser.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("open context: %w", err)
	}
	if err := s.login(bc); err != nil {
		_ = bc.Close()
		return nil, err
	}
	return bc, nil
}

func (s *Session) login(bc playwright.BrowserContext) error {
	s.logger.Info("browser.login_started")
	page, err := s.NewPage(bc)
	if err != nil {
		return err
	}
	defer page.Close()

	if err := (pages.BasePage{Page: page}).Navigate("/"); err != nil {
		return err
	}
	if err := pages.NewLoginPage(page).Login(s.cfg.Username, s.cfg.Password); err != nil {
		s.screenshot(page, "login")
		return fmt.Errorf("ui login: %w", err)
	}
	if err := pages.ExpectVisible(pages.NewLandingPage(page).LoginIcon, s.cfg.Timeout); err != nil {
		s.screenshot(page, "login")
		return fmt.Errorf("ui login: account icon not visible: %w", err)
	}

	if path := s.cfg.StorageStatePath; path != "" {
		if _, err := bc.StorageState(path); err != nil {
			return fmt.Errorf("save storage state: %w", err)
		}
		s.logger.Info("browser.storage_state_saved", zap.String("path", path))
	}
	return nil
}

// NewPage opens a page in bc with the configured default timeout.
func (s *Session) NewPage(bc playwright.BrowserContext) (playwright.Page, error) {
	page, err := bc.NewPage()
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	if s.cfg.Timeout > 0 {
		page.SetDefaultTimeout(float64(s.cfg.Timeout.Milliseconds()))
	}
	return page, nil
}

// Screenshot writes a full-page PNG named after name and returns its path.
func (s *Session) Screenshot(page playwright.Page, name string) (string, error) {
	if !s.cfg.Screenshots || page == nil {
		return "", nil
	}
	dir := s.cfg.ScreenshotDir
	if dir == "" {
		dir = "test-results/screenshots"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	safe := strings.NewReplacer("/", "_", " ", "_").Replace(name)
	path := filepath.Join(dir, fmt.Sprintf("%s_%d.png", safe, time.Now().Unix()))
	if _, err := page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	}); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Session) screenshot(page playwright.Page, name string) {
	path, err := s.Screenshot(page, name)
	if err != nil {
		s.logger.Warn("browser.screenshot_failed", zap.Error(err))
		return
	}
	if path != "" {
		s.logger.Info("browser.screenshot_saved", zap.String("path", path))
	}
}

// Close shuts the browser and then the driver.
func (s *Session) Close() error {
	var errs []error
	if s.Browser != nil {
		errs = append(errs, s.Browser.Close())
	}
	if s.pw != nil {
		errs = append(errs, s.pw.Stop())
	}
	return errors.Join(errs...)
}

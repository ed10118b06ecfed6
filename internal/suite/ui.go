package suite

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/qa-suite/internal/ui/pages"
)

// BrowserSession is the part of browser.Session the UI suite drives.
type BrowserSession interface {
	NewContext() (playwright.BrowserContext, error)
	AuthenticatedContext() (playwright.BrowserContext, error)
	NewPage(bc playwright.BrowserContext) (playwright.Page, error)
	Screenshot(page playwright.Page, name string) (string, error)
}

// UIOptions parameterise the UI suite.
type UIOptions struct {
	Username string
	Password string
	Timeout  time.Duration
	Games    []pages.Game
}

// UISuite logs in through a fresh context and then opens each game from the
// originals menu on a shared authenticated context.
func UISuite(session BrowserSession, opts UIOptions, logger *zap.Logger) *Suite {
	if len(opts.Games) == 0 {
		opts.Games = pages.Games
	}
	var authCtx playwright.BrowserContext

	withPage := func(bc playwright.BrowserContext, name string, fn func(playwright.Page) error) error {
		page, err := session.NewPage(bc)
		if err != nil {
			return err
		}
		defer page.Close()
		if err := fn(page); err != nil {
			if path, shotErr := session.Screenshot(page, name); shotErr == nil && path != "" {
				logger.Info("suite.ui_screenshot", zap.String("step", name), zap.String("path", path))
			}
			return err
		}
		return nil
	}

	steps := []Step{{
		Name: "login",
		Run: func(ctx context.Context) error {
			bc, err := session.NewContext()
			if err != nil {
				return err
			}
			defer bc.Close()
			return withPage(bc, "login", func(page playwright.Page) error {
				landing := pages.NewLandingPage(page)
				if err := landing.Navigate(); err != nil {
					return err
				}
				if err := pages.NewLoginPage(page).Login(opts.Username, opts.Password); err != nil {
					return err
				}
				return pages.ExpectVisible(landing.LoginIcon, opts.Timeout)
			})
		},
	}}

	for _, game := range opts.Games {
		steps = append(steps, Step{
			Name: "game_" + string(game),
			Run: func(ctx context.Context) error {
				if authCtx == nil {
					bc, err := session.AuthenticatedContext()
					if err != nil {
						return err
					}
					authCtx = bc
				}
				return withPage(authCtx, "game_"+string(game), func(page playwright.Page) error {
					return openGame(page, game, opts.Timeout)
				})
			},
		})
	}

	return &Suite{
		Name:  "ui",
		Steps: steps,
		Teardown: func(context.Context) error {
			if authCtx == nil {
				return nil
			}
			err := authCtx.Close()
			authCtx = nil
			return err
		},
	}
}

func openGame(page playwright.Page, game pages.Game, timeout time.Duration) error {
	landing := pages.NewLandingPage(page)
	if err := landing.Navigate(); err != nil {
		return err
	}
	if err := landing.OpenOriginals(); err != nil {
		return err
	}
	link := landing.GameLink(game)
	if link == nil {
		return fmt.Errorf("unknown game %q", game)
	}
	if err := pages.ExpectVisible(link, timeout); err != nil {
		return fmt.Errorf("%s link not visible: %w", game, err)
	}
	if err := link.Click(); err != nil {
		return fmt.Errorf("open %s: %w", game, err)
	}
	g := pages.NewGamePage(page, game)
	if err := g.Loaded(); err != nil {
		return err
	}
	return g.WaitReady(timeout)
}

package pages

import (
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// LandingPage is the site root with the main menu and the originals section.
type LandingPage struct {
	BasePage
	LoginIcon       playwright.Locator
	MainMenu        playwright.Locator
	OriginalsButton playwright.Locator
	CrashButton     playwright.Locator
	DiceButton      playwright.Locator
	RouletteButton  playwright.Locator
	HiloButton      playwright.Locator
}

func NewLandingPage(page playwright.Page) *LandingPage {
	// Link names carry a leading icon glyph rendered as a space.
	link := func(name string) playwright.Locator {
		return page.GetByRole(*playwright.AriaRoleLink, playwright.PageGetByRoleOptions{Name: name})
	}
	return &LandingPage{
		BasePage:  BasePage{Page: page},
		LoginIcon: page.GetByTestId("PersonIcon"),
		MainMenu:  page.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{Name: ""}),
		OriginalsButton: page.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{
			Name:  "Originals",
			Exact: playwright.Bool(true),
		}),
		CrashButton:    link(" Crash"),
		DiceButton:     link(" Dice"),
		RouletteButton: link(" Roulette"),
		HiloButton:     link(" Hilo"),
	}
}

func (p *LandingPage) Navigate() error {
	return p.BasePage.Navigate("/")
}

// OpenOriginals expands the main menu and the originals group.
func (p *LandingPage) OpenOriginals() error {
	if err := p.MainMenu.Click(); err != nil {
		return fmt.Errorf("open main menu: %w", err)
	}
	if err := p.OriginalsButton.Click(); err != nil {
		return fmt.Errorf("open originals: %w", err)
	}
	return nil
}

// GameLink returns the menu link for game.
func (p *LandingPage) GameLink(game Game) playwright.Locator {
	switch game {
	case Crash:
		return p.CrashButton
	case Dice:
		return p.DiceButton
	case Roulette:
		return p.RouletteButton
	case Hilo:
		return p.HiloButton
	}
	return nil
}

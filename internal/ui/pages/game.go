package pages

import (
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Game identifies one of the originals games by its URL slug.
type Game string

const (
	Crash    Game = "crash"
	Dice     Game = "dice"
	Roulette Game = "roulette"
	Hilo     Game = "hilo"
)

// Games lists every supported game in menu order.
var Games = []Game{Crash, Dice, Roulette, Hilo}

// GamePage is the shared facade for the originals game screens.
type GamePage struct {
	BasePage
	Game   Game
	Canvas playwright.Locator

	// Dice only.
	RollDiceButton playwright.Locator
	ResultWrapper  playwright.Locator
	// Hilo only.
	BetButtons playwright.Locator
}

func NewGamePage(page playwright.Page, game Game) *GamePage {
	g := &GamePage{
		BasePage: BasePage{Page: page},
		Game:     game,
		Canvas:   page.Locator("canvas").First(),
	}
	switch game {
	case Dice:
		g.RollDiceButton = page.GetByTestId("roll-dice-button")
		g.ResultWrapper = page.GetByTestId("dice-result-wrapper")
	case Hilo:
		g.BetButtons = page.GetByTestId("hilo-bet-buttons")
	}
	return g
}

func (g *GamePage) Navigate() error {
	return g.BasePage.Navigate(string(g.Game))
}

// Loaded waits until the browser URL ends with the game slug.
func (g *GamePage) Loaded() error {
	if err := g.Page.WaitForURL("**/" + string(g.Game)); err != nil {
		return fmt.Errorf("wait for %s: %w", g.Game, err)
	}
	return nil
}

// ReadyElements returns the locators that must be visible once the game renders.
func (g *GamePage) ReadyElements() []playwright.Locator {
	switch g.Game {
	case Dice:
		return []playwright.Locator{g.RollDiceButton, g.ResultWrapper}
	case Hilo:
		return []playwright.Locator{g.BetButtons}
	default:
		return []playwright.Locator{g.Canvas}
	}
}

// WaitReady waits for every ready element to become visible.
func (g *GamePage) WaitReady(timeout time.Duration) error {
	for i, loc := range g.ReadyElements() {
		if err := ExpectVisible(loc, timeout); err != nil {
			return fmt.Errorf("%s element %d not visible: %w", g.Game, i, err)
		}
	}
	return nil
}

package pages

import (
	"fmt"

	"github.com/playwright-community/playwright-go"
)

type LoginPage struct {
	BasePage
	SignInButton       playwright.Locator
	UsernameInput      playwright.Locator
	PasswordInput      playwright.Locator
	StartPlayingButton playwright.Locator
}

func NewLoginPage(page playwright.Page) *LoginPage {
	return &LoginPage{
		BasePage:           BasePage{Page: page},
		SignInButton:       page.GetByTestId("signin-nav"),
		UsernameInput:      page.GetByPlaceholder("Enter your username"),
		PasswordInput:      page.GetByPlaceholder("Enter your password"),
		StartPlayingButton: page.GetByTestId("start-playing-login"),
	}
}

// Login opens the sign-in dialog and submits the credentials.
func (p *LoginPage) Login(username, password string) error {
	if err := p.SignInButton.Click(); err != nil {
		return fmt.Errorf("click sign in: %w", err)
	}
	if err := p.UsernameInput.Fill(username); err != nil {
		return fmt.Errorf("fill username: %w", err)
	}
	if err := p.PasswordInput.Fill(password); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}
	if err := p.StartPlayingButton.Click(); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	return nil
}

package suite

import (
	"context"
	"errors"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/Checker-Finance/qa-suite/internal/ui/pages"
	"github.com/Checker-Finance/qa-suite/pkg/model"
)

type brokenSession struct {
	err error
}

func (s brokenSession) NewContext() (playwright.BrowserContext, error) { return nil, s.err }

func (s brokenSession) AuthenticatedContext() (playwright.BrowserContext, error) { return nil, s.err }

func (s brokenSession) NewPage(playwright.BrowserContext) (playwright.Page, error) { return nil, s.err }

func (s brokenSession) Screenshot(playwright.Page, string) (string, error) { return "", nil }

func TestUISuite_StepNames(t *testing.T) {
	s := UISuite(brokenSession{}, UIOptions{}, zap.NewNop())
	var names []string
	for _, st := range s.Steps {
		names = append(names, st.Name)
	}
	assert.Equal(t, []string{"login", "game_crash", "game_dice", "game_roulette", "game_hilo"}, names)

	s = UISuite(brokenSession{}, UIOptions{Games: []pages.Game{pages.Dice}}, zap.NewNop())
	assert.Len(t, s.Steps, 2)
}

func TestUISuite_BrowserFailureFailsRun(t *testing.T) {
	s := UISuite(brokenSession{err: errors.New("browser crashed")}, UIOptions{}, zap.NewNop())
	run := NewRunner(zap.NewNop(), nil).Run(context.Background(), s)

	assert.Equal(t, model.StatusFailed, run.Status)
	assert.Equal(t, model.StatusFailed, run.Steps[0].Status)
	assert.Contains(t, run.Steps[0].Error, "browser crashed")
	for _, st := range run.Steps[1:] {
		assert.Equal(t, model.StatusSkipped, st.Status)
	}
}

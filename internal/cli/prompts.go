package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

type askFunc func(p survey.Prompt, response any, opts ...survey.AskOpt) error

// SurveyConfirmer shows the resolved ticker and lets the user correct it.
// An empty answer aborts the session.
type SurveyConfirmer struct {
	ask askFunc
}

func (c *SurveyConfirmer) askOne() askFunc {
	if c.ask != nil {
		return c.ask
	}
	return survey.AskOne
}

func (c *SurveyConfirmer) Confirm(ctx context.Context, request, proposed string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var answer string
	prompt := &survey.Input{
		Message: fmt.Sprintf("Ticker for %q:", truncateString(request, 60)),
		Help:    "Press Enter to accept, type another ticker to correct it, or clear the field to abort",
		Default: proposed,
	}
	if err := c.askOne()(prompt, &answer); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return "", context.Canceled
		}
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return strings.ToUpper(strings.TrimSpace(answer)), nil
}

// PromptForQuestion asks for the next question. An empty answer is
// rejected by the validator.
func PromptForQuestion(ask askFunc) (string, error) {
	if ask == nil {
		ask = survey.AskOne
	}
	var question string
	prompt := &survey.Input{
		Message: "Ask about a stock:",
		Help:    `For example "Should I invest in Tesla?" or "What is Apple's market cap?"`,
	}
	err := ask(prompt, &question, survey.WithValidator(func(val interface{}) error {
		str, _ := val.(string)
		if strings.TrimSpace(str) == "" {
			return fmt.Errorf("question cannot be empty")
		}
		if len(str) > 500 {
			return fmt.Errorf("question too long (max 500 characters)")
		}
		return nil
	}))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(question), nil
}

// Interactive menu actions.
const (
	actionAnalyze = "Analyze a question"
	actionCompare = "Compare single-call and pipeline answers"
	actionHistory = "Show history"
	actionConfig  = "Show configuration"
	actionExit    = "Exit"
)

func PromptForAction(ask askFunc) (string, error) {
	if ask == nil {
		ask = survey.AskOne
	}
	var selected string
	prompt := &survey.Select{
		Message: "What would you like to do?",
		Options: []string{actionAnalyze, actionCompare, actionHistory, actionConfig, actionExit},
		Default: actionAnalyze,
	}
	if err := ask(prompt, &selected); err != nil {
		return "", err
	}
	return selected, nil
}

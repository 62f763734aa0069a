package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/dyike/cortexanalyst/pkg/app"
)

// runInteractive loops over the menu until the user exits. The runtime
// keeps watching the config file, so edits apply to the next question.
func runInteractive(ctx context.Context, opts *rootOptions) error {
	DisplayWelcomeBanner()
	return withRuntime(ctx, opts, func(ctx context.Context, rt *app.Runtime) error {
		for {
			if ctx.Err() != nil {
				return nil
			}
			action, err := PromptForAction(nil)
			if errors.Is(err, terminal.InterruptErr) {
				return nil
			}
			if err != nil {
				return err
			}
			if action == actionExit {
				fmt.Println("Goodbye.")
				return nil
			}
			if err := runAction(ctx, rt, action); err != nil {
				if errors.Is(err, terminal.InterruptErr) {
					continue
				}
				DisplayError(err)
			}
			fmt.Println()
		}
	})
}

func runAction(ctx context.Context, rt *app.Runtime, action string) error {
	switch action {
	case actionHistory:
		return showHistory(ctx, rt, 10)
	case actionConfig:
		cfg := rt.Config()
		fmt.Println(RenderConfig("", cfg))
		return nil
	}

	question, err := PromptForQuestion(nil)
	if err != nil {
		return err
	}
	if action == actionCompare {
		cmp, err := rt.Compare(ctx, question)
		if err != nil {
			return err
		}
		fmt.Println(RenderComparison(cmp))
		return nil
	}
	out, err := rt.Analyze(ctx, question)
	if err != nil {
		return err
	}
	fmt.Println(RenderOutcome(out, rt.Config().ResultsDir))
	return nil
}

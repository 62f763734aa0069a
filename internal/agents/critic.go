package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dyike/cortexanalyst/internal/critique"
	"github.com/dyike/cortexanalyst/internal/llm"
	"github.com/dyike/cortexanalyst/internal/parser"
	"github.com/dyike/cortexanalyst/internal/utils"
	"github.com/dyike/cortexanalyst/models"
)

const (
	criticReportChars  = 3000
	criticContextChars = 1500
)

// Critic obtains the rubric evaluation of a draft.
type Critic struct {
	base
	instruction string
}

func NewCritic(r llm.Reasoner, opts ...Option) (*Critic, error) {
	instruction, err := utils.LoadPrompt(utils.PromptCritic)
	if err != nil {
		return nil, err
	}
	return &Critic{base: newBase(r, opts), instruction: instruction}, nil
}

// Rate never fails: a call or parse failure yields the neutral rubric as a
// degraded result, which forces a correction.
func (c *Critic) Rate(ctx context.Context, draft models.Draft, evidence string) parser.Result[critique.Rubric] {
	raw, err := c.reasoner.Reason(ctx, llm.Call{
		Role:        llm.RoleCritic,
		Instruction: c.instruction,
		Content: fmt.Sprintf("REPORT TO EVALUATE:\n%s\n\nSOURCE CONTEXT (for verification):\n%s\n\nEvaluate this report STRICTLY.",
			clip(draft.Body, criticReportChars), clip(evidence, criticContextChars)),
		Structured: true,
	})
	if err != nil {
		c.logger.Warn("critic call failed", zap.Error(err))
		return parser.Fallback(critique.NeutralRubric(), "reasoning service unavailable: "+err.Error())
	}
	res := critique.DecodeRubric(raw)
	if res.Degraded() {
		c.logger.Warn("critic answer unparseable", zap.String("reason", res.Reason()))
	}
	return res
}

package agents

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/dyike/cortexanalyst/consts"
	"github.com/dyike/cortexanalyst/internal/llm"
	"github.com/dyike/cortexanalyst/internal/utils"
	"github.com/dyike/cortexanalyst/models"
)

// Narrator turns the evidence document into a readable narrative.
type Narrator struct {
	base
}

func NewNarrator(r llm.Reasoner, opts ...Option) *Narrator {
	return &Narrator{base: newBase(r, opts)}
}

// Narrate returns the narrative. On failure the evidence rendering itself
// stands in for it.
func (n *Narrator) Narrate(ctx context.Context, instrument, evidence string) (string, models.StageOutcome) {
	instruction, err := utils.LoadPromptWithContext(utils.PromptNarrator, map[string]string{"Instrument": instrument})
	if err != nil {
		return evidence, models.Degraded(consts.Narrate, err.Error())
	}
	raw, err := n.reasoner.Reason(ctx, llm.Call{
		Role:        llm.RoleNarrator,
		Instruction: instruction,
		Content:     "Here is the raw data for " + instrument + ":\n\n" + evidence,
	})
	if err != nil {
		n.logger.Warn("narrator call failed, using raw evidence", zap.Error(err))
		return evidence, models.Degraded(consts.Narrate, err.Error())
	}
	narrative := strings.TrimSpace(raw)
	if narrative == "" {
		return evidence, models.Degraded(consts.Narrate, "empty narrative")
	}
	return narrative, models.Success(consts.Narrate)
}

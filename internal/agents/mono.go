package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dyike/cortexanalyst/consts"
	"github.com/dyike/cortexanalyst/internal/llm"
	"github.com/dyike/cortexanalyst/internal/utils"
	"github.com/dyike/cortexanalyst/models"
)

// Mono produces a full analysis report in a single reasoning call. It is
// the baseline the staged pipeline is compared against.
type Mono struct {
	base
	instruction string
	now         func() time.Time
}

func NewMono(r llm.Reasoner, opts ...Option) (*Mono, error) {
	instruction, err := utils.LoadPrompt(utils.PromptMono)
	if err != nil {
		return nil, err
	}
	return &Mono{base: newBase(r, opts), instruction: instruction, now: time.Now}, nil
}

func (m *Mono) Report(ctx context.Context, request, instrument, evidence string) (models.Draft, models.StageOutcome) {
	raw, err := m.reasoner.Reason(ctx, llm.Call{
		Role:        llm.RoleMono,
		Instruction: m.instruction,
		Content:     fmt.Sprintf("QUESTION:\n%q\n\nDATA FOR %s:\n%s", request, instrument, evidence),
	})
	if err != nil {
		return models.Draft{}, models.Fatal(consts.Mono, err)
	}
	d := models.Draft{Template: models.TemplateFull, CreatedAt: m.now()}
	d.Body = Header(request, instrument, d) + strings.TrimSpace(raw) + "\n"
	return d, models.Success(consts.Mono)
}

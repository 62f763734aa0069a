package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dyike/cortexanalyst/consts"
	"github.com/dyike/cortexanalyst/internal/llm"
	"github.com/dyike/cortexanalyst/internal/scoring"
	"github.com/dyike/cortexanalyst/internal/utils"
	"github.com/dyike/cortexanalyst/models"
)

const scorerContextChars = 3000

// Scorer asks for per-criterion ratings and computes the verdict locally.
type Scorer struct {
	base
	weights     scoring.Weights
	instruction string
}

func NewScorer(r llm.Reasoner, w scoring.Weights, opts ...Option) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	instruction, err := utils.LoadPromptWithContext(utils.PromptScorer, map[string]string{"Weights": w.Describe()})
	if err != nil {
		return nil, err
	}
	return &Scorer{base: newBase(r, opts), weights: w, instruction: instruction}, nil
}

func (s *Scorer) Weights() scoring.Weights { return s.weights }

func (s *Scorer) Score(ctx context.Context, evidence string, bull, bear models.Opinion) (scoring.Result, models.StageOutcome) {
	content := fmt.Sprintf(`=== FINANCIAL DATA (CONTEXT) ===
%s

=== BULL CASE ===
%s

=== BEAR CASE ===
%s

Analyze these data and rate each criterion.`,
		clip(evidence, scorerContextChars), orUnavailable(bull.Markdown(), bull.Empty()), orUnavailable(bear.Markdown(), bear.Empty()))

	raw, err := s.reasoner.Reason(ctx, llm.Call{
		Role:        llm.RoleScorer,
		Instruction: s.instruction,
		Content:     content,
		Structured:  true,
	})
	if err != nil {
		s.logger.Warn("scorer call failed, using neutral ratings", zap.Error(err))
		return scoring.Neutral(s.weights, "reasoning service unavailable: "+err.Error()), models.Degraded(consts.Score, err.Error())
	}

	res := scoring.Decode(raw, s.weights)
	s.logger.Debug("scored",
		zap.Float64("composite", res.Composite),
		zap.String("tier", string(res.Tier)),
		zap.Bool("degraded", res.Degraded))
	if res.Degraded {
		return res, models.Degraded(consts.Score, res.Reason)
	}
	return res, models.Success(consts.Score)
}

// clip truncates s to at most n runes.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func orUnavailable(s string, missing bool) string {
	if missing || s == "" {
		return "Not available"
	}
	return s
}

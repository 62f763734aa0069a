package agents

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dyike/cortexanalyst/consts"
	"github.com/dyike/cortexanalyst/internal/llm"
	"github.com/dyike/cortexanalyst/internal/utils"
	"github.com/dyike/cortexanalyst/models"
)

// StanceAnalyzer argues one side of the investment case.
type StanceAnalyzer struct {
	base
	stance      models.Stance
	stage       string
	role        llm.Role
	instruction string
}

func NewBullAnalyst(r llm.Reasoner, opts ...Option) (*StanceAnalyzer, error) {
	return newStanceAnalyzer(r, models.Bullish, opts)
}

func NewBearAnalyst(r llm.Reasoner, opts ...Option) (*StanceAnalyzer, error) {
	return newStanceAnalyzer(r, models.Bearish, opts)
}

func newStanceAnalyzer(r llm.Reasoner, stance models.Stance, opts []Option) (*StanceAnalyzer, error) {
	a := &StanceAnalyzer{base: newBase(r, opts), stance: stance}
	path := utils.PromptBull
	a.stage, a.role = consts.Bull, llm.RoleBull
	if stance == models.Bearish {
		path = utils.PromptBear
		a.stage, a.role = consts.Bear, llm.RoleBear
	}
	instruction, err := utils.LoadPrompt(path)
	if err != nil {
		return nil, err
	}
	a.instruction = instruction
	return a, nil
}

func (a *StanceAnalyzer) Stance() models.Stance { return a.stance }

func (a *StanceAnalyzer) Analyze(ctx context.Context, evidence string) (models.Opinion, models.StageOutcome) {
	raw, err := a.reasoner.Reason(ctx, llm.Call{
		Role:        a.role,
		Instruction: a.instruction,
		Content:     "Here is the company data:\n" + evidence,
	})
	if err != nil {
		a.logger.Warn("stance call failed", zap.String("stance", string(a.stance)), zap.Error(err))
		return models.NewOpinion(a.stance, nil, "", ""), models.Degraded(a.stage, err.Error())
	}
	op := ParseOpinion(a.stance, raw)
	if op.Empty() {
		return op, models.Degraded(a.stage, "no arguments in answer")
	}
	return op, models.Success(a.stage)
}

var (
	bulletRe     = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)
	conclusionRe = regexp.MustCompile(`(?i)^\s*(?:[-*•]\s*)?\**\s*conclusion[^:]*:\s*\**\s*(.*)$`)
)

// ParseOpinion splits an answer into argument bullets and a trailing
// conclusion. Without bullets the whole text is one argument.
func ParseOpinion(stance models.Stance, raw string) models.Opinion {
	var (
		args       []string
		conclusion []string
		inConcl    bool
	)
	for _, line := range strings.Split(raw, "\n") {
		if m := conclusionRe.FindStringSubmatch(line); m != nil {
			inConcl = true
			if s := strings.TrimSpace(strings.Trim(m[1], "* ")); s != "" {
				conclusion = append(conclusion, s)
			}
			continue
		}
		if inConcl {
			if s := strings.TrimSpace(line); s != "" {
				conclusion = append(conclusion, s)
			}
			continue
		}
		if m := bulletRe.FindStringSubmatch(line); m != nil {
			args = append(args, strings.TrimSpace(m[1]))
		}
	}
	text := strings.TrimSpace(raw)
	if len(args) == 0 && len(conclusion) == 0 && text != "" {
		args = []string{text}
	}
	return models.NewOpinion(stance, args, strings.Join(conclusion, " "), raw)
}

// Analyst is one side of the stance stage.
type Analyst interface {
	Analyze(ctx context.Context, evidence string) (models.Opinion, models.StageOutcome)
}

// Opinions is the joined result of both analysts.
type Opinions struct {
	Bull        models.Opinion
	Bear        models.Opinion
	BullOutcome models.StageOutcome
	BearOutcome models.StageOutcome
}

// RunStances runs both analysts concurrently over the same read-only
// evidence and waits for both.
func RunStances(ctx context.Context, bull, bear Analyst, evidence string) Opinions {
	var out Opinions
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out.Bull, out.BullOutcome = bull.Analyze(gctx, evidence)
		return nil
	})
	g.Go(func() error {
		out.Bear, out.BearOutcome = bear.Analyze(gctx, evidence)
		return nil
	})
	_ = g.Wait()
	return out
}

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

type Router struct {
	base
	instruction string
}

func NewRouter(r llm.Reasoner, opts ...Option) (*Router, error) {
	instruction, err := utils.LoadPrompt(utils.PromptRouter)
	if err != nil {
		return nil, err
	}
	return &Router{base: newBase(r, opts), instruction: instruction}, nil
}

func (r *Router) Route(ctx context.Context, request string) (models.Route, models.StageOutcome) {
	raw, err := r.reasoner.Reason(ctx, llm.Call{
		Role:        llm.RoleRouter,
		Instruction: r.instruction,
		Content:     "The user's question is: \"" + request + "\"",
	})
	if err != nil {
		r.logger.Warn("router call failed, defaulting to factual", zap.Error(err))
		return models.RouteFactual, models.Degraded(consts.Route, err.Error())
	}
	route, ok := ParseRoute(raw)
	if !ok {
		r.logger.Warn("ambiguous route, defaulting to factual", zap.String("answer", raw))
		return route, models.Degraded(consts.Route, "ambiguous route answer")
	}
	return route, models.Success(consts.Route)
}

// ParseRoute maps a free-text answer to a route. Analysis labels win over
// factual ones; anything unrecognized is FACTUAL with ok false.
func ParseRoute(answer string) (models.Route, bool) {
	upper := strings.ToUpper(strings.TrimSpace(answer))
	switch {
	case strings.Contains(upper, "ANALYSIS"):
		return models.RouteFullAnalysis, true
	case strings.Contains(upper, "FACTUAL"), strings.Contains(upper, "INFO"):
		return models.RouteFactual, true
	}
	return models.RouteFactual, false
}

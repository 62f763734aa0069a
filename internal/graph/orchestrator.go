package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/dyike/cortexanalyst/consts"
	"github.com/dyike/cortexanalyst/internal/pipeline"
)

const graphName = "CortexAnalyst-Pipeline"

// newOrchestrator compiles the stage graph once. Every node hands off
// through the shared Goto branch.
func newOrchestrator(ctx context.Context, p *Pipeline) (compose.Runnable[*pipeline.State, *pipeline.State], error) {
	g := compose.NewGraph[*pipeline.State, *pipeline.State]()

	handlers := map[string]stageFunc{
		consts.Intake:   p.intake,
		consts.Confirm:  p.confirm,
		consts.Route:    p.route,
		consts.Fetch:    p.fetch,
		consts.Narrate:  p.narrate,
		consts.Stances:  p.stances,
		consts.Score:    p.score,
		consts.Compose:  p.compose,
		consts.Critique: p.critique,
		consts.Mono:     p.mono,
	}

	for _, name := range nodes {
		if err := g.AddLambdaNode(name, p.node(name, handlers[name]), compose.WithNodeName(name)); err != nil {
			return nil, fmt.Errorf("add node %s: %w", name, err)
		}
	}
	outMap := handOffTargets()
	for _, name := range nodes {
		if err := g.AddBranch(name, compose.NewGraphBranch(agentHandOff, outMap)); err != nil {
			return nil, fmt.Errorf("add branch %s: %w", name, err)
		}
	}
	if err := g.AddEdge(compose.START, consts.Intake); err != nil {
		return nil, err
	}

	r, err := g.Compile(ctx,
		compose.WithGraphName(graphName),
		compose.WithNodeTriggerMode(compose.AnyPredecessor),
		compose.WithMaxRunSteps(len(nodes)+2),
	)
	if err != nil {
		return nil, fmt.Errorf("compile graph: %w", err)
	}
	return r, nil
}

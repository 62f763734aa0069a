package graph

import (
	"context"

	"github.com/cloudwego/eino/compose"

	"github.com/dyike/cortexanalyst/consts"
	"github.com/dyike/cortexanalyst/internal/pipeline"
)

// nodes lists every stage in graph order.
var nodes = []string{
	consts.Intake,
	consts.Confirm,
	consts.Route,
	consts.Fetch,
	consts.Narrate,
	consts.Stances,
	consts.Score,
	consts.Compose,
	consts.Critique,
	consts.Mono,
}

func handOffTargets() map[string]bool {
	out := map[string]bool{compose.END: true}
	for _, n := range nodes {
		out[n] = true
	}
	return out
}

// agentHandOff reads the next node chosen by the stage that just ran.
func agentHandOff(_ context.Context, st *pipeline.State) (string, error) {
	if st.Goto == "" {
		return compose.END, nil
	}
	return st.Goto, nil
}

func afterIntake(st *pipeline.State, confirming bool) string {
	switch {
	case confirming:
		return consts.Confirm
	case st.Instrument == "":
		return compose.END
	}
	return afterConfirm(st)
}

func afterConfirm(st *pipeline.State) string {
	if st.Mode == pipeline.ModeMono {
		return consts.Fetch
	}
	return consts.Route
}

func afterFetch(st *pipeline.State) string {
	if st.Mode == pipeline.ModeMono {
		return consts.Mono
	}
	return consts.Narrate
}

// afterNarrate skips the stances and the score on the factual route.
func afterNarrate(st *pipeline.State) string {
	if st.Route.Full() {
		return consts.Stances
	}
	return consts.Compose
}

package agents

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dyike/cortexanalyst/internal/llm"
	"github.com/dyike/cortexanalyst/internal/scoring"
	"github.com/dyike/cortexanalyst/models"
)

var errDown = errors.New("service down")

func TestAliasTable(t *testing.T) {
	a := DefaultAliases()

	ticker, ok := a.Lookup(" LVMH ")
	require.True(t, ok)
	assert.Equal(t, "MC.PA", ticker)

	ticker, ok = a.Find("Should I buy some BNP Paribas shares?")
	require.True(t, ok)
	assert.Equal(t, "BNP.PA", ticker)

	_, ok = a.Find("what is a metaverse")
	assert.False(t, ok, "matches whole words only")

	assert.Contains(t, a.Examples(), `"airbus" -> AIR.PA`)

	_, err := ParseAliases([]byte("aliases: [oops"))
	assert.Error(t, err)
}

func TestClassifier(t *testing.T) {
	cases := []struct {
		name       string
		request    string
		answer     string
		admissible bool
		instrument string
		degraded   bool
	}{
		{"ticker", "Should I buy Microsoft?", `{"admissible":true,"reason":"stock","instrument_id":" msft "}`, true, "MSFT", false},
		{"fenced null", "How do rates work?", "```json\n{\"admissible\":true,\"reason\":\"economy\",\"instrument_id\":null}\n```", true, "", false},
		{"company name", "Apple outlook", `{"admissible":true,"reason":"stock","instrument_id":"apple"}`, true, "AAPL", false},
		{"alias from request", "Is LVMH a buy?", `{"admissible":true,"reason":"stock","instrument_id":"null"}`, true, "MC.PA", false},
		{"rejected", "Give me a pancake recipe", `{"admissible":false,"reason":"cooking","instrument_id":null}`, false, "", false},
		{"garbage", "Is Tesla a buy?", "Sure, Tesla is TSLA!", false, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := llm.NewScripted().On(llm.RoleClassifier, tc.answer)
			c, err := NewClassifier(r, DefaultAliases())
			require.NoError(t, err)

			cls, out := c.Classify(context.Background(), tc.request)
			assert.Equal(t, tc.admissible, cls.Admissible)
			assert.Equal(t, tc.instrument, cls.Instrument())
			assert.Equal(t, tc.degraded, out.Kind == models.OutcomeDegraded, out.String())
			if tc.degraded {
				assert.Equal(t, "parse error", cls.Reason)
			}
		})
	}
}

func TestClassifierFailsClosed(t *testing.T) {
	c, err := NewClassifier(llm.NewScripted().Fail(llm.RoleClassifier, errDown), nil)
	require.NoError(t, err)

	cls, out := c.Classify(context.Background(), "Is Nvidia a buy?")
	assert.False(t, cls.Admissible)
	assert.Equal(t, models.OutcomeDegraded, out.Kind)
	assert.Contains(t, out.Reason, "service down")
}

func TestParseRoute(t *testing.T) {
	cases := []struct {
		answer string
		route  models.Route
		ok     bool
	}{
		{"FULL_ANALYSIS", models.RouteFullAnalysis, true},
		{"  analysis\n", models.RouteFullAnalysis, true},
		{"FACTUAL", models.RouteFactual, true},
		{"info_simple", models.RouteFactual, true},
		{"INFO or ANALYSIS? ANALYSIS", models.RouteFullAnalysis, true},
		{"no idea", models.RouteFactual, false},
	}
	for _, tc := range cases {
		route, ok := ParseRoute(tc.answer)
		assert.Equal(t, tc.route, route, tc.answer)
		assert.Equal(t, tc.ok, ok, tc.answer)
	}
}

func TestRouterDefaultsToFactual(t *testing.T) {
	r, err := NewRouter(llm.NewScripted().Fail(llm.RoleRouter, errDown))
	require.NoError(t, err)
	route, out := r.Route(context.Background(), "Should I buy?")
	assert.Equal(t, models.RouteFactual, route)
	assert.Equal(t, models.OutcomeDegraded, out.Kind)

	r, err = NewRouter(llm.NewScripted().On(llm.RoleRouter, "FULL_ANALYSIS"))
	require.NoError(t, err)
	route, out = r.Route(context.Background(), "Should I buy?")
	assert.Equal(t, models.RouteFullAnalysis, route)
	assert.True(t, out.OK())
}

func TestNarratorFallsBackToEvidence(t *testing.T) {
	n := NewNarrator(llm.NewScripted().Fail(llm.RoleNarrator, errDown))
	text, out := n.Narrate(context.Background(), "AAPL", "# EVIDENCE")
	assert.Equal(t, "# EVIDENCE", text)
	assert.Equal(t, models.OutcomeDegraded, out.Kind)

	n = NewNarrator(llm.NewScripted().On(llm.RoleNarrator, "## Identity\nApple"))
	text, out = n.Narrate(context.Background(), "AAPL", "# EVIDENCE")
	assert.Equal(t, "## Identity\nApple", text)
	assert.Equal(t, models.OutcomeSuccess, out.Kind)
}

const bullAnswer = `## ARGUMENTS FOR BUYING
- **Growth**: revenue up 12% to 391B.
* **Margins**: operating margin 30.7%.
1. **Cash**: 65B in cash.

**Conclusion:** strong upside.`

func TestParseOpinion(t *testing.T) {
	op := ParseOpinion(models.Bullish, bullAnswer)
	assert.Equal(t, 3, op.Len())
	assert.Equal(t, "**Growth**: revenue up 12% to 391B.", op.Arguments()[0])
	assert.Equal(t, "strong upside.", op.Conclusion())

	op = ParseOpinion(models.Bearish, "- **Conclusion Bear** : valuation stretched")
	assert.True(t, op.Empty())
	assert.Equal(t, "valuation stretched", op.Conclusion())

	op = ParseOpinion(models.Bearish, "The P/E of 35 is too high.")
	assert.Equal(t, []string{"The P/E of 35 is too high."}, op.Arguments())

	assert.True(t, ParseOpinion(models.Bullish, "  ").Empty())
}

func TestOpinionIsImmutable(t *testing.T) {
	op := ParseOpinion(models.Bullish, bullAnswer)
	args := op.Arguments()
	args[0] = "tampered"
	assert.NotEqual(t, "tampered", op.Arguments()[0])
}

func TestRunStancesConcurrentAndIsolated(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	r := llm.NewScripted().On(llm.RoleBull, bullAnswer).Fail(llm.RoleBear, errDown)
	bull, err := NewBullAnalyst(r)
	require.NoError(t, err)
	bear, err := NewBearAnalyst(r)
	require.NoError(t, err)

	ops := RunStances(context.Background(), bull, bear, "# EVIDENCE")
	assert.Equal(t, 3, ops.Bull.Len())
	assert.Equal(t, models.OutcomeSuccess, ops.BullOutcome.Kind)
	assert.True(t, ops.Bear.Empty())
	assert.Equal(t, models.Bearish, ops.Bear.Stance())
	assert.Equal(t, models.OutcomeDegraded, ops.BearOutcome.Kind)
	assert.Equal(t, 1, r.Count(llm.RoleBull))
	assert.Equal(t, 1, r.Count(llm.RoleBear))
}

func TestScorer(t *testing.T) {
	answer := `{"scores":{"valuation":6,"growth":6,"profitability":6,"financial_health":6,"analyst_sentiment":6,"momentum":6,"identified_risks":6},"conclusion":"balanced"}`
	s, err := NewScorer(llm.NewScripted().On(llm.RoleScorer, answer), scoring.DefaultWeights())
	require.NoError(t, err)

	res, out := s.Score(context.Background(), "# EVIDENCE", models.Opinion{}, models.Opinion{})
	assert.Equal(t, models.OutcomeSuccess, out.Kind)
	assert.InDelta(t, 6.0, res.Composite, 1e-9)
	assert.Equal(t, scoring.ModerateBuy, res.Tier)

	s, err = NewScorer(llm.NewScripted().Fail(llm.RoleScorer, errDown), scoring.DefaultWeights())
	require.NoError(t, err)
	res, out = s.Score(context.Background(), "# EVIDENCE", models.Opinion{}, models.Opinion{})
	assert.Equal(t, models.OutcomeDegraded, out.Kind)
	assert.True(t, res.Degraded)
	assert.InDelta(t, 5.0, res.Composite, 1e-9)

	_, err = NewScorer(llm.NewScripted(), scoring.Weights{scoring.Valuation: 1})
	assert.ErrorIs(t, err, scoring.ErrInvalidWeights)
}

func fixedNow() time.Time { return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC) }

func fullInput() models.ComposeInput {
	return models.ComposeInput{
		Request:    "Should I buy Apple?",
		Instrument: "AAPL",
		Route:      models.RouteFullAnalysis,
		Context:    "# EVIDENCE",
		KeyFigures: "- **Current price:** 189.50 USD",
		Bull:       ParseOpinion(models.Bullish, bullAnswer),
		Bear:       ParseOpinion(models.Bearish, "- debt is high"),
		Score:      "# SCORE VERDICT",
	}
}

func TestComposerFullPath(t *testing.T) {
	r := llm.NewScripted().On(llm.RoleComposer, "## DIRECT ANSWER\nBuy")
	c := NewComposer(r, scoring.DefaultWeights())
	c.now = fixedNow

	d, out := c.Compose(context.Background(), fullInput())
	assert.Equal(t, models.OutcomeSuccess, out.Kind)
	assert.Equal(t, models.TemplateFull, d.Template)
	assert.False(t, d.Corrected)
	assert.True(t, strings.HasPrefix(d.Body, "# FINAL REPORT\n"))
	assert.Contains(t, d.Body, "**Date:** 2025-03-14 09:30")
	assert.Contains(t, d.Body, "## DIRECT ANSWER\nBuy")

	calls := r.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Instruction, "| Financial Health | X/10 | 15% | X.X |")
	assert.Contains(t, calls[0].Content, "189.50 USD")
}

func TestComposerFallsBackToFactual(t *testing.T) {
	in := fullInput()
	in.Score = ""
	c := NewComposer(llm.NewScripted().Default("## SUMMARY"), scoring.DefaultWeights())

	d, out := c.Compose(context.Background(), in)
	assert.Equal(t, models.OutcomeDegraded, out.Kind)
	assert.Equal(t, models.TemplateFactual, d.Template)
}

func TestComposerCorrection(t *testing.T) {
	r := llm.NewScripted().Default("## DIRECT ANSWER\nfixed")
	c := NewComposer(r, scoring.DefaultWeights())

	in := fullInput()
	in.Directive = "# REQUESTED CORRECTIONS\n- add missing sections: FINAL ADVICE"
	in.Previous = &models.Draft{Template: models.TemplateFull, Revision: 0, Body: "old body"}

	d, out := c.Compose(context.Background(), in)
	assert.True(t, out.OK())
	assert.True(t, d.Corrected)
	assert.Equal(t, 1, d.Revision)
	assert.Contains(t, d.Body, "(Corrected version)")

	call := r.Calls()[0]
	assert.Contains(t, call.Instruction, "- ## FINAL ADVICE")
	assert.Contains(t, call.Content, "add missing sections: FINAL ADVICE")
	assert.Contains(t, call.Content, "old body")
}

func TestComposerFailureIsFatal(t *testing.T) {
	c := NewComposer(llm.NewScripted().Fail(llm.RoleComposer, errDown), scoring.DefaultWeights())
	d, out := c.Compose(context.Background(), fullInput())
	assert.True(t, out.IsFatal())
	assert.True(t, d.Empty())
}

func TestCritic(t *testing.T) {
	c, err := NewCritic(llm.NewScripted().On(llm.RoleCritic, `{"argumentation":8,"recommendation":7,"sources":6,"coherence":9,"problems":[],"corrections":[],"verdict":"VALID"}`))
	require.NoError(t, err)
	res := c.Rate(context.Background(), models.Draft{Body: "x"}, "ctx")
	require.False(t, res.Degraded())
	assert.Equal(t, 9.0, res.Value().Coherence)

	c, err = NewCritic(llm.NewScripted().Fail(llm.RoleCritic, errDown))
	require.NoError(t, err)
	res = c.Rate(context.Background(), models.Draft{Body: "x"}, "ctx")
	assert.True(t, res.Degraded())
	assert.Equal(t, 5.0, res.Value().Argumentation)
}

func TestMono(t *testing.T) {
	m, err := NewMono(llm.NewScripted().On(llm.RoleMono, "## DIRECT ANSWER\nhold"))
	require.NoError(t, err)
	m.now = fixedNow

	d, out := m.Report(context.Background(), "Buy Apple?", "AAPL", "# EVIDENCE")
	assert.True(t, out.OK())
	assert.Equal(t, models.TemplateFull, d.Template)
	assert.Contains(t, d.Body, "**Analysis type:** Investment analysis (full)")

	m, err = NewMono(llm.NewScripted().Fail(llm.RoleMono, errDown))
	require.NoError(t, err)
	_, out = m.Report(context.Background(), "Buy Apple?", "AAPL", "# EVIDENCE")
	assert.True(t, out.IsFatal())
}

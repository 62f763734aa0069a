package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/cortexanalyst/config"
	"github.com/dyike/cortexanalyst/consts"
	"github.com/dyike/cortexanalyst/internal/graph"
	"github.com/dyike/cortexanalyst/internal/pipeline"
	"github.com/dyike/cortexanalyst/internal/storage/sqlite"
	"github.com/dyike/cortexanalyst/models"
)

func answer(text string) askFunc {
	return func(p survey.Prompt, response any, _ ...survey.AskOpt) error {
		*(response.(*string)) = text
		return nil
	}
}

func TestSurveyConfirmerNormalizesAnswer(t *testing.T) {
	var shown string
	c := &SurveyConfirmer{ask: func(p survey.Prompt, response any, _ ...survey.AskOpt) error {
		shown = p.(*survey.Input).Default
		*(response.(*string)) = " tsla "
		return nil
	}}
	id, err := c.Confirm(context.Background(), "Should I buy Tesla?", "TSLAX")
	require.NoError(t, err)
	assert.Equal(t, "TSLAX", shown)
	assert.Equal(t, "TSLA", id)
}

func TestSurveyConfirmerEmptyAnswer(t *testing.T) {
	c := &SurveyConfirmer{ask: answer("   ")}
	id, err := c.Confirm(context.Background(), "q", "AAPL")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestSurveyConfirmerInterrupt(t *testing.T) {
	c := &SurveyConfirmer{ask: func(survey.Prompt, any, ...survey.AskOpt) error {
		return terminal.InterruptErr
	}}
	_, err := c.Confirm(context.Background(), "q", "AAPL")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSurveyConfirmerHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &SurveyConfirmer{ask: func(survey.Prompt, any, ...survey.AskOpt) error {
		t.Fatal("prompt shown after cancellation")
		return nil
	}}
	_, err := c.Confirm(ctx, "q", "AAPL")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPromptForQuestionTrims(t *testing.T) {
	q, err := PromptForQuestion(answer("  What is Apple's P/E?  "))
	require.NoError(t, err)
	assert.Equal(t, "What is Apple's P/E?", q)
}

func outcome(status string) *pipeline.Outcome {
	return &pipeline.Outcome{Summary: models.SessionSummary{
		Session:    "s-1",
		Instrument: "TSLA",
		Route:      models.RouteFullAnalysis,
		Status:     status,
	}}
}

func TestRenderOutcomeExplainsEarlyStops(t *testing.T) {
	rejected := outcome(consts.StatusRejected)
	rejected.Classification.Reason = "weather question"
	assert.Contains(t, RenderOutcome(rejected, ""), "weather question")

	assert.Contains(t, RenderOutcome(outcome(consts.StatusUnresolved), ""), "Could not identify a ticker")

	fetch := outcome(consts.StatusFetchFailed)
	fetch.Err = errors.New("no data")
	got := RenderOutcome(fetch, "")
	assert.Contains(t, got, "TSLA")
	assert.Contains(t, got, "no data")

	assert.Contains(t, RenderOutcome(outcome(consts.StatusCancelled), ""), "cancelled")
	assert.Contains(t, RenderOutcome(outcome(consts.StatusFailed), ""), "unknown error")
}

func TestRenderOutcomePrintsReport(t *testing.T) {
	out := outcome(consts.StatusUnvalidated)
	out.Summary.Iterations = 3
	out.Summary.QualityScore = 41.5
	out.Summary.Recommendation = "HOLD"
	out.Draft = models.Draft{Body: "## Executive Summary\n\nbody"}

	got := RenderOutcome(out, "/tmp/results")
	assert.Contains(t, got, "## Executive Summary")
	assert.Contains(t, got, "did not pass the quality gate after 3")
	assert.Contains(t, got, "41.5/100")
	assert.Contains(t, got, "HOLD")
	assert.Contains(t, got, "/tmp/results/TSLA/s-1")
}

func TestRenderComparison(t *testing.T) {
	mono := outcome(consts.StatusUnvalidated)
	mono.Summary.QualityScore = 53
	mono.Draft = models.Draft{Body: "mono body"}
	full := outcome(consts.StatusCompleted)
	full.Summary.QualityScore = 88
	full.Draft = models.Draft{Body: "pipeline body"}

	got := RenderComparison(&graph.Comparison{Mono: mono, Pipeline: full})
	assert.Contains(t, got, "+35.0 points")
	assert.Contains(t, got, "mono body")
	assert.Contains(t, got, "pipeline body")
}

func TestRenderHistory(t *testing.T) {
	assert.Contains(t, RenderHistory(sqlite.Stats{}, nil), "No sessions recorded yet")

	st := sqlite.Stats{Sessions: 4, Validated: 3, ValidatedFirst: 2, StageFailures: map[string]int{"fetch": 1}}
	recent := []models.SessionSummary{{
		Instrument: "AAPL",
		Status:     consts.StatusCompleted,
		Request:    "What is Apple's market cap?",
		StartedAt:  time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}}
	got := RenderHistory(st, recent)
	assert.Contains(t, got, "3 (75.0%)")
	assert.Contains(t, got, "fetch=1")
	assert.Contains(t, got, "AAPL")
}

func TestRenderConfigMasksSecrets(t *testing.T) {
	cfg := *config.DefaultConfigWithRoot(t.TempDir())
	cfg.LLMProvider = config.ProviderOpenAI
	cfg.OpenAIAPIKey = "sk-secret"
	got := RenderConfig("/etc/cortex/config.json", cfg)
	assert.NotContains(t, got, "sk-secret")
	assert.Contains(t, got, "****")
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abcdefg...", truncateString("abcdefghijklmnop", 10))
}

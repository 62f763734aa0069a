package cli

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/cortexanalyst/config"
	"github.com/dyike/cortexanalyst/consts"
	"github.com/dyike/cortexanalyst/internal/graph"
	"github.com/dyike/cortexanalyst/internal/pipeline"
	"github.com/dyike/cortexanalyst/internal/storage/sqlite"
	"github.com/dyike/cortexanalyst/models"
)

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Background(lipgloss.Color("#1F2937")).
			Padding(0, 1).
			MarginBottom(1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 2).
			Width(48)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Width(18)

	inProgressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	completedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6"))
)

var stageLabels = map[string]string{
	consts.Intake:   "Classifying the question",
	consts.Confirm:  "Confirming the ticker",
	consts.Route:    "Choosing the analysis depth",
	consts.Fetch:    "Fetching market data",
	consts.Narrate:  "Writing the company narrative",
	consts.Stances:  "Arguing the bull and bear cases",
	consts.Score:    "Scoring the stock",
	consts.Compose:  "Composing the report",
	consts.Critique: "Checking report quality",
	consts.Mono:     "Answering in a single call",
}

func DisplayWelcomeBanner() {
	fmt.Println(titleStyle.Render("CortexAnalyst"))
	fmt.Println(infoStyle.Italic(true).Render("Multi-agent answers to questions about listed companies"))
	fmt.Println()
}

// DisplayProgress prints one line as the pipeline enters a stage.
func DisplayProgress(node string) {
	label, ok := stageLabels[node]
	if !ok {
		return
	}
	fmt.Println(inProgressStyle.Render("› " + label))
}

func DisplayError(err error) {
	fmt.Println(errorStyle.Render("Error: " + err.Error()))
}

func DisplayInfo(message string) {
	fmt.Println(infoStyle.Render(message))
}

func DisplaySuccess(message string) {
	fmt.Println(completedStyle.Render(message))
}

func row(label, value string) string {
	return labelStyle.Render(label) + value + "\n"
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case consts.StatusCompleted:
		return completedStyle
	case consts.StatusUnvalidated, consts.StatusCancelled:
		return warningStyle
	default:
		return errorStyle
	}
}

func summaryPanel(title string, sum models.SessionSummary) string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(title) + "\n")
	b.WriteString(row("Status", statusStyle(sum.Status).Render(sum.Status)))
	if sum.Instrument != "" {
		b.WriteString(row("Instrument", sum.Instrument))
	}
	if sum.Route != "" {
		b.WriteString(row("Route", string(sum.Route)))
	}
	b.WriteString(row("Quality", fmt.Sprintf("%.1f/100", sum.QualityScore)))
	b.WriteString(row("Iterations", fmt.Sprint(sum.Iterations)))
	if sum.Recommendation != "" {
		b.WriteString(row("Recommendation", fmt.Sprintf("%s (%.2f/10)", sum.Recommendation, sum.CompositeScore)))
	}
	b.WriteString(row("Duration", sum.Duration.Round(100*time.Millisecond).String()))
	if sum.Degraded {
		b.WriteString(warningStyle.Render("Some stages fell back to defaults") + "\n")
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// RenderOutcome formats the result of one session. Runs that stopped
// early explain why instead of printing a report.
func RenderOutcome(out *pipeline.Outcome, resultsDir string) string {
	sum := out.Summary
	switch sum.Status {
	case consts.StatusRejected:
		reason := out.Classification.Reason
		if reason == "" {
			reason = "the question is not about a listed company"
		}
		return warningStyle.Render("Request declined: " + reason)
	case consts.StatusUnresolved:
		return warningStyle.Render("Could not identify a ticker in the question. Name the company or its ticker and try again.")
	case consts.StatusFetchFailed:
		return errorStyle.Render(fmt.Sprintf("Market data unavailable for %s: %s", sum.Instrument, errText(out.Err)))
	case consts.StatusCancelled:
		return warningStyle.Render("Analysis cancelled")
	case consts.StatusFailed:
		if !out.HasReport() {
			return errorStyle.Render("Analysis failed: " + errText(out.Err))
		}
	}

	var b strings.Builder
	b.WriteString(summaryPanel("Session "+sum.Session, sum) + "\n")
	if sum.Status == consts.StatusUnvalidated {
		b.WriteString(warningStyle.Render(fmt.Sprintf(
			"The report below did not pass the quality gate after %d iteration(s).", sum.Iterations)) + "\n")
	}
	b.WriteString("\n" + out.Draft.Body + "\n")
	if resultsDir != "" && sum.Instrument != "" && out.HasReport() {
		b.WriteString("\n" + infoStyle.Render("Saved under "+filepath.Join(resultsDir, sum.Instrument, sum.Session)))
	}
	return b.String()
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// RenderComparison shows both summaries side by side, then both reports.
func RenderComparison(c *graph.Comparison) string {
	panels := lipgloss.JoinHorizontal(lipgloss.Top,
		summaryPanel("Single call", c.Mono.Summary),
		" ",
		summaryPanel("Pipeline", c.Pipeline.Summary),
	)
	delta := c.Pipeline.Summary.QualityScore - c.Mono.Summary.QualityScore
	var b strings.Builder
	b.WriteString(panels + "\n")
	b.WriteString(infoStyle.Render(fmt.Sprintf("Quality difference: %+.1f points", delta)) + "\n")
	for _, part := range []struct {
		title string
		out   *pipeline.Outcome
	}{{"Single-call report", c.Mono}, {"Pipeline report", c.Pipeline}} {
		b.WriteString("\n" + titleStyle.Render(part.title) + "\n")
		if part.out.HasReport() {
			b.WriteString(part.out.Draft.Body + "\n")
		} else {
			b.WriteString(RenderOutcome(part.out, "") + "\n")
		}
	}
	return b.String()
}

func RenderHistory(st sqlite.Stats, recent []models.SessionSummary) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Pipeline statistics") + "\n")
	b.WriteString(row("Sessions", fmt.Sprint(st.Sessions)))
	b.WriteString(row("Validated", fmt.Sprintf("%d (%.1f%%)", st.Validated, st.ValidationRate())))
	b.WriteString(row("First pass", fmt.Sprintf("%d (%.1f%%)", st.ValidatedFirst, st.FirstPassRate())))
	b.WriteString(row("Degraded", fmt.Sprint(st.Degraded)))
	b.WriteString(row("Routes", fmt.Sprintf("%d factual, %d full", st.Factual, st.FullAnalysis)))
	b.WriteString(row("Avg quality", fmt.Sprintf("%.1f", st.AvgQuality)))
	b.WriteString(row("Avg iterations", fmt.Sprintf("%.2f", st.AvgIterations)))
	b.WriteString(row("Avg duration", st.AvgDuration.Round(100*time.Millisecond).String()))
	if len(st.StageFailures) > 0 {
		stages := make([]string, 0, len(st.StageFailures))
		for s := range st.StageFailures {
			stages = append(stages, s)
		}
		sort.Strings(stages)
		parts := make([]string, len(stages))
		for i, s := range stages {
			parts[i] = fmt.Sprintf("%s=%d", s, st.StageFailures[s])
		}
		b.WriteString(row("Stage failures", strings.Join(parts, ", ")))
	}

	b.WriteString("\n" + titleStyle.Render("Recent sessions") + "\n")
	if len(recent) == 0 {
		b.WriteString("No sessions recorded yet.\n")
		return b.String()
	}
	for _, s := range recent {
		instrument := s.Instrument
		if instrument == "" {
			instrument = "-"
		}
		fmt.Fprintf(&b, "%s  %-8s %-22s %5.1f  %s\n",
			s.StartedAt.Local().Format("2006-01-02 15:04"),
			instrument,
			statusStyle(s.Status).Render(s.Status),
			s.QualityScore,
			truncateString(s.Request, 50))
	}
	return b.String()
}

// RenderConfig prints the config with credentials masked.
func RenderConfig(path string, cfg config.Config) string {
	cfg = cfg.Redacted()
	var b strings.Builder
	b.WriteString(titleStyle.Render("Configuration") + "\n")
	if path != "" {
		b.WriteString(row("File", path))
	}
	b.WriteString(row("Results dir", cfg.ResultsDir))
	b.WriteString(row("Database", cfg.DatabasePath))
	b.WriteString(row("Cache dir", cfg.DataCacheDir))
	b.WriteString(row("Provider", cfg.LLMProvider))
	b.WriteString(row("Deep model", cfg.DeepThinkLLM))
	b.WriteString(row("Quick model", cfg.QuickThinkLLM))
	if cfg.BackendURL != "" {
		b.WriteString(row("Backend URL", cfg.BackendURL))
	}
	b.WriteString(row("API key", orUnset(cfg.APIKey())))
	b.WriteString(row("Max iterations", fmt.Sprint(cfg.MaxIterations)))
	b.WriteString(row("Quality gate", fmt.Sprintf("%.0f", cfg.QualityThreshold)))
	b.WriteString(row("Confirm ticker", fmt.Sprint(cfg.ConfirmInstrument)))
	b.WriteString(row("Archive", fmt.Sprint(cfg.ArchiveEnabled)))
	b.WriteString(row("Markdown export", fmt.Sprint(cfg.ExportMarkdown)))
	b.WriteString(row("Cache", fmt.Sprint(cfg.CacheEnabled)))
	b.WriteString(row("Longport", orUnset(cfg.LongportAppKey)))
	b.WriteString(row("Tracing", fmt.Sprint(cfg.TraceEnabled)))
	if cfg.EinoDebugEnabled {
		b.WriteString(row("Eino debug", fmt.Sprintf("http://localhost:%d", cfg.EinoDebugPort)))
	}
	return b.String()
}

func orUnset(s string) string {
	if s == "" {
		return "not set"
	}
	return s
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

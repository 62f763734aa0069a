package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dyike/cortexanalyst/consts"
	"github.com/dyike/cortexanalyst/internal/critique"
	"github.com/dyike/cortexanalyst/internal/llm"
	"github.com/dyike/cortexanalyst/internal/scoring"
	"github.com/dyike/cortexanalyst/internal/utils"
	"github.com/dyike/cortexanalyst/models"
)

const (
	composerContextChars  = 3000
	composerPreviousChars = 2000
	composerOpinionChars  = 800
)

// Composer renders the report draft from the upstream artifacts.
type Composer struct {
	base
	weights scoring.Weights
	now     func() time.Time
}

func NewComposer(r llm.Reasoner, w scoring.Weights, opts ...Option) *Composer {
	return &Composer{base: newBase(r, opts), weights: w, now: time.Now}
}

// Compose makes one reasoning call. A failed call is fatal: there is no
// default report.
func (c *Composer) Compose(ctx context.Context, in models.ComposeInput) (models.Draft, models.StageOutcome) {
	template, instruction, content, outcome, err := c.prepare(in)
	if err != nil {
		return models.Draft{}, models.Fatal(consts.Compose, err)
	}

	raw, err := c.reasoner.Reason(ctx, llm.Call{
		Role:        llm.RoleComposer,
		Instruction: instruction,
		Content:     content,
	})
	if err != nil {
		c.logger.Error("composer call failed", zap.Error(err))
		return models.Draft{}, models.Fatal(consts.Compose, err)
	}

	draft := models.Draft{
		Template:  template,
		Corrected: in.Correcting(),
		CreatedAt: c.now(),
	}
	if in.Correcting() {
		draft.Revision = in.Previous.Revision + 1
	}
	draft.Body = c.wrap(in, draft, strings.TrimSpace(raw))
	return draft, outcome
}

func (c *Composer) prepare(in models.ComposeInput) (models.Template, string, string, models.StageOutcome, error) {
	outcome := models.Success(consts.Compose)

	if in.Correcting() {
		template := in.Previous.Template
		instruction, err := utils.LoadPromptWithContext(utils.PromptCorrected, map[string]string{
			"Sections": bulletList(critique.SectionsFor(template)),
		})
		return template, instruction, c.correctedContent(in), outcome, err
	}

	if in.Route.Full() {
		if in.Score == "" || (in.Bull.Empty() && in.Bear.Empty()) {
			c.logger.Warn("opinions or score missing, composing factual report")
			outcome = models.Degraded(consts.Compose, "opinions or score missing, factual template used")
		} else {
			instruction, err := utils.LoadPromptWithContext(utils.PromptFull, map[string]string{
				"ScoreRows": c.weights.TableRows(),
			})
			return models.TemplateFull, instruction, c.fullContent(in), outcome, err
		}
	}

	instruction, err := utils.LoadPrompt(utils.PromptFactual)
	return models.TemplateFactual, instruction, c.factualContent(in), outcome, err
}

func (c *Composer) fullContent(in models.ComposeInput) string {
	return fmt.Sprintf(`QUESTION TO ANSWER:
"%s"

============================================================
FINANCIAL DATA (USE IN THE REPORT)
============================================================

--- KEY FIGURES (use these exact values) ---
%s

============================================================
SPECIALIST ANALYSES
============================================================

--- BULL CASE ---
%s

--- BEAR CASE ---
%s

--- SCORE BREAKDOWN ---
%s

============================================================
RECENT NEWS
============================================================
%s

============================================================
FULL CONTEXT (reference)
============================================================
%s

Fill EVERY section of the requested format with the real data above.`,
		in.Request, in.KeyFigures,
		orUnavailable(in.Bull.Markdown(), in.Bull.Empty()),
		orUnavailable(in.Bear.Markdown(), in.Bear.Empty()),
		orUnavailable(in.Score, false),
		orUnavailable(in.News, false),
		clip(in.Context, composerContextChars))
}

func (c *Composer) factualContent(in models.ComposeInput) string {
	return fmt.Sprintf(`QUESTION TO ANSWER:
"%s"

=== KEY FIGURES (DO NOT INVENT) ===
%s

=== RECENT NEWS ===
%s

=== FULL CONTEXT (company information) ===
%s

REMINDER: use ONLY the figures above.`,
		in.Request, in.KeyFigures, orUnavailable(in.News, false), clip(in.Context, composerContextChars))
}

func (c *Composer) correctedContent(in models.ComposeInput) string {
	return fmt.Sprintf(`ORIGINAL QUESTION:
"%s"

============================================================
CORRECTIONS REQUESTED BY THE REVIEWER
(you MUST fix these problems in the new report)
============================================================
%s

============================================================
PREVIOUS REPORT TO CORRECT
============================================================
%s

============================================================
SOURCE DATA (use these EXACT figures)
============================================================

--- KEY FIGURES ---
%s

--- BULL CASE ---
%s

--- BEAR CASE ---
%s

--- SCORE BREAKDOWN ---
%s

--- RECENT NEWS ---
%s

============================================================
INSTRUCTIONS
============================================================
1. Read the REQUESTED CORRECTIONS carefully
2. Fix EVERY problem identified
3. Use the EXACT figures from the context
4. Keep the same structure and improve the content`,
		in.Request, in.Directive,
		clip(in.Previous.Body, composerPreviousChars),
		in.KeyFigures,
		clip(orUnavailable(in.Bull.Markdown(), in.Bull.Empty()), composerOpinionChars),
		clip(orUnavailable(in.Bear.Markdown(), in.Bear.Empty()), composerOpinionChars),
		clip(orUnavailable(in.Score, false), composerOpinionChars),
		orUnavailable(in.News, false))
}

// wrap adds the deterministic report header and footer.
func (c *Composer) wrap(in models.ComposeInput, d models.Draft, body string) string {
	return Header(in.Request, in.Instrument, d) + body + "\n\n---\n*Report generated automatically*\n"
}

// Header renders the fixed report preamble.
func Header(request, instrument string, d models.Draft) string {
	var b strings.Builder
	title := "# FINAL REPORT"
	if d.Corrected {
		title += " (Corrected version)"
	}
	kind := "Information (factual)"
	if d.Template == models.TemplateFull {
		kind = "Investment analysis (full)"
	}
	b.WriteString(title + "\n\n")
	fmt.Fprintf(&b, "**Question:** %s\n", request)
	if instrument != "" {
		fmt.Fprintf(&b, "**Instrument:** %s\n", instrument)
	}
	fmt.Fprintf(&b, "**Analysis type:** %s\n", kind)
	fmt.Fprintf(&b, "**Date:** %s\n", d.CreatedAt.Format("2006-01-02 15:04"))
	if d.Corrected {
		fmt.Fprintf(&b, "**Status:** corrected after quality review (revision %d)\n", d.Revision)
	}
	b.WriteString("\n---\n\n")
	return b.String()
}

func bulletList(items []string) string {
	lines := make([]string, len(items))
	for i, s := range items {
		lines[i] = "- ## " + s
	}
	return strings.Join(lines, "\n")
}

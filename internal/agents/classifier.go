package agents

import (
	"context"

	"go.uber.org/zap"

	"github.com/dyike/cortexanalyst/consts"
	"github.com/dyike/cortexanalyst/internal/llm"
	"github.com/dyike/cortexanalyst/internal/parser"
	"github.com/dyike/cortexanalyst/internal/utils"
	"github.com/dyike/cortexanalyst/models"
)

// Classifier decides admissibility and extracts the instrument id.
type Classifier struct {
	base
	aliases     *AliasTable
	instruction string
}

func NewClassifier(r llm.Reasoner, aliases *AliasTable, opts ...Option) (*Classifier, error) {
	examples := aliases.Examples()
	if examples != "" {
		examples = "\nKNOWN COMPANY NAMES:\n" + examples
	}
	instruction, err := utils.LoadPromptWithContext(utils.PromptClassifier, map[string]string{"Aliases": examples})
	if err != nil {
		return nil, err
	}
	return &Classifier{base: newBase(r, opts), aliases: aliases, instruction: instruction}, nil
}

// rejected is the fail-closed classification.
func rejected(reason string) models.Classification {
	return models.Classification{Admissible: false, Reason: reason}
}

func (c *Classifier) Classify(ctx context.Context, request string) (models.Classification, models.StageOutcome) {
	raw, err := c.reasoner.Reason(ctx, llm.Call{
		Role:        llm.RoleClassifier,
		Instruction: c.instruction,
		Content:     "Here is the request: " + request,
		Structured:  true,
	})
	if err != nil {
		c.logger.Warn("classifier call failed", zap.Error(err))
		return rejected("reasoning service unavailable"), models.Degraded(consts.Intake, err.Error())
	}

	res := parser.Decode(raw, rejected("parse error"))
	if res.Degraded() {
		c.logger.Warn("classifier answer unparseable", zap.String("reason", res.Reason()))
		return res.Value(), models.Degraded(consts.Intake, res.Reason())
	}

	cls := c.normalize(res.Value(), request)
	c.logger.Debug("classified",
		zap.Bool("admissible", cls.Admissible),
		zap.String("instrument", cls.Instrument()))
	return cls, models.Success(consts.Intake)
}

// normalize maps a company name the model failed to convert and, for an
// admissible request without instrument, tries the alias table on the
// request text.
func (c *Classifier) normalize(cls models.Classification, request string) models.Classification {
	id := cls.Instrument()
	if id != "" {
		if ticker, ok := c.aliases.Lookup(id); ok {
			return cls.WithInstrument(ticker)
		}
		return cls.WithInstrument(id)
	}
	cls = cls.WithInstrument("")
	if cls.Admissible {
		if ticker, ok := c.aliases.Find(request); ok {
			return cls.WithInstrument(ticker)
		}
	}
	return cls
}

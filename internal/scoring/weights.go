package scoring

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

type Criterion string

const (
	Valuation        Criterion = "valuation"
	Growth           Criterion = "growth"
	Profitability    Criterion = "profitability"
	FinancialHealth  Criterion = "financial_health"
	AnalystSentiment Criterion = "analyst_sentiment"
	Momentum         Criterion = "momentum"
	IdentifiedRisks  Criterion = "identified_risks"
)

// Criteria lists the rated criteria in report order.
var Criteria = []Criterion{
	Valuation,
	Growth,
	Profitability,
	FinancialHealth,
	AnalystSentiment,
	Momentum,
	IdentifiedRisks,
}

// Label is the human readable criterion name.
func (c Criterion) Label() string {
	words := strings.Split(string(c), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

const weightTolerance = 1e-6

var ErrInvalidWeights = errors.New("invalid score weights")

// Weights maps every criterion to its coefficient.
type Weights map[Criterion]float64

// DefaultWeights returns the fixed coefficients used for the composite score.
func DefaultWeights() Weights {
	return Weights{
		Valuation:        0.20,
		Growth:           0.20,
		Profitability:    0.15,
		FinancialHealth:  0.15,
		AnalystSentiment: 0.10,
		Momentum:         0.10,
		IdentifiedRisks:  0.10,
	}
}

// Validate rejects weight sets that do not cover exactly the known
// criteria or do not sum to 1.
func (w Weights) Validate() error {
	if len(w) != len(Criteria) {
		return fmt.Errorf("%w: expected %d criteria, got %d", ErrInvalidWeights, len(Criteria), len(w))
	}
	sum := 0.0
	for _, c := range Criteria {
		v, ok := w[c]
		if !ok {
			return fmt.Errorf("%w: missing criterion %s", ErrInvalidWeights, c)
		}
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: criterion %s has weight %v", ErrInvalidWeights, c, v)
		}
		sum += v
	}
	if math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %.6f", ErrInvalidWeights, sum)
	}
	return nil
}

// FromMap builds a weight set from configuration keys.
func FromMap(m map[string]float64) (Weights, error) {
	if len(m) == 0 {
		return DefaultWeights(), nil
	}
	w := make(Weights, len(m))
	for k, v := range m {
		c := Criterion(strings.ToLower(strings.TrimSpace(k)))
		w[c] = v
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// Percent renders a coefficient as an integer percentage.
func (w Weights) Percent(c Criterion) int {
	return int(math.Round(w[c] * 100))
}

// Describe lists the coefficients one per line, in criterion order.
func (w Weights) Describe() string {
	lines := make([]string, 0, len(Criteria))
	for _, c := range Criteria {
		lines = append(lines, fmt.Sprintf("- %s: %d%%", c.Label(), w.Percent(c)))
	}
	return strings.Join(lines, "\n")
}

// TableRows renders the template rows of a score breakdown table.
func (w Weights) TableRows() string {
	lines := make([]string, 0, len(Criteria))
	for _, c := range Criteria {
		lines = append(lines, fmt.Sprintf("| %s | X/10 | %d%% | X.X |", c.Label(), w.Percent(c)))
	}
	return strings.Join(lines, "\n")
}

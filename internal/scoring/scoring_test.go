package scoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniform(r int) map[Criterion]int {
	m := make(map[Criterion]int, len(Criteria))
	for _, c := range Criteria {
		m[c] = r
	}
	return m
}

func TestDefaultWeightsValid(t *testing.T) {
	require.NoError(t, DefaultWeights().Validate())
}

func TestWeightsChangedAloneFailValidation(t *testing.T) {
	w := DefaultWeights()
	w[Valuation] = 0.25
	err := w.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidWeights))

	w = DefaultWeights()
	delete(w, Momentum)
	assert.Error(t, w.Validate())

	w = DefaultWeights()
	w[Valuation] = 0.30
	w[Growth] = 0.10
	assert.NoError(t, w.Validate())
}

func TestFromMap(t *testing.T) {
	w, err := FromMap(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultWeights(), w)

	_, err = FromMap(map[string]float64{"valuation": 1})
	assert.Error(t, err)
}

func TestCompositeStaysInRangeAndClamps(t *testing.T) {
	w := DefaultWeights()
	assert.Equal(t, 10.0, Composite(uniform(15), w))
	assert.Equal(t, 0.0, Composite(uniform(-4), w))
	assert.Equal(t, Composite(uniform(10), w), Composite(uniform(99), w))

	mixed := uniform(5)
	mixed[Valuation] = 15
	want := Composite(func() map[Criterion]int { m := uniform(5); m[Valuation] = 10; return m }(), w)
	assert.Equal(t, want, Composite(mixed, w))
}

func TestTierBoundaries(t *testing.T) {
	assert.Equal(t, StrongSell, TierFor(0))
	assert.Equal(t, StrongSell, TierFor(3.0))
	assert.Equal(t, Hold, TierFor(3.01))
	assert.Equal(t, Hold, TierFor(5.0))
	assert.Equal(t, ModerateBuy, TierFor(5.01))
	assert.Equal(t, ModerateBuy, TierFor(7.0))
	assert.Equal(t, StrongBuy, TierFor(7.01))
}

func TestUniformThreeIsStrongSell(t *testing.T) {
	res := Compute(uniform(3), nil, DefaultWeights())
	assert.Equal(t, 3.0, res.Composite)
	assert.Equal(t, StrongSell, res.Tier)
	assert.False(t, res.Degraded)
}

func TestComputeDefaultsMissingCriteria(t *testing.T) {
	ratings := map[Criterion]int{Valuation: 9, Growth: 9}
	res := Compute(ratings, map[Criterion]string{Valuation: "P/E 12"}, DefaultWeights())
	require.Len(t, res.Lines, len(Criteria))
	assert.True(t, res.Degraded)
	assert.Contains(t, res.Reason, "momentum")
	assert.Equal(t, "P/E 12", res.Lines[0].Justification)
	assert.Equal(t, "N/A", res.Lines[1].Justification)
	// 9*0.4 + 5*0.6
	assert.InDelta(t, 6.6, res.Composite, 1e-9)
}

func TestDecodeFallsBackToNeutral(t *testing.T) {
	res := Decode("the model rambled instead", DefaultWeights())
	assert.True(t, res.Degraded)
	assert.Equal(t, 5.0, res.Composite)
	assert.Equal(t, Hold, res.Tier)
	for _, l := range res.Lines {
		assert.Equal(t, NeutralRating, l.Rating)
	}
}

func TestDecodeRecomputesLocally(t *testing.T) {
	raw := "```json\n" + `{
  "scores": {"valuation": 12, "growth": 8, "profitability": 7, "Financial Health": 6,
             "analyst_sentiment": 7.4, "momentum": 4, "identified_risks": 5},
  "justifications": {"valuation": "P/E 14"},
  "conclusion": " Solid. ",
  "composite": 9.9
}` + "\n```"
	res := Decode(raw, DefaultWeights())
	require.False(t, res.Degraded, res.Reason)
	assert.Equal(t, 10, res.Lines[0].Rating)
	assert.Equal(t, 12, res.Lines[0].Raw)
	// 10*.2 + 8*.2 + 7*.15 + 6*.15 + 7*.1 + 4*.1 + 5*.1
	assert.InDelta(t, 7.15, res.Composite, 1e-9)
	assert.Equal(t, StrongBuy, res.Tier)
	assert.Equal(t, "Solid.", res.Conclusion)
}

func TestFromResponseClampsHugeRatings(t *testing.T) {
	scores := map[string]float64{}
	for _, c := range Criteria {
		scores[string(c)] = 10
	}
	scores[string(Valuation)] = 1e20
	res := FromResponse(Response{Scores: scores}, DefaultWeights())
	assert.Equal(t, MaxRating, res.Lines[0].Rating)
	assert.Equal(t, rawBound, res.Lines[0].Raw)
	assert.InDelta(t, 10.0, res.Composite, 1e-9)

	scores[string(Valuation)] = -1e20
	res = FromResponse(Response{Scores: scores}, DefaultWeights())
	assert.Equal(t, MinRating, res.Lines[0].Rating)
	assert.InDelta(t, 8.0, res.Composite, 1e-9)
}

func TestMarkdownListsEveryCriterion(t *testing.T) {
	md := Compute(uniform(6), nil, DefaultWeights()).Markdown()
	for _, c := range Criteria {
		assert.Contains(t, md, c.Label())
	}
	assert.Contains(t, md, "6.0/10")
	assert.Contains(t, md, "MODERATE BUY")
}

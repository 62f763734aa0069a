package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decision struct {
	Admissible bool    `json:"admissible"`
	Reason     string  `json:"reason"`
	Instrument *string `json:"instrument_id"`
}

var closed = decision{Admissible: false, Reason: "parse error"}

func TestDecodePlainObject(t *testing.T) {
	res := Decode(`{"admissible": true, "reason": "stock question", "instrument_id": "TSLA"}`, closed)
	require.False(t, res.Degraded())
	got := res.Value()
	assert.True(t, got.Admissible)
	require.NotNil(t, got.Instrument)
	assert.Equal(t, "TSLA", *got.Instrument)
}

func TestDecodeFencedObject(t *testing.T) {
	raw := "```json\n{\"admissible\": true, \"reason\": \"ok\", \"instrument_id\": null}\n```"
	res := Decode(raw, closed)
	require.False(t, res.Degraded(), res.Reason())
	assert.True(t, res.Value().Admissible)
	assert.Nil(t, res.Value().Instrument)
}

func TestDecodeObjectInsideProse(t *testing.T) {
	raw := "Sure, here is my answer: {\"admissible\": true, \"reason\": \"uses {braces}\"} hope it helps"
	res := Decode(raw, closed)
	require.False(t, res.Degraded(), res.Reason())
	assert.Equal(t, "uses {braces}", res.Value().Reason)
}

func TestDecodeFallsBackOnGarbage(t *testing.T) {
	for _, raw := range []string{"```not json```", "", "   ", "{\"admissible\": tru", "plain words"} {
		res := Decode(raw, closed)
		assert.True(t, res.Degraded(), "input %q", raw)
		assert.NotEmpty(t, res.Reason())
		assert.Equal(t, closed, res.Value())
	}
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFences("~~~\n{\"a\":1}\n~~~"))
	assert.Equal(t, `{"a":1}`, StripFences("```{\"a\":1}"))
	assert.Equal(t, "no fences", StripFences("  no fences \n"))
}

func TestOkAndFallback(t *testing.T) {
	ok := Ok(3)
	v, degraded := ok.Unwrap()
	assert.Equal(t, 3, v)
	assert.False(t, degraded)

	fb := Fallback(5, "")
	assert.True(t, fb.Degraded())
	assert.Equal(t, "unspecified", fb.Reason())
}

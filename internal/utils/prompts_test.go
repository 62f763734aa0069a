package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryPromptLoads(t *testing.T) {
	for _, p := range []string{
		PromptRouter, PromptNarrator, PromptBull, PromptBear, PromptFactual,
		PromptCritic, PromptMono,
	} {
		content, err := LoadPrompt(p)
		require.NoError(t, err, p)
		assert.NotEmpty(t, content, p)
	}
}

func TestLoadPromptWithContext(t *testing.T) {
	content, err := LoadPromptWithContext(PromptClassifier, map[string]string{"Aliases": "- \"Airbus\" -> AIR.PA"})
	require.NoError(t, err)
	assert.Contains(t, content, "AIR.PA")
	assert.Contains(t, content, "TTE.PA")

	_, err = LoadPromptWithContext(PromptScorer, nil)
	assert.ErrorContains(t, err, "no value for Weights")

	_, err = LoadPrompt("missing/prompt")
	assert.Error(t, err)
}

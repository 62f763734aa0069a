package utils

import (
	"embed"
	"fmt"
	"regexp"
	"strings"
)

//go:embed prompts
var promptFiles embed.FS

// Prompt paths below prompts/, without the .md extension.
const (
	PromptClassifier = "intake/classifier"
	PromptRouter     = "intake/router"
	PromptNarrator   = "research/narrator"
	PromptBull       = "research/bull"
	PromptBear       = "research/bear"
	PromptScorer     = "scoring/scorer"
	PromptFactual    = "report/factual"
	PromptFull       = "report/full"
	PromptCorrected  = "report/corrected"
	PromptMono       = "report/mono"
	PromptCritic     = "critique/critic"
)

var placeholderRe = regexp.MustCompile(`\{\{\.([A-Za-z0-9_]+)\}\}`)

// LoadPrompt loads a prompt from the embedded markdown files
func LoadPrompt(path string) (string, error) {
	content, err := promptFiles.ReadFile(fmt.Sprintf("prompts/%s.md", path))
	if err != nil {
		return "", fmt.Errorf("failed to load prompt %s: %w", path, err)
	}
	return string(content), nil
}

// LoadPromptWithContext loads a prompt and replaces {{.Name}} variables.
// A variable left without a value is an error.
func LoadPromptWithContext(path string, context map[string]string) (string, error) {
	content, err := LoadPrompt(path)
	if err != nil {
		return "", err
	}

	for key, value := range context {
		placeholder := fmt.Sprintf("{{.%s}}", key)
		content = strings.ReplaceAll(content, placeholder, value)
	}

	if m := placeholderRe.FindStringSubmatch(content); m != nil {
		return "", fmt.Errorf("prompt %s: no value for %s", path, m[1])
	}
	return content, nil
}

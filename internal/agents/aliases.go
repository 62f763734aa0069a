package agents

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed aliases.yaml
var defaultAliases []byte

// AliasTable maps company names to tickers.
type AliasTable struct {
	names map[string]string
	order []string // longest name first
}

type aliasFile struct {
	Aliases map[string]string `yaml:"aliases"`
}

func DefaultAliases() *AliasTable {
	t, err := ParseAliases(defaultAliases)
	if err != nil {
		panic(fmt.Sprintf("embedded aliases.yaml: %v", err))
	}
	return t
}

func ParseAliases(data []byte) (*AliasTable, error) {
	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse aliases: %w", err)
	}
	t := &AliasTable{names: make(map[string]string, len(f.Aliases))}
	for name, ticker := range f.Aliases {
		name = strings.ToLower(strings.TrimSpace(name))
		ticker = strings.ToUpper(strings.TrimSpace(ticker))
		if name == "" || ticker == "" {
			continue
		}
		t.names[name] = ticker
		t.order = append(t.order, name)
	}
	sort.Slice(t.order, func(i, j int) bool {
		if len(t.order[i]) != len(t.order[j]) {
			return len(t.order[i]) > len(t.order[j])
		}
		return t.order[i] < t.order[j]
	})
	return t, nil
}

// Lookup resolves an exact company name.
func (t *AliasTable) Lookup(name string) (string, bool) {
	if t == nil {
		return "", false
	}
	ticker, ok := t.names[strings.ToLower(strings.TrimSpace(name))]
	return ticker, ok
}

// Find returns the ticker of the longest company name that appears as a
// whole word in text.
func (t *AliasTable) Find(text string) (string, bool) {
	if t == nil {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, name := range t.order {
		re := regexp.MustCompile(`(^|[^\p{L}\p{N}])` + regexp.QuoteMeta(name) + `($|[^\p{L}\p{N}])`)
		if re.MatchString(lower) {
			return t.names[name], true
		}
	}
	return "", false
}

// Examples renders the table as extra prompt examples.
func (t *AliasTable) Examples() string {
	if t == nil || len(t.order) == 0 {
		return ""
	}
	names := append([]string(nil), t.order...)
	sort.Strings(names)
	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, "- %q -> %s\n", n, t.names[n])
	}
	return strings.TrimRight(b.String(), "\n")
}

package source

import (
	"os"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/pkg/exa"
)

// defaultKeywords is the built-in wealth-signal vocabulary, used when no
// vocabulary file is configured.
var defaultKeywords = []string{
	"sold his company",
	"sold her company",
	"sold their company",
	"acquired by",
	"acquisition of",
	"exited",
	"ipo",
	"went public",
	"series a",
	"series b",
	"series c",
	"raised",
	"funding round",
	"net worth",
	"stake",
	"equity sale",
	"liquidity event",
	"windfall",
	"inheritance",
	"trust fund",
}

// vocabularyFile is the YAML shape of a custom keyword vocabulary.
type vocabularyFile struct {
	Keywords []string `yaml:"keywords"`
}

// LoadVocabulary reads a keyword vocabulary from a YAML file. An empty path
// returns the built-in defaults.
func LoadVocabulary(path string) ([]string, error) {
	if path == "" {
		return defaultKeywords, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "source: read vocabulary file")
	}
	var f vocabularyFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, eris.Wrap(err, "source: parse vocabulary file")
	}
	if len(f.Keywords) == 0 {
		return nil, eris.Errorf("source: vocabulary file %s has no keywords", path)
	}
	return f.Keywords, nil
}

// scanSignals extracts keyword hits from search results. Each hit carries a
// bounded context window around the match so the payload stays small no
// matter how long the page text is. At most one signal per keyword per
// result, and at most max signals overall.
func scanSignals(results []exa.Result, keywords []string, contextChars, max int) []model.WealthSignal {
	if contextChars <= 0 {
		contextChars = 150
	}
	if max <= 0 {
		max = 20
	}

	var signals []model.WealthSignal
	for _, res := range results {
		texts := make([]string, 0, 1+len(res.Highlights))
		if res.Text != "" {
			texts = append(texts, res.Text)
		}
		texts = append(texts, res.Highlights...)

		for _, kw := range keywords {
			ctxText, ok := findContext(texts, kw, contextChars)
			if !ok {
				continue
			}
			signals = append(signals, model.WealthSignal{
				Keyword: kw,
				Context: ctxText,
				URL:     res.URL,
			})
			if len(signals) >= max {
				return signals
			}
		}
	}
	return signals
}

// findContext returns a window of at most contextChars runes centered on the
// first case-insensitive occurrence of kw in any of the texts. Matching runs
// entirely in the rune domain: lowercasing the whole string can change its
// byte length, so a byte index found in the lowered copy must never be
// applied to the original.
func findContext(texts []string, kw string, contextChars int) (string, bool) {
	kwRunes := lowerRunes(kw)
	if len(kwRunes) == 0 {
		return "", false
	}
	for _, text := range texts {
		runes := []rune(text)
		idx := indexRunes(lowerRunes(text), kwRunes)
		if idx < 0 {
			continue
		}
		half := (contextChars - len(kwRunes)) / 2
		if half < 0 {
			half = 0
		}
		start := idx - half
		if start < 0 {
			start = 0
		}
		end := idx + len(kwRunes) + half
		if end > len(runes) {
			end = len(runes)
		}
		if start > end {
			start = end
		}
		return strings.TrimSpace(string(runes[start:end])), true
	}
	return "", false
}

// lowerRunes lowercases rune by rune, keeping indices aligned with the
// original text.
func lowerRunes(s string) []rune {
	runes := []rune(s)
	for i, r := range runes {
		runes[i] = unicode.ToLower(r)
	}
	return runes
}

func indexRunes(haystack, needle []rune) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j, r := range needle {
			if haystack[i+j] != r {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

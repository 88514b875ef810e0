package memory

import (
	"regexp"
	"strings"
)

// Entity is a lightweight mention extracted from turn text: an identifier,
// path, or proper-noun-looking phrase worth linking across turns.
type Entity struct {
	Name string
	Kind string // "identifier" | "path" | "proper_noun"
}

var (
	identifierRe = regexp.MustCompile(`\b[a-zA-Z_][a-zA-Z0-9_]*(?:\.[a-zA-Z_][a-zA-Z0-9_]*)+\b`)
	pathRe       = regexp.MustCompile(`\b(?:[\w.-]+/)+[\w.-]+\.\w+\b`)
	properNounRe = regexp.MustCompile(`\b[A-Z][a-zA-Z0-9]{2,}\b`)
)

var stopProperNouns = map[string]bool{
	"The": true, "This": true, "That": true, "I": true, "It": true,
}

// ExtractEntities does a heuristic, dependency-free pass over turn content:
// dotted identifiers (pkg.Func), file paths, and capitalized words. This is
// deliberately simple - grounded on the teacher's extractKeywords helper,
// which took the same "good enough for recall, not NLP" approach to text
// mining rather than pulling in a tagger.
func ExtractEntities(text string) []Entity {
	seen := make(map[string]bool)
	var out []Entity

	for _, m := range pathRe.FindAllString(text, -1) {
		if !seen[m] {
			seen[m] = true
			out = append(out, Entity{Name: m, Kind: "path"})
		}
	}
	for _, m := range identifierRe.FindAllString(text, -1) {
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, Entity{Name: m, Kind: "identifier"})
	}
	for _, m := range properNounRe.FindAllString(text, -1) {
		if seen[m] || stopProperNouns[m] {
			continue
		}
		seen[m] = true
		out = append(out, Entity{Name: m, Kind: "proper_noun"})
	}
	return out
}

// extractKeywords splits text into lowercase word tokens, used by the
// keyword side of recall when the caller wants tokens rather than the FTS5
// operator directly.
func extractKeywords(text string, max int) []string {
	fields := strings.Fields(strings.ToLower(text))
	var out []string
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:()[]{}\"'")
		if len(f) < 3 {
			continue
		}
		out = append(out, f)
		if len(out) >= max {
			break
		}
	}
	return out
}

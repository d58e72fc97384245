// internal/classify/classifier.go
package classify

import (
	"regexp"
	"strings"
	"unicode"

	"commit-reporter/internal/model"
)

// Rule maps a set of keyword prefixes to a commit type. Rules are evaluated
// in order; the first keyword that matches the message start wins.
type Rule struct {
	Keywords []string
	Type     model.CommitType
}

// Config holds the classification tables. The zero value is not usable;
// start from Default() and override fields from configuration.
type Config struct {
	// Rules is the ordered keyword-to-type table.
	Rules []Rule
	// NoiseMarkers are trivial synchronization messages treated as noise
	// when they make up the entire (trimmed, lowercased) message.
	NoiseMarkers []string
	// MinMessageLength is the minimum number of non-whitespace runes a
	// message needs to carry signal. Shorter messages are noise.
	MinMessageLength int
}

// Default returns the stock classification tables.
func Default() Config {
	return Config{
		Rules: []Rule{
			{Keywords: []string{"feat", "feature"}, Type: model.TypeFeat},
			{Keywords: []string{"fix", "bugfix", "hotfix"}, Type: model.TypeFix},
			{Keywords: []string{"refactor"}, Type: model.TypeRefactor},
			{Keywords: []string{"docs", "doc"}, Type: model.TypeDocs},
			{Keywords: []string{"test", "tests"}, Type: model.TypeTest},
			{Keywords: []string{"perf", "optimize"}, Type: model.TypePerf},
			{Keywords: []string{"chore", "build", "ci", "style"}, Type: model.TypeChore},
		},
		NoiseMarkers:     []string{"sync", "wip"},
		MinMessageLength: 3,
	}
}

// mergePrefixes is the merge-commit boilerplate produced by git itself.
var mergePrefixes = []string{
	"merge branch",
	"merge pull request",
	"merge remote-tracking branch",
}

// scopeMarkerRE strips a leading bracketed or parenthetical scope marker,
// e.g. "[core] fix: ..." or "(api) feat: ...".
var scopeMarkerRE = regexp.MustCompile(`^[\[(][^\])]*[\])][\s:-]*`)

// keywordBoundary is the set of characters that may terminate a type
// keyword at the start of a message ("fix:", "feat(api):", "perf!").
const keywordBoundary = ":(!, \t-"

// Classifier assigns a commit type and a noise flag from the message text
// alone. It is stateless after construction: the same message always yields
// the same result.
type Classifier struct {
	cfg Config
}

// New creates a Classifier from the given tables.
func New(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify returns the commit type and whether the message is noise.
// It is total: every input, including the empty string, yields a result.
func (c *Classifier) Classify(message string) (model.CommitType, bool) {
	return c.classifyType(message), c.isNoise(message)
}

func (c *Classifier) classifyType(message string) model.CommitType {
	msg := strings.ToLower(strings.TrimSpace(message))
	msg = scopeMarkerRE.ReplaceAllString(msg, "")

	for _, rule := range c.cfg.Rules {
		for _, kw := range rule.Keywords {
			if matchesKeyword(msg, kw) {
				return rule.Type
			}
		}
	}
	return model.TypeOther
}

// matchesKeyword reports whether msg starts with the keyword followed by a
// boundary character or the end of the message. A bare prefix is not
// enough: "fixture files" must not classify as fix.
func matchesKeyword(msg, kw string) bool {
	if !strings.HasPrefix(msg, kw) {
		return false
	}
	if len(msg) == len(kw) {
		return true
	}
	return strings.ContainsRune(keywordBoundary, rune(msg[len(kw)]))
}

func (c *Classifier) isNoise(message string) bool {
	msg := strings.ToLower(strings.TrimSpace(message))
	if msg == "" {
		return true
	}
	for _, prefix := range mergePrefixes {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	for _, marker := range c.cfg.NoiseMarkers {
		if msg == marker {
			return true
		}
	}
	return signalLength(msg) < c.cfg.MinMessageLength
}

// signalLength counts the non-whitespace runes in a message.
func signalLength(msg string) int {
	n := 0
	for _, r := range msg {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// Package facts pulls simple personal attributes out of free text.
package facts

import (
	"regexp"
	"strings"
)

// Fact keys understood by the rest of the service.
const (
	KeyName     = "name"
	KeyLocation = "location"
	KeyJob      = "job"
	KeyFavColor = "fav_color"
	KeyLikes    = "likes"
)

// Matcher reports the value found in text, if any.
type Matcher interface {
	Match(text string) (string, bool)
}

type regexMatcher struct {
	re *regexp.Regexp
}

// Regexp builds a case-insensitive Matcher returning the first capture group
// of the first occurrence.
func Regexp(pattern string) Matcher {
	return regexMatcher{re: regexp.MustCompile(`(?i)` + pattern)}
}

func (m regexMatcher) Match(text string) (string, bool) {
	sub := m.re.FindStringSubmatch(text)
	if len(sub) < 2 {
		return "", false
	}
	value := strings.TrimSpace(sub[1])
	if value == "" {
		return "", false
	}
	return value, true
}

// Rule binds a matcher to the fact key it fills.
type Rule struct {
	Matcher Matcher
	Key     string
}

// Extractor applies rules in order; later rules win for the same key.
type Extractor struct {
	rules []Rule
}

const (
	letters        = `A-Za-zÁÉÍÓÚÜÑñáéíóúü'\-`
	lettersDigits  = `A-Za-z0-9ÁÉÍÓÚÜÑñáéíóúü'\-`
	phraseName     = `[` + letters + ` ]{2,}`
	phrasePlace    = `[` + letters + ` ,]{2,}`
	phraseWithNums = `[` + lettersDigits + ` ,]{2,}`
)

// DefaultRules are the Spanish phrases recognized out of the box.
func DefaultRules() []Rule {
	return []Rule{
		{Regexp(`\bme llamo (` + phraseName + `)`), KeyName},
		{Regexp(`\bmi nombre es (` + phraseName + `)`), KeyName},
		{Regexp(`\bvivo en (` + phrasePlace + `)`), KeyLocation},
		{Regexp(`\bsoy de (` + phrasePlace + `)`), KeyLocation},
		{Regexp(`\btrabajo en (` + phraseWithNums + `)`), KeyJob},
		{Regexp(`\bmi color favorito es (` + phraseName + `)`), KeyFavColor},
		{Regexp(`\bme gustan? (` + phraseWithNums + `)`), KeyLikes},
	}
}

// NewExtractor returns an extractor over rules, or DefaultRules when none are given.
func NewExtractor(rules ...Rule) *Extractor {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Extractor{rules: rules}
}

// Extract returns every fact found in text. Keys without a match are absent.
func (e *Extractor) Extract(text string) map[string]string {
	found := make(map[string]string)
	for _, rule := range e.rules {
		if value, ok := rule.Matcher.Match(text); ok {
			found[rule.Key] = value
		}
	}
	return found
}

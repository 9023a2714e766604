package facts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDefaultRules(t *testing.T) {
	t.Parallel()
	ex := NewExtractor()

	cases := []struct {
		name string
		text string
		want map[string]string
	}{
		{"name", "me llamo Ana", map[string]string{KeyName: "Ana"}},
		{"name case insensitive", "Hola, MI NOMBRE ES Luis", map[string]string{KeyName: "Luis"}},
		{"location with comma", "vivo en Madrid, España", map[string]string{KeyLocation: "Madrid, España"}},
		{"location soy de", "soy de Bogotá", map[string]string{KeyLocation: "Bogotá"}},
		{"job with digits", "trabajo en Acme 3000", map[string]string{KeyJob: "Acme 3000"}},
		{"favorite color", "mi color favorito es azul", map[string]string{KeyFavColor: "azul"}},
		{"likes plural", "me gustan los gatos", map[string]string{KeyLikes: "los gatos"}},
		{"likes singular", "me gusta el café", map[string]string{KeyLikes: "el café"}},
		{"nothing", "hola, ¿qué tal?", map[string]string{}},
		{"capture too short", "me llamo X", map[string]string{}},
		{"whitespace only capture", "me llamo    ", map[string]string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, ex.Extract(tc.text))
		})
	}
}

func TestExtractLaterRuleOverwritesSameKey(t *testing.T) {
	t.Parallel()
	got := NewExtractor().Extract("me llamo Ana y mi nombre es Ana María")
	assert.Equal(t, "Ana María", got[KeyName])
}

func TestExtractTakesFirstOccurrence(t *testing.T) {
	t.Parallel()
	ex := NewExtractor(Rule{Matcher: Regexp(`\bcolor (\w+)`), Key: KeyFavColor})
	got := ex.Extract("color rojo, color verde")
	assert.Equal(t, map[string]string{KeyFavColor: "rojo"}, got)
}

func TestExtractIsDeterministic(t *testing.T) {
	t.Parallel()
	ex := NewExtractor()
	text := "Me llamo Ana, vivo en Sevilla y me gusta programar"
	first := ex.Extract(text)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, ex.Extract(text))
	}
}

func TestExtractValuesAreTrimmedAndNonEmpty(t *testing.T) {
	t.Parallel()
	ex := NewExtractor()
	inputs := []string{
		"me llamo   Ana   ",
		"vivo en  Lima ",
		"trabajo en    ",
		"me gusta  ",
	}
	for _, in := range inputs {
		for key, value := range ex.Extract(in) {
			assert.NotEmpty(t, value, "key %s from %q", key, in)
			assert.Equal(t, strings.TrimSpace(value), value)
		}
	}
}

type staticMatcher string

func (m staticMatcher) Match(string) (string, bool) { return string(m), m != "" }

func TestExtractWithCustomMatcher(t *testing.T) {
	t.Parallel()
	ex := NewExtractor(
		Rule{Matcher: staticMatcher("first"), Key: "k"},
		Rule{Matcher: staticMatcher(""), Key: "k"},
		Rule{Matcher: staticMatcher("other"), Key: "o"},
	)
	assert.Equal(t, map[string]string{"k": "first", "o": "other"}, ex.Extract("anything"))
}

package automod

import (
	"testing"

	"warden/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultMatcher(t *testing.T) *Matcher {
	t.Helper()
	rules, err := CompileRules(nil)
	require.NoError(t, err)
	return NewMatcher(rules)
}

func TestEvaluateRawMatch(t *testing.T) {
	m := defaultMatcher(t)

	res := m.Evaluate("What the SHIT is this")
	assert.True(t, res.Violation)
	assert.Equal(t, "profanity", res.Rule)
	assert.False(t, res.Normalized)

	res = m.Evaluate("join us at discord.gg/freenitro")
	assert.True(t, res.Violation)
	assert.Equal(t, "invite_link", res.Rule)
}

func TestEvaluateLeetspeak(t *testing.T) {
	m := defaultMatcher(t)

	for _, text := range []string{"sh1t", "$h!7", "5hit", "fvck off", "a$$h0le", "k1ll yourself"} {
		res := m.Evaluate(text)
		assert.True(t, res.Violation, text)
		assert.True(t, res.Normalized, text)
	}
}

func TestEvaluateFoldsDiacritics(t *testing.T) {
	m := defaultMatcher(t)
	res := m.Evaluate("shït happens")
	assert.True(t, res.Violation)
	assert.Equal(t, "profanity", res.Rule)
	assert.True(t, res.Normalized)
}

func TestEvaluateNoFalsePositives(t *testing.T) {
	m := defaultMatcher(t)

	for _, text := range []string{
		"hello team, see you at 10:30",
		"I scored 1337 points",
		"the class assessment is on friday",
		"visit https://example.com/docs",
		"scunthorpe united",
		"",
	} {
		assert.False(t, m.Evaluate(text).Violation, text)
	}
}

func TestEvaluateFullwidthInviteHost(t *testing.T) {
	m := defaultMatcher(t)
	res := m.Evaluate("free stuff https://ｄｉｓｃｏｒｄ.gg/abc")
	assert.True(t, res.Violation)
	assert.Equal(t, "invite_host", res.Rule)
}

func TestEvaluateFirstRuleWins(t *testing.T) {
	rules, err := CompileRules([]config.RuleConfig{
		{ID: "first", Pattern: `bad`},
		{ID: "second", Pattern: `badword`},
	})
	require.NoError(t, err)

	res := NewMatcher(rules).Evaluate("badword")
	assert.Equal(t, "first", res.Rule)
}

func TestCompileRulesRejectsBadPattern(t *testing.T) {
	_, err := CompileRules([]config.RuleConfig{{ID: "broken", Pattern: "("}})
	assert.ErrorContains(t, err, "broken")
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "aaeiiosstu", Normalize("4@31!05$7v"))
	assert.Equal(t, "cafe", Normalize("café"))
}

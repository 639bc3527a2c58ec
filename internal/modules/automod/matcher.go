package automod

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"warden/internal/config"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Rule matches either a regular expression against lowercased text or a set
// of hosts against the links found in it.
type Rule struct {
	ID      string
	Pattern *regexp.Regexp
	Hosts   []string
}

type Result struct {
	Violation bool
	Rule      string
	// Normalized is set when only the leetspeak pass matched.
	Normalized bool
}

var defaultRules = []config.RuleConfig{
	{ID: "slur", Pattern: `\b(n+[i1]+g+(?:g+)?(?:a+h?|e+r+)s?|f+a+g+(?:g+o+t+)?s?|k+i+k+e+s?|r+e+t+a+r+d+s?|t+r+a+n+n+(?:y+|i+e+)s?|c+h+i+n+k+s?)\b`},
	{ID: "profanity", Pattern: `\b(f+u+c+k+\w*|s+h+i+t+(?:s|ty|head)?|b+i+t+c+h+(?:es)?|c+u+n+t+s?|a+s+s+h+o+l+e+s?|d+i+c+k+h+e+a+d+s?|w+h+o+r+e+s?)\b`},
	{ID: "invite_link", Pattern: `(?:discord(?:app)?\.(?:gg|io|me|li|com/invite)|dsc\.gg|invite\.gg)/[a-z0-9-]+`},
	{ID: "invite_host", Hosts: []string{"discord.gg", "dsc.gg", "invite.gg", "discord.io", "discord.me", "discord.li"}},
	{ID: "self_harm", Pattern: `\b(k+y+s+|kill\s+(?:your|ur)\s*self|go\s+die|end\s+(?:your|ur)\s+life|cut\s+your\s*self|commit\s+suicide|hang\s+your\s*self)\b`},
	{ID: "hate_symbol", Pattern: `\b(heil\s+hitler|sieg\s+heil|14\s*/?\s*88|white\s+power|swastikas?|1488)\b`},
}

// DefaultRuleConfigs returns a copy of the built-in policy set.
func DefaultRuleConfigs() []config.RuleConfig {
	out := make([]config.RuleConfig, len(defaultRules))
	copy(out, defaultRules)
	return out
}

// CompileRules turns configured rules into matcher rules, keeping order. An
// empty list selects the built-in set.
func CompileRules(cfgs []config.RuleConfig) ([]Rule, error) {
	if len(cfgs) == 0 {
		cfgs = defaultRules
	}
	rules := make([]Rule, 0, len(cfgs))
	for _, cfg := range cfgs {
		rule := Rule{ID: cfg.ID}
		if cfg.Pattern != "" {
			re, err := regexp.Compile(cfg.Pattern)
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", cfg.ID, err)
			}
			rule.Pattern = re
		}
		for _, host := range cfg.Hosts {
			rule.Hosts = append(rule.Hosts, strings.ToLower(host))
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

type Matcher struct {
	rules []Rule
}

func NewMatcher(rules []Rule) *Matcher {
	return &Matcher{rules: rules}
}

// Evaluate runs the lowercased text through the rules and, when nothing hits,
// runs the leetspeak-normalized text through them once more. The first
// matching rule wins.
func (m *Matcher) Evaluate(text string) Result {
	lower := strings.ToLower(text)
	if id, ok := m.match(lower); ok {
		return Result{Violation: true, Rule: id}
	}
	normalized := Normalize(lower)
	if normalized == lower {
		return Result{}
	}
	if id, ok := m.match(normalized); ok {
		return Result{Violation: true, Rule: id, Normalized: true}
	}
	return Result{}
}

func (m *Matcher) match(text string) (string, bool) {
	var hosts []string
	for _, rule := range m.rules {
		if rule.Pattern != nil && rule.Pattern.MatchString(text) {
			return rule.ID, true
		}
		if len(rule.Hosts) == 0 {
			continue
		}
		if hosts == nil {
			hosts = linkHosts(text)
		}
		for _, host := range hosts {
			if HostMatch(host, rule.Hosts) {
				return rule.ID, true
			}
		}
	}
	return "", false
}

func linkHosts(text string) []string {
	urls := ExtractURLs(text)
	hosts := make([]string, 0, len(urls))
	for _, raw := range urls {
		host, err := URLHost(raw)
		if err != nil || host == "" {
			continue
		}
		hosts = append(hosts, host)
	}
	return hosts
}

var leetReplacer = strings.NewReplacer(
	"4", "a", "@", "a",
	"3", "e",
	"1", "i", "!", "i",
	"0", "o",
	"5", "s", "$", "s",
	"7", "t",
	"v", "u",
)

// Normalize folds diacritics and maps the digit and symbol homoglyphs back to
// the letters they stand in for.
func Normalize(text string) string {
	// transformers carry state, so build one per call
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, text)
	if err != nil {
		folded = text
	}
	return leetReplacer.Replace(folded)
}

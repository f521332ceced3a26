// Package compiled turns a policy.PolicyFile into a set of executable
// matchers: regexes and Aho-Corasick automatons are built once here so
// that request-time evaluation never pays compilation cost.
package compiled

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/cloudflare/ahocorasick"

	"github.com/promptgate/gateway/internal/domain/policy"
)

// Match is a compiled match expression ready to test against a request field.
type Match struct {
	Field policy.Field

	exact    string
	regex    *regexp.Regexp
	keywords *ahocorasick.Matcher
}

// Rule is a policy.Rule with its "when any" expressions pre-compiled.
type Rule struct {
	ID          string
	Description string
	AppliesTo   policy.AppliesTo
	Action      policy.Action
	Priority    int
	Any         []Match
}

// Policy is a fully compiled policy document: rules ready for Stage 1
// evaluation, sorted deterministically.
type Policy struct {
	Rules []Rule
}

// Compile validates and compiles every rule in file. Compilation is
// all-or-nothing: if any rule fails to compile, no partial result is
// returned, so a bad policy document can never replace a good snapshot.
func Compile(file *policy.PolicyFile) (*Policy, error) {
	seen := make(map[string]struct{}, len(file.Rules))
	rules := make([]Rule, 0, len(file.Rules))

	for _, r := range file.Rules {
		if r.ID == "" {
			return nil, fmt.Errorf("rule has empty id")
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("rule %q: duplicate id", r.ID)
		}
		seen[r.ID] = struct{}{}

		cr, err := compileRule(r)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.ID, err)
		}
		rules = append(rules, cr)
	}

	// Deterministic evaluation order: priority ascending, then id ascending
	// to break ties. Confirmed against the original Rust store's compile_all.
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].ID < rules[j].ID
	})

	return &Policy{Rules: rules}, nil
}

func compileRule(r policy.Rule) (Rule, error) {
	cr := Rule{
		ID:          r.ID,
		Description: r.Description,
		AppliesTo:   r.AppliesTo,
		Action:      r.Action,
		Priority:    r.Priority,
	}

	if len(r.When.Any) == 0 {
		return Rule{}, fmt.Errorf("when.any must contain at least one match expression")
	}

	for i, m := range r.When.Any {
		cm, err := compileMatch(m)
		if err != nil {
			return Rule{}, fmt.Errorf("when.any[%d]: %w", i, err)
		}
		cr.Any = append(cr.Any, cm)
	}

	return cr, nil
}

func compileMatch(m policy.RawMatchExpr) (Match, error) {
	switch m.Type {
	case policy.MatchExact:
		// An empty Value matches the field's zero value (e.g. an absent
		// tenant/model); accepted for backward compatibility.
		return Match{Field: m.Field, exact: m.Value}, nil
	case policy.MatchRegex:
		re, err := regexp.Compile(m.Value)
		if err != nil {
			return Match{}, fmt.Errorf("invalid regex %q: %w", m.Value, err)
		}
		return Match{Field: m.Field, regex: re}, nil
	case policy.MatchKeywords:
		if len(m.Values) == 0 {
			return Match{}, fmt.Errorf("keywords match requires at least one value")
		}
		return Match{Field: m.Field, keywords: ahocorasick.NewStringMatcher(m.Values)}, nil
	default:
		return Match{}, fmt.Errorf("unknown match type %q", m.Type)
	}
}

// Test reports whether the match expression matches value, the field value
// extracted from the evaluation request by the caller.
func (m Match) Test(value string) bool {
	switch {
	case m.regex != nil:
		return m.regex.MatchString(value)
	case m.keywords != nil:
		return len(m.keywords.MatchThreadSafe([]byte(value))) > 0
	default:
		return value == m.exact
	}
}

// Applies reports whether this rule applies to the given request kind.
func (r Rule) Applies(k policy.Kind) bool {
	return r.AppliesTo.Applies(k)
}

package mapping

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule maps header keywords to a fixed target field.
type Rule struct {
	Field string `yaml:"field"`
	// Keywords match anywhere in the lowercased header.
	Keywords []string `yaml:"keywords"`
	// Tokens must equal a whole word of the header. Words are split on
	// non-alphanumeric runes and lower-to-upper case changes.
	Tokens []string `yaml:"tokens,omitempty"`
}

// RuleSet is an ordered keyword table; the first matching rule wins.
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

// DefaultRules is the candidate vocabulary.
func DefaultRules() RuleSet {
	return RuleSet{Rules: []Rule{
		{Field: "candidateId", Tokens: []string{"id"}, Keywords: []string{"number"}},
		{Field: "firstName", Keywords: []string{"first", "fname"}},
		{Field: "lastName", Keywords: []string{"last", "lname"}},
		{Field: "email", Keywords: []string{"email", "mail"}},
		{Field: "phone", Keywords: []string{"phone", "mobile", "contact"}},
		{Field: "skills", Keywords: []string{"skill", "expertise", "tech"}},
		{Field: "experience", Keywords: []string{"exp", "years"}},
		{Field: "education", Keywords: []string{"edu", "degree", "qualification"}},
	}}
}

// ParseRules decodes a YAML keyword table.
func ParseRules(data []byte) (RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return RuleSet{}, fmt.Errorf("parse rules: %w", err)
	}
	if err := rs.Validate(); err != nil {
		return RuleSet{}, err
	}
	for i := range rs.Rules {
		rs.Rules[i].Keywords = lowerAll(rs.Rules[i].Keywords)
		rs.Rules[i].Tokens = lowerAll(rs.Rules[i].Tokens)
	}
	return rs, nil
}

// LoadRules reads a YAML keyword table from path.
func LoadRules(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(data)
}

// Validate checks that every rule names a field and has something to match.
func (rs RuleSet) Validate() error {
	for i, r := range rs.Rules {
		if strings.TrimSpace(r.Field) == "" {
			return fmt.Errorf("rule %d: field is required", i)
		}
		if len(r.Keywords) == 0 && len(r.Tokens) == 0 {
			return fmt.Errorf("rule %d (%s): needs keywords or tokens", i, r.Field)
		}
		for _, k := range append(append([]string{}, r.Keywords...), r.Tokens...) {
			if strings.TrimSpace(k) == "" {
				return fmt.Errorf("rule %d (%s): empty keyword", i, r.Field)
			}
		}
	}
	return nil
}

// Match returns the field of the first rule that hits the header.
func (rs RuleSet) Match(header string) (string, bool) {
	lower := strings.ToLower(header)
	var words []string

	for _, r := range rs.Rules {
		if len(r.Tokens) > 0 && words == nil {
			words = tokenize(header)
		}
		for _, tok := range r.Tokens {
			for _, w := range words {
				if w == tok {
					return r.Field, true
				}
			}
		}
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				return r.Field, true
			}
		}
	}
	return "", false
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

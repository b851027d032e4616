package triage

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ruleDoc is the YAML shape of one rule. TierFloor travels as a tier name
// so rule files stay hand-editable.
type ruleDoc struct {
	Rule      `yaml:",inline"`
	TierFloor string `yaml:"tier_floor,omitempty"`
}

// rulesDoc is the YAML shape of a rule-table override file.
type rulesDoc struct {
	Version    string      `yaml:"version"`
	Boundaries *Boundaries `yaml:"boundaries,omitempty"`
	Rules      []ruleDoc   `yaml:"rules"`
}

// LoadRulesFile reads a YAML rule table, replacing the built-in rules and
// optionally the tier boundaries. Every rule and boundary set is
// validated before use so a bad file fails at startup, not mid-triage.
func LoadRulesFile(path string) (*RuleSet, *Boundaries, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // G304: path comes from operator config, not user input
	if err != nil {
		return nil, nil, fmt.Errorf("read rules file: %w", err)
	}

	var doc rulesDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse rules file: %w", err)
	}
	if len(doc.Rules) == 0 {
		return nil, nil, errors.New("rules file contains no rules")
	}

	rs := &RuleSet{Version: doc.Version, Rules: make([]Rule, 0, len(doc.Rules))}
	if rs.Version == "" {
		rs.Version = "custom"
	}

	for i, rd := range doc.Rules {
		r := rd.Rule
		if rd.TierFloor != "" {
			floor, err := ParseTier(rd.TierFloor)
			if err != nil {
				return nil, nil, fmt.Errorf("rule %d: %w", i, err)
			}
			r.TierFloor = floor
		}
		if err := r.validate(); err != nil {
			return nil, nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rs.Rules = append(rs.Rules, r)
	}

	if doc.Boundaries != nil {
		if err := doc.Boundaries.Validate(); err != nil {
			return nil, nil, err
		}
	}

	return rs, doc.Boundaries, nil
}

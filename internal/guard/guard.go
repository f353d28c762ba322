// Package guard is a deterministic lexicon pre-filter for chat text. It
// pattern-matches normalized text and makes no attempt at semantic
// understanding.
package guard

import "fmt"

// Violation is returned for the first rule a text breaks.
type Violation struct {
	Rule   string
	Reason string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("content policy: %s", v.Reason)
}

type Guard struct {
	rules []Rule
}

// New builds a guard over rules, or DefaultRules when none are given.
func New(rules ...Rule) *Guard {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Guard{rules: rules}
}

// Check returns a *Violation for the first matching rule, or nil.
func (g *Guard) Check(text string) error {
	in := NewInput(text)
	for _, r := range g.rules {
		if r.Matches(in) {
			return &Violation{Rule: r.Name, Reason: r.Reason}
		}
	}
	return nil
}

// CheckAll checks each distinct segment and stops at the first violation.
func (g *Guard) CheckAll(segments []string) error {
	seen := make(map[string]struct{}, len(segments))
	for _, s := range segments {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		if err := g.Check(s); err != nil {
			return err
		}
	}
	return nil
}

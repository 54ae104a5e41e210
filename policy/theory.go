// Package policy evaluates the defeasible-logic theory (component 4.3)
// that turns projected facts, the static rule bundle and a run's
// translated rules into gate literals per task. Unlike the projector, the
// engine is re-derived from scratch on every tick from the current fact
// set: nothing here is cached across facts, because a single new fact
// (an opened question, say) can invalidate a previously-provable
// defeasible conclusion.
package policy

import "sort"

// Literal names a boolean proposition the theory reasons about, e.g.
// "claimable:task-1" or "run-paused".
type Literal string

// Facts is the set of literals known true in the current tick. Absence
// from the set means "not proven", not "false" — the distinction matters
// for negation-as-failure in rule bodies.
type Facts map[Literal]bool

// Holds reports whether lit is a known-true fact.
func (f Facts) Holds(lit Literal) bool { return f[lit] }

// Rule is one clause of the theory. A strict rule's conclusion holds
// whenever its body holds, with no possibility of defeat. A defeasible
// rule's conclusion holds by default when its body holds, unless any
// literal in Unless is itself provable — modeling "defeated by an
// exception of equal or higher priority" without requiring a full
// argumentation-framework implementation.
type Rule struct {
	Name       string
	Head       Literal
	Requires   []Literal // positive antecedents, all must hold
	Forbids    []Literal // negative antecedents, none may hold
	Defeasible bool
	Priority   int
	Unless     []Literal // exception literals that defeat this rule when proven
}

// bodyHolds reports whether a rule's antecedents are satisfied against facts.
func (r Rule) bodyHolds(facts Facts) bool {
	for _, lit := range r.Requires {
		if !facts.Holds(lit) {
			return false
		}
	}
	for _, lit := range r.Forbids {
		if facts.Holds(lit) {
			return false
		}
	}
	return true
}

// Theory is an ordered collection of strict and defeasible rules. The
// engine must support both from the start even when, as here, the
// concrete static bundle is mostly strict: later rule additions (e.g. a
// translated per-run exception) must not require changing the
// interpreter, only adding rules.
type Theory struct {
	rules []Rule
}

// NewTheory builds a theory from a rule set, typically the static bundle
// concatenated with a run's translated rules.
func NewTheory(rules ...Rule) *Theory {
	t := &Theory{rules: append([]Rule(nil), rules...)}
	sort.SliceStable(t.rules, func(i, j int) bool { return t.rules[i].Priority > t.rules[j].Priority })
	return t
}

// Extend returns a new Theory with additional rules appended, used to
// layer a run's translated rules on top of the static bundle without
// mutating either.
func (t *Theory) Extend(rules ...Rule) *Theory {
	return NewTheory(append(append([]Rule(nil), t.rules...), rules...)...)
}

// Query reports whether lit is proven under facts: true if any strict
// rule concluding lit has a satisfied body, or (failing that) the
// highest-priority satisfied defeasible rule concluding lit is not
// defeated by a proven exception.
func (t *Theory) Query(lit Literal, facts Facts) bool {
	// A literal already present in the ground fact set is an axiom: it
	// needs no rule to be proven. This is what lets a rule's Unless
	// clause reference a raw projected fact (e.g. the reviewer-equals-
	// implementer condition) without a matching exception rule.
	if facts.Holds(lit) {
		return true
	}

	var bestDefeasible *Rule

	for i := range t.rules {
		r := &t.rules[i]
		if r.Head != lit || !r.bodyHolds(facts) {
			continue
		}
		if !r.Defeasible {
			return true // a satisfied strict rule is conclusive
		}
		if bestDefeasible == nil || r.Priority > bestDefeasible.Priority {
			bestDefeasible = r
		}
	}

	if bestDefeasible == nil {
		return false
	}
	for _, exc := range bestDefeasible.Unless {
		if t.Query(exc, facts) {
			return false // defeated by a proven exception
		}
	}
	return true
}

// Package rules implements the decision rule engine. Rules apply
// caller-specific business overrides on top of a validator's outcome: a rule
// may demote a valid result to invalid or annotate the result with a rule
// code, but it can never turn an invalid result valid. That keeps validator
// findings auditable.
package rules

import (
	"validbus/internal/validation"
	"validbus/pkg/domain"
)

// Wildcard matches any validation type or application name in a rule key.
const Wildcard = "*"

// Rule is one business override, keyed by (validation type, app name) with
// wildcard support.
type Rule struct {
	ValidationType domain.ValidationType
	AppName        string
	Code           string
	// Message replaces the validator's message when the rule demotes.
	Message string
	// Demote turns a valid outcome invalid. When false the rule only
	// annotates the outcome with its code.
	Demote bool
	// When further restricts the rule to outcomes it applies to. A nil
	// predicate matches every outcome for the rule's key.
	When func(validation.Outcome) bool
}

func (r Rule) matches(t domain.ValidationType, app string) bool {
	if r.ValidationType != Wildcard && r.ValidationType != t {
		return false
	}
	if r.AppName != Wildcard && r.AppName != app {
		return false
	}
	return true
}

// Engine applies decision rules in registration order; the first matching
// rule wins. The engine is pure and safe for concurrent use.
type Engine struct {
	rules []Rule
}

// NewEngine builds an engine from an ordered rule list.
func NewEngine(rules ...Rule) *Engine {
	return &Engine{rules: rules}
}

// Apply evaluates the rules against a validator outcome and returns the final
// outcome plus the applied rule code (empty when no rule matched).
//
// Demotion only narrows: an already-invalid outcome passes through a demoting
// rule annotated but otherwise unchanged, and nothing an engine is configured
// with can flip invalid to valid.
func (e *Engine) Apply(t domain.ValidationType, app string, outcome validation.Outcome) (validation.Outcome, string) {
	for _, rule := range e.rules {
		if !rule.matches(t, app) {
			continue
		}
		if rule.When != nil && !rule.When(outcome) {
			continue
		}
		if rule.Demote && outcome.IsValid {
			outcome.IsValid = false
			outcome.Message = rule.Message
		}
		return outcome, rule.Code
	}
	return outcome, ""
}

// Default returns the built-in rule set: demote special-service phone lines
// and disposable email domains for every caller. Deployments extend this list
// at wiring time.
func Default() []Rule {
	return []Rule{
		{
			ValidationType: "phone",
			AppName:        Wildcard,
			Code:           "RN_BLK001",
			Message:        "premium-rate and toll-free numbers are not accepted",
			Demote:         true,
			When: func(o validation.Outcome) bool {
				lt, _ := o.Details["line_type"].(string)
				return lt == "premium_rate" || lt == "toll_free"
			},
		},
		{
			ValidationType: "email",
			AppName:        Wildcard,
			Code:           "RN_BLK002",
			Message:        "disposable email domains are not accepted",
			Demote:         true,
			When: func(o validation.Outcome) bool {
				disposable, _ := o.Details["disposable"].(bool)
				return disposable
			},
		},
	}
}

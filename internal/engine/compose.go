package engine

import (
	"fmt"
	"time"

	"advisor/internal/core"
)

// Compose aggregates constraint findings, goal impacts and alerts
// into one immutable Decision.
//
// The verdict is a precedence table evaluated in order, first match
// wins:
//
//  1. any hard-margin breach            -> reject
//  2. any indeterminate goal projection -> discourage
//  3. any soft breach or positive delay -> warn
//  4. otherwise                         -> approve
//
// The id and timestamp are caller-supplied so that identical inputs
// produce byte-identical decisions.
func Compose(id string, ts time.Time, action core.Action, cr ConstraintResult, impacts []core.GoalImpact, alerts []core.Alert) core.Decision {
	return core.Decision{
		ID:             id,
		Timestamp:      ts,
		Action:         action,
		Verdict:        deriveVerdict(cr, impacts),
		Justifications: buildJustifications(cr, impacts),
		Impacts:        impacts,
		Alerts:         alerts,
	}
}

func deriveVerdict(cr ConstraintResult, impacts []core.GoalImpact) core.Verdict {
	if cr.HasHardBreach() {
		return core.VerdictReject
	}
	for _, gi := range impacts {
		if gi.Indeterminate {
			// The goal regressed with no surplus left to mitigate it.
			return core.VerdictDiscourage
		}
	}
	if cr.HasSoftBreach() {
		return core.VerdictWarn
	}
	for _, gi := range impacts {
		if gi.Delay > 0 {
			return core.VerdictWarn
		}
	}
	return core.VerdictApprove
}

// buildJustifications emits one chain entry per evaluated rule, in
// evaluation order: budgets, savings floor, goals. The chain is never
// empty; with nothing configured a single no-constraint entry records
// that fact so the verdict stays recomputable from the chain alone.
func buildJustifications(cr ConstraintResult, impacts []core.GoalImpact) []core.Justification {
	var chain []core.Justification

	for _, f := range cr.Budgets {
		chain = append(chain, core.Justification{
			RuleID: RuleBudgetLimit,
			Values: map[string]string{
				"category":  f.Category,
				"spent":     f.Spent.String(),
				"projected": f.Projected.String(),
				"limit":     f.Limit.String(),
			},
			Threshold: f.Limit.String(),
			Outcome:   string(f.Status),
		})
	}

	if s := cr.Savings; s != nil {
		chain = append(chain, core.Justification{
			RuleID: RuleSavingsFloor,
			Values: map[string]string{
				"rate_before": s.Before.String(),
				"rate_after":  s.After.String(),
				"target":      fmt.Sprintf("%.4f", s.Target),
			},
			Threshold: fmt.Sprintf("%.4f", s.Target),
			Outcome:   string(s.Status),
		})
	}

	for _, gi := range impacts {
		outcome := "no_delay"
		switch {
		case gi.Indeterminate:
			outcome = "indeterminate"
		case gi.Delay > 0:
			outcome = "delayed"
		}
		chain = append(chain, core.Justification{
			RuleID: RuleGoalDelay,
			Values: map[string]string{
				"goal":               gi.GoalID,
				"delay":              fmt.Sprintf("%d %s", gi.Delay, gi.DelayUnit),
				"contribution_delta": gi.ContributionDelta.String(),
			},
			Threshold: "0 " + string(gi.DelayUnit),
			Outcome:   outcome,
		})
	}

	if len(chain) == 0 {
		chain = append(chain, core.Justification{
			RuleID:    RuleNoConstraint,
			Values:    map[string]string{},
			Threshold: "none",
			Outcome:   "approve",
		})
	}
	return chain
}

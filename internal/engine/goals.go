package engine

import (
	"math"
	"sort"

	"advisor/internal/core"
)

// avgWeeksPerMonth converts a fractional month delay into weeks for
// reporting (365.25 / 12 / 7).
const avgWeeksPerMonth = 365.25 / 12 / 7

// delayUnitCutoverMonths: delays under two months are reported in
// weeks, longer ones in months.
const delayUnitCutoverMonths = 2.0

// GoalImpacts projects how an action shifts each goal's completion.
//
// The projection is linear extrapolation from the trailing average
// monthly surplus: months-to-completion = remaining / surplus, and
// the action reduces the surplus by its amount. A non-positive
// surplus (before or after the action) makes the projection
// indeterminate rather than infinite or negative. A zero-amount
// action is the baseline and always yields zero impact.
//
// Results are ordered by goal priority, highest first, since only one
// justification entry per goal is attached to the decision.
func GoalImpacts(m Metrics, action core.Action, goals []core.Goal) []core.GoalImpact {
	ordered := make([]core.Goal, len(goals))
	copy(ordered, goals)
	sortGoalsByPriority(ordered)

	impacts := make([]core.GoalImpact, 0, len(ordered))
	for _, g := range ordered {
		impacts = append(impacts, goalImpact(m, action, g))
	}
	return impacts
}

func goalImpact(m Metrics, action core.Action, g core.Goal) core.GoalImpact {
	impact := core.GoalImpact{
		GoalID:    g.ID,
		GoalName:  g.Name,
		DelayUnit: core.DelayWeeks,
	}

	if action.Amount.IsZero() {
		// Doing nothing never moves a goal.
		return impact
	}

	remaining := g.Target.Sub(g.Progress)
	if remaining.Cents <= 0 {
		// Already funded; nothing to delay.
		return impact
	}

	surplus := m.MonthlySurplus
	newSurplus := surplus.Sub(action.Amount)
	if surplus.Cents <= 0 || newSurplus.Cents <= 0 {
		impact.Indeterminate = true
		return impact
	}

	oldMonths := float64(remaining.Cents) / float64(surplus.Cents)
	newMonths := float64(remaining.Cents) / float64(newSurplus.Cents)
	delayMonths := newMonths - oldMonths

	if delayMonths < delayUnitCutoverMonths {
		impact.Delay = int(math.Round(delayMonths * avgWeeksPerMonth))
		impact.DelayUnit = core.DelayWeeks
	} else {
		impact.Delay = int(math.Round(delayMonths))
		impact.DelayUnit = core.DelayMonths
	}

	// Extra monthly contribution needed to still hit the target date:
	// the action's amount spread over the months left until then.
	monthsLeft := monthsBetween(m.AsOf, g.TargetDate)
	if monthsLeft < 1 {
		monthsLeft = 1
	}
	impact.ContributionDelta = core.Money{Cents: action.Amount.Cents / int64(monthsLeft)}

	return impact
}

// GoalProjection is the action-free completion outlook used by alert
// scanning and goal status reporting.
type GoalProjection struct {
	Goal                core.Goal
	Remaining           core.Money
	MonthsToTarget      int
	RequiredMonthly     core.Money
	ProjectedCompletion *core.Date // nil when surplus is non-positive
	OnTrack             bool
}

// ProjectGoal computes a goal's standing from the current surplus.
func ProjectGoal(m Metrics, g core.Goal) GoalProjection {
	p := GoalProjection{
		Goal:           g,
		Remaining:      g.Target.Sub(g.Progress),
		MonthsToTarget: monthsBetween(m.AsOf, g.TargetDate),
	}
	if p.Remaining.Cents <= 0 {
		p.OnTrack = true
		done := m.AsOf
		p.ProjectedCompletion = &done
		return p
	}
	if p.MonthsToTarget >= 1 {
		p.RequiredMonthly = core.Money{Cents: p.Remaining.Cents / int64(p.MonthsToTarget)}
	} else {
		p.RequiredMonthly = p.Remaining
	}

	if m.MonthlySurplus.Cents <= 0 {
		return p // indeterminate completion, not on track
	}
	months := float64(p.Remaining.Cents) / float64(m.MonthlySurplus.Cents)
	days := int(math.Ceil(months * 365.25 / 12))
	completion := core.DateOf(m.AsOf.AddDate(0, 0, days))
	p.ProjectedCompletion = &completion
	p.OnTrack = !completion.After(g.TargetDate.Time)
	return p
}

// monthsBetween counts whole months from a to b, rounding partial
// months up, never below zero.
func monthsBetween(a, b core.Date) int {
	if !b.After(a.Time) {
		return 0
	}
	months := (b.Year()-a.Year())*12 + b.Month() - a.Month()
	if b.Day() > a.Day() {
		months++
	}
	if months < 0 {
		return 0
	}
	return months
}

func sortGoalsByPriority(goals []core.Goal) {
	sort.SliceStable(goals, func(i, j int) bool {
		return goals[i].Priority < goals[j].Priority
	})
}

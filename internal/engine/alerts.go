package engine

import (
	"fmt"
	"sort"

	"advisor/internal/core"
)

// DefaultRecurringLookaheadDays is the window in which an expected
// recurring payment counts as upcoming.
const DefaultRecurringLookaheadDays = 7

// AlertOptions carries the caller-owned pieces of alert scanning: the
// engine itself holds no alert history. RecentKeys is the set of
// dedup keys emitted within the caller's cooldown window; matching
// alerts are filtered out here.
type AlertOptions struct {
	LookaheadDays int
	RecentKeys    map[string]struct{}
}

func (o AlertOptions) lookahead() int {
	if o.LookaheadDays <= 0 {
		return DefaultRecurringLookaheadDays
	}
	return o.LookaheadDays
}

// ScanAlerts detects threshold crossings, at-risk goals and upcoming
// recurring obligations. The three kinds are evaluated independently;
// severity only orders the result, it never suppresses an alert.
func ScanAlerts(state FinancialState, m Metrics, budgets []core.Budget, goals []core.Goal, opts AlertOptions) ([]core.Alert, error) {
	var alerts []core.Alert

	active, err := activeBudgets(budgets, state.AsOf)
	if err != nil {
		return nil, err
	}
	period := state.AsOf.Format("2006-01")
	for _, b := range active {
		spent := m.CategorySpend(b.Category)
		limit := monthlyLimit(b)
		if spent.Cents <= limit.Cents {
			continue
		}
		alerts = append(alerts, core.Alert{
			Kind:     core.AlertThresholdExceeded,
			Ref:      b.Category,
			Severity: core.AlertSeverityFor(core.AlertThresholdExceeded),
			Message: fmt.Sprintf("spending in %s is %s against a limit of %s",
				b.Category, spent, limit),
			DedupKey: fmt.Sprintf("%s:%s:%s", core.AlertThresholdExceeded, b.Category, period),
		})
	}

	for _, g := range goals {
		p := ProjectGoal(m, g)
		if p.Remaining.Cents <= 0 {
			continue
		}
		atRisk := p.ProjectedCompletion == nil || p.ProjectedCompletion.After(g.TargetDate.Time)
		if !atRisk {
			continue
		}
		msg := fmt.Sprintf("goal %q projected past its target date %s", g.Name, g.TargetDate.Format("2006-01-02"))
		if p.ProjectedCompletion == nil {
			msg = fmt.Sprintf("goal %q has no completion projection at the current surplus", g.Name)
		}
		alerts = append(alerts, core.Alert{
			Kind:     core.AlertGoalAtRisk,
			Ref:      g.ID,
			Severity: core.AlertSeverityFor(core.AlertGoalAtRisk),
			Message:  msg,
			DedupKey: fmt.Sprintf("%s:%s:%s", core.AlertGoalAtRisk, g.ID, period),
		})
	}

	alerts = append(alerts, upcomingRecurring(state, opts.lookahead())...)

	filtered := alerts[:0]
	for _, a := range alerts {
		if _, seen := opts.RecentKeys[a.DedupKey]; seen {
			continue
		}
		filtered = append(filtered, a)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Severity != filtered[j].Severity {
			return filtered[i].Severity > filtered[j].Severity
		}
		return filtered[i].DedupKey < filtered[j].DedupKey
	})
	return filtered, nil
}

// upcomingRecurring predicts the next occurrence of each recurring
// obligation from the cadence of its past occurrences and reports the
// ones falling inside the lookahead window.
func upcomingRecurring(state FinancialState, lookaheadDays int) []core.Alert {
	type series struct {
		ref   string
		dates []core.Date
		last  core.Transaction
	}
	byRef := make(map[string]*series)
	var order []string
	for _, t := range state.Transactions {
		if !t.Recurring || t.Amount.Cents >= 0 {
			continue
		}
		ref := t.Merchant
		if ref == "" {
			ref = t.Category
		}
		s, ok := byRef[ref]
		if !ok {
			s = &series{ref: ref}
			byRef[ref] = s
			order = append(order, ref)
		}
		s.dates = append(s.dates, t.Date)
		s.last = t
	}
	sort.Strings(order)

	horizon := state.AsOf.AddDate(0, 0, lookaheadDays)
	var alerts []core.Alert
	for _, ref := range order {
		s := byRef[ref]
		next := nextOccurrence(s.dates)
		if !next.After(state.AsOf.Time) || next.After(horizon) {
			continue
		}
		alerts = append(alerts, core.Alert{
			Kind:     core.AlertUpcomingRecurring,
			Ref:      ref,
			Severity: core.AlertSeverityFor(core.AlertUpcomingRecurring),
			Message: fmt.Sprintf("recurring payment %s of about %s expected on %s",
				ref, s.last.Amount.Neg(), next.Format("2006-01-02")),
			DedupKey: fmt.Sprintf("%s:%s:%s", core.AlertUpcomingRecurring, ref, next.Format("2006-01-02")),
		})
	}
	return alerts
}

// nextOccurrence infers the cadence of a recurring series from the
// average gap between occurrences: up to 2 days apart reads as daily,
// up to 10 as weekly, up to 45 as monthly, anything longer yearly. A
// single occurrence is assumed monthly.
func nextOccurrence(dates []core.Date) core.Date {
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j].Time) })
	last := dates[len(dates)-1]
	if len(dates) == 1 {
		return last.AddMonths(1)
	}

	totalDays := int(dates[len(dates)-1].Sub(dates[0].Time).Hours() / 24)
	avgGap := totalDays / (len(dates) - 1)
	switch {
	case avgGap <= 2:
		return core.DateOf(last.AddDate(0, 0, 1))
	case avgGap <= 10:
		return core.DateOf(last.AddDate(0, 0, 7))
	case avgGap <= 45:
		return last.AddMonths(1)
	default:
		return last.AddMonths(12)
	}
}

package core

import "time"

// Verdict is the outcome of evaluating a proposed action.
type Verdict string

const (
	VerdictApprove    Verdict = "approve"
	VerdictDiscourage Verdict = "discourage"
	VerdictWarn       Verdict = "warn"
	VerdictReject     Verdict = "reject"
	VerdictClarify    Verdict = "clarify"
)

// AlertKind identifies the condition an alert reports.
type AlertKind string

const (
	AlertThresholdExceeded AlertKind = "threshold_exceeded"
	AlertGoalAtRisk        AlertKind = "goal_at_risk"
	AlertUpcomingRecurring AlertKind = "upcoming_recurring_payment"
)

// AlertSeverity orders alerts for presentation only; it never
// suppresses an alert.
type AlertSeverity int

const (
	SeverityInfo AlertSeverity = iota
	SeverityNotice
	SeverityCritical
)

// DelayUnit is the reporting granularity for a goal delay.
type DelayUnit string

const (
	DelayWeeks  DelayUnit = "weeks"
	DelayMonths DelayUnit = "months"
)

type (
	// Justification is one entry of a decision's justification chain.
	// It carries the concrete values compared so a reviewer can
	// recompute the verdict without re-running the engine.
	Justification struct {
		RuleID    string            `json:"rule_id"`
		Values    map[string]string `json:"values"`
		Threshold string            `json:"threshold"`
		Outcome   string            `json:"outcome"`
	}

	// GoalImpact describes how an action shifts one goal's projection.
	GoalImpact struct {
		GoalID        string    `json:"goal_id"`
		GoalName      string    `json:"goal_name"`
		Delay         int       `json:"delay"`
		DelayUnit     DelayUnit `json:"delay_unit"`
		// ContributionDelta is the extra required monthly contribution
		// (cents) to still reach the target date after the action.
		ContributionDelta Money `json:"contribution_delta"`
		// Indeterminate is set when the projection cannot be computed,
		// for example when monthly surplus is non-positive.
		Indeterminate bool `json:"indeterminate"`
	}

	// Alert reports a detected condition. DedupKey identifies the
	// condition instance so repeated scans inside a cooldown window do
	// not re-emit it.
	Alert struct {
		Kind     AlertKind     `json:"kind"`
		Ref      string        `json:"ref"` // category or goal id
		Severity AlertSeverity `json:"severity"`
		Message  string        `json:"message"`
		DedupKey string        `json:"dedup_key"`
	}

	// Decision is the immutable, auditable output of one evaluation.
	// It is the sole contract handed to the narration layer.
	Decision struct {
		ID             string          `json:"id"`
		Timestamp      time.Time       `json:"timestamp"`
		Action         Action          `json:"action"`
		Verdict        Verdict         `json:"verdict"`
		Justifications []Justification `json:"justifications"`
		Impacts        []GoalImpact    `json:"impacts"`
		Alerts         []Alert         `json:"alerts"`
	}

	// BudgetStatus is one category's position against its active limit
	// for the current period.
	BudgetStatus struct {
		Category  string `json:"category"`
		Limit     Money  `json:"limit"`
		Spent     Money  `json:"spent"`
		Remaining Money  `json:"remaining"`
		Overspent bool   `json:"overspent"`
	}

	// SpendingSummary is the get_spending_summary payload.
	SpendingSummary struct {
		From           Date             `json:"from"`
		To             Date             `json:"to"`
		TotalIncome    Money            `json:"total_income"`
		TotalExpense   Money            `json:"total_expense"`
		Savings        Money            `json:"savings"`
		SavingsRate    *float64         `json:"savings_rate"` // nil when undefined
		ByCategory     []CategoryAmount `json:"by_category"`
		BudgetStatuses []BudgetStatus   `json:"budget_statuses"`
	}

	// GoalStatus is the get_goal_status payload for one goal.
	GoalStatus struct {
		Goal                Goal   `json:"goal"`
		Remaining           Money  `json:"remaining"`
		MonthsToTarget      int    `json:"months_to_target"`
		RequiredMonthly     Money  `json:"required_monthly"`
		OnTrack             bool   `json:"on_track"`
		ProjectedCompletion *Date  `json:"projected_completion"` // nil when indeterminate
	}
)

// AlertSeverityFor returns the fixed severity for an alert kind:
// goal-at-risk > threshold-exceeded > upcoming-recurring-payment.
func AlertSeverityFor(kind AlertKind) AlertSeverity {
	switch kind {
	case AlertGoalAtRisk:
		return SeverityCritical
	case AlertThresholdExceeded:
		return SeverityNotice
	default:
		return SeverityInfo
	}
}

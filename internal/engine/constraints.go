package engine

import (
	"fmt"
	"sort"

	"advisor/internal/core"
)

// Sensitivity is the single externally tunable risk parameter. It
// scales the margin past a limit at which a soft breach becomes a
// hard one, and must always be set explicitly by the caller.
type Sensitivity string

const (
	SensitivityConservative Sensitivity = "conservative"
	SensitivityAggressive   Sensitivity = "aggressive"
)

// Hard-margin percentages over a budget limit per sensitivity.
const (
	conservativeHardMarginPct = 10
	aggressiveHardMarginPct   = 25
)

// Rule identifiers used in justification chains.
const (
	RuleBudgetLimit  = "budget.limit"
	RuleSavingsFloor = "savings.rate_floor"
	RuleGoalDelay    = "goal.delay"
	RuleNoConstraint = "constraints.none_configured"
)

// ConstraintStatus classifies a projection against a limit.
type ConstraintStatus string

const (
	StatusWithin      ConstraintStatus = "within"
	StatusExceeds     ConstraintStatus = "exceeds"
	StatusExceedsHard ConstraintStatus = "exceeds_hard"
)

// EvaluatorConfig tunes constraint evaluation.
type EvaluatorConfig struct {
	Sensitivity Sensitivity
	// SavingsRateTarget is the savings-rate floor, e.g. 0.20 for 20%.
	// Zero disables the rule.
	SavingsRateTarget float64
}

func (c EvaluatorConfig) Validate() error {
	switch c.Sensitivity {
	case SensitivityConservative, SensitivityAggressive:
	default:
		return fmt.Errorf("sensitivity must be set explicitly, got %q", c.Sensitivity)
	}
	if c.SavingsRateTarget < 0 || c.SavingsRateTarget >= 1 {
		return fmt.Errorf("savings rate target out of range: %v", c.SavingsRateTarget)
	}
	return nil
}

func (c EvaluatorConfig) hardMarginPct() int64 {
	if c.Sensitivity == SensitivityAggressive {
		return aggressiveHardMarginPct
	}
	return conservativeHardMarginPct
}

type (
	// BudgetFinding is one budget rule evaluation with the concrete
	// values compared.
	BudgetFinding struct {
		Category  string
		Limit     core.Money // normalized to monthly cents
		Spent     core.Money
		Projected core.Money // spent plus the proposed action
		Status    ConstraintStatus
	}

	// SavingsFinding is the savings-rate floor evaluation.
	SavingsFinding struct {
		Before Ratio
		After  Ratio
		Target float64
		Status ConstraintStatus
	}

	// ConstraintResult aggregates all constraint evaluations for one
	// proposed action (or for the current state when action is nil).
	ConstraintResult struct {
		Budgets []BudgetFinding
		Savings *SavingsFinding
	}
)

// HasHardBreach reports whether any rule exceeded its hard margin.
func (r ConstraintResult) HasHardBreach() bool {
	for _, f := range r.Budgets {
		if f.Status == StatusExceedsHard {
			return true
		}
	}
	return r.Savings != nil && r.Savings.Status == StatusExceedsHard
}

// HasSoftBreach reports whether any rule exceeded its limit without
// crossing the hard margin.
func (r ConstraintResult) HasSoftBreach() bool {
	for _, f := range r.Budgets {
		if f.Status == StatusExceeds {
			return true
		}
	}
	return r.Savings != nil && r.Savings.Status == StatusExceeds
}

// EvaluateConstraints checks current and projected spending against
// the active budgets and the savings-rate floor.
//
// For each category the most recently effective budget not after the
// as-of date wins. Two budgets for the same category and period with
// the same effective date but different limits cannot be tie-broken
// and surface core.ErrConfigConflict.
func EvaluateConstraints(m Metrics, budgets []core.Budget, action *core.Action, cfg EvaluatorConfig) (ConstraintResult, error) {
	if err := cfg.Validate(); err != nil {
		return ConstraintResult{}, err
	}

	active, err := activeBudgets(budgets, m.AsOf)
	if err != nil {
		return ConstraintResult{}, err
	}

	var result ConstraintResult
	hardPct := cfg.hardMarginPct()

	for _, b := range active {
		spent := m.CategorySpend(b.Category)
		projected := spent
		if action != nil && action.Category == b.Category {
			projected = projected.Add(action.Amount)
		}
		limit := monthlyLimit(b)
		hardCeiling := limit.Cents + limit.Cents*hardPct/100

		f := BudgetFinding{
			Category:  b.Category,
			Limit:     limit,
			Spent:     spent,
			Projected: projected,
			Status:    StatusWithin,
		}
		switch {
		case projected.Cents > hardCeiling:
			f.Status = StatusExceedsHard
		case projected.Cents > limit.Cents:
			f.Status = StatusExceeds
		}
		result.Budgets = append(result.Budgets, f)
	}

	if cfg.SavingsRateTarget > 0 {
		result.Savings = savingsFinding(m, action, cfg)
	}

	return result, nil
}

func savingsFinding(m Metrics, action *core.Action, cfg EvaluatorConfig) *SavingsFinding {
	f := &SavingsFinding{
		Before: m.SavingsRate,
		After:  m.SavingsRate,
		Target: cfg.SavingsRateTarget,
		Status: StatusWithin,
	}
	if !m.SavingsRate.Defined {
		// Zero income: the floor cannot be evaluated, and an
		// undefined rate is never treated as a breach.
		return f
	}
	expense := m.Expense
	if action != nil {
		expense = expense.Add(action.Amount)
	}
	f.After = DefinedRatio(float64(m.Income.Cents-expense.Cents) / float64(m.Income.Cents))

	// The hard margin scales how far under the floor the projected
	// rate may fall before a warn becomes a reject.
	hardFloor := cfg.SavingsRateTarget - float64(cfg.hardMarginPct())/100
	switch {
	case f.After.Value < hardFloor:
		f.Status = StatusExceedsHard
	case f.After.Value < cfg.SavingsRateTarget:
		f.Status = StatusExceeds
	}
	return f
}

// activeBudgets resolves, per category, the budget in force at asOf:
// the one with the latest effective date not after asOf.
func activeBudgets(budgets []core.Budget, asOf core.Date) ([]core.Budget, error) {
	chosen := make(map[string]core.Budget)
	order := make([]string, 0, len(budgets))
	for _, b := range budgets {
		if b.EffectiveFrom.After(asOf.Time) {
			continue
		}
		cur, ok := chosen[b.Category]
		if !ok {
			chosen[b.Category] = b
			order = append(order, b.Category)
			continue
		}
		if b.EffectiveFrom.Equal(cur.EffectiveFrom.Time) && b.Period == cur.Period {
			if b.Limit != cur.Limit {
				return nil, fmt.Errorf("%w: budgets for %q effective %s disagree on limit",
					core.ErrConfigConflict, b.Category, b.EffectiveFrom.Format("2006-01-02"))
			}
			continue
		}
		if b.EffectiveFrom.After(cur.EffectiveFrom.Time) {
			chosen[b.Category] = b
		}
	}

	sort.Strings(order)
	out := make([]core.Budget, 0, len(chosen))
	for _, cat := range order {
		out = append(out, chosen[cat])
	}
	return out, nil
}

// monthlyLimit normalizes a budget limit to monthly cents so current
// period spend compares against one unit. Integer arithmetic only.
func monthlyLimit(b core.Budget) core.Money {
	switch b.Period {
	case core.Weekly:
		return core.Money{Cents: b.Limit.Cents * 52 / 12}
	case core.Yearly:
		return core.Money{Cents: b.Limit.Cents / 12}
	default:
		return b.Limit
	}
}

package engine

import "advisor/internal/core"

type (
	// Scenario is a labeled hypothetical action, never committed to
	// state.
	Scenario struct {
		Label  string
		Action core.Action
	}

	// ScenarioResult is one scenario's full evaluation.
	ScenarioResult struct {
		Label          string
		Action         core.Action
		Constraints    ConstraintResult
		Impacts        []core.GoalImpact
		Verdict        core.Verdict
		Justifications []core.Justification
	}
)

// CompareScenarios evaluates the base action and each alternative
// against the same metrics, returning results in caller order: base
// first, then the alternatives exactly as supplied. Ordering is a
// caller contract; the engine never re-sorts.
//
// A zero-amount scenario is always computable and serves as the
// do-nothing baseline with zero impact on every goal.
func CompareScenarios(m Metrics, budgets []core.Budget, goals []core.Goal, base Scenario, alternatives []Scenario, cfg EvaluatorConfig) ([]ScenarioResult, error) {
	scenarios := make([]Scenario, 0, 1+len(alternatives))
	scenarios = append(scenarios, base)
	scenarios = append(scenarios, alternatives...)

	results := make([]ScenarioResult, 0, len(scenarios))
	for _, s := range scenarios {
		action := s.Action
		cr, err := EvaluateConstraints(m, budgets, &action, cfg)
		if err != nil {
			return nil, err
		}
		impacts := GoalImpacts(m, action, goals)
		results = append(results, ScenarioResult{
			Label:          s.Label,
			Action:         action,
			Constraints:    cr,
			Impacts:        impacts,
			Verdict:        deriveVerdict(cr, impacts),
			Justifications: buildJustifications(cr, impacts),
		})
	}
	return results, nil
}

package engine

import (
	"errors"
	"math"
	"testing"

	"advisor/internal/core"
)

func conservativeCfg() EvaluatorConfig {
	return EvaluatorConfig{Sensitivity: SensitivityConservative}
}

func metricsFor(t *testing.T, transactions []core.Transaction, asOf core.Date) Metrics {
	t.Helper()
	return ComputeMetrics(Build(transactions, nil, nil, asOf), MetricsConfig{})
}

func TestEvaluatorConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     EvaluatorConfig
		wantErr bool
	}{
		{"conservative", EvaluatorConfig{Sensitivity: SensitivityConservative}, false},
		{"aggressive with target", EvaluatorConfig{Sensitivity: SensitivityAggressive, SavingsRateTarget: 0.2}, false},
		{"missing sensitivity", EvaluatorConfig{}, true},
		{"unknown sensitivity", EvaluatorConfig{Sensitivity: "moderate"}, true},
		{"target out of range", EvaluatorConfig{Sensitivity: SensitivityConservative, SavingsRateTarget: 1.5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBudgetStatuses(t *testing.T) {
	asOf := core.NewDate(2026, 4, 15)
	budgets := []core.Budget{{
		Category:      "groceries",
		Period:        core.Monthly,
		Limit:         core.Money{Cents: 40000},
		EffectiveFrom: core.NewDate(2026, 1, 1),
	}}

	tests := []struct {
		name   string
		spent  int64 // current-month groceries spend, positive cents
		action int64 // proposed additional spend
		want   ConstraintStatus
	}{
		{"well within", 20000, 5000, StatusWithin},
		{"exactly at limit", 30000, 10000, StatusWithin},
		{"over limit inside margin", 30000, 12000, StatusExceeds},
		{"exactly at hard ceiling", 34000, 10000, StatusExceeds},
		{"past hard ceiling", 35000, 10000, StatusExceedsHard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metricsFor(t, []core.Transaction{
				tx("t1", core.NewDate(2026, 4, 2), -tt.spent, "groceries"),
			}, asOf)
			action := &core.Action{
				Kind:     "evaluate_purchase",
				Amount:   core.Money{Cents: tt.action},
				Category: "groceries",
				Date:     asOf,
			}

			result, err := EvaluateConstraints(m, budgets, action, conservativeCfg())
			if err != nil {
				t.Fatalf("EvaluateConstraints: %v", err)
			}
			if len(result.Budgets) != 1 {
				t.Fatalf("expected one finding, got %d", len(result.Budgets))
			}
			if got := result.Budgets[0].Status; got != tt.want {
				t.Errorf("status = %s, want %s (projected %d against limit 40000)",
					got, tt.want, result.Budgets[0].Projected.Cents)
			}
		})
	}
}

func TestSensitivityWidensHardMargin(t *testing.T) {
	asOf := core.NewDate(2026, 4, 15)
	budgets := []core.Budget{{
		Category:      "groceries",
		Period:        core.Monthly,
		Limit:         core.Money{Cents: 40000},
		EffectiveFrom: core.NewDate(2026, 1, 1),
	}}
	// Projected 46000: past the conservative ceiling (44000) but inside
	// the aggressive one (50000).
	m := metricsFor(t, []core.Transaction{
		tx("t1", core.NewDate(2026, 4, 2), -36000, "groceries"),
	}, asOf)
	action := &core.Action{Kind: "evaluate_purchase", Amount: core.Money{Cents: 10000}, Category: "groceries", Date: asOf}

	conservative, err := EvaluateConstraints(m, budgets, action, EvaluatorConfig{Sensitivity: SensitivityConservative})
	if err != nil {
		t.Fatal(err)
	}
	aggressive, err := EvaluateConstraints(m, budgets, action, EvaluatorConfig{Sensitivity: SensitivityAggressive})
	if err != nil {
		t.Fatal(err)
	}

	if conservative.Budgets[0].Status != StatusExceedsHard {
		t.Errorf("conservative status = %s, want exceeds_hard", conservative.Budgets[0].Status)
	}
	if aggressive.Budgets[0].Status != StatusExceeds {
		t.Errorf("aggressive status = %s, want exceeds", aggressive.Budgets[0].Status)
	}
}

func TestSavingsRateFloor(t *testing.T) {
	asOf := core.NewDate(2026, 4, 15)
	cfg := EvaluatorConfig{Sensitivity: SensitivityConservative, SavingsRateTarget: 0.20}

	t.Run("soft breach just under the floor", func(t *testing.T) {
		m := metricsFor(t, []core.Transaction{
			tx("in", core.NewDate(2026, 4, 1), 500000, "salary"),
			tx("out", core.NewDate(2026, 4, 5), -400000, "rent"),
		}, asOf)
		action := &core.Action{Kind: "evaluate_purchase", Amount: core.Money{Cents: 8000}, Category: "leisure", Date: asOf}

		result, err := EvaluateConstraints(m, nil, action, cfg)
		if err != nil {
			t.Fatal(err)
		}
		if result.Savings == nil {
			t.Fatal("expected a savings finding")
		}
		if math.Abs(result.Savings.Before.Value-0.2000) > 1e-9 {
			t.Errorf("before = %v, want 0.2000", result.Savings.Before.Value)
		}
		if math.Abs(result.Savings.After.Value-0.1840) > 1e-9 {
			t.Errorf("after = %v, want 0.1840", result.Savings.After.Value)
		}
		if result.Savings.Status != StatusExceeds {
			t.Errorf("status = %s, want exceeds", result.Savings.Status)
		}
		if !result.HasSoftBreach() || result.HasHardBreach() {
			t.Error("a dip under the floor within the margin is a soft breach only")
		}
	})

	t.Run("hard breach below the hard floor", func(t *testing.T) {
		m := metricsFor(t, []core.Transaction{
			tx("in", core.NewDate(2026, 4, 1), 500000, "salary"),
			tx("out", core.NewDate(2026, 4, 5), -400000, "rent"),
		}, asOf)
		// After: (500000 - 460000) / 500000 = 0.08, under the 0.10 hard floor.
		action := &core.Action{Kind: "evaluate_purchase", Amount: core.Money{Cents: 60000}, Category: "leisure", Date: asOf}

		result, err := EvaluateConstraints(m, nil, action, cfg)
		if err != nil {
			t.Fatal(err)
		}
		if result.Savings.Status != StatusExceedsHard {
			t.Errorf("status = %s, want exceeds_hard", result.Savings.Status)
		}
	})

	t.Run("undefined rate never breaches", func(t *testing.T) {
		m := metricsFor(t, []core.Transaction{
			tx("out", core.NewDate(2026, 4, 5), -400000, "rent"),
		}, asOf)
		action := &core.Action{Kind: "evaluate_purchase", Amount: core.Money{Cents: 8000}, Category: "leisure", Date: asOf}

		result, err := EvaluateConstraints(m, nil, action, cfg)
		if err != nil {
			t.Fatal(err)
		}
		if result.Savings.Status != StatusWithin {
			t.Errorf("status = %s, want within for an undefined rate", result.Savings.Status)
		}
		if result.Savings.After.Defined {
			t.Error("after-rate must stay undefined with zero income")
		}
	})
}

func TestActiveBudgetTieBreak(t *testing.T) {
	asOf := core.NewDate(2026, 4, 15)
	m := metricsFor(t, nil, asOf)

	t.Run("latest effective date wins", func(t *testing.T) {
		budgets := []core.Budget{
			{Category: "groceries", Period: core.Monthly, Limit: core.Money{Cents: 30000}, EffectiveFrom: core.NewDate(2026, 1, 1)},
			{Category: "groceries", Period: core.Monthly, Limit: core.Money{Cents: 45000}, EffectiveFrom: core.NewDate(2026, 3, 1)},
			// Not yet effective as of April 15.
			{Category: "groceries", Period: core.Monthly, Limit: core.Money{Cents: 60000}, EffectiveFrom: core.NewDate(2026, 6, 1)},
		}
		result, err := EvaluateConstraints(m, budgets, nil, conservativeCfg())
		if err != nil {
			t.Fatal(err)
		}
		if len(result.Budgets) != 1 {
			t.Fatalf("expected one active budget, got %d", len(result.Budgets))
		}
		if result.Budgets[0].Limit.Cents != 45000 {
			t.Errorf("active limit = %d, want 45000", result.Budgets[0].Limit.Cents)
		}
	})

	t.Run("same date different limit conflicts", func(t *testing.T) {
		budgets := []core.Budget{
			{Category: "groceries", Period: core.Monthly, Limit: core.Money{Cents: 30000}, EffectiveFrom: core.NewDate(2026, 1, 1)},
			{Category: "groceries", Period: core.Monthly, Limit: core.Money{Cents: 50000}, EffectiveFrom: core.NewDate(2026, 1, 1)},
		}
		_, err := EvaluateConstraints(m, budgets, nil, conservativeCfg())
		if !errors.Is(err, core.ErrConfigConflict) {
			t.Errorf("expected ErrConfigConflict, got %v", err)
		}
	})
}

func TestPeriodNormalization(t *testing.T) {
	asOf := core.NewDate(2026, 4, 15)
	m := metricsFor(t, nil, asOf)

	budgets := []core.Budget{
		{Category: "coffee", Period: core.Weekly, Limit: core.Money{Cents: 10000}, EffectiveFrom: core.NewDate(2026, 1, 1)},
		{Category: "insurance", Period: core.Yearly, Limit: core.Money{Cents: 120000}, EffectiveFrom: core.NewDate(2026, 1, 1)},
	}
	result, err := EvaluateConstraints(m, budgets, nil, conservativeCfg())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Budgets) != 2 {
		t.Fatalf("expected two findings, got %d", len(result.Budgets))
	}
	// Findings are sorted by category.
	if got := result.Budgets[0].Limit.Cents; got != 43333 {
		t.Errorf("weekly 10000 normalizes to %d monthly cents, want 43333", got)
	}
	if got := result.Budgets[1].Limit.Cents; got != 10000 {
		t.Errorf("yearly 120000 normalizes to %d monthly cents, want 10000", got)
	}
}

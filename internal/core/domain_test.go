package core

import (
	"errors"
	"testing"
)

func validTransaction() Transaction {
	return Transaction{
		ID:         "t1",
		Date:       NewDate(2026, 3, 2),
		Amount:     Money{Cents: -8000},
		Merchant:   "bookshop",
		Category:   "leisure",
		Confidence: 0.9,
	}
}

func TestTransactionValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr error
	}{
		{"valid", func(*Transaction) {}, nil},
		{"empty id", func(tr *Transaction) { tr.ID = " " }, ErrEmptyID},
		{"zero date", func(tr *Transaction) { tr.Date = Date{} }, ErrInvalidDate},
		{"zero amount", func(tr *Transaction) { tr.Amount = Money{} }, ErrInvalidAmount},
		{"empty category", func(tr *Transaction) { tr.Category = "" }, ErrEmptyCategory},
		{"confidence below range", func(tr *Transaction) { tr.Confidence = -0.1 }, ErrBadConfidence},
		{"confidence above range", func(tr *Transaction) { tr.Confidence = 1.5 }, ErrBadConfidence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := validTransaction()
			tt.mutate(&tr)
			err := tr.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBudgetValidate(t *testing.T) {
	valid := Budget{
		Category:      "groceries",
		Period:        Monthly,
		Limit:         Money{Cents: 40000},
		EffectiveFrom: NewDate(2026, 1, 1),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid budget rejected: %v", err)
	}

	b := valid
	b.Period = "quarterly"
	if !errors.Is(b.Validate(), ErrInvalidPeriod) {
		t.Error("expected ErrInvalidPeriod for unknown period")
	}

	b = valid
	b.Limit = Money{Cents: 0}
	if !errors.Is(b.Validate(), ErrNonPositiveLimit) {
		t.Error("expected ErrNonPositiveLimit for zero limit")
	}
}

func TestGoalValidate(t *testing.T) {
	valid := Goal{
		ID:         "g1",
		Name:       "Trip",
		Target:     Money{Cents: 120000},
		TargetDate: NewDate(2026, 6, 1),
		Progress:   Money{Cents: 60000},
		Priority:   1,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid goal rejected: %v", err)
	}

	g := valid
	g.Name = ""
	if !errors.Is(g.Validate(), ErrEmptyName) {
		t.Error("expected ErrEmptyName")
	}

	g = valid
	g.Progress = Money{Cents: -1}
	if !errors.Is(g.Validate(), ErrInvalidAmount) {
		t.Error("expected ErrInvalidAmount for negative progress")
	}
}

func TestDateHelpers(t *testing.T) {
	d := NewDate(2026, 1, 31)

	if !d.SameMonth(NewDate(2026, 1, 1)) {
		t.Error("dates in January 2026 should share the month")
	}
	if d.SameMonth(NewDate(2025, 1, 31)) {
		t.Error("same month in different years should not match")
	}
	if got := d.AddMonths(1); got.Month() != 3 {
		// Jan 31 + 1 month normalizes into March, time.AddDate semantics.
		t.Errorf("AddMonths(1) from Jan 31 = %v, want March", got)
	}
}

func TestAlertSeverityOrdering(t *testing.T) {
	if !(AlertSeverityFor(AlertGoalAtRisk) > AlertSeverityFor(AlertThresholdExceeded)) {
		t.Error("goal-at-risk must outrank threshold-exceeded")
	}
	if !(AlertSeverityFor(AlertThresholdExceeded) > AlertSeverityFor(AlertUpcomingRecurring)) {
		t.Error("threshold-exceeded must outrank upcoming-recurring-payment")
	}
}

// Package intent defines the closed structured-intent contract and
// the router that dispatches validated intents to the engine entry
// points. It is the only package touching the external boundary:
// anything outside the closed kind set, or missing a required field,
// is rejected here before any state is read.
package intent

import (
	"fmt"
	"time"

	"advisor/internal/core"
)

// Kind is one of the closed set of user-triggerable operations.
type Kind string

const (
	KindEvaluatePurchase   Kind = "evaluate_purchase"
	KindAddTransaction     Kind = "add_transaction"
	KindGetSpendingSummary Kind = "get_spending_summary"
	KindGetGoalStatus      Kind = "get_goal_status"
	KindSetBudget          Kind = "set_budget"
	KindCreateGoal         Kind = "create_goal"
)

// requiredFields is the per-kind validation table. A kind absent from
// this table is outside the closed set.
var requiredFields = map[Kind][]string{
	KindEvaluatePurchase:   {"amount", "category", "date"},
	KindAddTransaction:     {"amount", "category", "date"},
	KindGetSpendingSummary: {},
	KindGetGoalStatus:      {},
	KindSetBudget:          {"category", "period", "limit"},
	KindCreateGoal:         {"name", "target", "target_date"},
}

// Alternative is a labeled hypothetical supplied alongside an
// evaluate_purchase intent for scenario comparison.
type Alternative struct {
	Label    string `json:"label"`
	Amount   string `json:"amount"`
	Category string `json:"category,omitempty"`
	Date     string `json:"date,omitempty"`
}

// Intent is the structured record consumed from the language
// interface. Amounts are decimal strings, dates are 2006-01-02.
// Fields irrelevant to a kind are ignored, never errors.
type Intent struct {
	Kind Kind `json:"kind"`

	// evaluate_purchase / add_transaction
	Amount       string        `json:"amount,omitempty"`
	Category     string        `json:"category,omitempty"`
	Date         string        `json:"date,omitempty"`
	Merchant     string        `json:"merchant,omitempty"`
	Recurring    bool          `json:"recurring,omitempty"`
	Confidence   *float64      `json:"confidence,omitempty"`
	ID           string        `json:"id,omitempty"`
	Alternatives []Alternative `json:"alternatives,omitempty"`

	// get_spending_summary
	Year  int `json:"year,omitempty"`
	Month int `json:"month,omitempty"`

	// get_goal_status
	GoalID string `json:"goal_id,omitempty"`

	// set_budget
	Period        string `json:"period,omitempty"`
	Limit         string `json:"limit,omitempty"`
	EffectiveFrom string `json:"effective_from,omitempty"`

	// create_goal
	Name       string `json:"name,omitempty"`
	Target     string `json:"target,omitempty"`
	TargetDate string `json:"target_date,omitempty"`
	Priority   int    `json:"priority,omitempty"`
}

// Validate hard-rejects an unknown kind and reports the first missing
// required field for a known one. It never guesses a missing field.
func (in Intent) Validate() error {
	required, ok := requiredFields[in.Kind]
	if !ok {
		return fmt.Errorf("%w: %q", core.ErrInvalidIntent, in.Kind)
	}
	for _, field := range required {
		if in.fieldValue(field) == "" {
			return &core.MissingFieldError{Kind: string(in.Kind), Field: field}
		}
	}
	return nil
}

func (in Intent) fieldValue(field string) string {
	switch field {
	case "amount":
		return in.Amount
	case "category":
		return in.Category
	case "date":
		return in.Date
	case "period":
		return in.Period
	case "limit":
		return in.Limit
	case "name":
		return in.Name
	case "target":
		return in.Target
	case "target_date":
		return in.TargetDate
	default:
		return ""
	}
}

// parseAmount parses a decimal field into cents. An unparseable value
// is treated as missing: the router asks for clarification instead of
// guessing.
func parseAmount(kind Kind, field, value string) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(value)
	if err != nil {
		return core.Money{}, &core.MissingFieldError{Kind: string(kind), Field: field}
	}
	return core.Money{Cents: cents}, nil
}

func parseDate(kind Kind, field, value string) (core.Date, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return core.Date{}, &core.MissingFieldError{Kind: string(kind), Field: field}
	}
	return core.DateOf(t), nil
}

func parseOptionalDate(kind Kind, field, value string, fallback core.Date) (core.Date, error) {
	if value == "" {
		return fallback, nil
	}
	return parseDate(kind, field, value)
}

func parsePriority(v int) int {
	if v <= 0 {
		return 1
	}
	return v
}

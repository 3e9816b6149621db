package intent

import (
	"context"

	"advisor/internal/core"
	"advisor/internal/engine"
)

type (
	// EvaluatePurchaseRequest is a validated evaluate_purchase intent.
	EvaluatePurchaseRequest struct {
		Action       core.Action
		Alternatives []engine.Scenario
	}

	// AddTransactionRequest is a validated add_transaction intent.
	AddTransactionRequest struct {
		Transaction core.Transaction
	}

	// SummaryRequest selects the month for get_spending_summary; a
	// zero Year/Month means the current month.
	SummaryRequest struct {
		Year  int
		Month int
	}

	// GoalStatusRequest narrows get_goal_status to one goal when
	// GoalID is set.
	GoalStatusRequest struct {
		GoalID string
	}

	// SetBudgetRequest is a validated set_budget intent.
	SetBudgetRequest struct {
		Budget core.Budget
	}

	// CreateGoalRequest is a validated create_goal intent.
	CreateGoalRequest struct {
		Goal core.Goal
	}
)

// Service is the set of engine entry points the router dispatches to.
type Service interface {
	EvaluatePurchase(ctx context.Context, userID string, req EvaluatePurchaseRequest) (core.Decision, []engine.ScenarioResult, error)
	AddTransaction(ctx context.Context, userID string, req AddTransactionRequest) (string, error)
	SpendingSummary(ctx context.Context, userID string, req SummaryRequest) (core.SpendingSummary, error)
	GoalStatus(ctx context.Context, userID string, req GoalStatusRequest) ([]core.GoalStatus, error)
	SetBudget(ctx context.Context, userID string, req SetBudgetRequest) error
	CreateGoal(ctx context.Context, userID string, req CreateGoalRequest) (string, error)
}

// Response is the tagged result of a dispatched intent; exactly the
// fields relevant to the kind are populated.
type Response struct {
	Kind      Kind                    `json:"kind"`
	Decision  *core.Decision          `json:"decision,omitempty"`
	Scenarios []engine.ScenarioResult `json:"scenarios,omitempty"`
	Ref       string                  `json:"ref,omitempty"`
	Summary   *core.SpendingSummary   `json:"summary,omitempty"`
	Goals     []core.GoalStatus       `json:"goals,omitempty"`
}

// Router validates structured intents against the closed set and
// dispatches them. It never touches state itself.
type Router struct {
	service Service
	now     func() core.Date
}

func NewRouter(service Service, now func() core.Date) *Router {
	return &Router{service: service, now: now}
}

// Dispatch validates the intent and calls the matching entry point.
// Validation failures return before any state access: an unknown kind
// as core.ErrInvalidIntent, a missing or unparseable required field
// as *core.MissingFieldError (a clarification, not a crash).
func (r *Router) Dispatch(ctx context.Context, userID string, in Intent) (Response, error) {
	if err := in.Validate(); err != nil {
		return Response{}, err
	}

	// Closed tagged dispatch: each kind has an explicit arm, so an
	// unsupported kind can never fall through silently.
	switch in.Kind {
	case KindEvaluatePurchase:
		return r.evaluatePurchase(ctx, userID, in)
	case KindAddTransaction:
		return r.addTransaction(ctx, userID, in)
	case KindGetSpendingSummary:
		resp, err := r.service.SpendingSummary(ctx, userID, SummaryRequest{Year: in.Year, Month: in.Month})
		if err != nil {
			return Response{}, err
		}
		return Response{Kind: in.Kind, Summary: &resp}, nil
	case KindGetGoalStatus:
		goals, err := r.service.GoalStatus(ctx, userID, GoalStatusRequest{GoalID: in.GoalID})
		if err != nil {
			return Response{}, err
		}
		return Response{Kind: in.Kind, Goals: goals}, nil
	case KindSetBudget:
		return r.setBudget(ctx, userID, in)
	case KindCreateGoal:
		return r.createGoal(ctx, userID, in)
	}
	// Unreachable: Validate rejected unknown kinds already.
	return Response{}, core.ErrInvalidIntent
}

func (r *Router) evaluatePurchase(ctx context.Context, userID string, in Intent) (Response, error) {
	amount, err := parseAmount(in.Kind, "amount", in.Amount)
	if err != nil {
		return Response{}, err
	}
	date, err := parseDate(in.Kind, "date", in.Date)
	if err != nil {
		return Response{}, err
	}
	req := EvaluatePurchaseRequest{
		Action: core.Action{
			Kind:     string(in.Kind),
			Amount:   amount,
			Category: in.Category,
			Date:     date,
		},
	}
	for _, alt := range in.Alternatives {
		altAmount, err := parseAmount(in.Kind, "alternatives.amount", alt.Amount)
		if err != nil {
			return Response{}, err
		}
		altDate, err := parseOptionalDate(in.Kind, "alternatives.date", alt.Date, date)
		if err != nil {
			return Response{}, err
		}
		category := alt.Category
		if category == "" {
			category = in.Category
		}
		req.Alternatives = append(req.Alternatives, engine.Scenario{
			Label: alt.Label,
			Action: core.Action{
				Kind:     string(in.Kind),
				Amount:   altAmount,
				Category: category,
				Date:     altDate,
			},
		})
	}

	decision, scenarios, err := r.service.EvaluatePurchase(ctx, userID, req)
	if err != nil {
		return Response{}, err
	}
	return Response{Kind: in.Kind, Decision: &decision, Scenarios: scenarios}, nil
}

func (r *Router) addTransaction(ctx context.Context, userID string, in Intent) (Response, error) {
	amount, err := parseAmount(in.Kind, "amount", in.Amount)
	if err != nil {
		return Response{}, err
	}
	date, err := parseDate(in.Kind, "date", in.Date)
	if err != nil {
		return Response{}, err
	}
	confidence := 1.0 // manual entries are fully trusted
	if in.Confidence != nil {
		confidence = *in.Confidence
	}
	ref, err := r.service.AddTransaction(ctx, userID, AddTransactionRequest{
		Transaction: core.Transaction{
			ID:         in.ID,
			Date:       date,
			Amount:     amount,
			Merchant:   in.Merchant,
			Category:   in.Category,
			Recurring:  in.Recurring,
			Confidence: confidence,
		},
	})
	if err != nil {
		return Response{}, err
	}
	return Response{Kind: in.Kind, Ref: ref}, nil
}

func (r *Router) setBudget(ctx context.Context, userID string, in Intent) (Response, error) {
	limit, err := parseAmount(in.Kind, "limit", in.Limit)
	if err != nil {
		return Response{}, err
	}
	period := core.Period(in.Period)
	if period.Validate() != nil {
		return Response{}, &core.MissingFieldError{Kind: string(in.Kind), Field: "period"}
	}
	effective, err := parseOptionalDate(in.Kind, "effective_from", in.EffectiveFrom, r.now())
	if err != nil {
		return Response{}, err
	}
	err = r.service.SetBudget(ctx, userID, SetBudgetRequest{
		Budget: core.Budget{
			Category:      in.Category,
			Period:        period,
			Limit:         limit,
			EffectiveFrom: effective,
		},
	})
	if err != nil {
		return Response{}, err
	}
	return Response{Kind: in.Kind, Ref: in.Category}, nil
}

func (r *Router) createGoal(ctx context.Context, userID string, in Intent) (Response, error) {
	target, err := parseAmount(in.Kind, "target", in.Target)
	if err != nil {
		return Response{}, err
	}
	targetDate, err := parseDate(in.Kind, "target_date", in.TargetDate)
	if err != nil {
		return Response{}, err
	}
	ref, err := r.service.CreateGoal(ctx, userID, CreateGoalRequest{
		Goal: core.Goal{
			Name:       in.Name,
			Target:     target,
			TargetDate: targetDate,
			Priority:   parsePriority(in.Priority),
		},
	})
	if err != nil {
		return Response{}, err
	}
	return Response{Kind: in.Kind, Ref: ref}, nil
}

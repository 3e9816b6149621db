// Package services orchestrates the boundary around the pure engine:
// snapshot reads, evaluation, decision persistence and event
// publication. All I/O happens here; the engine packages stay free of
// it.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"advisor/internal/cache"
	"advisor/internal/core"
	"advisor/internal/dedup"
	"advisor/internal/engine"
	"advisor/internal/intent"
	applog "advisor/internal/log"
	"advisor/internal/storage"
)

// Store is the state store boundary the service consumes. The
// SQLite repository implements it; tests substitute memory fakes.
type Store interface {
	ReadState(ctx context.Context, userID string, asOf core.Date) (storage.Snapshot, error)
	InsertTransaction(ctx context.Context, userID string, t core.Transaction) error
	UpsertBudget(ctx context.Context, userID string, b core.Budget) error
	CreateGoal(ctx context.Context, userID string, g core.Goal) error
	AppendDecision(ctx context.Context, userID string, d core.Decision, snapshotVersion int64) error
	RecentAlertKeys(ctx context.Context, userID string, cooldown time.Duration) (map[string]struct{}, error)
	MarkAlertKeys(ctx context.Context, userID string, keys []string) error
}

// Publisher emits decision events for downstream consumers. A nil
// publisher disables publication.
type Publisher interface {
	PublishDecisionRecorded(ctx context.Context, userID string, d core.Decision) error
}

// Config carries the engine tuning the service applies on every
// evaluation. Sensitivity must be set explicitly.
type Config struct {
	Metrics       engine.MetricsConfig
	Evaluator     engine.EvaluatorConfig
	AlertCooldown time.Duration
	LookaheadDays int
	SnapshotCache int
	SnapshotTTL   time.Duration
}

// AdvisorService implements intent.Service.
type AdvisorService struct {
	store     Store
	publisher Publisher
	keys      dedup.KeyStore // optional; nil falls back to store keys
	cfg       Config

	snapshots *cache.LRUCache[engine.FinancialState]

	now   func() time.Time
	newID func() string
}

var _ intent.Service = (*AdvisorService)(nil)

func NewAdvisorService(store Store, publisher Publisher, keys dedup.KeyStore, cfg Config) *AdvisorService {
	size := cfg.SnapshotCache
	if size <= 0 {
		size = 128
	}
	ttl := cfg.SnapshotTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AdvisorService{
		store:     store,
		publisher: publisher,
		keys:      keys,
		cfg:       cfg,
		snapshots: cache.NewLRUCache[engine.FinancialState](size, ttl),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// EvaluatePurchase runs the full decision flow for a proposed
// purchase: snapshot, metrics, constraints, goal impacts, alerts,
// composition, audit append and event publication. The appended
// decision is version-checked against the snapshot it was computed
// from; a concurrent write surfaces core.ErrStaleState for retry.
func (s *AdvisorService) EvaluatePurchase(ctx context.Context, userID string, req intent.EvaluatePurchaseRequest) (core.Decision, []engine.ScenarioResult, error) {
	action := req.Action
	if err := action.Validate(); err != nil {
		return core.Decision{}, nil, fmt.Errorf("validate action: %w", err)
	}

	snap, state, err := s.snapshot(ctx, userID, action.Date)
	if err != nil {
		return core.Decision{}, nil, err
	}
	metrics := engine.ComputeMetrics(state, s.cfg.Metrics)

	constraints, err := engine.EvaluateConstraints(metrics, snap.Budgets, &action, s.cfg.Evaluator)
	if err != nil {
		return core.Decision{}, nil, err
	}
	impacts := engine.GoalImpacts(metrics, action, snap.Goals)

	recent, err := s.recentKeys(ctx, userID)
	if err != nil {
		return core.Decision{}, nil, err
	}
	alerts, err := engine.ScanAlerts(state, metrics, snap.Budgets, snap.Goals, engine.AlertOptions{
		LookaheadDays: s.cfg.LookaheadDays,
		RecentKeys:    recent,
	})
	if err != nil {
		return core.Decision{}, nil, err
	}

	decision := engine.Compose(s.newID(), s.now().UTC(), action, constraints, impacts, alerts)

	if err := s.store.AppendDecision(ctx, userID, decision, snap.Version); err != nil {
		return core.Decision{}, nil, fmt.Errorf("append decision: %w", err)
	}
	s.markAlertKeys(ctx, userID, decision.Alerts)
	s.publishDecision(ctx, userID, decision)

	var scenarios []engine.ScenarioResult
	if len(req.Alternatives) > 0 {
		scenarios, err = engine.CompareScenarios(metrics, snap.Budgets, snap.Goals,
			engine.Scenario{Label: "base", Action: action}, req.Alternatives, s.cfg.Evaluator)
		if err != nil {
			return core.Decision{}, nil, err
		}
	}

	slog.InfoContext(ctx, "Purchase evaluated",
		applog.FieldUserID, userID,
		applog.FieldDecisionID, decision.ID,
		applog.FieldVerdict, decision.Verdict,
		applog.FieldVersion, snap.Version,
		"alerts", len(decision.Alerts))
	return decision, scenarios, nil
}

// AddTransaction appends one transaction to the user's log. An id is
// assigned when absent; re-submitting an existing id is a no-op.
func (s *AdvisorService) AddTransaction(ctx context.Context, userID string, req intent.AddTransactionRequest) (string, error) {
	t := req.Transaction
	if t.ID == "" {
		t.ID = s.newID()
	}
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("validate transaction: %w", err)
	}
	if err := s.store.InsertTransaction(ctx, userID, t); err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}
	return t.ID, nil
}

// SpendingSummary derives the summary for the requested month, the
// current one when unset.
func (s *AdvisorService) SpendingSummary(ctx context.Context, userID string, req intent.SummaryRequest) (core.SpendingSummary, error) {
	from, to := s.summaryRange(req)

	snap, state, err := s.snapshot(ctx, userID, to)
	if err != nil {
		return core.SpendingSummary{}, err
	}
	metrics := engine.ComputeMetrics(state, s.cfg.Metrics)

	summary := core.SpendingSummary{
		From:         from,
		To:           to,
		TotalIncome:  metrics.Income,
		TotalExpense: metrics.Expense,
		Savings:      metrics.Income.Sub(metrics.Expense),
		ByCategory:   metrics.CategoryTotals,
	}
	if metrics.SavingsRate.Defined {
		rate := metrics.SavingsRate.Value
		summary.SavingsRate = &rate
	}

	// Budget statuses from an action-free constraint pass.
	constraints, err := engine.EvaluateConstraints(metrics, snap.Budgets, nil, s.cfg.Evaluator)
	if err != nil {
		return core.SpendingSummary{}, err
	}
	for _, f := range constraints.Budgets {
		remaining := f.Limit.Sub(f.Spent)
		summary.BudgetStatuses = append(summary.BudgetStatuses, core.BudgetStatus{
			Category:  f.Category,
			Limit:     f.Limit,
			Spent:     f.Spent,
			Remaining: remaining,
			Overspent: remaining.Cents <= 0,
		})
	}
	return summary, nil
}

// GoalStatus reports each goal's standing, restricted to one goal
// when requested.
func (s *AdvisorService) GoalStatus(ctx context.Context, userID string, req intent.GoalStatusRequest) ([]core.GoalStatus, error) {
	asOf := core.DateOf(s.now())
	snap, state, err := s.snapshot(ctx, userID, asOf)
	if err != nil {
		return nil, err
	}
	metrics := engine.ComputeMetrics(state, s.cfg.Metrics)

	var statuses []core.GoalStatus
	for _, g := range snap.Goals {
		if req.GoalID != "" && g.ID != req.GoalID {
			continue
		}
		p := engine.ProjectGoal(metrics, g)
		statuses = append(statuses, core.GoalStatus{
			Goal:                g,
			Remaining:           p.Remaining,
			MonthsToTarget:      p.MonthsToTarget,
			RequiredMonthly:     p.RequiredMonthly,
			OnTrack:             p.OnTrack,
			ProjectedCompletion: p.ProjectedCompletion,
		})
	}
	return statuses, nil
}

// SetBudget stores a budget limit. Budgets are only ever mutated
// through this explicit operation.
func (s *AdvisorService) SetBudget(ctx context.Context, userID string, req intent.SetBudgetRequest) error {
	if err := req.Budget.Validate(); err != nil {
		return fmt.Errorf("validate budget: %w", err)
	}
	if err := s.store.UpsertBudget(ctx, userID, req.Budget); err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}
	return nil
}

// CreateGoal stores a new goal with a unique priority rank.
func (s *AdvisorService) CreateGoal(ctx context.Context, userID string, req intent.CreateGoalRequest) (string, error) {
	g := req.Goal
	if g.ID == "" {
		g.ID = s.newID()
	}
	if err := g.Validate(); err != nil {
		return "", fmt.Errorf("validate goal: %w", err)
	}
	if err := s.store.CreateGoal(ctx, userID, g); err != nil {
		return "", fmt.Errorf("create goal: %w", err)
	}
	return g.ID, nil
}

// snapshot reads the user's state and derives the financial state,
// reusing a cached derivation when the version token still matches.
func (s *AdvisorService) snapshot(ctx context.Context, userID string, asOf core.Date) (storage.Snapshot, engine.FinancialState, error) {
	snap, err := s.store.ReadState(ctx, userID, asOf)
	if err != nil {
		return storage.Snapshot{}, engine.FinancialState{}, fmt.Errorf("read state: %w", err)
	}

	key := fmt.Sprintf("%s:%d:%s", userID, snap.Version, asOf.Format("2006-01-02"))
	if state, ok := s.snapshots.Get(key); ok {
		return snap, state, nil
	}
	state := engine.Build(snap.Transactions, snap.Budgets, snap.Goals, asOf)
	s.snapshots.Set(key, state)
	return snap, state, nil
}

func (s *AdvisorService) recentKeys(ctx context.Context, userID string) (map[string]struct{}, error) {
	if s.keys != nil {
		recent, err := s.keys.Recent(ctx, userID, s.cfg.AlertCooldown)
		if err != nil {
			return nil, fmt.Errorf("read dedup keys: %w", err)
		}
		return recent, nil
	}
	recent, err := s.store.RecentAlertKeys(ctx, userID, s.cfg.AlertCooldown)
	if err != nil {
		return nil, fmt.Errorf("read alert keys: %w", err)
	}
	return recent, nil
}

// markAlertKeys records the dedup keys of the alerts attached to a
// committed decision, so a repeated evaluation inside the cooldown
// window does not re-emit them. The decision is already durable; a
// marking failure only risks one duplicate alert, so it is logged and
// not surfaced.
func (s *AdvisorService) markAlertKeys(ctx context.Context, userID string, alerts []core.Alert) {
	if len(alerts) == 0 {
		return
	}
	keys := make([]string, len(alerts))
	for i, a := range alerts {
		keys[i] = a.DedupKey
	}

	var err error
	if s.keys != nil {
		err = s.keys.Mark(ctx, userID, keys, s.cfg.AlertCooldown)
	} else {
		err = s.store.MarkAlertKeys(ctx, userID, keys)
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to mark alert keys",
			applog.FieldUserID, userID, applog.FieldError, err)
	}
}

func (s *AdvisorService) publishDecision(ctx context.Context, userID string, d core.Decision) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishDecisionRecorded(ctx, userID, d); err != nil {
		// The decision is already durable; publication is best effort.
		slog.ErrorContext(ctx, "Failed to publish decision recorded message",
			applog.FieldUserID, userID, applog.FieldDecisionID, d.ID, applog.FieldError, err)
	}
}

func (s *AdvisorService) summaryRange(req intent.SummaryRequest) (core.Date, core.Date) {
	now := s.now().UTC()
	year, month := req.Year, req.Month
	if year == 0 || month == 0 {
		year, month = now.Year(), int(now.Month())
	}
	from := core.NewDate(year, month, 1)
	to := core.DateOf(from.AddDate(0, 1, -1))
	if to.After(now) {
		to = core.DateOf(now)
	}
	return from, to
}

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"advisor/internal/core"
)

func testRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "advisor.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleTransaction(id string) core.Transaction {
	return core.Transaction{
		ID:         id,
		Date:       core.NewDate(2026, 4, 10),
		Amount:     core.Money{Cents: -1250},
		Merchant:   "corner shop",
		Category:   "groceries",
		Confidence: 1,
	}
}

func TestInsertTransactionAndReadState(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	if err := repo.InsertTransaction(ctx, "u1", sampleTransaction("t1")); err != nil {
		t.Fatal(err)
	}

	snap, err := repo.ReadState(ctx, "u1", core.NewDate(2026, 4, 30))
	if err != nil {
		t.Fatal(err)
	}
	if snap.Version != 1 {
		t.Errorf("version = %d, want 1 after one write", snap.Version)
	}
	if len(snap.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(snap.Transactions))
	}
	got := snap.Transactions[0]
	if got.ID != "t1" || got.Amount.Cents != -1250 || !got.Date.Equal(core.NewDate(2026, 4, 10).Time) {
		t.Errorf("round-tripped transaction = %+v", got)
	}
}

func TestInsertTransactionIdempotent(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	if err := repo.InsertTransaction(ctx, "u1", sampleTransaction("t1")); err != nil {
		t.Fatal(err)
	}
	if err := repo.InsertTransaction(ctx, "u1", sampleTransaction("t1")); err != nil {
		t.Fatal(err)
	}

	snap, err := repo.ReadState(ctx, "u1", core.NewDate(2026, 4, 30))
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Transactions) != 1 {
		t.Errorf("duplicate id must not insert twice, got %d rows", len(snap.Transactions))
	}
	if snap.Version != 1 {
		t.Errorf("a no-op insert must not bump the version, got %d", snap.Version)
	}
}

func TestInsertTransactionIsolatedPerUser(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	// Client-supplied ids only have to be unique within a user; the
	// same id submitted by two users is two independent rows.
	if err := repo.InsertTransaction(ctx, "alice", sampleTransaction("shared-id")); err != nil {
		t.Fatal(err)
	}
	if err := repo.InsertTransaction(ctx, "bob", sampleTransaction("shared-id")); err != nil {
		t.Fatal(err)
	}

	for _, user := range []string{"alice", "bob"} {
		snap, err := repo.ReadState(ctx, user, core.NewDate(2026, 4, 30))
		if err != nil {
			t.Fatal(err)
		}
		if len(snap.Transactions) != 1 {
			t.Errorf("%s: expected 1 transaction, got %d", user, len(snap.Transactions))
		}
		if snap.Version != 1 {
			t.Errorf("%s: version = %d, want 1", user, snap.Version)
		}
	}

	// Re-submitting stays idempotent within each user.
	if err := repo.InsertTransaction(ctx, "bob", sampleTransaction("shared-id")); err != nil {
		t.Fatal(err)
	}
	snap, err := repo.ReadState(ctx, "bob", core.NewDate(2026, 4, 30))
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Transactions) != 1 || snap.Version != 1 {
		t.Errorf("duplicate within a user must stay a no-op, got %d rows at version %d",
			len(snap.Transactions), snap.Version)
	}
}

func TestReadStateExcludesFutureTransactions(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	past := sampleTransaction("past")
	future := sampleTransaction("future")
	future.Date = core.NewDate(2026, 5, 1)
	if err := repo.InsertTransaction(ctx, "u1", past); err != nil {
		t.Fatal(err)
	}
	if err := repo.InsertTransaction(ctx, "u1", future); err != nil {
		t.Fatal(err)
	}

	snap, err := repo.ReadState(ctx, "u1", core.NewDate(2026, 4, 30))
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Transactions) != 1 || snap.Transactions[0].ID != "past" {
		t.Errorf("as-of read must exclude later transactions, got %+v", snap.Transactions)
	}
}

func TestUpsertBudgetReplacesLimit(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	budget := core.Budget{
		Category:      "groceries",
		Period:        core.Monthly,
		Limit:         core.Money{Cents: 40000},
		EffectiveFrom: core.NewDate(2026, 1, 1),
	}
	if err := repo.UpsertBudget(ctx, "u1", budget); err != nil {
		t.Fatal(err)
	}
	budget.Limit = core.Money{Cents: 45000}
	if err := repo.UpsertBudget(ctx, "u1", budget); err != nil {
		t.Fatal(err)
	}

	snap, err := repo.ReadState(ctx, "u1", core.NewDate(2026, 4, 30))
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Budgets) != 1 {
		t.Fatalf("same key must not duplicate, got %d budgets", len(snap.Budgets))
	}
	if snap.Budgets[0].Limit.Cents != 45000 {
		t.Errorf("limit = %d, want the replaced 45000", snap.Budgets[0].Limit.Cents)
	}
}

func TestCreateGoalPriorityClash(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	goal := core.Goal{
		ID:         "g1",
		Name:       "Trip",
		Target:     core.Money{Cents: 120000},
		TargetDate: core.NewDate(2026, 8, 1),
		Priority:   1,
	}
	if err := repo.CreateGoal(ctx, "u1", goal); err != nil {
		t.Fatal(err)
	}

	clash := goal
	clash.ID = "g2"
	clash.Name = "Laptop"
	err := repo.CreateGoal(ctx, "u1", clash)
	if !errors.Is(err, core.ErrConfigConflict) {
		t.Errorf("got %v, want ErrConfigConflict for a taken priority", err)
	}

	// The same rank for a different user is fine.
	if err := repo.CreateGoal(ctx, "u2", clash); err != nil {
		t.Errorf("priority ranks are per user: %v", err)
	}
}

func TestAppendDecisionVersionCheck(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	if err := repo.InsertTransaction(ctx, "u1", sampleTransaction("t1")); err != nil {
		t.Fatal(err)
	}
	snap, err := repo.ReadState(ctx, "u1", core.NewDate(2026, 4, 30))
	if err != nil {
		t.Fatal(err)
	}

	decision := core.Decision{
		ID:        "d1",
		Timestamp: time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC),
		Verdict:   core.VerdictApprove,
		Justifications: []core.Justification{{
			RuleID: "constraints.none_configured", Values: map[string]string{}, Threshold: "none", Outcome: "approve",
		}},
	}
	if err := repo.AppendDecision(ctx, "u1", decision, snap.Version); err != nil {
		t.Fatal(err)
	}

	// A write after the snapshot invalidates it.
	if err := repo.InsertTransaction(ctx, "u1", sampleTransaction("t2")); err != nil {
		t.Fatal(err)
	}
	stale := decision
	stale.ID = "d2"
	err = repo.AppendDecision(ctx, "u1", stale, snap.Version)
	if !errors.Is(err, core.ErrStaleState) {
		t.Errorf("got %v, want ErrStaleState after a concurrent write", err)
	}

	decisions, err := repo.ListDecisions(ctx, "u1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(decisions) != 1 {
		t.Fatalf("only the fresh decision may land, got %d", len(decisions))
	}
	if decisions[0].ID != "d1" || decisions[0].Verdict != core.VerdictApprove {
		t.Errorf("decision round-trip = %+v", decisions[0])
	}
	if len(decisions[0].Justifications) != 1 {
		t.Error("justification chain must survive persistence")
	}
}

func TestAlertKeysRoundTrip(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	keys := []string{"threshold_exceeded:groceries:2026-04", "goal_at_risk:g1:2026-04"}
	if err := repo.MarkAlertKeys(ctx, "u1", keys); err != nil {
		t.Fatal(err)
	}
	// Marking again refreshes, never errors.
	if err := repo.MarkAlertKeys(ctx, "u1", keys[:1]); err != nil {
		t.Fatal(err)
	}

	recent, err := repo.RecentAlertKeys(ctx, "u1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent keys, got %d", len(recent))
	}

	none, err := repo.RecentAlertKeys(ctx, "u1", -time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("keys outside the window must not surface, got %d", len(none))
	}
}

func TestListUsers(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	if users, err := repo.ListUsers(ctx); err != nil || len(users) != 0 {
		t.Fatalf("fresh store: users = %v, err = %v", users, err)
	}

	if err := repo.InsertTransaction(ctx, "bravo", sampleTransaction("t1")); err != nil {
		t.Fatal(err)
	}
	tx := sampleTransaction("t2")
	if err := repo.InsertTransaction(ctx, "alpha", tx); err != nil {
		t.Fatal(err)
	}

	users, err := repo.ListUsers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 || users[0] != "alpha" || users[1] != "bravo" {
		t.Errorf("users = %v, want [alpha bravo]", users)
	}
}

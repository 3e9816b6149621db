// Package storage implements the state store boundary on SQLite: the
// per-user transaction log, budget and goal configuration, the
// append-only decision log and the fallback alert-key table. The
// engine never sees this package; it receives snapshots by value.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"advisor/internal/core"
	applog "advisor/internal/log"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

// Snapshot is one consistent read of a user's financial state inputs.
// Version is the user's state version at read time; AppendDecision
// re-checks it so an evaluation never commits against data that
// changed underneath it.
type Snapshot struct {
	Transactions []core.Transaction
	Budgets      []core.Budget
	Goals        []core.Goal
	Version      int64
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ReadState reads the user's transactions up to asOf plus budget and
// goal configuration, together with the state version token.
func (r *SQLiteRepository) ReadState(ctx context.Context, userID string, asOf core.Date) (Snapshot, error) {
	var snap Snapshot

	version, err := r.StateVersion(ctx, userID)
	if err != nil {
		return snap, err
	}
	snap.Version = version

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, amount_cents, merchant, category, recurring, confidence
		 FROM transactions WHERE user_id = ? AND date <= ? ORDER BY date, id`,
		userID, asOf.Format(dateLayout))
	if err != nil {
		return snap, fmt.Errorf("read transactions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			t         core.Transaction
			date      string
			recurring int64
		)
		if err := rows.Scan(&t.ID, &date, &t.Amount.Cents, &t.Merchant, &t.Category, &recurring, &t.Confidence); err != nil {
			return snap, fmt.Errorf("scan transaction: %w", err)
		}
		parsed, err := time.Parse(dateLayout, date)
		if err != nil {
			return snap, fmt.Errorf("parse transaction date %q: %w", date, err)
		}
		t.Date = core.DateOf(parsed)
		t.Recurring = recurring != 0
		snap.Transactions = append(snap.Transactions, t)
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("iterate transactions: %w", err)
	}

	snap.Budgets, err = r.readBudgets(ctx, userID)
	if err != nil {
		return snap, err
	}
	snap.Goals, err = r.readGoals(ctx, userID)
	if err != nil {
		return snap, err
	}
	return snap, nil
}

func (r *SQLiteRepository) readBudgets(ctx context.Context, userID string) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, period, limit_cents, effective_from
		 FROM budgets WHERE user_id = ? ORDER BY category, effective_from`, userID)
	if err != nil {
		return nil, fmt.Errorf("read budgets: %w", err)
	}
	defer rows.Close()

	var budgets []core.Budget
	for rows.Next() {
		var (
			b         core.Budget
			period    string
			effective string
		)
		if err := rows.Scan(&b.Category, &period, &b.Limit.Cents, &effective); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		b.Period = core.Period(period)
		parsed, err := time.Parse(dateLayout, effective)
		if err != nil {
			return nil, fmt.Errorf("parse budget effective date %q: %w", effective, err)
		}
		b.EffectiveFrom = core.DateOf(parsed)
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

func (r *SQLiteRepository) readGoals(ctx context.Context, userID string) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, target_cents, target_date, progress_cents, priority
		 FROM goals WHERE user_id = ? ORDER BY priority`, userID)
	if err != nil {
		return nil, fmt.Errorf("read goals: %w", err)
	}
	defer rows.Close()

	var goals []core.Goal
	for rows.Next() {
		var (
			g      core.Goal
			target string
		)
		if err := rows.Scan(&g.ID, &g.Name, &g.Target.Cents, &target, &g.Progress.Cents, &g.Priority); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		parsed, err := time.Parse(dateLayout, target)
		if err != nil {
			return nil, fmt.Errorf("parse goal target date %q: %w", target, err)
		}
		g.TargetDate = core.DateOf(parsed)
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// StateVersion returns the user's current state version token; a user
// with no writes yet is at version zero.
func (r *SQLiteRepository) StateVersion(ctx context.Context, userID string) (int64, error) {
	var version int64
	err := r.db.QueryRowContext(ctx,
		`SELECT state_version FROM users WHERE id = ?`, userID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read state version: %w", err)
	}
	return version, nil
}

// InsertTransaction appends a transaction to the user's log. Inserting
// an id the user already has is a no-op and does not bump the state
// version, making ingestion idempotent per user; the same id under
// another user is an unrelated row.
func (r *SQLiteRepository) InsertTransaction(ctx context.Context, userID string, t core.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert transaction: %w", err)
	}
	defer tx.Rollback()

	recurring := 0
	if t.Recurring {
		recurring = 1
	}
	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO transactions (id, user_id, date, amount_cents, merchant, category, recurring, confidence)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, userID, t.Date.Format(dateLayout), t.Amount.Cents, t.Merchant, t.Category, recurring, t.Confidence)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if inserted == 0 {
		slog.InfoContext(ctx, "Transaction already recorded, ignoring", "id", t.ID, applog.FieldUserID, userID)
		return tx.Commit()
	}

	if err := bumpVersion(ctx, tx, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// UpsertBudget stores a budget for (category, period, effective-from).
// Re-setting the same key replaces the limit: set_budget is an
// explicit mutation, not an evaluator side effect.
func (r *SQLiteRepository) UpsertBudget(ctx context.Context, userID string, b core.Budget) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert budget: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO budgets (user_id, category, period, limit_cents, effective_from)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, category, period, effective_from)
		 DO UPDATE SET limit_cents = excluded.limit_cents`,
		userID, b.Category, string(b.Period), b.Limit.Cents, b.EffectiveFrom.Format(dateLayout))
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}
	if err := bumpVersion(ctx, tx, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateGoal stores a goal. Priority ranks are unique per user; a
// clash surfaces core.ErrConfigConflict instead of silently reordering.
func (r *SQLiteRepository) CreateGoal(ctx context.Context, userID string, g core.Goal) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create goal: %w", err)
	}
	defer tx.Rollback()

	var taken int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM goals WHERE user_id = ? AND priority = ?`,
		userID, g.Priority).Scan(&taken)
	if err != nil {
		return fmt.Errorf("check goal priority: %w", err)
	}
	if taken > 0 {
		return fmt.Errorf("%w: goal priority %d already assigned", core.ErrConfigConflict, g.Priority)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO goals (id, user_id, name, target_cents, target_date, progress_cents, priority)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.ID, userID, g.Name, g.Target.Cents, g.TargetDate.Format(dateLayout), g.Progress.Cents, g.Priority)
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	if err := bumpVersion(ctx, tx, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// AppendDecision appends an immutable decision to the user's audit
// log after confirming the snapshot it was computed from is still
// current. A version mismatch returns core.ErrStaleState; the caller
// re-reads and retries.
func (r *SQLiteRepository) AppendDecision(ctx context.Context, userID string, d core.Decision, snapshotVersion int64) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append decision: %w", err)
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRowContext(ctx,
		`SELECT state_version FROM users WHERE id = ?`, userID).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read state version: %w", err)
	}
	if current != snapshotVersion {
		return fmt.Errorf("%w: snapshot at %d, store at %d", core.ErrStaleState, snapshotVersion, current)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO decisions (id, user_id, created_at, verdict, payload) VALUES (?, ?, ?, ?, ?)`,
		d.ID, userID, d.Timestamp.UTC().Format(time.RFC3339Nano), string(d.Verdict), string(payload))
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return tx.Commit()
}

// ListDecisions returns the most recent decisions for audit, newest
// first.
func (r *SQLiteRepository) ListDecisions(ctx context.Context, userID string, limit int) ([]core.Decision, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT payload FROM decisions WHERE user_id = ? ORDER BY created_at DESC, id LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var decisions []core.Decision
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		var d core.Decision
		if err := json.Unmarshal([]byte(payload), &d); err != nil {
			return nil, fmt.Errorf("unmarshal decision: %w", err)
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// RecentAlertKeys returns dedup keys emitted within the cooldown
// window. This is the SQLite fallback used when no Redis key store is
// configured.
func (r *SQLiteRepository) RecentAlertKeys(ctx context.Context, userID string, cooldown time.Duration) (map[string]struct{}, error) {
	cutoff := time.Now().UTC().Add(-cooldown).Format(time.RFC3339Nano)
	rows, err := r.db.QueryContext(ctx,
		`SELECT dedup_key FROM alert_keys WHERE user_id = ? AND emitted_at >= ?`,
		userID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("read alert keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan alert key: %w", err)
		}
		keys[key] = struct{}{}
	}
	return keys, rows.Err()
}

// MarkAlertKeys records dedup keys as emitted now.
func (r *SQLiteRepository) MarkAlertKeys(ctx context.Context, userID string, keys []string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, key := range keys {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO alert_keys (user_id, dedup_key, emitted_at) VALUES (?, ?, ?)
			 ON CONFLICT(user_id, dedup_key) DO UPDATE SET emitted_at = excluded.emitted_at`,
			userID, key, now)
		if err != nil {
			return fmt.Errorf("mark alert key %q: %w", key, err)
		}
	}
	return nil
}

// ListUsers returns every user id with recorded state, for the sweep
// worker.
func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

func bumpVersion(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, state_version) VALUES (?, 1)
		 ON CONFLICT(id) DO UPDATE SET state_version = state_version + 1`, userID)
	if err != nil {
		return fmt.Errorf("bump state version: %w", err)
	}
	return nil
}

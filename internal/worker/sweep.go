// Package worker runs the periodic alert sweep: every user's state is
// scanned independently, deduplicated against the cooldown key store
// and published. Users never share mutable state; each evaluation
// works on its own snapshot.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"advisor/internal/core"
	"advisor/internal/dedup"
	"advisor/internal/engine"
	applog "advisor/internal/log"
	"advisor/internal/storage"
)

// SweepStore is the storage surface the sweep needs.
type SweepStore interface {
	ListUsers(ctx context.Context) ([]string, error)
	ReadState(ctx context.Context, userID string, asOf core.Date) (storage.Snapshot, error)
	RecentAlertKeys(ctx context.Context, userID string, cooldown time.Duration) (map[string]struct{}, error)
	MarkAlertKeys(ctx context.Context, userID string, keys []string) error
}

// AlertPublisher emits raised alerts.
type AlertPublisher interface {
	PublishAlertRaised(ctx context.Context, userID string, a core.Alert) error
}

// Config tunes the sweep.
type Config struct {
	Interval      time.Duration
	Concurrency   int
	Cooldown      time.Duration
	LookaheadDays int
	Metrics       engine.MetricsConfig
}

// SweepWorker scans all users on a schedule.
type SweepWorker struct {
	store     SweepStore
	publisher AlertPublisher
	keys      dedup.KeyStore // optional; nil falls back to store keys
	cfg       Config
	now       func() time.Time
}

func NewSweepWorker(store SweepStore, publisher AlertPublisher, keys dedup.KeyStore, cfg Config) *SweepWorker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &SweepWorker{
		store:     store,
		publisher: publisher,
		keys:      keys,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Run sweeps on the configured interval until the context ends. One
// initial sweep runs immediately.
func (w *SweepWorker) Run(ctx context.Context) error {
	if err := w.SweepAll(ctx); err != nil {
		slog.ErrorContext(ctx, "Initial sweep failed", applog.FieldError, err)
	}

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.SweepAll(ctx); err != nil {
				slog.ErrorContext(ctx, "Sweep failed", applog.FieldError, err)
			}
		}
	}
}

// SweepAll scans every user with bounded concurrency. A failure for
// one user does not abort the others; the first error is reported
// after the sweep completes.
func (w *SweepWorker) SweepAll(ctx context.Context) error {
	users, err := w.store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)
	for _, userID := range users {
		g.Go(func() error {
			if err := w.SweepUser(ctx, userID); err != nil {
				slog.ErrorContext(ctx, "User sweep failed", applog.FieldUserID, userID, applog.FieldError, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Sweep completed", "users", len(users))
	return nil
}

// SweepUser scans one user's state for alerts, publishes the new ones
// and marks their dedup keys.
func (w *SweepWorker) SweepUser(ctx context.Context, userID string) error {
	asOf := core.DateOf(w.now())
	snap, err := w.store.ReadState(ctx, userID, asOf)
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}

	state := engine.Build(snap.Transactions, snap.Budgets, snap.Goals, asOf)
	metrics := engine.ComputeMetrics(state, w.cfg.Metrics)

	recent, err := w.recentKeys(ctx, userID)
	if err != nil {
		return err
	}
	alerts, err := engine.ScanAlerts(state, metrics, snap.Budgets, snap.Goals, engine.AlertOptions{
		LookaheadDays: w.cfg.LookaheadDays,
		RecentKeys:    recent,
	})
	if err != nil {
		return fmt.Errorf("scan alerts: %w", err)
	}
	if len(alerts) == 0 {
		return nil
	}

	keys := make([]string, 0, len(alerts))
	for _, a := range alerts {
		if w.publisher != nil {
			if err := w.publisher.PublishAlertRaised(ctx, userID, a); err != nil {
				slog.ErrorContext(ctx, "Failed to publish alert",
					applog.FieldUserID, userID,
					applog.FieldAlertKind, string(a.Kind),
					applog.FieldDedupKey, a.DedupKey,
					applog.FieldError, err)
				continue
			}
		}
		keys = append(keys, a.DedupKey)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := w.markKeys(ctx, userID, keys); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Alerts raised", applog.FieldUserID, userID, "count", len(keys))
	return nil
}

func (w *SweepWorker) recentKeys(ctx context.Context, userID string) (map[string]struct{}, error) {
	if w.keys != nil {
		recent, err := w.keys.Recent(ctx, userID, w.cfg.Cooldown)
		if err != nil {
			return nil, fmt.Errorf("read dedup keys: %w", err)
		}
		return recent, nil
	}
	recent, err := w.store.RecentAlertKeys(ctx, userID, w.cfg.Cooldown)
	if err != nil {
		return nil, fmt.Errorf("read alert keys: %w", err)
	}
	return recent, nil
}

func (w *SweepWorker) markKeys(ctx context.Context, userID string, keys []string) error {
	if w.keys != nil {
		if err := w.keys.Mark(ctx, userID, keys, w.cfg.Cooldown); err != nil {
			return fmt.Errorf("mark dedup keys: %w", err)
		}
		return nil
	}
	if err := w.store.MarkAlertKeys(ctx, userID, keys); err != nil {
		return fmt.Errorf("mark alert keys: %w", err)
	}
	return nil
}

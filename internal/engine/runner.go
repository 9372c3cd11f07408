package engine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"choreboard/internal/notify"
)

// TickReport summarizes one short-period tick.
type TickReport struct {
	ScannedAt time.Time      `json:"scanned_at"`
	Overdue   int            `json:"overdue"`
	DueSoon   int            `json:"due_soon"`
	Reminders int            `json:"reminders"`
	Boundary  BoundaryReport `json:"boundary"`
}

// RunTick performs one minutes-scale pass: overdue detection, reminder and
// due-soon notifications, and due-date boundary processing. The pass runs to
// completion; per-instance failures are logged inside, never returned.
func (e *Engine) RunTick(ctx context.Context) (TickReport, error) {
	ref := e.now()
	buckets, err := e.Scan(ctx, ref)
	if err != nil {
		return TickReport{}, err
	}

	e.MarkOverdue(ctx, buckets.Overdue, ref)

	for _, cand := range buckets.ReminderDue {
		e.emit(notify.KindReminderDue, cand.Chore, cand.Instance, cand.Instance.KidID, ref)
	}
	for _, cand := range buckets.DueSoon {
		e.emit(notify.KindDueSoon, cand.Chore, cand.Instance, cand.Instance.KidID, ref)
	}

	report := e.ApplyBoundary(ctx, TriggerDueDate, buckets.BoundaryDueDate)
	return TickReport{
		ScannedAt: ref,
		Overdue:   len(buckets.Overdue),
		DueSoon:   len(buckets.DueSoon),
		Reminders: len(buckets.ReminderDue),
		Boundary:  report,
	}, nil
}

// RunMidnight performs the once-daily boundary pass.
func (e *Engine) RunMidnight(ctx context.Context) (BoundaryReport, error) {
	ref := e.now()
	buckets, err := e.Scan(ctx, ref)
	if err != nil {
		return BoundaryReport{}, err
	}
	return e.ApplyBoundary(ctx, TriggerMidnight, buckets.BoundaryMidnight), nil
}

// Runner drives the engine from two timer sources: a short-period tick and a
// once-daily midnight boundary. Both invoke the same scanner but dispatch
// different buckets.
type Runner struct {
	Engine       *Engine
	TickInterval time.Duration
}

// Run blocks until ctx is cancelled. Each pass runs to completion; a tick
// arriving while the previous pass is still running waits behind it.
func (r *Runner) Run(ctx context.Context) error {
	interval := r.TickInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if _, err := r.Engine.RunTick(ctx); err != nil {
					r.Engine.Logger.Printf("tick: %v", err)
				}
			}
		}
	})

	g.Go(func() error {
		for {
			wait := time.Until(nextMidnight(r.Engine.now()))
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
				if _, err := r.Engine.RunMidnight(ctx); err != nil {
					r.Engine.Logger.Printf("midnight: %v", err)
				}
			}
		}
	})

	return g.Wait()
}

func nextMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

package memory

import (
	"context"
	"database/sql"

	"github.com/ConaryLabs/mira/internal/logging"
	"github.com/ConaryLabs/mira/internal/store"
)

// maybeSummarize checks the turn count for a session against the configured
// rolling/batch cadence and creates a summary when a threshold is crossed.
// Mirrors the original's check_and_process_summaries: rolling windows fire
// automatically, snapshots are manual-only (see CreateSnapshot).
func (f *Fabric) maybeSummarize(ctx context.Context, sessionID string) error {
	if f.summarizer == nil {
		return nil
	}

	var n int
	if err := f.store.DB().QueryRow(`SELECT COUNT(*) FROM turns WHERE session_id = ?`, sessionID).Scan(&n); err != nil {
		return err
	}
	turns, err := f.store.RecentTurns(sessionID, f.cfg.BatchSummaryEvery)
	if err != nil {
		return err
	}

	switch {
	case n > 0 && f.cfg.BatchSummaryEvery > 0 && n%f.cfg.BatchSummaryEvery == 0:
		return f.createSummary(ctx, sessionID, turns, "batch")
	case n > 0 && f.cfg.RollingSummaryEvery > 0 && n%f.cfg.RollingSummaryEvery == 0:
		window := turns
		if len(window) > f.cfg.RollingSummaryEvery {
			window = window[len(window)-f.cfg.RollingSummaryEvery:]
		}
		return f.createSummary(ctx, sessionID, window, "rolling")
	default:
		return nil
	}
}

func (f *Fabric) createSummary(ctx context.Context, sessionID string, turns []store.Turn, kind string) error {
	if len(turns) == 0 {
		return nil
	}
	content, err := f.summarizer.Summarize(ctx, turns)
	if err != nil {
		logging.Get(logging.CategoryMemory).Warn("summarize session %s (%s): %v", sessionID, kind, err)
		return nil
	}

	sum := &store.Summary{
		SessionID:        sessionID,
		Kind:             kind,
		Content:          content,
		CoversFromTurnID: sql.NullString{String: turns[0].ID, Valid: true},
		CoversToTurnID:   sql.NullString{String: turns[len(turns)-1].ID, Valid: true},
	}
	if err := f.store.InsertSummary(sum); err != nil {
		return err
	}
	logging.Memory("created %s summary for session %s covering %d turns", kind, sessionID, len(turns))
	return nil
}

// CreateSnapshot manually summarizes the most recent window turns of a
// session - spec.md's user/operator-triggered snapshot summary, which never
// fires automatically from turn count the way rolling/batch summaries do.
func (f *Fabric) CreateSnapshot(ctx context.Context, sessionID string, window int) error {
	if window <= 0 {
		window = 50
	}
	turns, err := f.store.RecentTurns(sessionID, window)
	if err != nil {
		return err
	}
	return f.createSummary(ctx, sessionID, turns, "snapshot")
}

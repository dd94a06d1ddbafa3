package relstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a lookup by id matches no row.
var ErrNotFound = errors.New("relstore: not found")

// CreateInvestigation inserts a new investigation in PENDING status.
func (s *Store) CreateInvestigation(ctx context.Context, id, prompt string, parentID *string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO investigations (id, prompt, status, parent_investigation_id) VALUES ($1, $2, $3, $4)`,
		id, prompt, StatusPending, parentID)
	if err != nil {
		return fmt.Errorf("relstore: creating investigation: %w", err)
	}
	return nil
}

// GetInvestigation fetches one investigation by id.
func (s *Store) GetInvestigation(ctx context.Context, id string) (*Investigation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, prompt, status, parent_investigation_id, cycle_count, created_at,
		       completed_at, suspended_reason, suspended_at, resume_from
		FROM investigations WHERE id = $1`, id)

	var inv Investigation
	err := row.Scan(&inv.ID, &inv.Prompt, &inv.Status, &inv.ParentInvestigationID, &inv.CycleCount,
		&inv.CreatedAt, &inv.CompletedAt, &inv.SuspendedReason, &inv.SuspendedAt, &inv.ResumeFrom)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("relstore: fetching investigation %s: %w", id, err)
	}
	return &inv, nil
}

// TransitionStatus updates an investigation's status. Every orchestrator
// transition calls this before any external side effect.
func (s *Store) TransitionStatus(ctx context.Context, id string, status InvestigationStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE investigations SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("relstore: transitioning investigation %s to %s: %w", id, status, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Suspend records a SUSPENDED transition with its reason and resume point.
func (s *Store) Suspend(ctx context.Context, id, reason, resumeFrom string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE investigations
		SET status = $2, suspended_reason = $3, suspended_at = now(), resume_from = $4
		WHERE id = $1`, id, StatusSuspended, reason, resumeFrom)
	if err != nil {
		return fmt.Errorf("relstore: suspending investigation %s: %w", id, err)
	}
	return nil
}

// Complete marks an investigation COMPLETED or FAILED with a completion
// timestamp.
func (s *Store) Complete(ctx context.Context, id string, status InvestigationStatus) error {
	if status != StatusCompleted && status != StatusFailed {
		return fmt.Errorf("relstore: Complete called with non-terminal status %s", status)
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE investigations SET status = $2, completed_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("relstore: completing investigation %s: %w", id, err)
	}
	return nil
}

// IncrementCycle bumps cycle_count, called when ANALYST_RUNNING produces
// work orders and transitions to PROCESSING.
func (s *Store) IncrementCycle(ctx context.Context, id string) (int, error) {
	var cycle int
	err := s.pool.QueryRow(ctx, `
		UPDATE investigations SET cycle_count = cycle_count + 1 WHERE id = $1 RETURNING cycle_count`, id).Scan(&cycle)
	if err != nil {
		return 0, fmt.Errorf("relstore: incrementing cycle for %s: %w", id, err)
	}
	return cycle, nil
}

// ListNonTerminal returns every investigation not in a terminal state, for
// the startup crash-recovery scan.
func (s *Store) ListNonTerminal(ctx context.Context) ([]Investigation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, prompt, status, parent_investigation_id, cycle_count, created_at,
		       completed_at, suspended_reason, suspended_at, resume_from
		FROM investigations
		WHERE status NOT IN ($1, $2)`, StatusCompleted, StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("relstore: listing non-terminal investigations: %w", err)
	}
	defer rows.Close()

	var out []Investigation
	for rows.Next() {
		var inv Investigation
		if err := rows.Scan(&inv.ID, &inv.Prompt, &inv.Status, &inv.ParentInvestigationID, &inv.CycleCount,
			&inv.CreatedAt, &inv.CompletedAt, &inv.SuspendedReason, &inv.SuspendedAt, &inv.ResumeFrom); err != nil {
			return nil, fmt.Errorf("relstore: scanning investigation row: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

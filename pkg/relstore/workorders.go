package relstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CreateWorkOrder persists a work order in `queued` status before it is
// published to the stream.
func (s *Store) CreateWorkOrder(ctx context.Context, wo WorkOrder) error {
	refs, err := json.Marshal(wo.ReferencedEntities)
	if err != nil {
		return fmt.Errorf("relstore: encoding referenced_entities: %w", err)
	}
	guidance, err := json.Marshal(wo.SourceGuidance)
	if err != nil {
		return fmt.Errorf("relstore: encoding source_guidance: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO work_orders
			(id, investigation_id, objective, status, priority, referenced_entities, source_guidance, cycle)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		wo.ID, wo.InvestigationID, wo.Objective, WorkOrderQueued, wo.Priority, refs, guidance, wo.Cycle)
	if err != nil {
		return fmt.Errorf("relstore: creating work order %s: %w", wo.ID, err)
	}
	return nil
}

// ClaimWorkOrder transitions a work order to `processing` and records the
// claiming Processor.
func (s *Store) ClaimWorkOrder(ctx context.Context, id, processorID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE work_orders SET status = $2, processor_id = $3 WHERE id = $1`,
		id, WorkOrderProcessing, processorID)
	if err != nil {
		return fmt.Errorf("relstore: claiming work order %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteWorkOrder marks a work order `completed` with its produced claim
// count.
func (s *Store) CompleteWorkOrder(ctx context.Context, id string, claimsProduced int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE work_orders SET status = $2, completed_at = now(), claims_produced_count = $3
		WHERE id = $1`, id, WorkOrderCompleted, claimsProduced)
	if err != nil {
		return fmt.Errorf("relstore: completing work order %s: %w", id, err)
	}
	return nil
}

// FailWorkOrder marks a work order `failed` and increments retry_count.
// The caller decides whether to re-queue based on the returned count:
// a second failure is permanent.
func (s *Store) FailWorkOrder(ctx context.Context, id string) (retryCount int, err error) {
	err = s.pool.QueryRow(ctx, `
		UPDATE work_orders SET status = $2, retry_count = retry_count + 1
		WHERE id = $1 RETURNING retry_count`, id, WorkOrderFailed).Scan(&retryCount)
	if err != nil {
		return 0, fmt.Errorf("relstore: failing work order %s: %w", id, err)
	}
	return retryCount, nil
}

// RequeueWorkOrder resets a failed work order back to `queued` for its one
// permitted retry.
func (s *Store) RequeueWorkOrder(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE work_orders SET status = $2 WHERE id = $1`, id, WorkOrderQueued)
	if err != nil {
		return fmt.Errorf("relstore: requeuing work order %s: %w", id, err)
	}
	return nil
}

func scanWorkOrder(row pgx.Row) (*WorkOrder, error) {
	var wo WorkOrder
	var refs, guidance []byte
	err := row.Scan(&wo.ID, &wo.InvestigationID, &wo.Objective, &wo.Status, &wo.Priority,
		&refs, &guidance, &wo.ProcessorID, &wo.CreatedAt, &wo.CompletedAt, &wo.Cycle,
		&wo.ClaimsProducedCount, &wo.RetryCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("relstore: scanning work order: %w", err)
	}
	if err := json.Unmarshal(refs, &wo.ReferencedEntities); err != nil {
		return nil, fmt.Errorf("relstore: decoding referenced_entities: %w", err)
	}
	if err := json.Unmarshal(guidance, &wo.SourceGuidance); err != nil {
		return nil, fmt.Errorf("relstore: decoding source_guidance: %w", err)
	}
	return &wo, nil
}

const workOrderColumns = `id, investigation_id, objective, status, priority, referenced_entities,
	source_guidance, processor_id, created_at, completed_at, cycle, claims_produced_count, retry_count`

// GetWorkOrder fetches one work order by id.
func (s *Store) GetWorkOrder(ctx context.Context, id string) (*WorkOrder, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+workOrderColumns+` FROM work_orders WHERE id = $1`, id)
	return scanWorkOrder(row)
}

// ListWorkOrdersForCycle returns every work order in one investigation's
// cycle, used to check whether all work orders in the cycle are terminal.
func (s *Store) ListWorkOrdersForCycle(ctx context.Context, investigationID string, cycle int) ([]WorkOrder, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+workOrderColumns+`
		FROM work_orders WHERE investigation_id = $1 AND cycle = $2`, investigationID, cycle)
	if err != nil {
		return nil, fmt.Errorf("relstore: listing work orders for cycle: %w", err)
	}
	defer rows.Close()

	var out []WorkOrder
	for rows.Next() {
		wo, err := scanWorkOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *wo)
	}
	return out, rows.Err()
}

package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"equipment-monitor/internal/models"
)

type OperationStore interface {
	ListOpenOperations(ctx context.Context) ([]models.OperationLog, error)
	// FlagOperation sets the flagged bit if still clear and reports whether it did.
	FlagOperation(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

// OperationTracker flags open operations that run past their budget, once per operation.
type OperationTracker struct {
	store         OperationStore
	defaultBudget time.Duration
	log           *logrus.Entry
}

func NewOperationTracker(store OperationStore, defaultBudget time.Duration, log *logrus.Entry) *OperationTracker {
	return &OperationTracker{store: store, defaultBudget: defaultBudget, log: log}
}

// Check returns a notice for every open, unflagged operation whose elapsed time exceeds
// its budget. A notice is only returned once the flag write succeeded; failed writes are
// logged and the operation is considered again on the next call.
func (t *OperationTracker) Check(ctx context.Context, now time.Time) ([]models.Notice, error) {
	ops, err := t.store.ListOpenOperations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open operations: %w", err)
	}

	var notices []models.Notice
	for _, op := range ops {
		if !op.IsOpen() || op.Flagged {
			continue
		}
		budget := op.Budget
		if budget <= 0 {
			budget = t.defaultBudget
		}
		if budget <= 0 {
			continue
		}
		elapsed := now.Sub(op.StartedAt)
		if elapsed <= budget {
			continue
		}

		flagged, err := t.store.FlagOperation(ctx, op.ID, now)
		if err != nil {
			t.log.WithFields(logrus.Fields{
				"operation_id": op.ID,
				"device_id":    op.DeviceID,
			}).Errorf("Failed to flag long-running operation: %v", err)
			continue
		}
		if !flagged {
			continue
		}

		notices = append(notices, models.Notice{
			OperationID: op.ID,
			DeviceID:    op.DeviceID,
			BatchID:     op.BatchID,
			StartedAt:   op.StartedAt,
			Elapsed:     elapsed,
			Budget:      budget,
			At:          now,
		})
	}
	return notices, nil
}

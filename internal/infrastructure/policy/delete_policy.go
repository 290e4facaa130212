// Package policy holds the default implementations of externally supplied decisions.
package policy

import (
	"context"
	"fmt"

	"github.com/garyjia/sales-reports/internal/application/port"
	"github.com/garyjia/sales-reports/internal/domain/workflow"
)

// HistoryDeletePolicy allows deletion only of reports no reviewer has acted on.
// A report that was ever advanced or finalized keeps its audit trail.
type HistoryDeletePolicy struct {
	history port.HistoryRepository
}

// NewHistoryDeletePolicy creates a delete policy over the report history
func NewHistoryDeletePolicy(history port.HistoryRepository) *HistoryDeletePolicy {
	return &HistoryDeletePolicy{history: history}
}

// CanDelete implements port.DeletePolicy
func (p *HistoryDeletePolicy) CanDelete(ctx context.Context, actorID, reportID int64) (bool, error) {
	reviewed, err := p.history.HasAction(ctx, reportID,
		string(workflow.TriggerAdvance),
		string(workflow.TriggerFinalize),
		string(workflow.TriggerEditDuringReview),
	)
	if err != nil {
		return false, fmt.Errorf("check review history of report %d: %w", reportID, err)
	}
	return !reviewed, nil
}

// Verify interface compliance
var _ port.DeletePolicy = (*HistoryDeletePolicy)(nil)

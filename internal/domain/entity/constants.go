package entity

import "slices"

// Report status constants
const (
	StatusDraft              = "draft"
	StatusPendingSubdistrict = "pending_subdistrict"
	StatusPendingCity        = "pending_city"
	StatusApproved           = "approved"
	StatusRejected           = "rejected"
)

// InFlightStatuses are the statuses of a report awaiting any level of review
var InFlightStatuses = []string{StatusPendingSubdistrict, StatusPendingCity}

// EditableStatuses are the statuses in which the creator may edit or delete a report
var EditableStatuses = []string{StatusDraft, StatusRejected}

// IsInFlightStatus reports whether status awaits review
func IsInFlightStatus(status string) bool {
	return slices.Contains(InFlightStatuses, status)
}

// IsEditableStatus reports whether status belongs to the creator's editable pool
func IsEditableStatus(status string) bool {
	return slices.Contains(EditableStatuses, status)
}

// History action constants that are not state machine triggers
const (
	ActionCreate  = "CREATE"
	ActionEdit    = "EDIT"
	ActionComment = "COMMENT"
)

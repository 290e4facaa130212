package entity

import "time"

// ReportHistory represents the audit trail of a report
type ReportHistory struct {
	ID         int64     `json:"id"`
	ReportID   int64     `json:"report_id"`
	ActorID    int64     `json:"actor_id"`
	Action     string    `json:"action"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Note       string    `json:"note,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

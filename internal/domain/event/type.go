package event

// Type identifies the type of domain event
type Type string

const (
	TypeReportCreated   Type = "report.created"
	TypeReportEdited    Type = "report.edited"
	TypeReportSubmitted Type = "report.submitted"
	TypeReportAdvanced  Type = "report.advanced"
	TypeReportApproved  Type = "report.approved"
	TypeReportRejected  Type = "report.rejected"
	TypeReportDeleted   Type = "report.deleted"
	TypeReportCommented Type = "report.commented"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeReportCreated,
		TypeReportEdited,
		TypeReportSubmitted,
		TypeReportAdvanced,
		TypeReportApproved,
		TypeReportRejected,
		TypeReportDeleted,
		TypeReportCommented:
		return true
	default:
		return false
	}
}

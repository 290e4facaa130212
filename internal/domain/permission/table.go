package permission

import "github.com/garyjia/sales-reports/internal/domain/entity"

// Action is an operation an actor can attempt on a report
type Action string

const (
	ActionCreate           Action = "create"
	ActionEdit             Action = "edit"
	ActionEditDuringReview Action = "edit_during_review"
	ActionAdvance          Action = "advance"
	ActionFinalize         Action = "finalize"
	ActionReject           Action = "reject"
	ActionDelete           Action = "delete"
	ActionView             Action = "view"
	ActionComment          Action = "comment"
)

// Denial reasons
const (
	ReasonWrongRole     = "role_not_permitted"
	ReasonWrongStatus   = "status_not_permitted"
	ReasonNotOwner      = "not_report_owner"
	ReasonOutOfScope    = "outside_assigned_area"
	ReasonInFlight      = "report_already_in_review"
	ReasonEmptyReason   = "reason_required"
	ReasonDisabled      = "action_disabled"
	ReasonNoAssignment  = "no_location_assignment"
	ReasonUnknownAction = "unknown_action"
)

// rule grants an action to one role.
// A nil statuses set means any status.
type rule struct {
	statuses map[string]bool
	level    ScopeLevel
}

func statuses(s ...string) map[string]bool {
	m := make(map[string]bool, len(s))
	for _, v := range s {
		m[v] = true
	}
	return m
}

var (
	editable           = statuses(entity.EditableStatuses...)
	pendingSubdistrict = statuses(entity.StatusPendingSubdistrict)
	pendingCity        = statuses(entity.StatusPendingCity)
)

// truthTable lists every (action, role) pair that can ever be allowed.
// A missing entry is a denial with ReasonWrongRole.
var truthTable = map[Action]map[entity.Role]rule{
	ActionCreate: {
		entity.RoleBranchUser: {level: ScopeNone},
	},
	ActionEdit: {
		entity.RoleBranchUser: {statuses: editable, level: ScopeOwner},
	},
	ActionEditDuringReview: {
		entity.RoleSubdistrictAdmin: {statuses: pendingSubdistrict, level: ScopeSubdistrict},
	},
	ActionAdvance: {
		entity.RoleSubdistrictAdmin: {statuses: pendingSubdistrict, level: ScopeSubdistrict},
	},
	ActionFinalize: {
		entity.RoleCityAdmin: {statuses: pendingCity, level: ScopeCity},
	},
	ActionReject: {
		entity.RoleCityAdmin: {statuses: pendingCity, level: ScopeCity},
	},
	ActionDelete: {
		entity.RoleBranchUser: {statuses: editable, level: ScopeOwner},
	},
	ActionView: {
		entity.RoleBranchUser:       {level: ScopeOwner},
		entity.RoleSubdistrictAdmin: {level: ScopeSubdistrict},
		entity.RoleCityAdmin:        {level: ScopeCity},
	},
	ActionComment: {
		entity.RoleBranchUser:       {level: ScopeOwner},
		entity.RoleSubdistrictAdmin: {level: ScopeSubdistrict},
		entity.RoleCityAdmin:        {level: ScopeCity},
	},
}

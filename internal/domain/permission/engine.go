// Package permission answers whether an actor may perform an action on a report.
// All predicates are pure: they read only their arguments.
package permission

import (
	"strings"

	"github.com/garyjia/sales-reports/internal/domain/entity"
)

// Decision is the outcome of a permission check
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision             { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// Engine evaluates the role × action × status truth table
type Engine struct {
	mode                ScopeMode
	editDuringReviewOff bool
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithScopeMode sets how admin scope is matched
func WithScopeMode(mode ScopeMode) EngineOption {
	return func(e *Engine) {
		e.mode = mode
	}
}

// WithEditDuringReview enables or disables the subdistrict admin edit path
func WithEditDuringReview(enabled bool) EngineOption {
	return func(e *Engine) {
		e.editDuringReviewOff = !enabled
	}
}

// NewEngine creates an engine matching by name unless configured otherwise
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{mode: ScopeByName}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Mode returns the configured scope matching mode
func (e *Engine) Mode() ScopeMode {
	return e.mode
}

// Evaluate checks a single action for an actor against a report.
// report may be nil only for ActionCreate.
func (e *Engine) Evaluate(action Action, actor entity.Actor, report *entity.Report) Decision {
	byRole, ok := truthTable[action]
	if !ok {
		return deny(ReasonUnknownAction)
	}
	if action == ActionEditDuringReview && e.editDuringReviewOff {
		return deny(ReasonDisabled)
	}

	r, ok := byRole[actor.Role]
	if !ok {
		return deny(ReasonWrongRole)
	}
	if report == nil {
		if r.statuses == nil && r.level == ScopeNone {
			return allow()
		}
		return deny(ReasonWrongStatus)
	}
	if r.statuses != nil && !r.statuses[report.Status] {
		return deny(ReasonWrongStatus)
	}

	switch r.level {
	case ScopeNone:
		return allow()
	case ScopeOwner:
		if report.CreatedBy != actor.ID {
			return deny(ReasonNotOwner)
		}
		return allow()
	default:
		scope := scopeFor(e.mode, actor)
		if scope.Level == ScopeNone || (scope.Name == "" && scope.ID == 0) {
			return deny(ReasonNoAssignment)
		}
		if !scope.Matches(report) {
			return deny(ReasonOutOfScope)
		}
		return allow()
	}
}

// CanCreate allows a branch user with no report awaiting review
func (e *Engine) CanCreate(actor entity.Actor, inFlight int) Decision {
	if d := e.Evaluate(ActionCreate, actor, nil); !d.Allowed {
		return d
	}
	if inFlight > 0 {
		return deny(ReasonInFlight)
	}
	return allow()
}

// CanEdit allows the creator to edit a draft or rejected report
func (e *Engine) CanEdit(actor entity.Actor, report *entity.Report) Decision {
	return e.Evaluate(ActionEdit, actor, report)
}

// CanEditDuringReview allows the matching subdistrict admin to correct a pending report
func (e *Engine) CanEditDuringReview(actor entity.Actor, report *entity.Report) Decision {
	return e.Evaluate(ActionEditDuringReview, actor, report)
}

// CanAdvance allows the matching subdistrict admin to pass a report to city review
func (e *Engine) CanAdvance(actor entity.Actor, report *entity.Report) Decision {
	return e.Evaluate(ActionAdvance, actor, report)
}

// CanFinalize allows the matching city admin to approve a report
func (e *Engine) CanFinalize(actor entity.Actor, report *entity.Report) Decision {
	return e.Evaluate(ActionFinalize, actor, report)
}

// CanReject allows the matching city admin to reject with a non-empty reason
func (e *Engine) CanReject(actor entity.Actor, report *entity.Report, reason string) Decision {
	if d := e.Evaluate(ActionReject, actor, report); !d.Allowed {
		return d
	}
	if strings.TrimSpace(reason) == "" {
		return deny(ReasonEmptyReason)
	}
	return allow()
}

// CanApprove picks advance or finalize from the report's status
func (e *Engine) CanApprove(actor entity.Actor, report *entity.Report) (Action, Decision) {
	switch report.Status {
	case entity.StatusPendingSubdistrict:
		return ActionAdvance, e.CanAdvance(actor, report)
	case entity.StatusPendingCity:
		return ActionFinalize, e.CanFinalize(actor, report)
	default:
		return "", deny(ReasonWrongStatus)
	}
}

// CanDelete is the local delete guard; the external policy is consulted separately
func (e *Engine) CanDelete(actor entity.Actor, report *entity.Report) Decision {
	return e.Evaluate(ActionDelete, actor, report)
}

// CanView reports whether the report is inside the actor's visibility scope
func (e *Engine) CanView(actor entity.Actor, report *entity.Report) Decision {
	return e.Evaluate(ActionView, actor, report)
}

// CanComment follows view rights
func (e *Engine) CanComment(actor entity.Actor, report *entity.Report) Decision {
	return e.Evaluate(ActionComment, actor, report)
}

// VisibilityScope returns the scope used by list queries
func (e *Engine) VisibilityScope(actor entity.Actor) Scope {
	return scopeFor(e.mode, actor)
}

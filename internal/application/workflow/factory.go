package workflow

import (
	"github.com/garyjia/sales-reports/internal/domain/entity"
	domainwf "github.com/garyjia/sales-reports/internal/domain/workflow"
)

// reportMachine is configured once; Build deep-copies it for every report
var reportMachine = newReportBuilder()

func newReportBuilder() domainwf.StateMachineBuilder {
	builder := domainwf.NewBuilder()

	creator := domainwf.RoleIs(entity.RoleBranchUser)
	subdistrictAdmin := domainwf.RoleIs(entity.RoleSubdistrictAdmin)
	cityAdmin := domainwf.RoleIs(entity.RoleCityAdmin)

	// DRAFT state transitions
	builder.Configure(domainwf.StateDraft).
		PermitIf(domainwf.TriggerSubmit, domainwf.StatePendingSubdistrict, creator,
			domainwf.EffectClearRejectionReason, domainwf.EffectStampSubmittedAt)

	// REJECTED re-enters the pipeline through submit
	builder.Configure(domainwf.StateRejected).
		PermitIf(domainwf.TriggerSubmit, domainwf.StatePendingSubdistrict, creator,
			domainwf.EffectClearRejectionReason, domainwf.EffectStampSubmittedAt)

	// PENDING_SUBDISTRICT state transitions
	builder.Configure(domainwf.StatePendingSubdistrict).
		PermitIf(domainwf.TriggerAdvance, domainwf.StatePendingCity, subdistrictAdmin).
		PermitIf(domainwf.TriggerEditDuringReview, domainwf.StatePendingCity, subdistrictAdmin,
			domainwf.EffectApplyContent)

	// PENDING_CITY state transitions
	builder.Configure(domainwf.StatePendingCity).
		PermitIf(domainwf.TriggerFinalize, domainwf.StateApproved, cityAdmin,
			domainwf.EffectStampApprovedAt).
		PermitIf(domainwf.TriggerReject, domainwf.StateRejected, cityAdmin,
			domainwf.EffectRecordRejectionReason)

	// APPROVED is terminal - no outgoing transitions

	return builder
}

// BuildReportStateMachine creates a state machine for a report in the given status
func BuildReportStateMachine(initialState domainwf.State) (domainwf.StateMachine, error) {
	return reportMachine.Build(initialState)
}

// Permitted lists the triggers role may fire from state, sorted by name.
// An unknown state permits nothing.
func Permitted(state domainwf.State, role entity.Role) []domainwf.Trigger {
	machine, err := BuildReportStateMachine(state)
	if err != nil {
		return []domainwf.Trigger{}
	}
	return machine.PermittedTriggers(role)
}

// Decide computes the transition trigger causes from state for role without
// touching any report. It is the pure form of the report lifecycle.
func Decide(state domainwf.State, trigger domainwf.Trigger, role entity.Role) (domainwf.Transition, error) {
	machine, err := BuildReportStateMachine(state)
	if err != nil {
		return domainwf.Transition{}, err
	}
	return machine.Fire(trigger, role)
}

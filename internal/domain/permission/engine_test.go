package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garyjia/sales-reports/internal/domain/entity"
)

var (
	branchUser = entity.Actor{
		ID: 1, Role: entity.RoleBranchUser,
		BranchID: 10, BranchName: "Blok M",
		SubdistrictID: 3, SubdistrictName: "Kebayoran Baru",
		CityID: 1, CityName: "Jakarta Selatan",
	}
	otherBranchUser = entity.Actor{ID: 2, Role: entity.RoleBranchUser, BranchID: 11}
	kebayoranAdmin  = entity.Actor{ID: 20, Role: entity.RoleSubdistrictAdmin, SubdistrictID: 3, SubdistrictName: "Kebayoran Baru"}
	mentengAdmin    = entity.Actor{ID: 21, Role: entity.RoleSubdistrictAdmin, SubdistrictID: 4, SubdistrictName: "Menteng"}
	selatanAdmin    = entity.Actor{ID: 30, Role: entity.RoleCityAdmin, CityID: 1, CityName: "Jakarta Selatan"}
	pusatAdmin      = entity.Actor{ID: 31, Role: entity.RoleCityAdmin, CityID: 2, CityName: "Jakarta Pusat"}
	superAdmin      = entity.Actor{ID: 99, Role: entity.RoleSuperAdmin}
)

func reportIn(status string) *entity.Report {
	return &entity.Report{
		ID:              100,
		Status:          status,
		CreatedBy:       branchUser.ID,
		BranchID:        10,
		BranchName:      "Blok M",
		SubdistrictID:   3,
		SubdistrictName: "Kebayoran Baru",
		CityID:          1,
		CityName:        "Jakarta Selatan",
	}
}

func TestEngine_TruthTable(t *testing.T) {
	engine := NewEngine()

	allStatuses := []string{
		entity.StatusDraft,
		entity.StatusPendingSubdistrict,
		entity.StatusPendingCity,
		entity.StatusApproved,
		entity.StatusRejected,
	}
	actors := map[string]entity.Actor{
		"creator":         branchUser,
		"other branch":    otherBranchUser,
		"kebayoran admin": kebayoranAdmin,
		"menteng admin":   mentengAdmin,
		"selatan admin":   selatanAdmin,
		"pusat admin":     pusatAdmin,
		"super admin":     superAdmin,
	}

	// expected[action][actor] lists the statuses in which the action is allowed
	expected := map[Action]map[string][]string{
		ActionEdit: {
			"creator": {entity.StatusDraft, entity.StatusRejected},
		},
		ActionDelete: {
			"creator": {entity.StatusDraft, entity.StatusRejected},
		},
		ActionEditDuringReview: {
			"kebayoran admin": {entity.StatusPendingSubdistrict},
		},
		ActionAdvance: {
			"kebayoran admin": {entity.StatusPendingSubdistrict},
		},
		ActionFinalize: {
			"selatan admin": {entity.StatusPendingCity},
		},
		ActionReject: {
			"selatan admin": {entity.StatusPendingCity},
		},
		ActionView: {
			"creator":         allStatuses,
			"kebayoran admin": allStatuses,
			"selatan admin":   allStatuses,
		},
		ActionComment: {
			"creator":         allStatuses,
			"kebayoran admin": allStatuses,
			"selatan admin":   allStatuses,
		},
	}

	for action, byActor := range expected {
		for actorName, actor := range actors {
			allowedIn := make(map[string]bool)
			for _, s := range byActor[actorName] {
				allowedIn[s] = true
			}
			for _, status := range allStatuses {
				d := engine.Evaluate(action, actor, reportIn(status))
				assert.Equal(t, allowedIn[status], d.Allowed,
					"action=%s actor=%s status=%s reason=%s", action, actorName, status, d.Reason)
				if !d.Allowed {
					assert.NotEmpty(t, d.Reason)
				}
			}
		}
	}
}

func TestEngine_CanCreate(t *testing.T) {
	engine := NewEngine()

	tests := []struct {
		name     string
		actor    entity.Actor
		inFlight int
		allowed  bool
		reason   string
	}{
		{"branch user with nothing in review", branchUser, 0, true, ""},
		{"branch user with report in review", branchUser, 1, false, ReasonInFlight},
		{"subdistrict admin", kebayoranAdmin, 0, false, ReasonWrongRole},
		{"city admin", selatanAdmin, 0, false, ReasonWrongRole},
		{"super admin", superAdmin, 0, false, ReasonWrongRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := engine.CanCreate(tt.actor, tt.inFlight)
			assert.Equal(t, tt.allowed, d.Allowed)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}

func TestEngine_CanReject_RequiresReason(t *testing.T) {
	engine := NewEngine()
	report := reportIn(entity.StatusPendingCity)

	assert.False(t, engine.CanReject(selatanAdmin, report, "").Allowed)
	assert.Equal(t, ReasonEmptyReason, engine.CanReject(selatanAdmin, report, "   ").Reason)
	assert.True(t, engine.CanReject(selatanAdmin, report, "incomplete data").Allowed)

	// subdistrict admins never reject
	assert.Equal(t, ReasonWrongRole, engine.CanReject(kebayoranAdmin, reportIn(entity.StatusPendingSubdistrict), "x").Reason)
}

func TestEngine_CanApprove_PicksActionFromStatus(t *testing.T) {
	engine := NewEngine()

	action, d := engine.CanApprove(kebayoranAdmin, reportIn(entity.StatusPendingSubdistrict))
	assert.Equal(t, ActionAdvance, action)
	assert.True(t, d.Allowed)

	action, d = engine.CanApprove(selatanAdmin, reportIn(entity.StatusPendingCity))
	assert.Equal(t, ActionFinalize, action)
	assert.True(t, d.Allowed)

	// a city admin cannot skip the subdistrict stage
	action, d = engine.CanApprove(selatanAdmin, reportIn(entity.StatusPendingSubdistrict))
	assert.Equal(t, ActionAdvance, action)
	assert.False(t, d.Allowed)

	action, d = engine.CanApprove(selatanAdmin, reportIn(entity.StatusDraft))
	assert.Empty(t, action)
	assert.Equal(t, ReasonWrongStatus, d.Reason)
}

func TestEngine_ScopeMismatchByName(t *testing.T) {
	engine := NewEngine()
	report := reportIn(entity.StatusPendingSubdistrict)
	report.SubdistrictName = "Menteng"
	report.SubdistrictID = 4

	actor := kebayoranAdmin
	d := engine.CanAdvance(actor, report)

	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonOutOfScope, d.Reason)
	assert.True(t, engine.CanAdvance(mentengAdmin, report).Allowed)
}

func TestEngine_ScopeModeDivergence(t *testing.T) {
	// the subdistrict was renamed after the report was filed
	report := reportIn(entity.StatusPendingSubdistrict)
	report.SubdistrictName = "Kebayoran Baru (old)"

	byName := NewEngine(WithScopeMode(ScopeByName))
	byID := NewEngine(WithScopeMode(ScopeByID))

	assert.False(t, byName.CanAdvance(kebayoranAdmin, report).Allowed)
	assert.True(t, byID.CanAdvance(kebayoranAdmin, report).Allowed)
	assert.Equal(t, ScopeByID, byID.Mode())
}

func TestEngine_AdminWithoutAssignment(t *testing.T) {
	engine := NewEngine()
	unassigned := entity.Actor{ID: 50, Role: entity.RoleCityAdmin}

	d := engine.CanFinalize(unassigned, reportIn(entity.StatusPendingCity))
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonNoAssignment, d.Reason)
}

func TestEngine_EditDuringReviewDisabled(t *testing.T) {
	engine := NewEngine(WithEditDuringReview(false))
	d := engine.CanEditDuringReview(kebayoranAdmin, reportIn(entity.StatusPendingSubdistrict))

	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonDisabled, d.Reason)
}

func TestEngine_VisibilityScope(t *testing.T) {
	engine := NewEngine()

	tests := []struct {
		name  string
		actor entity.Actor
		want  ScopeLevel
	}{
		{"branch user sees own", branchUser, ScopeOwner},
		{"subdistrict admin", kebayoranAdmin, ScopeSubdistrict},
		{"city admin", selatanAdmin, ScopeCity},
		{"super admin sees nothing", superAdmin, ScopeNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope := engine.VisibilityScope(tt.actor)
			assert.Equal(t, tt.want, scope.Level)
		})
	}

	assert.False(t, engine.VisibilityScope(superAdmin).Matches(reportIn(entity.StatusDraft)))
	assert.True(t, engine.VisibilityScope(selatanAdmin).Matches(reportIn(entity.StatusApproved)))
	assert.False(t, engine.VisibilityScope(pusatAdmin).Matches(reportIn(entity.StatusApproved)))
}

func TestParseScopeMode(t *testing.T) {
	mode, err := ParseScopeMode("")
	assert.NoError(t, err)
	assert.Equal(t, ScopeByName, mode)

	mode, err = ParseScopeMode("id")
	assert.NoError(t, err)
	assert.Equal(t, ScopeByID, mode)

	_, err = ParseScopeMode("uuid")
	assert.Error(t, err)
}

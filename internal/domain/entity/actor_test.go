package entity

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestActor_Validate(t *testing.T) {
	tests := []struct {
		name    string
		actor   Actor
		wantErr bool
	}{
		{"branch user with branch", Actor{ID: 1, Role: RoleBranchUser, BranchID: 10, SubdistrictID: 3, CityID: 1}, false},
		{"branch user without branch", Actor{ID: 1, Role: RoleBranchUser}, true},
		{"subdistrict admin", Actor{ID: 2, Role: RoleSubdistrictAdmin, SubdistrictID: 3}, false},
		{"subdistrict admin by name only", Actor{ID: 2, Role: RoleSubdistrictAdmin, SubdistrictName: "Menteng"}, false},
		{"subdistrict admin with city", Actor{ID: 2, Role: RoleSubdistrictAdmin, SubdistrictID: 3, CityID: 1}, true},
		{"city admin", Actor{ID: 3, Role: RoleCityAdmin, CityID: 1}, false},
		{"city admin with branch", Actor{ID: 3, Role: RoleCityAdmin, CityID: 1, BranchID: 4}, true},
		{"super admin", Actor{ID: 4, Role: RoleSuperAdmin}, false},
		{"super admin with scope", Actor{ID: 4, Role: RoleSuperAdmin, CityID: 1}, true},
		{"unknown role", Actor{ID: 5, Role: Role("auditor")}, true},
		{"missing id", Actor{Role: RoleSuperAdmin}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.actor.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReport_CloneIsIndependent(t *testing.T) {
	original := &Report{
		ID:       1,
		Status:   StatusDraft,
		Stock:    decimal.NewNullDecimal(decimal.NewFromInt(5)),
		Comments: []Comment{{ID: 1, Body: "first"}},
	}

	clone := original.Clone()
	clone.Comments = append(clone.Comments, Comment{ID: 2, Body: "second"})
	clone.Comments[0].Body = "changed"
	clone.Status = StatusPendingSubdistrict

	assert.Len(t, original.Comments, 1)
	assert.Equal(t, "first", original.Comments[0].Body)
	assert.Equal(t, StatusDraft, original.Status)
}

func TestStatusPools(t *testing.T) {
	for _, s := range []string{StatusDraft, StatusRejected} {
		assert.True(t, IsEditableStatus(s), s)
		assert.False(t, IsInFlightStatus(s), s)
	}
	for _, s := range []string{StatusPendingSubdistrict, StatusPendingCity} {
		assert.True(t, IsInFlightStatus(s), s)
		assert.False(t, IsEditableStatus(s), s)
	}
	assert.False(t, IsEditableStatus(StatusApproved))
	assert.False(t, IsInFlightStatus(StatusApproved))
	assert.True(t, (&Report{Status: StatusPendingCity}).IsInFlight())
}

package entity

import "fmt"

// Role is the enumerated role of an actor
type Role string

const (
	RoleBranchUser       Role = "branch_user"
	RoleSubdistrictAdmin Role = "subdistrict_admin"
	RoleCityAdmin        Role = "city_admin"
	RoleSuperAdmin       Role = "super_admin"
)

// IsValid returns true if the role is one of the defined constants
func (r Role) IsValid() bool {
	switch r {
	case RoleBranchUser, RoleSubdistrictAdmin, RoleCityAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// Actor is the identity performing a workflow operation.
// A branch user is assigned one branch; after resolution against the
// location hierarchy its SubdistrictID/CityID and names are filled in
// transitively. Admins carry only their own level of assignment.
type Actor struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Role            Role   `json:"role"`
	BranchID        int64  `json:"branch_id,omitempty"`
	BranchName      string `json:"branch_name,omitempty"`
	SubdistrictID   int64  `json:"subdistrict_id,omitempty"`
	SubdistrictName string `json:"subdistrict_name,omitempty"`
	CityID          int64  `json:"city_id,omitempty"`
	CityName        string `json:"city_name,omitempty"`
}

// Validate checks the role/assignment invariant
func (a Actor) Validate() error {
	if a.ID <= 0 {
		return fmt.Errorf("actor id is required")
	}
	if !a.Role.IsValid() {
		return fmt.Errorf("invalid role: %q", a.Role)
	}

	switch a.Role {
	case RoleBranchUser:
		if a.BranchID <= 0 {
			return fmt.Errorf("branch_user %d has no branch assignment", a.ID)
		}
	case RoleSubdistrictAdmin:
		if a.BranchID != 0 || a.CityID != 0 {
			return fmt.Errorf("subdistrict_admin %d may only be assigned a subdistrict", a.ID)
		}
		if a.SubdistrictID <= 0 && a.SubdistrictName == "" {
			return fmt.Errorf("subdistrict_admin %d has no subdistrict assignment", a.ID)
		}
	case RoleCityAdmin:
		if a.BranchID != 0 || a.SubdistrictID != 0 {
			return fmt.Errorf("city_admin %d may only be assigned a city", a.ID)
		}
		if a.CityID <= 0 && a.CityName == "" {
			return fmt.Errorf("city_admin %d has no city assignment", a.ID)
		}
	case RoleSuperAdmin:
		if a.BranchID != 0 || a.SubdistrictID != 0 || a.CityID != 0 {
			return fmt.Errorf("super_admin %d has no location scope", a.ID)
		}
	}

	return nil
}

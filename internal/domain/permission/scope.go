package permission

import (
	"fmt"

	"github.com/garyjia/sales-reports/internal/domain/entity"
)

// ScopeMode selects how an admin's assigned area is matched against a report's area
type ScopeMode string

const (
	// ScopeByName compares the report's denormalized display name with the actor's assignment name
	ScopeByName ScopeMode = "name"
	// ScopeByID compares foreign keys
	ScopeByID ScopeMode = "id"
)

// ParseScopeMode parses a configured scope mode
func ParseScopeMode(s string) (ScopeMode, error) {
	switch ScopeMode(s) {
	case ScopeByName, ScopeByID:
		return ScopeMode(s), nil
	case "":
		return ScopeByName, nil
	default:
		return "", fmt.Errorf("invalid scope mode %q (must be %q or %q)", s, ScopeByName, ScopeByID)
	}
}

// ScopeLevel identifies which report attribute a scope constrains
type ScopeLevel string

const (
	ScopeNone        ScopeLevel = "none"
	ScopeOwner       ScopeLevel = "owner"
	ScopeSubdistrict ScopeLevel = "subdistrict"
	ScopeCity        ScopeLevel = "city"
)

// Scope is the set of reports an actor may see.
// Repositories translate it into a query; Matches evaluates it in memory.
type Scope struct {
	Level   ScopeLevel
	Mode    ScopeMode
	ActorID int64
	ID      int64
	Name    string
}

// Matches reports whether r falls inside the scope
func (s Scope) Matches(r *entity.Report) bool {
	switch s.Level {
	case ScopeOwner:
		return r.CreatedBy == s.ActorID
	case ScopeSubdistrict:
		return s.match(r.SubdistrictID, r.SubdistrictName)
	case ScopeCity:
		return s.match(r.CityID, r.CityName)
	default:
		return false
	}
}

func (s Scope) match(id int64, name string) bool {
	if s.Mode == ScopeByID {
		return s.ID > 0 && id == s.ID
	}
	return s.Name != "" && name == s.Name
}

// scopeFor derives the visibility scope of an actor
func scopeFor(mode ScopeMode, actor entity.Actor) Scope {
	switch actor.Role {
	case entity.RoleBranchUser:
		return Scope{Level: ScopeOwner, Mode: mode, ActorID: actor.ID}
	case entity.RoleSubdistrictAdmin:
		return Scope{Level: ScopeSubdistrict, Mode: mode, ActorID: actor.ID, ID: actor.SubdistrictID, Name: actor.SubdistrictName}
	case entity.RoleCityAdmin:
		return Scope{Level: ScopeCity, Mode: mode, ActorID: actor.ID, ID: actor.CityID, Name: actor.CityName}
	default:
		return Scope{Level: ScopeNone, Mode: mode, ActorID: actor.ID}
	}
}

// Package access decides what a user may see and do, based on their role and jurisdiction.
package access

import (
	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/user"
)

type scopeKind int

const (
	scopeDenied scopeKind = iota
	scopeNational
	scopeState
	scopeDistrict
	scopeVillage
	scopeAgency
)

// Scope is the set of locations a user can read.
// It is one of National, State(s), District(s, d), Village(s, d, v), Agency(a) or Denied.
type Scope struct {
	kind     scopeKind
	state    string
	district string
	village  string
	agency   string
}

func National() Scope { return Scope{kind: scopeNational} }

func State(state string) Scope { return Scope{kind: scopeState, state: state} }

func District(state, district string) Scope {
	return Scope{kind: scopeDistrict, state: state, district: district}
}

func Village(state, district, village string) Scope {
	return Scope{kind: scopeVillage, state: state, district: district, village: village}
}

func Agency(agency string) Scope { return Scope{kind: scopeAgency, agency: agency} }

func Denied() Scope { return Scope{kind: scopeDenied} }

// ScopeOf builds the read scope of usr.
// A tiered user missing one of the jurisdiction fields their tier needs gets Denied.
func ScopeOf(usr user.User) Scope {
	if !usr.Active() {
		return Denied()
	}
	j := usr.Jurisdiction

	switch usr.Role {
	case user.RoleSuperAdmin, user.RoleCentralAdmin, user.RoleAuditorOversight:
		return National()
	case user.RoleContractorVendor:
		if usr.Agency == "" {
			return Denied()
		}
		return Agency(usr.Agency)
	}

	switch user.RoleTier(usr.Role) {
	case user.TierState:
		if j.State == "" {
			return Denied()
		}
		return State(j.State)
	case user.TierDistrict:
		if j.State == "" || j.District == "" {
			return Denied()
		}
		return District(j.State, j.District)
	case user.TierVillage:
		if j.State == "" || j.District == "" || j.Village == "" {
			return Denied()
		}
		return Village(j.State, j.District, j.Village)
	default:
		return Denied()
	}
}

// Covers reports whether a resource at loc, run by agency, is within the scope.
func (s Scope) Covers(loc core.Location, agency string) bool {
	switch s.kind {
	case scopeNational:
		return true
	case scopeState:
		return s.state == loc.State
	case scopeDistrict:
		return s.state == loc.State && s.district == loc.District
	case scopeVillage:
		return s.state == loc.State && s.district == loc.District && s.village == loc.Village
	case scopeAgency:
		return agency != "" && s.agency == agency
	default:
		return false
	}
}

func (s Scope) IsDenied() bool { return s.kind == scopeDenied }

func (s Scope) IsNational() bool { return s.kind == scopeNational }

// Filter holds the equality constraints a repository applies to only return in-scope documents.
// Empty fields are unconstrained; Deny matches nothing.
type Filter struct {
	Deny     bool
	State    string
	District string
	Village  string
	Agency   string
}

func (s Scope) Filter() Filter {
	switch s.kind {
	case scopeNational:
		return Filter{}
	case scopeState:
		return Filter{State: s.state}
	case scopeDistrict:
		return Filter{State: s.state, District: s.district}
	case scopeVillage:
		return Filter{State: s.state, District: s.district, Village: s.village}
	case scopeAgency:
		return Filter{Agency: s.agency}
	default:
		return Filter{Deny: true}
	}
}

// Matches is the in-memory counterpart of the repository filter.
func (f Filter) Matches(loc core.Location, agency string) bool {
	if f.Deny {
		return false
	}
	return (f.State == "" || f.State == loc.State) &&
		(f.District == "" || f.District == loc.District) &&
		(f.Village == "" || f.Village == loc.Village) &&
		(f.Agency == "" || f.Agency == agency)
}

func (s Scope) String() string {
	switch s.kind {
	case scopeNational:
		return "national"
	case scopeState:
		return "state(" + s.state + ")"
	case scopeDistrict:
		return "district(" + s.state + "/" + s.district + ")"
	case scopeVillage:
		return "village(" + s.state + "/" + s.district + "/" + s.village + ")"
	case scopeAgency:
		return "agency(" + s.agency + ")"
	default:
		return "denied"
	}
}

package access

import (
	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/user"
)

type Resource string

const (
	ResourceProject     Resource = "project"
	ResourceMilestone   Resource = "milestone"
	ResourceBeneficiary Resource = "beneficiary"
	ResourceFund        Resource = "fund transaction"
	ResourceProgress    Resource = "progress update"
	ResourceMessage     Resource = "message"
)

type Action string

const (
	ActionRead    Action = "read"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionVerify  Action = "verify"
	ActionApprove Action = "approve"
	ActionRelease Action = "release"
)

// Target is the project-level location every resource inherits.
type Target struct {
	Location core.Location
	Agency   string // implementing agency
}

var (
	national      = []string{user.RoleSuperAdmin, user.RoleCentralAdmin}
	stateAdmins   = []string{user.RoleStateNodalAdmin, user.RoleStateSCCorporationAdmin}
	districtAdmin = []string{user.RoleDistrictCollector, user.RoleDistrictPACCAdmin}

	// allowLists maps write operations to the roles allowed to perform them. Reads are not listed.
	allowLists = map[Resource]map[Action][]string{
		ResourceProject: {
			ActionCreate:  roles(national, stateAdmins, []string{user.RoleDistrictCollector}),
			ActionUpdate:  roles(national, stateAdmins, districtAdmin, []string{user.RoleImplementingAgencyUser}),
			ActionDelete:  roles(national),
			ActionApprove: roles(national, stateAdmins, districtAdmin),
		},
		ResourceMilestone: {
			ActionCreate: roles(national, []string{user.RoleStateNodalAdmin}, districtAdmin, []string{user.RoleImplementingAgencyUser}),
			ActionUpdate: roles(national, []string{user.RoleStateNodalAdmin}, districtAdmin, []string{user.RoleImplementingAgencyUser}),
			ActionDelete: roles(national, []string{user.RoleStateNodalAdmin, user.RoleDistrictCollector}),
			ActionVerify: roles(national, []string{user.RoleStateNodalAdmin}, districtAdmin),
		},
		ResourceBeneficiary: {
			ActionCreate: roles(national, stateAdmins, districtAdmin, []string{user.RoleGramPanchayatUser}),
			ActionUpdate: roles(national, stateAdmins, districtAdmin, []string{user.RoleGramPanchayatUser}),
			ActionDelete: roles(national, []string{user.RoleStateNodalAdmin, user.RoleDistrictCollector}),
			ActionVerify: roles(national, stateAdmins, districtAdmin),
		},
		ResourceFund: {
			ActionCreate:  roles(national, stateAdmins, []string{user.RoleDistrictCollector}),
			ActionApprove: roles(national, stateAdmins, districtAdmin),
			ActionRelease: roles(national, stateAdmins),
		},
		ResourceProgress: {
			ActionCreate: roles(national, []string{user.RoleStateNodalAdmin}, districtAdmin,
				[]string{user.RoleImplementingAgencyUser, user.RoleGramPanchayatUser, user.RoleContractorVendor}),
			// creators may always update/delete their own updates (within the window for deletes)
			ActionUpdate: roles(national, []string{user.RoleStateNodalAdmin}, districtAdmin),
			ActionDelete: roles(national, []string{user.RoleStateNodalAdmin, user.RoleDistrictCollector}),
		},
		ResourceMessage: {
			ActionCreate: []string{user.RoleGramPanchayatUser, user.RoleDistrictPACCAdmin},
		},
	}
)

func roles(groups ...[]string) []string {
	out := make([]string, 0)
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// CanAccess reports whether usr can read a resource located at target.
func CanAccess(usr user.User, target Target) bool {
	return ScopeOf(usr).Covers(target.Location, target.Agency)
}

// Allowed reports whether the role of usr is on the allow-list of the write operation.
// Reads are always allowed by role; they are decided by CanAccess.
func Allowed(usr user.User, res Resource, act Action) bool {
	if act == ActionRead {
		return true
	}
	ops, ok := allowLists[res]
	if !ok {
		return false
	}
	return core.ContainsString(ops[act], usr.Role)
}

// Can combines the role allow-list with the jurisdiction check.
func Can(usr user.User, res Resource, act Action, target Target) bool {
	return Allowed(usr, res, act) && CanAccess(usr, target)
}

// Check is Can returning a core.ForbiddenError describing the failed check.
func Check(usr user.User, res Resource, act Action, target Target) error {
	if !Allowed(usr, res, act) {
		return core.NewForbiddenError("role %s cannot %s a %s", usr.Role, act, res)
	}
	if !CanAccess(usr, target) {
		return core.NewForbiddenError("%s is outside your jurisdiction", res)
	}
	return nil
}

// AllowedRoles returns a copy of the allow-list of a write operation.
func AllowedRoles(res Resource, act Action) []string {
	src := allowLists[res][act]
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// IsAdminTier reports whether usr administers projects (as opposed to reporting on them).
func IsAdminTier(usr user.User) bool {
	return Allowed(usr, ResourceProgress, ActionUpdate)
}

package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/user"
)

func newUser(role string, j core.Location, agency ...string) user.User {
	usr := user.User{ID: role, Role: role, Jurisdiction: j}
	if len(agency) > 0 {
		usr.Agency = agency[0]
	}
	return usr
}

var (
	cuttack     = core.Location{State: "Odisha", District: "Cuttack", Village: "Athagarh"}
	puri        = core.Location{State: "Odisha", District: "Puri", Village: "Konark"}
	patna       = core.Location{State: "Bihar", District: "Patna", Village: "Danapur"}
	cuttackProj = Target{Location: cuttack, Agency: "OSCSDC"}
	puriProj    = Target{Location: puri, Agency: "Puri Works"}
	patnaProj   = Target{Location: patna}
)

func TestScopeOf(t *testing.T) {
	inactive := newUser(user.RoleCentralAdmin, core.Location{})
	inactive.SetActive(false)

	tests := []struct {
		name string
		usr  user.User
		want string
	}{
		{name: "super admin", usr: newUser(user.RoleSuperAdmin, core.Location{}), want: "national"},
		{name: "auditor", usr: newUser(user.RoleAuditorOversight, core.Location{}), want: "national"},
		{name: "state admin", usr: newUser(user.RoleStateNodalAdmin, cuttack), want: "state(Odisha)"},
		{name: "state admin without state", usr: newUser(user.RoleStateSCCorporationAdmin, core.Location{}), want: "denied"},
		{name: "collector", usr: newUser(user.RoleDistrictCollector, cuttack), want: "district(Odisha/Cuttack)"},
		{name: "collector without district", usr: newUser(user.RoleDistrictCollector, core.Location{State: "Odisha"}), want: "denied"},
		{name: "agency user", usr: newUser(user.RoleImplementingAgencyUser, puri), want: "district(Odisha/Puri)"},
		{name: "gram panchayat", usr: newUser(user.RoleGramPanchayatUser, cuttack), want: "village(Odisha/Cuttack/Athagarh)"},
		{name: "gram panchayat without village", usr: newUser(user.RoleGramPanchayatUser, core.Location{State: "Odisha", District: "Cuttack"}), want: "denied"},
		{name: "contractor", usr: newUser(user.RoleContractorVendor, core.Location{}, "OSCSDC"), want: "agency(OSCSDC)"},
		{name: "contractor without agency", usr: newUser(user.RoleContractorVendor, core.Location{}), want: "denied"},
		{name: "technical support", usr: newUser(user.RoleTechnicalSupport, cuttack), want: "denied"},
		{name: "unknown role", usr: newUser("janitor", cuttack), want: "denied"},
		{name: "inactive", usr: inactive, want: "denied"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScopeOf(tt.usr).String())
		})
	}
}

func TestCanAccess(t *testing.T) {
	tests := []struct {
		name   string
		usr    user.User
		target Target
		want   bool
	}{
		{name: "central sees everything", usr: newUser(user.RoleCentralAdmin, core.Location{}), target: patnaProj, want: true},
		{name: "state admin, same state", usr: newUser(user.RoleStateNodalAdmin, cuttack), target: puriProj, want: true},
		{name: "state admin, other state", usr: newUser(user.RoleStateNodalAdmin, cuttack), target: patnaProj, want: false},
		{name: "collector, own district", usr: newUser(user.RoleDistrictCollector, cuttack), target: cuttackProj, want: true},
		{name: "collector, other district", usr: newUser(user.RoleDistrictCollector, cuttack), target: puriProj, want: false},
		{name: "gram panchayat, own village", usr: newUser(user.RoleGramPanchayatUser, cuttack), target: cuttackProj, want: true},
		{
			name:   "gram panchayat, other village",
			usr:    newUser(user.RoleGramPanchayatUser, core.Location{State: "Odisha", District: "Cuttack", Village: "Banki"}),
			target: cuttackProj,
			want:   false,
		},
		{name: "contractor, own agency", usr: newUser(user.RoleContractorVendor, core.Location{}, "OSCSDC"), target: cuttackProj, want: true},
		{name: "contractor, other agency", usr: newUser(user.RoleContractorVendor, core.Location{}, "OSCSDC"), target: puriProj, want: false},
		{name: "contractor, project without agency", usr: newUser(user.RoleContractorVendor, core.Location{}, "OSCSDC"), target: patnaProj, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAccess(tt.usr, tt.target))
			// the repository filter must agree with the predicate
			assert.Equal(t, tt.want, ScopeOf(tt.usr).Filter().Matches(tt.target.Location, tt.target.Agency))
		})
	}
}

func TestCheck(t *testing.T) {
	collector := newUser(user.RoleDistrictCollector, cuttack)
	gp := newUser(user.RoleGramPanchayatUser, cuttack)

	tests := []struct {
		name    string
		usr     user.User
		res     Resource
		act     Action
		target  Target
		wantErr bool
	}{
		{name: "collector creates a fund transaction at home", usr: collector, res: ResourceFund, act: ActionCreate, target: cuttackProj},
		{name: "collector cannot act in Puri", usr: collector, res: ResourceFund, act: ActionCreate, target: puriProj, wantErr: true},
		{name: "collector cannot release funds", usr: collector, res: ResourceFund, act: ActionRelease, target: cuttackProj, wantErr: true},
		{name: "gram panchayat registers beneficiaries", usr: gp, res: ResourceBeneficiary, act: ActionCreate, target: cuttackProj},
		{name: "gram panchayat cannot verify beneficiaries", usr: gp, res: ResourceBeneficiary, act: ActionVerify, target: cuttackProj, wantErr: true},
		{name: "gram panchayat sends messages", usr: gp, res: ResourceMessage, act: ActionCreate, target: cuttackProj},
		{name: "collector cannot send messages", usr: collector, res: ResourceMessage, act: ActionCreate, target: cuttackProj, wantErr: true},
		{name: "reads only need the jurisdiction", usr: gp, res: ResourceFund, act: ActionRead, target: cuttackProj},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.usr, tt.res, tt.act, tt.target)
			if tt.wantErr {
				assert.True(t, core.IsForbidden(err), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, !tt.wantErr, Can(tt.usr, tt.res, tt.act, tt.target))
		})
	}
}

func TestAllowedRoles_returnsCopy(t *testing.T) {
	roles := AllowedRoles(ResourceMessage, ActionCreate)
	assert.ElementsMatch(t, []string{user.RoleGramPanchayatUser, user.RoleDistrictPACCAdmin}, roles)

	roles[0] = user.RoleSuperAdmin
	assert.False(t, Allowed(newUser(user.RoleSuperAdmin, core.Location{}), ResourceMessage, ActionCreate))
}

func TestAllowLists_onlyKnownRoles(t *testing.T) {
	for res, acts := range allowLists {
		for act, list := range acts {
			assert.NotEmpty(t, list, "%s/%s", res, act)
			for _, r := range list {
				assert.True(t, user.IsValidRole(r), "%s/%s lists unknown role %q", res, act, r)
			}
		}
	}

	got := roles(national, []string{user.RoleDistrictCollector})
	assert.Equal(t, []string{user.RoleSuperAdmin, user.RoleCentralAdmin, user.RoleDistrictCollector}, got)
}

func TestIsAdminTier(t *testing.T) {
	assert.True(t, IsAdminTier(newUser(user.RoleDistrictPACCAdmin, cuttack)))
	assert.True(t, IsAdminTier(newUser(user.RoleSuperAdmin, core.Location{})))
	assert.False(t, IsAdminTier(newUser(user.RoleImplementingAgencyUser, cuttack)))
	assert.False(t, IsAdminTier(newUser(user.RoleContractorVendor, core.Location{}, "OSCSDC")))
}

package user

// Role tags
const (
	RoleSuperAdmin              = "super_admin"
	RoleCentralAdmin            = "central_admin"
	RoleStateNodalAdmin         = "state_nodal_admin"
	RoleStateSCCorporationAdmin = "state_sc_corporation_admin"
	RoleDistrictCollector       = "district_collector"
	RoleDistrictPACCAdmin       = "district_pacc_admin"
	RoleImplementingAgencyUser  = "implementing_agency_user"
	RoleGramPanchayatUser       = "gram_panchayat_user"
	RoleContractorVendor        = "contractor_vendor"
	RoleAuditorOversight        = "auditor_oversight"
	RoleTechnicalSupport        = "technical_support"
)

// Permissions
const (
	PermManageUsers           = "manage_users"
	PermViewAllProjects       = "view_all_projects"
	PermCreateProject         = "create_project"
	PermApproveProjects       = "approve_projects"
	PermApproveFunds          = "approve_funds"
	PermReleaseFunds          = "release_funds"
	PermManageBeneficiaries   = "manage_beneficiaries"
	PermVerifyMilestones      = "verify_milestones"
	PermSubmitProgress        = "submit_progress"
	PermViewReports           = "view_reports"
	PermAuditAccess           = "audit_access"
	PermSendMessages          = "send_messages"
	PermSystemSettings        = "system_settings"
	PermTechnicalSupport      = "technical_support"
	PermViewAssignedProjects  = "view_assigned_projects"
	PermUpdateProjectProgress = "update_project_progress"
)

// Tier is the administrative level a role is scoped to.
type Tier int

const (
	TierNone Tier = iota
	TierVillage
	TierDistrict
	TierState
	TierNational
)

func (t Tier) String() string {
	switch t {
	case TierVillage:
		return "village"
	case TierDistrict:
		return "district"
	case TierState:
		return "state"
	case TierNational:
		return "national"
	default:
		return "none"
	}
}

// RoleInfo describes a role. Values are read through LookupRole, which hands out copies.
type RoleInfo struct {
	Value          string   `json:"value"`
	Name           string   `json:"name"`
	Tier           Tier     `json:"-"`
	Priority       int      `json:"priority"`
	Permissions    []string `json:"permissions"`
	DashboardRoute string   `json:"dashboard_route"`
}

func (ri RoleInfo) copy() RoleInfo {
	perms := make([]string, len(ri.Permissions))
	copy(perms, ri.Permissions)
	ri.Permissions = perms
	return ri
}

var (
	roleTable = buildRoleTable()

	// AllRoles lists role tags from the highest priority to the lowest.
	AllRoles = []string{
		RoleSuperAdmin,
		RoleCentralAdmin,
		RoleStateNodalAdmin,
		RoleStateSCCorporationAdmin,
		RoleDistrictCollector,
		RoleDistrictPACCAdmin,
		RoleAuditorOversight,
		RoleImplementingAgencyUser,
		RoleGramPanchayatUser,
		RoleContractorVendor,
		RoleTechnicalSupport,
	}
)

func buildRoleTable() map[string]RoleInfo {
	roles := []RoleInfo{
		{
			Value: RoleSuperAdmin, Name: "Super Admin", Tier: TierNational, Priority: 100,
			DashboardRoute: "/dashboard/super-admin",
			Permissions: []string{
				PermManageUsers, PermViewAllProjects, PermCreateProject, PermApproveProjects, PermApproveFunds,
				PermReleaseFunds, PermManageBeneficiaries, PermVerifyMilestones, PermViewReports, PermAuditAccess,
				PermSystemSettings,
			},
		},
		{
			Value: RoleCentralAdmin, Name: "Central Admin", Tier: TierNational, Priority: 90,
			DashboardRoute: "/dashboard/central-admin",
			Permissions: []string{
				PermManageUsers, PermViewAllProjects, PermCreateProject, PermApproveProjects, PermApproveFunds,
				PermReleaseFunds, PermViewReports, PermAuditAccess,
			},
		},
		{
			Value: RoleStateNodalAdmin, Name: "State Nodal Admin", Tier: TierState, Priority: 80,
			DashboardRoute: "/dashboard/state-nodal",
			Permissions: []string{
				PermManageUsers, PermCreateProject, PermApproveProjects, PermApproveFunds, PermReleaseFunds,
				PermManageBeneficiaries, PermVerifyMilestones, PermViewReports,
			},
		},
		{
			Value: RoleStateSCCorporationAdmin, Name: "State SC Corporation Admin", Tier: TierState, Priority: 75,
			DashboardRoute: "/dashboard/state-sc-corporation",
			Permissions: []string{
				PermCreateProject, PermApproveFunds, PermReleaseFunds, PermManageBeneficiaries, PermViewReports,
			},
		},
		{
			Value: RoleDistrictCollector, Name: "District Collector", Tier: TierDistrict, Priority: 70,
			DashboardRoute: "/dashboard/district-collector",
			Permissions: []string{
				PermManageUsers, PermCreateProject, PermApproveProjects, PermApproveFunds, PermManageBeneficiaries,
				PermVerifyMilestones, PermViewReports,
			},
		},
		{
			Value: RoleDistrictPACCAdmin, Name: "District PACC Admin", Tier: TierDistrict, Priority: 65,
			DashboardRoute: "/dashboard/district-pacc",
			Permissions: []string{
				PermApproveProjects, PermApproveFunds, PermManageBeneficiaries, PermVerifyMilestones,
				PermViewReports, PermSendMessages,
			},
		},
		{
			Value: RoleAuditorOversight, Name: "Auditor / Oversight", Tier: TierNational, Priority: 60,
			DashboardRoute: "/dashboard/auditor",
			Permissions:    []string{PermViewAllProjects, PermViewReports, PermAuditAccess},
		},
		{
			Value: RoleImplementingAgencyUser, Name: "Implementing Agency User", Tier: TierDistrict, Priority: 50,
			DashboardRoute: "/dashboard/implementing-agency",
			Permissions:    []string{PermViewAssignedProjects, PermSubmitProgress, PermUpdateProjectProgress},
		},
		{
			Value: RoleGramPanchayatUser, Name: "Gram Panchayat User", Tier: TierVillage, Priority: 40,
			DashboardRoute: "/dashboard/gram-panchayat",
			Permissions: []string{
				PermViewAssignedProjects, PermSubmitProgress, PermManageBeneficiaries, PermSendMessages,
			},
		},
		{
			Value: RoleContractorVendor, Name: "Contractor / Vendor", Tier: TierNone, Priority: 30,
			DashboardRoute: "/dashboard/contractor",
			Permissions:    []string{PermViewAssignedProjects, PermSubmitProgress},
		},
		{
			Value: RoleTechnicalSupport, Name: "Technical Support", Tier: TierNone, Priority: 20,
			DashboardRoute: "/dashboard/technical-support",
			Permissions:    []string{PermSystemSettings, PermTechnicalSupport},
		},
	}

	table := make(map[string]RoleInfo, len(roles))
	for _, ri := range roles {
		table[ri.Value] = ri
	}
	return table
}

// LookupRole returns a copy of the role's description.
func LookupRole(role string) (RoleInfo, bool) {
	ri, ok := roleTable[role]
	if !ok {
		return RoleInfo{}, false
	}
	return ri.copy(), true
}

// Roles returns the role table ordered from the highest priority to the lowest.
func Roles() []RoleInfo {
	roles := make([]RoleInfo, 0, len(AllRoles))
	for _, r := range AllRoles {
		roles = append(roles, roleTable[r].copy())
	}
	return roles
}

func IsValidRole(role string) bool {
	_, ok := roleTable[role]
	return ok
}

func RolePriority(role string) int {
	return roleTable[role].Priority
}

func RoleTier(role string) Tier {
	return roleTable[role].Tier
}

func RoleHasPermission(role, perm string) bool {
	for _, p := range roleTable[role].Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

package user_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/user"
	"github.com/trezcool/pmajay/services/email"
	"github.com/trezcool/pmajay/testutil"
)

const strongPwd = "Str0ng!Pass"

var cuttack = testutil.Loc("Odisha", "Cuttack", "Athagarh")

func newUser(role string, loc core.Location) user.NewUser {
	return user.NewUser{
		Name:            "Asha Das",
		Email:           "asha@odisha.gov.in",
		Password:        strongPwd,
		PasswordConfirm: strongPwd,
		Role:            role,
		Jurisdiction:    loc,
	}
}

func TestNewUser_Validate(t *testing.T) {
	env := testutil.NewEnv()
	testutil.CreateUser(t, env.Users, "Taken", "taken@odisha.gov.in", "", user.RoleGramPanchayatUser, cuttack)

	tests := []struct {
		name    string
		modify  func(nu *user.NewUser)
		wantErr bool
	}{
		{name: "valid", modify: func(nu *user.NewUser) {}},
		{name: "national roles need no jurisdiction", modify: func(nu *user.NewUser) { nu.Role = user.RoleCentralAdmin; nu.Jurisdiction = core.Location{} }},
		{name: "village missing", modify: func(nu *user.NewUser) { nu.Jurisdiction.Village = "" }, wantErr: true},
		{name: "district missing", modify: func(nu *user.NewUser) { nu.Role = user.RoleDistrictCollector; nu.Jurisdiction.District = "" }, wantErr: true},
		{name: "state missing", modify: func(nu *user.NewUser) { nu.Role = user.RoleStateNodalAdmin; nu.Jurisdiction = core.Location{} }, wantErr: true},
		{name: "contractor without agency", modify: func(nu *user.NewUser) { nu.Role = user.RoleContractorVendor }, wantErr: true},
		{name: "unknown role", modify: func(nu *user.NewUser) { nu.Role = "village_head" }, wantErr: true},
		{name: "unknown extra permission", modify: func(nu *user.NewUser) { nu.ExtraPermissions = []string{"fly"} }, wantErr: true},
		{name: "role-bound extra permission", modify: func(nu *user.NewUser) { nu.ExtraPermissions = []string{user.PermApproveFunds} }, wantErr: true},
		{name: "user management grant", modify: func(nu *user.NewUser) { nu.ExtraPermissions = []string{user.PermManageUsers} }},
		{name: "bad phone", modify: func(nu *user.NewUser) { nu.Phone = "12" }, wantErr: true},
		{name: "confirmation mismatch", modify: func(nu *user.NewUser) { nu.PasswordConfirm = "Str0ng!Pas" }, wantErr: true},
		{name: "short password", modify: func(nu *user.NewUser) { nu.Password = "Ab1!"; nu.PasswordConfirm = nu.Password }, wantErr: true},
		{name: "numeric password", modify: func(nu *user.NewUser) { nu.Password = "1234567890"; nu.PasswordConfirm = nu.Password }, wantErr: true},
		{name: "simple password", modify: func(nu *user.NewUser) { nu.Password = "abcdefgh1"; nu.PasswordConfirm = nu.Password }, wantErr: true},
		{name: "common password", modify: func(nu *user.NewUser) { nu.Password = "Admin@123"; nu.PasswordConfirm = nu.Password }, wantErr: true},
		{name: "password like the name", modify: func(nu *user.NewUser) { nu.Password = "Asha.Das@1"; nu.PasswordConfirm = nu.Password }, wantErr: true},
		{name: "email taken", modify: func(nu *user.NewUser) { nu.Email = " TAKEN@odisha.gov.in " }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := newUser(user.RoleGramPanchayatUser, cuttack)
			tt.modify(&nu)
			err := nu.Validate(testutil.Validate, env.UserSvc)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestService_Create(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()

	nu := newUser(user.RoleGramPanchayatUser, cuttack)
	nu.Email = " Asha@Odisha.gov.in "
	require.NoError(t, nu.Validate(testutil.Validate, env.UserSvc))
	usr, err := env.UserSvc.Create(ctx, nu)
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID)
	assert.Equal(t, "asha@odisha.gov.in", usr.Email)
	assert.True(t, usr.Active())
	assert.NoError(t, usr.CheckPassword(strongPwd))
	assert.Equal(t, "/dashboard/gram-panchayat", usr.DashboardRoute())

	err = env.UserSvc.CheckEmailUniqueness("asha@odisha.gov.in")
	assert.True(t, core.IsValidationError(err))
	assert.NoError(t, env.UserSvc.CheckEmailUniqueness("asha@odisha.gov.in", usr.ID))
}

func TestService_Provision(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	nodal := testutil.CreateUser(t, env.Users, "Odisha Nodal", "nodal@odisha.gov.in", "", user.RoleStateNodalAdmin, testutil.Loc("Odisha", ""))
	collector := testutil.CreateUser(t, env.Users, "Cuttack Collector", "dc@cuttack.gov.in", "", user.RoleDistrictCollector, cuttack)
	gp := testutil.CreateUser(t, env.Users, "Athagarh GP", "gp@athagarh.in", "", user.RoleGramPanchayatUser, cuttack)

	tests := []struct {
		name  string
		actor user.User
		nu    user.NewUser
		check func(error) bool
	}{
		{name: "no manage_users", actor: gp, nu: newUser(user.RoleGramPanchayatUser, cuttack), check: core.IsForbidden},
		{name: "role above the actor", actor: collector, nu: newUser(user.RoleStateNodalAdmin, testutil.Loc("Odisha", "")), check: core.IsValidationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.UserSvc.Provision(ctx, tt.actor, tt.nu)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}

	usr, err := env.UserSvc.Provision(ctx, nodal, newUser(user.RoleDistrictCollector, cuttack))
	require.NoError(t, err)
	assert.Equal(t, user.RoleDistrictCollector, usr.Role)
}

func TestService_Update(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	super := testutil.CreateUser(t, env.Users, "Root", "root@pmajay.gov.in", "", user.RoleSuperAdmin, core.Location{})
	central := testutil.CreateUser(t, env.Users, "Central", "central@pmajay.gov.in", "", user.RoleCentralAdmin, core.Location{})
	collector := testutil.CreateUser(t, env.Users, "Cuttack Collector", "dc@cuttack.gov.in", "", user.RoleDistrictCollector, cuttack)
	gp := testutil.CreateUser(t, env.Users, "Athagarh GP", "gp@athagarh.in", "", user.RoleGramPanchayatUser, cuttack)

	strPtr := func(s string) *string { return &s }
	bPtr := func(b bool) *bool { return &b }

	tests := []struct {
		name  string
		actor user.User
		id    string
		uu    user.UpdateUser
		check func(error) bool
	}{
		{name: "self role change", actor: gp, id: gp.ID, uu: user.UpdateUser{Role: strPtr(user.RoleDistrictCollector)}, check: core.IsForbidden},
		{name: "self deactivation", actor: gp, id: gp.ID, uu: user.UpdateUser{IsActive: bPtr(false)}, check: core.IsForbidden},
		{name: "someone else without manage_users", actor: gp, id: collector.ID, uu: user.UpdateUser{Name: strPtr("X")}, check: core.IsForbidden},
		{name: "higher role", actor: collector, id: central.ID, uu: user.UpdateUser{Name: strPtr("X")}, check: core.IsForbidden},
		{name: "super admin is protected", actor: central, id: super.ID, uu: user.UpdateUser{Name: strPtr("X")}, check: core.IsForbidden},
		{name: "promotion above the actor", actor: central, id: gp.ID, uu: user.UpdateUser{Role: strPtr(user.RoleSuperAdmin)}, check: core.IsValidationError},
		{name: "unknown user", actor: central, id: "nope", uu: user.UpdateUser{}, check: core.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.UserSvc.Update(ctx, tt.actor, tt.id, tt.uu)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}

	t.Run("self service", func(t *testing.T) {
		usr, err := env.UserSvc.Update(ctx, gp, gp.ID, user.UpdateUser{Name: strPtr("Athagarh Panchayat"), Password: "N3w!Secret"})
		require.NoError(t, err)
		assert.Equal(t, "Athagarh Panchayat", usr.Name)
		assert.NoError(t, usr.CheckPassword("N3w!Secret"))
		assert.True(t, usr.UpdatedAt.After(gp.UpdatedAt) || usr.UpdatedAt.Equal(gp.UpdatedAt))
	})

	t.Run("collector deactivates a gram panchayat", func(t *testing.T) {
		usr, err := env.UserSvc.Update(ctx, collector, gp.ID, user.UpdateUser{IsActive: bPtr(false)})
		require.NoError(t, err)
		assert.False(t, usr.Active())
	})
}

func TestUpdateUser_Validate(t *testing.T) {
	env := testutil.NewEnv()
	gp := testutil.CreateUser(t, env.Users, "Athagarh GP", "gp@athagarh.in", "", user.RoleGramPanchayatUser, cuttack)
	testutil.CreateUser(t, env.Users, "Banki GP", "gp@banki.in", "", user.RoleGramPanchayatUser, testutil.Loc("Odisha", "Cuttack", "Banki"))

	strPtr := func(s string) *string { return &s }
	tests := []struct {
		name    string
		uu      user.UpdateUser
		wantErr bool
	}{
		{name: "nothing", uu: user.UpdateUser{}},
		{name: "same email", uu: user.UpdateUser{Email: strPtr("GP@athagarh.in")}},
		{name: "email taken", uu: user.UpdateUser{Email: strPtr("gp@banki.in")}, wantErr: true},
		{name: "promotion keeps the village", uu: user.UpdateUser{Role: strPtr(user.RoleDistrictCollector)}},
		{name: "jurisdiction loses the village", uu: user.UpdateUser{Jurisdiction: &core.Location{State: "Odisha", District: "Cuttack"}}, wantErr: true},
		{name: "password without confirmation", uu: user.UpdateUser{Password: strongPwd}, wantErr: true},
		{name: "weak password", uu: user.UpdateUser{Password: "weakweak", PasswordConfirm: "weakweak"}, wantErr: true},
		{name: "strong password", uu: user.UpdateUser{Password: strongPwd, PasswordConfirm: strongPwd}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.uu.Validate(gp, testutil.Validate, env.UserSvc)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestService_Delete(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	super := testutil.CreateUser(t, env.Users, "Root", "root@pmajay.gov.in", "", user.RoleSuperAdmin, core.Location{})
	central := testutil.CreateUser(t, env.Users, "Central", "central@pmajay.gov.in", "", user.RoleCentralAdmin, core.Location{})
	gp := testutil.CreateUser(t, env.Users, "Athagarh GP", "gp@athagarh.in", "", user.RoleGramPanchayatUser, cuttack)

	assert.True(t, core.IsForbidden(env.UserSvc.Delete(ctx, central, central.ID)), "nobody deletes themselves")
	assert.True(t, core.IsForbidden(env.UserSvc.Delete(ctx, gp, central.ID)))
	assert.True(t, core.IsForbidden(env.UserSvc.Delete(ctx, central, super.ID)))
	assert.True(t, core.IsNotFound(env.UserSvc.Delete(ctx, central, "nope")))

	require.NoError(t, env.UserSvc.Delete(ctx, central, gp.ID))
	_, err := env.UserSvc.GetByID(ctx, gp.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestService_SetLastLogin(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	gp := testutil.CreateUser(t, env.Users, "Athagarh GP", "gp@athagarh.in", "", user.RoleGramPanchayatUser, cuttack)
	require.Nil(t, gp.LastLogin)

	usr, err := env.UserSvc.SetLastLogin(ctx, gp)
	require.NoError(t, err)
	require.NotNil(t, usr.LastLogin)

	stored, err := env.UserSvc.GetByEmail(ctx, "GP@athagarh.in")
	require.NoError(t, err)
	require.NotNil(t, stored.LastLogin)
	assert.True(t, stored.LastLogin.Equal(*usr.LastLogin))
}

func TestService_passwordReset(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	gp := testutil.CreateUser(t, env.Users, "Athagarh GP", "gp@athagarh.in", strongPwd, user.RoleGramPanchayatUser, cuttack)
	retired := testutil.CreateUser(t, env.Users, "Old GP", "old@athagarh.in", strongPwd, user.RoleGramPanchayatUser, cuttack)
	retired.SetActive(false)
	_, err := env.Users.UpdateUser(ctx, retired)
	require.NoError(t, err)
	emailsvc.ResetSentMessages()

	assert.True(t, core.IsNotFound(env.UserSvc.RequestPasswordReset(ctx, "nobody@athagarh.in")))
	assert.True(t, core.IsNotFound(env.UserSvc.RequestPasswordReset(ctx, retired.Email)), "inactive accounts get nothing")
	assert.Empty(t, emailsvc.SentMessages())

	require.NoError(t, env.UserSvc.RequestPasswordReset(ctx, " GP@Athagarh.in "))
	sent := emailsvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, gp.Email, sent[0].To[0].Address)
	data, ok := sent[0].TemplateData.(map[string]interface{})
	require.True(t, ok)
	uid, _ := data["UID"].(string)
	token, _ := data["Token"].(string)
	assert.Contains(t, sent[0].TextContent, "/password-reset/"+uid+"/"+token)

	reset := func(uid, token, pwd string) error {
		rp := user.ResetUserPassword{UID: uid, Token: token, Password: pwd, PasswordConfirm: pwd}
		if err := rp.Validate(testutil.Validate); err != nil {
			return err
		}
		return env.UserSvc.ResetPassword(ctx, rp)
	}

	assert.Error(t, reset(uid, token, "weakweak"), "the password policy applies")
	assert.True(t, core.IsValidationError(reset(uid, "MQ-forged", "N3w!Secret")))
	assert.True(t, core.IsValidationError(reset(user.EncodeUID(retired), token, "N3w!Secret")))
	assert.True(t, core.IsValidationError(reset("%%%", token, "N3w!Secret")))

	require.NoError(t, reset(uid, token, "N3w!Secret"))
	usr, err := env.UserSvc.GetByID(ctx, gp.ID)
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword("N3w!Secret"))

	assert.True(t, core.IsValidationError(reset(uid, token, "An0ther!Secret")), "tokens are single use")
}

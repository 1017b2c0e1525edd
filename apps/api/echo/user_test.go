package echoapi_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/pmajay/apps/api/echo"
	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/user"
	"github.com/trezcool/pmajay/services/email"
	"github.com/trezcool/pmajay/testutil"
)

const pwd = "Str0ng!Pass"

func Test_userApi_login(t *testing.T) {
	app := setup(t)
	gp := testutil.CreateUser(t, app.env.Users, "Athagarh GP", "gp@athagarh.in", pwd, user.RoleGramPanchayatUser, cuttack)
	retired := testutil.CreateUser(t, app.env.Users, "Old GP", "old@athagarh.in", pwd, user.RoleGramPanchayatUser, cuttack)
	retired.SetActive(false)
	_, err := app.env.Users.UpdateUser(context.Background(), retired)
	require.NoError(t, err)

	authFailed := marchallObj(t, httpErr{Error: "authentication failed"})
	tests := []httpTest{
		{name: "missing fields", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "this field is required", "password": "this field is required"})},
		{name: "unknown email", body: marchallObj(t, echoapi.LoginRequest{Email: "nobody@athagarh.in", Password: pwd}), wantCode: http.StatusBadRequest, wantData: authFailed},
		{name: "wrong password", body: marchallObj(t, echoapi.LoginRequest{Email: gp.Email, Password: "nope"}), wantCode: http.StatusBadRequest, wantData: authFailed},
		{name: "deactivated", body: marchallObj(t, echoapi.LoginRequest{Email: retired.Email, Password: pwd}), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/api/users/login"
	}
	runHTTPTests(t, app, tests)

	t.Run("success", func(t *testing.T) {
		body := marchallObj(t, echoapi.LoginRequest{Email: " GP@Athagarh.in ", Password: pwd})
		rec := app.do(newRequest(http.MethodPost, "/api/users/login", body))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Token string `json:"token"`
			User  struct {
				ID             string   `json:"id"`
				Permissions    []string `json:"permissions"`
				DashboardRoute string   `json:"dashboard_route"`
			} `json:"user"`
		}
		unmarchall(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, gp.ID, resp.User.ID)
		assert.Equal(t, "/dashboard/gram-panchayat", resp.User.DashboardRoute)
		assert.Contains(t, resp.User.Permissions, user.PermSubmitProgress)

		stored, err := app.env.UserSvc.GetByID(context.Background(), gp.ID)
		require.NoError(t, err)
		assert.NotNil(t, stored.LastLogin)

		// the issued token is usable right away
		rec = app.do(newAuthRequest(http.MethodGet, "/api/users/me", resp.Token))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func Test_userApi_authentication(t *testing.T) {
	app := setup(t)
	gp := testutil.CreateUser(t, app.env.Users, "Athagarh GP", "gp@athagarh.in", "", user.RoleGramPanchayatUser, cuttack)
	token := getToken(t, app, gp)

	gone := testutil.CreateUser(t, app.env.Users, "Gone", "gone@athagarh.in", "", user.RoleGramPanchayatUser, cuttack)
	goneToken := getToken(t, app, gone)
	require.NoError(t, app.env.Users.DeleteUser(context.Background(), gone.ID))

	retired := testutil.CreateUser(t, app.env.Users, "Old GP", "old@athagarh.in", "", user.RoleGramPanchayatUser, cuttack)
	retiredToken := getToken(t, app, retired)
	retired.SetActive(false)
	_, err := app.env.Users.UpdateUser(context.Background(), retired)
	require.NoError(t, err)

	runHTTPTests(t, app, []httpTest{
		{name: "no token", path: "/api/users/me", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "garbage token", path: "/api/users/me", token: "not.a.jwt", wantCode: http.StatusUnauthorized},
		{name: "deleted account", path: "/api/users/me", token: goneToken, wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "user not authenticated"})},
		{name: "deactivated account", path: "/api/users/me", token: retiredToken, wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "me", path: "/api/users/me", token: token, wantCode: http.StatusOK, wantData: marchallObj(t, gp)},
		{name: "roles", path: "/api/roles", token: token, wantCode: http.StatusOK, wantData: marchallObj(t, user.Roles())},
	})

	t.Run("token refresh", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodPost, "/api/users/token-refresh", token))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp echoapi.LoginResponse
		unmarchall(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
	})
}

func Test_userApi_query(t *testing.T) {
	app := setup(t)
	central := testutil.CreateUser(t, app.env.Users, "Central", "central@pmajay.gov.in", "", user.RoleCentralAdmin, core.Location{})
	collector := testutil.CreateUser(t, app.env.Users, "Cuttack Collector", "dc@cuttack.gov.in", "", user.RoleDistrictCollector, cuttack)
	gp := testutil.CreateUser(t, app.env.Users, "Athagarh GP", "gp@athagarh.in", "", user.RoleGramPanchayatUser, cuttack)
	konark := testutil.CreateUser(t, app.env.Users, "Konark GP", "gp@konark.in", "", user.RoleGramPanchayatUser, puri)

	path := func(params map[string]string) string {
		v := make(url.Values)
		for k, val := range params {
			v.Set(k, val)
		}
		return "/api/users?" + v.Encode()
	}

	tests := []struct {
		name     string
		token    string
		path     string
		wantCode int
		wantIDs  []string
	}{
		{name: "manage_users required", token: getToken(t, app, gp), path: "/api/users", wantCode: http.StatusForbidden},
		{name: "central sees everyone", token: getToken(t, app, central), path: "/api/users",
			wantIDs: []string{gp.ID, central.ID, collector.ID, konark.ID}},
		{name: "collector sees their district", token: getToken(t, app, collector), path: "/api/users",
			wantIDs: []string{gp.ID, collector.ID}},
		{name: "filters cannot widen the scope", token: getToken(t, app, collector), path: path(map[string]string{"district": "Puri"}),
			wantIDs: []string{}},
		{name: "role filter", token: getToken(t, app, central), path: path(map[string]string{"role": user.RoleGramPanchayatUser}),
			wantIDs: []string{gp.ID, konark.ID}},
		{name: "search and ordering", token: getToken(t, app, central), path: path(map[string]string{"search": "GP", "ordering": "-email"}),
			wantIDs: []string{konark.ID, gp.ID}},
		{name: "pagination", token: getToken(t, app, central), path: path(map[string]string{"limit": "1", "page": "2"}),
			wantIDs: []string{central.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(newAuthRequest(http.MethodGet, tt.path, tt.token))
			if tt.wantCode != 0 {
				assert.Equal(t, tt.wantCode, rec.Code)
				return
			}
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var l list
			unmarchall(t, rec, &l)
			assert.Equal(t, tt.wantIDs, l.ids())
		})
	}

	t.Run("page info", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodGet, path(map[string]string{"limit": "3"}), getToken(t, app, central)))
		var l list
		unmarchall(t, rec, &l)
		assert.Equal(t, 1, l.Pagination.Page)
		assert.Equal(t, 3, l.Pagination.Limit)
		assert.Equal(t, 4, l.Pagination.Total)
		assert.Equal(t, 2, l.Pagination.Pages)
	})
}

func Test_userApi_register(t *testing.T) {
	app := setup(t)
	collector := testutil.CreateUser(t, app.env.Users, "Cuttack Collector", "dc@cuttack.gov.in", "", user.RoleDistrictCollector, cuttack)
	gp := testutil.CreateUser(t, app.env.Users, "Athagarh GP", "gp@athagarh.in", "", user.RoleGramPanchayatUser, cuttack)
	collectorToken := getToken(t, app, collector)

	newUser := func(email, role string, loc core.Location) []byte {
		return marchallObj(t, user.NewUser{
			Name: "Banki GP", Email: email, Password: pwd, PasswordConfirm: pwd, Role: role, Jurisdiction: loc,
		})
	}

	runHTTPTests(t, app, []httpTest{
		{name: "manage_users required", method: http.MethodPost, path: "/api/users/register", token: getToken(t, app, gp),
			body: newUser("banki@odisha.in", user.RoleGramPanchayatUser, cuttack), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermission)},
		{name: "invalid", method: http.MethodPost, path: "/api/users/register", token: collectorToken,
			body: newUser("not-an-email", user.RoleGramPanchayatUser, cuttack), wantCode: http.StatusBadRequest},
		{name: "outside the district", method: http.MethodPost, path: "/api/users/register", token: collectorToken,
			body: newUser("konark@odisha.in", user.RoleGramPanchayatUser, puri), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"jurisdiction": "outside your jurisdiction"})},
		{name: "role above the actor", method: http.MethodPost, path: "/api/users/register", token: collectorToken,
			body: newUser("nodal@odisha.in", user.RoleStateNodalAdmin, cuttack), wantCode: http.StatusBadRequest},
	})

	rec := app.do(newAuthRequest(http.MethodPost, "/api/users/register", collectorToken, newUser("banki@odisha.in", user.RoleGramPanchayatUser, cuttack)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	usr, err := app.env.UserSvc.GetByEmail(context.Background(), "banki@odisha.in")
	require.NoError(t, err)
	assert.Equal(t, user.RoleGramPanchayatUser, usr.Role)
	assert.NoError(t, usr.CheckPassword(pwd))
}

func Test_userApi_detail(t *testing.T) {
	app := setup(t)
	central := testutil.CreateUser(t, app.env.Users, "Central", "central@pmajay.gov.in", "", user.RoleCentralAdmin, core.Location{})
	collector := testutil.CreateUser(t, app.env.Users, "Cuttack Collector", "dc@cuttack.gov.in", "", user.RoleDistrictCollector, cuttack)
	gp := testutil.CreateUser(t, app.env.Users, "Athagarh GP", "gp@athagarh.in", "", user.RoleGramPanchayatUser, cuttack)
	konark := testutil.CreateUser(t, app.env.Users, "Konark GP", "gp@konark.in", "", user.RoleGramPanchayatUser, puri)
	gpToken := getToken(t, app, gp)
	collectorToken := getToken(t, app, collector)

	strPtr := func(s string) *string { return &s }

	runHTTPTests(t, app, []httpTest{
		{name: "self", path: "/api/users/" + gp.ID, token: gpToken, wantCode: http.StatusOK, wantData: marchallObj(t, gp)},
		{name: "someone else without manage_users", path: "/api/users/" + collector.ID, token: gpToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, errUsrNotFound)},
		{name: "manager within the district", path: "/api/users/" + gp.ID, token: collectorToken, wantCode: http.StatusOK, wantData: marchallObj(t, gp)},
		{name: "manager outside the district", path: "/api/users/" + konark.ID, token: collectorToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, errUsrNotFound)},
		{name: "unknown", path: "/api/users/nope", token: getToken(t, app, central), wantCode: http.StatusNotFound, wantData: marchallObj(t, errUsrNotFound)},
		{name: "self role change", method: http.MethodPut, path: "/api/users/" + gp.ID, token: gpToken,
			body: marchallObj(t, user.UpdateUser{Role: strPtr(user.RoleDistrictCollector)}), wantCode: http.StatusForbidden},
		{name: "gp cannot delete", method: http.MethodDelete, path: "/api/users/" + gp.ID, token: gpToken, wantCode: http.StatusForbidden},
		{name: "nobody deletes themselves", method: http.MethodDelete, path: "/api/users/" + collector.ID, token: collectorToken, wantCode: http.StatusForbidden},
	})

	t.Run("self update", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodPut, "/api/users/"+gp.ID, gpToken, marchallObj(t, user.UpdateUser{Name: strPtr("Athagarh Panchayat")})))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp struct {
			Name string `json:"name"`
		}
		unmarchall(t, rec, &resp)
		assert.Equal(t, "Athagarh Panchayat", resp.Name)
	})

	t.Run("collector deletes a gram panchayat", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodDelete, "/api/users/"+gp.ID, collectorToken))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		_, err := app.env.UserSvc.GetByID(context.Background(), gp.ID)
		assert.True(t, core.IsNotFound(err))
	})
}

func Test_userApi_passwordReset(t *testing.T) {
	app := setup(t)
	gp := testutil.CreateUser(t, app.env.Users, "Athagarh GP", "gp@athagarh.in", pwd, user.RoleGramPanchayatUser, cuttack)
	emailsvc.ResetSentMessages()

	sent := marchallObj(t, echoapi.SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
	runHTTPTests(t, app, []httpTest{
		{name: "invalid email", method: http.MethodPost, path: "/api/users/password-reset", body: []byte(`{"email": "lol"}`), wantCode: http.StatusBadRequest},
		{name: "unknown email looks the same", method: http.MethodPost, path: "/api/users/password-reset",
			body: marchallObj(t, echoapi.PasswordResetRequest{Email: "nobody@athagarh.in"}), wantCode: http.StatusOK, wantData: sent},
		{name: "known email", method: http.MethodPost, path: "/api/users/password-reset",
			body: marchallObj(t, echoapi.PasswordResetRequest{Email: gp.Email}), wantCode: http.StatusOK, wantData: sent},
	})

	msgs := emailsvc.SentMessages()
	require.Len(t, msgs, 1)
	data, ok := msgs[0].TemplateData.(map[string]interface{})
	require.True(t, ok)
	uid, _ := data["UID"].(string)
	token, _ := data["Token"].(string)

	confirm := func(token string) []byte {
		return marchallObj(t, user.ResetUserPassword{UID: uid, Token: token, Password: "N3w!Secret", PasswordConfirm: "N3w!Secret"})
	}
	runHTTPTests(t, app, []httpTest{
		{name: "forged token", method: http.MethodPost, path: "/api/users/password-reset-confirm", body: confirm("MQ-forged"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"token": "invalid or expired token"})},
		{name: "valid token", method: http.MethodPost, path: "/api/users/password-reset-confirm", body: confirm(token),
			wantCode: http.StatusOK, wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Password has been reset with the new password."})},
		{name: "token reuse", method: http.MethodPost, path: "/api/users/password-reset-confirm", body: confirm(token), wantCode: http.StatusBadRequest},
	})

	rec := app.do(newRequest(http.MethodPost, "/api/users/login", marchallObj(t, echoapi.LoginRequest{Email: gp.Email, Password: "N3w!Secret"})))
	assert.Equal(t, http.StatusOK, rec.Code)
}

package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/pmajay/apps/api/echo"
	"github.com/trezcool/pmajay/core/user"
	"github.com/trezcool/pmajay/services/notify"
	"github.com/trezcool/pmajay/testutil"
)

var (
	errMissingToken  = httpErr{Error: "missing or malformed jwt"}
	errPermission    = httpErr{Error: "permission denied"}
	errUsrNotFound   = httpErr{Error: "user not found"}
	cuttack          = testutil.Loc("Odisha", "Cuttack", "Athagarh")
	puri             = testutil.Loc("Odisha", "Puri", "Konark")
	odisha           = testutil.Loc("Odisha", "")
	jsonContentTypes = []string{"application/json", "application/json; charset=UTF-8"}
)

type testApp struct {
	*echoapi.Server
	env  *testutil.Env
	feed *notifysvc.MemoryFeed
}

func setup(t *testing.T) *testApp {
	t.Helper()
	env := testutil.NewEnv()
	feed := notifysvc.NewMemoryFeed(50)
	hub := notifysvc.NewHub(testutil.Logger)
	t.Cleanup(hub.Close)

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           env.Conf,
		Logger:         testutil.Logger,
		Validate:       testutil.Validate,
		Translator:     testutil.Translator,
		UserSvc:        env.UserSvc,
		ProjectSvc:     env.ProjectSvc,
		MilestoneSvc:   env.MilestoneSvc,
		BeneficiarySvc: env.BeneficiarySvc,
		FundSvc:        env.FundSvc,
		ProgressSvc:    env.ProgressSvc,
		MessageSvc:     env.MessageSvc,
		DashboardSvc:   env.DashboardSvc,
		Hub:            hub,
		Feed:           feed,
	})
	return &testApp{Server: server, env: env, feed: feed}
}

func (app *testApp) do(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

// list is the envelope of paginated responses, keeping only the ids of the items.
type list struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
	Pagination struct {
		Page  int `json:"page"`
		Limit int `json:"limit"`
		Total int `json:"total"`
		Pages int `json:"pages"`
	} `json:"pagination"`
}

func (l list) ids() []string {
	ids := make([]string, 0, len(l.Data))
	for _, d := range l.Data {
		ids = append(ids, d.ID)
	}
	return ids
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	if method == "" {
		method = http.MethodGet
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, app *testApp, usr user.User) string {
	t.Helper()
	token, err := app.GenerateToken(usr)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarchall(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("unmarchall(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app *testApp, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(newAuthRequest(tt.method, tt.path, tt.token, tt.body))
			checkCodeAndData(t, tt, rec)
			if tt.wantData != nil {
				assert.Contains(t, jsonContentTypes, rec.Header().Get("Content-Type"))
			}
		})
	}
}

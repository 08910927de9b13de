package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	echoapi "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core/user"
)

func Test_userApi_login(t *testing.T) {
	app := setup(t)

	app.createUser(t, "Asha Student", "asha01")

	tests := []httpTest{
		{
			name:     "empty body",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"username": "this field is required",
				"password": "this field is required",
			}),
		},
		{
			name:     "unknown user",
			body:     []byte(`{"username": "nobody", "password": "pwd"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "wrong password",
			body:     []byte(`{"username": "asha01", "password": "nope"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "login with username",
			body:     []byte(`{"username": "asha01", "password": "pwd"}`),
			wantCode: http.StatusOK,
		},
		{
			name:     "login with email",
			body:     []byte(`{"username": "asha01@test.test", "password": "pwd"}`),
			wantCode: http.StatusOK,
		},
		{
			name:     "username is case-insensitive",
			body:     []byte(`{"username": "ASHA01", "password": "pwd"}`),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			app.server.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				if rec.Code != http.StatusOK {
					t.Fatalf("code = %v, body %v", rec.Code, rec.Body.String())
				}
				var resp echoapi.LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("unmarshalling response failed: %v", err)
				}
				if resp.Token == "" {
					t.Error("empty token")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_setActive(t *testing.T) {
	app := setup(t)

	admin := app.createUser(t, "Amani Admin", "amani01", user.RoleAdmin)
	student := app.createUser(t, "Asha Student", "asha01")
	deactivate := []byte(`{"is_active": false}`)

	tests := []httpTest{
		{
			name:     "unauthenticated",
			path:     "/v1/users/" + student.ID + "/active",
			body:     deactivate,
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "not admin",
			path:     "/v1/users/" + student.ID + "/active",
			body:     deactivate,
			token:    getToken(t, student),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "empty body",
			path:     "/v1/users/" + student.ID + "/active",
			body:     []byte(`{}`),
			token:    getToken(t, admin),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"is_active": "this field is required"}),
		},
		{
			name:     "unknown user",
			path:     "/v1/users/nope/active",
			body:     deactivate,
			token:    getToken(t, admin),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "user not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPut, tt.path, tt.token, tt.body)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	// deactivation locks the account out
	req, rec := newAuthRequest(http.MethodPut, "/v1/users/"+student.ID+"/active", getToken(t, admin), deactivate)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %v, body %v", rec.Code, rec.Body.String())
	}
	var updated user.User
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("unmarshalling response failed: %v", err)
	}
	if updated.IsActive {
		t.Error("user still active")
	}

	tt := httpTest{
		body:     []byte(`{"username": "asha01", "password": "pwd"}`),
		wantCode: http.StatusForbidden,
		wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
	}
	req, rec = newRequest(http.MethodPost, "/v1/users/login", tt.body)
	app.server.ServeHTTP(rec, req)
	checkCodeAndData(t, tt, rec)

	// and reactivation lets them back in
	req, rec = newAuthRequest(http.MethodPut, "/v1/users/"+student.ID+"/active", getToken(t, admin), []byte(`{"is_active": true}`))
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %v, body %v", rec.Code, rec.Body.String())
	}
	req, rec = newRequest(http.MethodPost, "/v1/users/login", []byte(`{"username": "asha01", "password": "pwd"}`))
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("code = %v, body %v", rec.Code, rec.Body.String())
	}
}

func Test_userApi_login_deactivated(t *testing.T) {
	app := setup(t)

	usr := app.createUser(t, "Gone Student", "gone01")
	if _, err := app.usrSvc.SetActive(context.Background(), usr.ID, false); err != nil {
		t.Fatalf("deactivating user failed: %v", err)
	}

	tt := httpTest{
		body:     []byte(`{"username": "gone01", "password": "pwd"}`),
		wantCode: http.StatusForbidden,
		wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
	}
	req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
	app.server.ServeHTTP(rec, req)
	checkCodeAndData(t, tt, rec)
}

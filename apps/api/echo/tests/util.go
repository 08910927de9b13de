package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/lesson"
	"github.com/trezcool/darasa/core/progress"
	"github.com/trezcool/darasa/core/session"
	"github.com/trezcool/darasa/core/user"
	emailsvc "github.com/trezcool/darasa/services/email"
	dummydb "github.com/trezcool/darasa/storage/database/dummy"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	server    Server
	conf      *core.Config
	usrSvc    *user.Service
	lessonSvc *lesson.Service
	progSvc   *progress.Service
	sessions  *session.Manager
}

type nopLogger struct{}

var _ core.Logger = (*nopLogger)(nil)

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func setup(t *testing.T) *testApp {
	t.Helper()

	conf := &core.Config{
		Env:       "TEST",
		TestMode:  true,
		AppName:   "darasa",
		SecretKey: "secret",
		Server: core.ServerConfig{
			JWTExpirationDelta: 10 * time.Minute,
		},
		Lesson: core.LessonConfig{
			AssumedDuration:    10 * time.Minute,
			SessionIdleTimeout: 30 * time.Minute,
		},
	}

	// set up DB & repos
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}

	// set up services
	logger := nopLogger{}
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewService(dummydb.NewUserRepository(db))
	lessonSvc := lesson.NewService(dummydb.NewLessonRepository(db))
	progSvc := progress.NewService(dummydb.NewProgressRepository(db), usrSvc, mailSvc, logger)
	sessions := session.NewManager(lessonSvc, progSvc, conf, logger)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	lesson.InitValidators(validate, translator)

	// set up server
	server := NewServer(
		ServerDeps{
			Conf:           conf,
			Logger:         logger,
			UserSvc:        usrSvc,
			LessonSvc:      lessonSvc,
			ProgressSvc:    progSvc,
			Sessions:       sessions,
			Validate:       validate,
			Translator:     translator,
			DisableReqLogs: true,
		},
	)
	return &testApp{
		server:    server,
		conf:      conf,
		usrSvc:    usrSvc,
		lessonSvc: lessonSvc,
		progSvc:   progSvc,
		sessions:  sessions,
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func (app *testApp) createUser(t *testing.T, name, uname string, roles ...string) user.User {
	t.Helper()

	usr, err := app.usrSvc.Create(context.Background(), user.NewUser{
		Name:     name,
		Username: uname,
		Email:    uname + "@test.test",
		Password: "pwd",
		Roles:    roles,
	})
	if err != nil {
		t.Fatalf("creating user failed: %v", err)
	}
	return usr
}

func (app *testApp) createLesson(t *testing.T, title string, scheduled time.Time, vis lesson.Visibility) lesson.Lesson {
	t.Helper()

	les, err := app.lessonSvc.Create(context.Background(), lesson.NewLesson{
		Title:         title,
		VideoRef:      "dQw4w9WgXcQ",
		ScheduledDate: scheduled,
		Visibility:    vis,
	})
	if err != nil {
		t.Fatalf("creating lesson failed: %v", err)
	}
	return les
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

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
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

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ObjectsAreEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

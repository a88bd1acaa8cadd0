package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	echoapi "github.com/trezcool/masomo/apps/api/echo"
	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/grade"
	"github.com/trezcool/masomo/storage/database/inmem"
	"github.com/trezcool/masomo/testutil"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	conf     *core.Config
	db       *inmemdb.DB
	fx       testutil.ClassFixture
	logger   *testutil.Logger
	notifier *testutil.Notifier
	svc      *grade.Service
	repo     grade.Repository
	server   *echoapi.Server

	teacher  core.Actor
	guardian core.Actor
}

type appConfig struct {
	policy grade.Policy
	repo   func(grade.Repository) grade.Repository
}

type appOption func(*appConfig)

func withPolicy(p grade.Policy) appOption {
	return func(c *appConfig) { c.policy = p }
}

func withRepo(wrap func(grade.Repository) grade.Repository) appOption {
	return func(c *appConfig) { c.repo = wrap }
}

func setup(t *testing.T, opts ...appOption) *testApp {
	t.Helper()
	conf := core.NewTestConfig()
	cfg := appConfig{policy: grade.PolicyFromConfig(conf)}
	for _, opt := range opts {
		opt(&cfg)
	}

	// set up DB & repos
	db := inmemdb.Open()
	fx := testutil.SeedClass(t, testutil.MemSeeder(db))
	var repo grade.Repository = inmemdb.NewGradeRepository(db)
	if cfg.repo != nil {
		repo = cfg.repo(repo)
	}
	scores := inmemdb.NewGradeRepository(db)
	roster := inmemdb.NewRoster(db)

	// set up services
	validate, translator := core.NewValidator()
	grade.InitValidators(validate, translator)
	logger := new(testutil.Logger)
	notifier := new(testutil.Notifier)
	svc := grade.NewService(repo, roster, grade.DefaultScale, validate, cfg.policy)
	engine := grade.NewEngine(scores, roster)

	// set up server
	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		Assessments:    svc,
		Writer:         grade.NewWriter(repo, grade.DefaultScale, validate, logger, cfg.policy),
		Publisher:      grade.NewPublisher(repo, notifier, inmemdb.NewAuditLog(db), logger, cfg.policy),
		Engine:         engine,
		Reports:        grade.NewReports(engine, scores, roster, grade.DefaultScale),
		DisableReqLogs: true,
	})

	return &testApp{
		conf:     conf,
		db:       db,
		fx:       fx,
		logger:   logger,
		notifier: notifier,
		svc:      svc,
		repo:     repo,
		server:   server,
		teacher:  core.Actor{ID: fx.TeacherID, Username: "mr-k", Email: "k@example.com"},
		guardian: core.Actor{ID: fx.AliceMother.ID, Username: "ada"},
	}
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

func (app *testApp) serve(tt httpTest) *httptest.ResponseRecorder {
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	app.server.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) getToken(t *testing.T, actor core.Actor, roles ...string) string {
	t.Helper()
	token, err := echoapi.GenerateToken(app.conf, echoapi.NewClaims(app.conf, actor, roles...))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
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

func TestServer_home(t *testing.T) {
	app := setup(t)
	rec := app.serve(httpTest{path: "/"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Masomo Gradebook API!", rec.Body.String())
}

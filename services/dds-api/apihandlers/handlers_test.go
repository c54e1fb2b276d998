package apihandlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	mw "github.com/ddsurveys/dds-backend/pkg/apihelpers/middlewares"
	projectDB "github.com/ddsurveys/dds-backend/pkg/db/project"
	"github.com/ddsurveys/dds-backend/pkg/dds/catalog"
	"github.com/ddsurveys/dds-backend/pkg/dds/evaluator"
	"github.com/ddsurveys/dds-backend/pkg/dds/orchestrator"
	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
	jwthandling "github.com/ddsurveys/dds-backend/pkg/jwt-handling"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	testSignKey    = "test-sign-key"
	testInstanceID = "test"
	testAPIKey     = "platform-key"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStore struct {
	projects    map[string]ddsTypes.Project
	defs        []ddsTypes.CustomVariable
	connections map[string]ddsTypes.DataConnection
	accesses    []ddsTypes.DataProviderAccess
	usedStates  map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		projects:    map[string]ddsTypes.Project{},
		connections: map[string]ddsTypes.DataConnection{},
		usedStates:  map[string]bool{},
	}
}

func (s *fakeStore) addProject(surveyID string) string {
	p := ddsTypes.Project{ID: primitive.NewObjectID(), Name: "test", SurveyID: surveyID}
	s.projects[p.ID.Hex()] = p
	return p.ID.Hex()
}

func (s *fakeStore) CreateProject(instanceID string, project ddsTypes.Project) (ddsTypes.Project, error) {
	project.ID = primitive.NewObjectID()
	s.projects[project.ID.Hex()] = project
	return project, nil
}

func (s *fakeStore) GetProject(instanceID string, projectID string) (ddsTypes.Project, error) {
	p, ok := s.projects[projectID]
	if !ok {
		return p, mongo.ErrNoDocuments
	}
	return p, nil
}

func (s *fakeStore) GetProjects(instanceID string) ([]ddsTypes.Project, error) {
	projects := []ddsTypes.Project{}
	for _, p := range s.projects {
		projects = append(projects, p)
	}
	return projects, nil
}

func (s *fakeStore) UpdateProjectSurvey(instanceID string, projectID string, surveyID string) error {
	p := s.projects[projectID]
	p.SurveyID = surveyID
	s.projects[projectID] = p
	return nil
}

func (s *fakeStore) CreateCustomVariable(instanceID string, cv ddsTypes.CustomVariable) (ddsTypes.CustomVariable, error) {
	for _, d := range s.defs {
		if d.ProjectID == cv.ProjectID && d.Field() == cv.Field() {
			return cv, projectDB.ErrCustomVariableExists
		}
	}
	cv.ID = primitive.NewObjectID()
	s.defs = append(s.defs, cv)
	return cv, nil
}

func (s *fakeStore) GetCustomVariableDefinitions(instanceID string, projectID string) ([]ddsTypes.CustomVariable, error) {
	defs := []ddsTypes.CustomVariable{}
	for _, d := range s.defs {
		if d.ProjectID == projectID {
			defs = append(defs, d)
		}
	}
	return defs, nil
}

func (s *fakeStore) DeleteCustomVariable(instanceID string, projectID string, variableID string) error {
	for i, d := range s.defs {
		if d.ID.Hex() == variableID && d.ProjectID == projectID {
			s.defs = append(s.defs[:i], s.defs[i+1:]...)
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

func (s *fakeStore) SaveDataConnection(instanceID string, conn ddsTypes.DataConnection) (ddsTypes.DataConnection, error) {
	s.connections[conn.ProjectID+"/"+conn.Provider] = conn
	return conn, nil
}

func (s *fakeStore) GetDataConnection(instanceID string, projectID string, provider string) (ddsTypes.DataConnection, error) {
	conn, ok := s.connections[projectID+"/"+provider]
	if !ok {
		return conn, mongo.ErrNoDocuments
	}
	return conn, nil
}

func (s *fakeStore) GetDataConnections(instanceID string, projectID string) ([]ddsTypes.DataConnection, error) {
	conns := []ddsTypes.DataConnection{}
	for _, c := range s.connections {
		if c.ProjectID == projectID {
			conns = append(conns, c)
		}
	}
	return conns, nil
}

func (s *fakeStore) DeleteDataConnection(instanceID string, projectID string, provider string) error {
	if _, ok := s.connections[projectID+"/"+provider]; !ok {
		return mongo.ErrNoDocuments
	}
	delete(s.connections, projectID+"/"+provider)
	return nil
}

func (s *fakeStore) SaveDataProviderAccess(instanceID string, access ddsTypes.DataProviderAccess) error {
	s.accesses = append(s.accesses, access)
	return nil
}

func (s *fakeStore) MarkStateTokenUsed(instanceID string, tokenID string, expiresAt time.Time) error {
	if s.usedStates[tokenID] {
		return projectDB.ErrStateTokenUsed
	}
	s.usedStates[tokenID] = true
	return nil
}

type fakeConsent struct {
	lastState string
	exchanged string
}

func (f *fakeConsent) AuthCodeURL(conn ddsTypes.DataConnection, state string) (string, error) {
	f.lastState = state
	return "https://provider.example/authorize?state=" + url.QueryEscape(state), nil
}

func (f *fakeConsent) Exchange(ctx context.Context, conn ddsTypes.DataConnection, respondentID string, code string) (ddsTypes.DataProviderAccess, error) {
	f.exchanged = code
	return ddsTypes.DataProviderAccess{
		RespondentID: respondentID,
		ProjectID:    conn.ProjectID,
		Provider:     conn.Provider,
		AccessToken:  "token-" + code,
	}, nil
}

type fakeInjector struct {
	out orchestrator.Outcome
	err error
}

func (f *fakeInjector) Run(ctx context.Context, instanceID string, projectID string, respondentID string) (orchestrator.Outcome, error) {
	out := f.out
	out.InstanceID = instanceID
	out.ProjectID = projectID
	out.RespondentID = respondentID
	return out, f.err
}

type testServer struct {
	router   *gin.Engine
	store    *fakeStore
	consent  *fakeConsent
	injector *fakeInjector
}

func newTestServer() *testServer {
	ts := &testServer{
		store:    newFakeStore(),
		consent:  &fakeConsent{},
		injector: &fakeInjector{},
	}
	h := NewHTTPHandler(ts.store, catalog.Default(), ts.consent, ts.injector, HttpEndpointsConfig{
		TokenSignKey:       testSignKey,
		AllowedInstanceIDs: []string{testInstanceID},
		SurveyPlatformKeys: []string{testAPIKey},
	})
	ts.router = gin.New()
	ts.router.GET("/", HealthCheckHandle)
	v1 := ts.router.Group("/v1")
	h.AddProjectManagementAPI(v1)
	h.AddConsentAPI(v1)
	h.AddInjectionAPI(v1)
	return ts
}

func (ts *testServer) do(t *testing.T, method string, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func authHeader(t *testing.T, isAdmin bool, projectIDs ...string) map[string]string {
	t.Helper()
	token, err := jwthandling.GenerateNewResearcherToken(time.Minute, "researcher-1", testInstanceID, isAdmin, projectIDs, nil, testSignKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return map[string]string{mw.HeaderAuthorization: "Bearer " + token}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	body := map[string]any{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body %q: %v", w.Body.String(), err)
	}
	return body
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer()
	if w := ts.do(t, http.MethodGet, "/", "", nil); w.Code != http.StatusOK {
		t.Errorf("unexpected status: %d", w.Code)
	}
}

func TestCustomVariables(t *testing.T) {
	ts := newTestServer()
	projectID := ts.store.addProject("SV_1")
	path := "/v1/projects/" + projectID + "/custom-variables"
	auth := authHeader(t, false, projectID)

	tests := []struct {
		name     string
		body     string
		expected int
	}{
		{name: "valid", body: `{"provider": "github", "category": "followers.count", "description": "Followers"}`, expected: http.StatusOK},
		{name: "duplicate", body: `{"provider": "github", "category": "followers.count"}`, expected: http.StatusConflict},
		{name: "unknown category", body: `{"provider": "github", "category": "stars.count"}`, expected: http.StatusBadRequest},
		{name: "unknown provider", body: `{"provider": "myspace", "category": "friends.count"}`, expected: http.StatusBadRequest},
		{name: "type mismatch", body: `{"provider": "github", "category": "account.username", "variableType": "Date"}`, expected: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, path, tt.body, auth)
			if w.Code != tt.expected {
				t.Errorf("expected %d, got %d: %s", tt.expected, w.Code, w.Body.String())
			}
		})
	}

	t.Run("configuration error detail", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, path, `{"provider": "github", "category": "stars.count"}`, auth)
		body := decode(t, w)
		if body["errorKind"] != string(ddsTypes.ERROR_KIND_CONFIGURATION) {
			t.Errorf("unexpected error kind: %v", body["errorKind"])
		}
		if !strings.Contains(body["detail"].(string), "stars.count") {
			t.Errorf("detail should name the category: %v", body["detail"])
		}
	})

	t.Run("variable type defaults to catalog type", func(t *testing.T) {
		if len(ts.store.defs) != 1 || ts.store.defs[0].VariableType != ddsTypes.VARIABLE_TYPE_SCALE {
			t.Errorf("unexpected definitions: %+v", ts.store.defs)
		}
	})

	t.Run("list", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, path, "", auth)
		if w.Code != http.StatusOK {
			t.Fatalf("unexpected status: %d", w.Code)
		}
		vars := decode(t, w)["customVariables"].([]any)
		if len(vars) != 1 || vars[0].(map[string]any)["field"] != "dds.github.followers.count" {
			t.Errorf("unexpected variables: %v", vars)
		}
	})

	t.Run("validate", func(t *testing.T) {
		if w := ts.do(t, http.MethodGet, path+"/validate", "", auth); w.Code != http.StatusOK {
			t.Errorf("unexpected status: %d", w.Code)
		}
	})

	t.Run("delete", func(t *testing.T) {
		id := ts.store.defs[0].ID.Hex()
		if w := ts.do(t, http.MethodDelete, path+"/"+id, "", auth); w.Code != http.StatusOK {
			t.Errorf("unexpected status: %d", w.Code)
		}
		if w := ts.do(t, http.MethodDelete, path+"/"+id, "", auth); w.Code != http.StatusNotFound {
			t.Errorf("second delete should be not found, got %d", w.Code)
		}
	})

	t.Run("foreign project", func(t *testing.T) {
		other := ts.store.addProject("SV_2")
		w := ts.do(t, http.MethodGet, "/v1/projects/"+other+"/custom-variables", "", auth)
		if w.Code != http.StatusForbidden {
			t.Errorf("unexpected status: %d", w.Code)
		}
	})

	t.Run("unknown project", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/v1/projects/"+primitive.NewObjectID().Hex()+"/custom-variables", `{"provider": "github", "category": "followers.count"}`, authHeader(t, true))
		if w.Code != http.StatusNotFound {
			t.Errorf("unexpected status: %d", w.Code)
		}
	})
}

func TestProjects(t *testing.T) {
	ts := newTestServer()
	visible := ts.store.addProject("SV_1")
	ts.store.addProject("SV_2")

	t.Run("researcher sees own projects", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/v1/projects", "", authHeader(t, false, visible))
		projects := decode(t, w)["projects"].([]any)
		if len(projects) != 1 {
			t.Errorf("unexpected projects: %v", projects)
		}
	})

	t.Run("only admins create projects", func(t *testing.T) {
		if w := ts.do(t, http.MethodPost, "/v1/projects", `{"name": "new"}`, authHeader(t, false)); w.Code != http.StatusForbidden {
			t.Errorf("unexpected status: %d", w.Code)
		}
		if w := ts.do(t, http.MethodPost, "/v1/projects", `{"name": "new", "surveyID": "SV_3"}`, authHeader(t, true)); w.Code != http.StatusOK {
			t.Errorf("unexpected status: %d", w.Code)
		}
	})

	t.Run("update survey", func(t *testing.T) {
		w := ts.do(t, http.MethodPut, "/v1/projects/"+visible+"/survey", `{"surveyID": "SV_9"}`, authHeader(t, false, visible))
		if w.Code != http.StatusOK || ts.store.projects[visible].SurveyID != "SV_9" {
			t.Errorf("unexpected result: %d %+v", w.Code, ts.store.projects[visible])
		}
	})

	t.Run("catalog", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/v1/catalog", "", authHeader(t, false))
		if w.Code != http.StatusOK {
			t.Fatalf("unexpected status: %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "dds.github.followers.count") {
			t.Errorf("catalog should list variable names: %s", w.Body.String())
		}
	})
}

func TestDataConnections(t *testing.T) {
	ts := newTestServer()
	projectID := ts.store.addProject("SV_1")
	path := "/v1/projects/" + projectID + "/data-connections"
	auth := authHeader(t, false, projectID)

	tests := []struct {
		name     string
		body     string
		expected int
	}{
		{name: "oauth provider", body: `{"provider": "github", "clientID": "client", "redirectURL": "https://dds.example/v1/oauth/callback/github"}`, expected: http.StatusOK},
		{name: "oauth provider without client", body: `{"provider": "fitbit"}`, expected: http.StatusBadRequest},
		{name: "generic provider", body: `{"provider": "dds"}`, expected: http.StatusOK},
		{name: "unknown provider", body: `{"provider": "myspace"}`, expected: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, path, tt.body, auth)
			if w.Code != tt.expected {
				t.Errorf("expected %d, got %d: %s", tt.expected, w.Code, w.Body.String())
			}
		})
	}

	if w := ts.do(t, http.MethodDelete, path+"/github", "", auth); w.Code != http.StatusOK {
		t.Errorf("unexpected status: %d", w.Code)
	}
	if w := ts.do(t, http.MethodDelete, path+"/github", "", auth); w.Code != http.StatusNotFound {
		t.Errorf("unexpected status: %d", w.Code)
	}
}

func TestConsentRoundTrip(t *testing.T) {
	ts := newTestServer()
	projectID := ts.store.addProject("SV_1")
	ts.store.connections[projectID+"/github"] = ddsTypes.DataConnection{ProjectID: projectID, Provider: "github", ClientID: "client"}

	w := ts.do(t, http.MethodGet, "/v1/connect/"+projectID+"/github?instanceID=test&respondentID=R_abc123", "", nil)
	if w.Code != http.StatusFound {
		t.Fatalf("unexpected status: %d %s", w.Code, w.Body.String())
	}
	if !strings.HasPrefix(w.Header().Get("Location"), "https://provider.example/authorize") {
		t.Errorf("unexpected redirect: %s", w.Header().Get("Location"))
	}
	state := ts.consent.lastState

	t.Run("state of another provider", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/v1/oauth/callback/fitbit?code=abc&state="+url.QueryEscape(state), "", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("unexpected status: %d", w.Code)
		}
	})

	t.Run("denied", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/v1/oauth/callback/github?error=access_denied&state="+url.QueryEscape(state), "", nil)
		if w.Code != http.StatusBadRequest || len(ts.store.accesses) != 0 {
			t.Errorf("unexpected result: %d", w.Code)
		}
	})

	t.Run("granted", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/v1/oauth/callback/github?code=abc&state="+url.QueryEscape(state), "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("unexpected status: %d %s", w.Code, w.Body.String())
		}
		if len(ts.store.accesses) != 1 {
			t.Fatalf("access should be stored")
		}
		access := ts.store.accesses[0]
		if access.RespondentID != "R_abc123" || access.ProjectID != projectID || access.AccessToken != "token-abc" {
			t.Errorf("unexpected access: %+v", access)
		}
	})

	t.Run("replayed state", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/v1/oauth/callback/github?code=abc&state="+url.QueryEscape(state), "", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("unexpected status: %d", w.Code)
		}
		if len(ts.store.accesses) != 1 {
			t.Errorf("replayed state must not store a second access")
		}
	})

	t.Run("provider not attached", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/v1/connect/"+projectID+"/fitbit?instanceID=test&respondentID=R_abc123", "", nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("unexpected status: %d", w.Code)
		}
	})

	t.Run("invalid respondent", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/v1/connect/"+projectID+"/github?instanceID=test&respondentID=a/b", "", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("unexpected status: %d", w.Code)
		}
	})
}

func TestInjection(t *testing.T) {
	headers := map[string]string{mw.HeaderAPIKey: testAPIKey, mw.HeaderInstanceID: testInstanceID}

	tests := []struct {
		name      string
		err       error
		status    orchestrator.Status
		expected  int
		retryable bool
	}{
		{name: "succeeded", status: orchestrator.STATUS_SUCCEEDED, expected: http.StatusOK},
		{name: "partial", status: orchestrator.STATUS_PARTIAL, expected: http.StatusOK},
		{name: "already completed", status: orchestrator.STATUS_ALREADY_COMPLETED, expected: http.StatusOK},
		{name: "flow write", status: orchestrator.STATUS_FAILED, err: ddsTypes.NewFlowWriteError("update", 503, nil), expected: http.StatusServiceUnavailable, retryable: true},
		{name: "flow lookup", status: orchestrator.STATUS_FAILED, err: ddsTypes.NewFlowLookupError("get", nil), expected: http.StatusInternalServerError},
		{name: "configuration", status: orchestrator.STATUS_FAILED, err: ddsTypes.NewConfigurationError("bad", nil), expected: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer()
			ts.injector.out = orchestrator.Outcome{
				RunID:  "run-1",
				Status: tt.status,
				Results: []evaluator.Result{
					{Field: "dds.github.followers.count", State: evaluator.STATE_SUCCEEDED, Value: "3"},
				},
			}
			ts.injector.err = tt.err

			w := ts.do(t, http.MethodPost, "/v1/inject/p1/r1", "", headers)
			if w.Code != tt.expected {
				t.Fatalf("expected %d, got %d: %s", tt.expected, w.Code, w.Body.String())
			}
			body := decode(t, w)
			if body["status"] != string(tt.status) {
				t.Errorf("unexpected status: %v", body["status"])
			}
			vars := body["variables"].([]any)
			if len(vars) != 1 || vars[0].(map[string]any)["value"] != "3" {
				t.Errorf("unexpected variables: %v", vars)
			}
			if tt.err != nil && body["retryable"] != tt.retryable {
				t.Errorf("unexpected retryable: %v", body["retryable"])
			}
		})
	}

	t.Run("missing api key", func(t *testing.T) {
		ts := newTestServer()
		w := ts.do(t, http.MethodPost, "/v1/inject/p1/r1", "", map[string]string{mw.HeaderInstanceID: testInstanceID})
		if w.Code != http.StatusUnauthorized {
			t.Errorf("unexpected status: %d", w.Code)
		}
	})
}

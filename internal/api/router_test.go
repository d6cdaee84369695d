package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Harshitk-cp/bdi/internal/agent"
	"github.com/Harshitk-cp/bdi/internal/program"
	"github.com/Harshitk-cp/bdi/internal/runtime"
	"github.com/Harshitk-cp/bdi/internal/term"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const greeterProgram = `
beliefs:
  - room(kitchen)
plans:
  - trigger: "+!greet(Name)"
    body:
      - "+greeted(Name)"
`

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type fixture struct {
	app    *App
	runner *runtime.Runner
	id     uuid.UUID
	agent  *agent.Agent
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	r := runtime.New(runtime.Options{Logger: zap.NewNop()})
	t.Cleanup(r.Close)

	b, err := program.Load(strings.NewReader(greeterProgram))
	require.NoError(t, err)
	id, a, err := r.Spawn(agent.Configuration{Bundle: b, Logger: zap.NewNop()})
	require.NoError(t, err)

	opts.Runner = r
	opts.Logger = zap.NewNop()
	return &fixture{app: NewApp(opts), runner: r, id: id, agent: a}
}

func (f *fixture) do(t *testing.T, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.app.Router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t, Options{})
	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	f = newFixture(t, Options{Health: pinger{err: errors.New("connection refused")}})
	rec = f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "connection refused", decode[map[string]string](t, rec)["error"])
}

func TestRequestID_Propagated(t *testing.T) {
	f := newFixture(t, Options{})
	rec := f.do(t, http.MethodGet, "/health", "", "X-Request-ID", "abc-123")
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestAgents_ListAndGet(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.do(t, http.MethodGet, "/v1/agents", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]map[string]any](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, f.id.String(), list[0]["id"])

	rec = f.do(t, http.MethodGet, "/v1/agents/"+f.id.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, got["plans"])
	assert.EqualValues(t, 1, got["beliefs"])

	tests := []struct {
		name string
		path string
		code int
	}{
		{name: "malformed id", path: "/v1/agents/nope", code: http.StatusBadRequest},
		{name: "unknown id", path: "/v1/agents/" + uuid.NewString(), code: http.StatusNotFound},
		{name: "unknown plans", path: "/v1/agents/" + uuid.NewString() + "/plans", code: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, f.do(t, http.MethodGet, tt.path, "").Code)
		})
	}
}

func TestAgents_InjectRunsPlan(t *testing.T) {
	f := newFixture(t, Options{})
	base := "/v1/agents/" + f.id.String()

	rec := f.do(t, http.MethodPost, base+"/triggers", `{"trigger": "+!greet(\"bob\")"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, `+!greet("bob")`, decode[map[string]string](t, rec)["trigger"])
	assert.Equal(t, 1, f.agent.Pending())

	rec = f.do(t, http.MethodPost, base+"/triggers", `{"type": "+!", "literal": "greet(alice)"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	require.NoError(t, f.runner.Tick(context.Background()))
	assert.True(t, f.agent.Beliefs().Contains(term.From("greeted", "bob")))

	rec = f.do(t, http.MethodGet, base+"/plans", "")
	require.Equal(t, http.StatusOK, rec.Code)
	plans := decode[[]struct {
		Plan  string `json:"plan"`
		Runs  int64  `json:"runs"`
		Fails int64  `json:"fails"`
		State string `json:"state"`
	}](t, rec)
	require.Len(t, plans, 1)
	assert.EqualValues(t, 2, plans[0].Runs)
	assert.Zero(t, plans[0].Fails)
	assert.Equal(t, "SUCCESS", plans[0].State)

	rec = f.do(t, http.MethodGet, base+"/beliefs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	beliefs := decode[beliefsBody](t, rec)
	assert.ElementsMatch(t, []string{"room(kitchen)", `greeted("bob")`, "greeted(alice)"}, beliefs.Beliefs)
}

func TestAgents_InjectRejected(t *testing.T) {
	f := newFixture(t, Options{})
	base := "/v1/agents/" + f.id.String() + "/triggers"

	tests := []struct {
		name string
		path string
		body string
		code int
	}{
		{name: "malformed json", path: base, body: `{`, code: http.StatusBadRequest},
		{name: "empty", path: base, body: `{}`, code: http.StatusBadRequest},
		{name: "bad type", path: base, body: `{"type": "*", "literal": "a"}`, code: http.StatusBadRequest},
		{name: "bad literal", path: base, body: `{"type": "+", "literal": "a("}`, code: http.StatusBadRequest},
		{name: "not ground", path: base, body: `{"trigger": "+!greet(X)"}`, code: http.StatusBadRequest},
		{name: "unknown agent", path: "/v1/agents/" + uuid.NewString() + "/triggers", body: `{"trigger": "+a"}`, code: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
	assert.Zero(t, f.agent.Pending())
}

type beliefsBody struct {
	View    string   `json:"view"`
	Beliefs []string `json:"beliefs"`
	Views   []string `json:"views"`
}

func TestAgents_NestedBeliefs(t *testing.T) {
	f := newFixture(t, Options{})
	room, ok := f.agent.Beliefs().Walk("env/room", true)
	require.True(t, ok)
	room.Add(term.From("light", "on"))
	base := "/v1/agents/" + f.id.String() + "/beliefs"

	rec := f.do(t, http.MethodGet, base+"?view=env", "")
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode[beliefsBody](t, rec)
	assert.Equal(t, "env", env.View)
	assert.Empty(t, env.Beliefs)
	assert.Equal(t, []string{"room"}, env.Views)

	rec = f.do(t, http.MethodGet, base+"?view=/env/room/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{`light("on")`}, decode[beliefsBody](t, rec).Beliefs)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, base+"?view=nowhere", "").Code)
}

func TestBearerToken(t *testing.T) {
	f := newFixture(t, Options{Token: "s3cret"})

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/v1/agents", "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/v1/agents", "", "Authorization", "Basic s3cret").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/v1/agents", "", "Authorization", "Bearer wrong").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/v1/agents", "", "Authorization", "Bearer s3cret").Code)
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, Options{RateLimitRPS: 0.001, RateLimitBurst: 2})
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", "").Code)
	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestMetricsAndStats(t *testing.T) {
	f := newFixture(t, Options{})
	f.do(t, http.MethodGet, "/v1/agents/nope", "")
	require.NoError(t, f.runner.Tick(context.Background()))

	rec := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `bdi_http_requests_total{code="400",method="GET"`)

	rec = f.do(t, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[struct {
		Requests int64         `json:"request_count"`
		Errors   int64         `json:"error_count"`
		Runner   runtime.Stats `json:"runner"`
	}](t, rec)
	assert.EqualValues(t, 3, stats.Requests)
	assert.EqualValues(t, 1, stats.Errors)
	assert.Equal(t, 1, stats.Runner.Agents)
	assert.EqualValues(t, 1, stats.Runner.Ticks)
}

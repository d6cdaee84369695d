package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Harshitk-cp/bdi/internal/agent"
	"github.com/Harshitk-cp/bdi/internal/program"
	"github.com/Harshitk-cp/bdi/internal/runtime"
	"github.com/Harshitk-cp/bdi/internal/term"
	"github.com/Harshitk-cp/bdi/internal/trigger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxBody = 64 << 10

type AgentHandler struct {
	runner *runtime.Runner
	logger *zap.Logger
}

func NewAgentHandler(runner *runtime.Runner, logger *zap.Logger) *AgentHandler {
	return &AgentHandler{runner: runner, logger: logger}
}

type agentResponse struct {
	ID      string `json:"id"`
	Cycles  uint64 `json:"cycles"`
	Pending int    `json:"pending_triggers"`
	Beliefs int    `json:"beliefs"`
	Plans   int    `json:"plans"`
}

func newAgentResponse(a *agent.Agent) agentResponse {
	return agentResponse{
		ID:      a.ID(),
		Cycles:  a.Cycles(),
		Pending: a.Pending(),
		Beliefs: a.Beliefs().Size(),
		Plans:   len(a.Plans()),
	}
}

type beliefsResponse struct {
	View    string   `json:"view"`
	Beliefs []string `json:"beliefs"`
	Views   []string `json:"views"`
}

type injectRequest struct {
	// Trigger is the full notation, e.g. "+!greet(bob)". When empty, Type
	// and Literal are used.
	Trigger string `json:"trigger"`
	Type    string `json:"type"`
	Literal string `json:"literal"`
}

type injectResponse struct {
	Agent   string `json:"agent_id"`
	Trigger string `json:"trigger"`
}

func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	agents := h.runner.Agents()
	out := make([]agentResponse, 0, len(agents))
	for _, a := range agents {
		out = append(out, newAgentResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AgentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	a, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newAgentResponse(a))
}

func (h *AgentHandler) Plans(w http.ResponseWriter, r *http.Request) {
	a, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a.Plans())
}

// Beliefs lists the literals of the root view, or of the nested view named
// by the "view" query parameter ("env/room").
func (h *AgentHandler) Beliefs(w http.ResponseWriter, r *http.Request) {
	a, ok := h.lookup(w, r)
	if !ok {
		return
	}

	path := term.PathOf(r.URL.Query().Get("view"))
	v, found := a.Beliefs().Walk(path, false)
	if !found {
		writeError(w, http.StatusNotFound, "view not found")
		return
	}

	resp := beliefsResponse{View: path.String(), Beliefs: []string{}, Views: []string{}}
	for _, l := range v.Stream() {
		resp.Beliefs = append(resp.Beliefs, l.String())
	}
	for _, nested := range v.Views() {
		resp.Views = append(resp.Views, nested.Name())
	}
	writeJSON(w, http.StatusOK, resp)
}

// Inject queues a trigger for the agent's next cycle.
func (h *AgentHandler) Inject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}

	var req injectRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	typ, lit, err := parseInject(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !lit.Ground() {
		writeError(w, http.StatusBadRequest, "literal must be ground")
		return
	}

	if err := h.runner.Inject(id, typ, lit); err != nil {
		if errors.Is(err, runtime.ErrAgentNotFound) {
			writeError(w, http.StatusNotFound, "agent not found")
			return
		}
		h.logger.Error("inject failed", zap.String("agent_id", id.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to inject trigger")
		return
	}

	writeJSON(w, http.StatusAccepted, injectResponse{
		Agent:   id.String(),
		Trigger: trigger.New(typ, lit).String(),
	})
}

func parseInject(req injectRequest) (trigger.Type, *term.Literal, error) {
	if req.Trigger != "" {
		return program.ParseTrigger(req.Trigger)
	}
	if req.Type == "" || req.Literal == "" {
		return 0, nil, errors.New("trigger or type and literal are required")
	}
	typ, err := trigger.ParseType(req.Type)
	if err != nil {
		return 0, nil, err
	}
	lit, err := program.ParseLiteral(req.Literal)
	if err != nil {
		return 0, nil, err
	}
	return typ, lit, nil
}

func (h *AgentHandler) lookup(w http.ResponseWriter, r *http.Request) (*agent.Agent, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return nil, false
	}
	a, ok := h.runner.Agent(id)
	if !ok {
		writeError(w, http.StatusNotFound, "agent not found")
		return nil, false
	}
	return a, true
}

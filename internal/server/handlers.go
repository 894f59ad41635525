package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/leapcheck/internal/analysis"
	"github.com/leapstack-labs/leapcheck/internal/compile"
	"github.com/leapstack-labs/leapcheck/internal/planner"
	"github.com/leapstack-labs/leapcheck/pkg/core"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// current writes 503 and returns nil when there is no usable result.
func (s *Server) current(w http.ResponseWriter) *compile.Result {
	res, err := s.Result()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return nil
	}
	return res
}

// lookup finds name among keys ignoring case.
func lookup[V any](m map[string]V, name string) (string, bool) {
	if _, ok := m[name]; ok {
		return name, true
	}
	for k := range m {
		if strings.EqualFold(k, name) {
			return k, true
		}
	}
	return "", false
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDiagnostics supports ?select=node to limit diagnostics to a node and
// its upstream, and ?severity= to keep one severity.
func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	res := s.current(w)
	if res == nil {
		return
	}

	diags := res.Diagnostics
	if sel := r.URL.Query().Get("select"); sel != "" {
		nodes, ok := res.Selection(sel)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown node: "+sel)
			return
		}
		diags = res.DiagnosticsFor(nodes)
	}
	if raw := r.URL.Query().Get("severity"); raw != "" {
		sev, ok := core.ParseSeverity(raw)
		if !ok || sev == core.SeverityOff {
			writeError(w, http.StatusBadRequest, "invalid severity: "+raw)
			return
		}
		kept := []analysis.Diagnostic{}
		for _, d := range diags {
			if d.Severity == sev {
				kept = append(kept, d)
			}
		}
		diags = kept
	}
	if diags == nil {
		diags = []analysis.Diagnostic{}
	}

	writeJSON(w, http.StatusOK, struct {
		RunID       string                `json:"run_id"`
		Diagnostics []analysis.Diagnostic `json:"diagnostics"`
	}{res.RunID, diags})
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	res := s.current(w)
	if res == nil {
		return
	}
	writeJSON(w, http.StatusOK, res.Catalog)
}

func (s *Server) handleCatalogNode(w http.ResponseWriter, r *http.Request) {
	res := s.current(w)
	if res == nil {
		return
	}
	name := chi.URLParam(r, "node")
	key, ok := lookup(res.Catalog, name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown node: "+name)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Node    string             `json:"node"`
		Columns []core.TypedColumn `json:"columns"`
	}{key, res.Catalog[key]})
}

func (s *Server) handleOrder(w http.ResponseWriter, _ *http.Request) {
	res := s.current(w)
	if res == nil {
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Order  []string   `json:"order"`
		Levels [][]string `json:"levels"`
	}{res.Order, res.Levels})
}

func (s *Server) handleLineage(w http.ResponseWriter, r *http.Request) {
	res := s.current(w)
	if res == nil {
		return
	}
	name := chi.URLParam(r, "node")
	key, ok := lookup(res.Nodes, name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown node: "+name)
		return
	}
	edges := res.Lineage[key]
	if edges == nil {
		edges = []planner.Edge{}
	}
	writeJSON(w, http.StatusOK, struct {
		Node  string         `json:"node"`
		Edges []planner.Edge `json:"edges"`
	}{key, edges})
}

func (s *Server) handleQualified(w http.ResponseWriter, r *http.Request) {
	res := s.current(w)
	if res == nil {
		return
	}
	name := chi.URLParam(r, "node")
	key, ok := lookup(res.Qualified, name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown node: "+name)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(res.Qualified[key]))
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	res, err := s.Recompile(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res.Summary())
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		writeError(w, http.StatusNotFound, "state store not configured")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit: "+raw)
			return
		}
		limit = n
	}
	runs, err := s.cfg.Store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// runSignals is the signal payload pushed to event stream clients.
type runSignals struct {
	Summary compile.Summary `json:"summary"`
	Failed  []string        `json:"failed"`
	Blocked []string        `json:"blocked"`
}

func signalsFor(res *compile.Result) runSignals {
	failed, blocked := res.FailedNodes(), res.BlockedNodes()
	if failed == nil {
		failed = []string{}
	}
	if blocked == nil {
		blocked = []string{}
	}
	return runSignals{Summary: res.Summary(), Failed: failed, Blocked: blocked}
}

// handleEvents is the long-lived SSE endpoint. It pushes the current run
// summary on connect and again after every compile.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	updates := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(updates)

	push := func() {
		res, err := s.Result()
		if err != nil {
			if !errors.Is(err, ErrNoResult) {
				_ = sse.ConsoleError(err)
			}
			return
		}
		if err := sse.MarshalAndPatchSignals(signalsFor(res)); err != nil {
			_ = sse.ConsoleError(err)
		}
	}
	push()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			push()
		}
	}
}

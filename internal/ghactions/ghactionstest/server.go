// Package ghactionstest provides a scripted fake of the GitHub Actions
// endpoints used by the channel lock.
package ghactionstest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

// RunState is one observation of a run's status.
type RunState struct {
	Status     string
	Conclusion string
}

// Common run states.
var (
	Queued     = RunState{Status: "queued"}
	InProgress = RunState{Status: "in_progress"}
	Success    = RunState{Status: "completed", Conclusion: "success"}
	Failure    = RunState{Status: "completed", Conclusion: "failure"}
	Cancelled  = RunState{Status: "completed", Conclusion: "cancelled"}
)

// Dispatch records one workflow_dispatch call.
type Dispatch struct {
	Owner    string
	Repo     string
	Workflow string
	Ref      string
	Inputs   map[string]string
	Auth     string
}

type run struct {
	id         int64
	workflow   string
	createdAt  time.Time
	states     []RunState
	gets       int
	dispatched bool
}

func (r *run) state() RunState {
	if len(r.states) == 0 {
		return Queued
	}
	i := r.gets
	if i >= len(r.states) {
		i = len(r.states) - 1
	}
	return r.states[i]
}

// Server fakes the Actions API. Each dispatch creates a run stamped with the
// injected clock's time whose status walks through the scripted states, one
// step per GET of the run.
type Server struct {
	srv *httptest.Server
	now func() time.Time

	mu             sync.Mutex
	script         []RunState
	runs           []*run
	nextID         int64
	dispatches     []Dispatch
	dispatchStatus int
	hideRuns       bool
	lists          int
}

// NewServer starts a server closed at the end of the test. now supplies
// created_at timestamps for dispatched runs.
func NewServer(t testing.TB, now func() time.Time) *Server {
	s := &Server{now: now, nextID: 1000, script: []RunState{Success}}

	router := mux.NewRouter()
	router.HandleFunc("/repos/{owner}/{repo}/actions/workflows/{workflow}/dispatches", s.handleDispatch).Methods(http.MethodPost)
	router.HandleFunc("/repos/{owner}/{repo}/actions/workflows/{workflow}/runs", s.handleList).Methods(http.MethodGet)
	router.HandleFunc("/repos/{owner}/{repo}/actions/runs/{id:[0-9]+}", s.handleRun).Methods(http.MethodGet)

	s.srv = httptest.NewServer(router)
	t.Cleanup(s.srv.Close)
	return s
}

// URL is the API base URL.
func (s *Server) URL() string { return s.srv.URL }

// Script sets the states the next dispatched runs walk through.
func (s *Server) Script(states ...RunState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = states
}

// FailDispatch makes dispatch calls answer with status.
func (s *Server) FailDispatch(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatchStatus = status
}

// HideRuns keeps dispatched runs out of list responses.
func (s *Server) HideRuns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hideRuns = true
}

// AddRun inserts a run that was not created by a dispatch, e.g. one left
// over from an earlier caller.
func (s *Server) AddRun(workflow string, createdAt time.Time, state RunState) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.runs = append(s.runs, &run{id: s.nextID, workflow: workflow, createdAt: createdAt, states: []RunState{state}})
	return s.nextID
}

// Dispatches returns the dispatch calls received.
func (s *Server) Dispatches() []Dispatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Dispatch, len(s.dispatches))
	copy(out, s.dispatches)
	return out
}

// Lists returns how many list-runs calls were received.
func (s *Server) Lists() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists
}

// Gets returns how many times run id was fetched.
func (s *Server) Gets(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.id == id {
			return r.gets
		}
	}
	return 0
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var body struct {
		Ref    string            `json:"ref"`
		Inputs map[string]string `json:"inputs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Problems parsing JSON")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatches = append(s.dispatches, Dispatch{
		Owner:    vars["owner"],
		Repo:     vars["repo"],
		Workflow: vars["workflow"],
		Ref:      body.Ref,
		Inputs:   body.Inputs,
		Auth:     r.Header.Get("Authorization"),
	})
	if s.dispatchStatus != 0 {
		writeError(w, s.dispatchStatus, "dispatch rejected")
		return
	}
	s.nextID++
	states := append([]RunState(nil), s.script...)
	s.runs = append(s.runs, &run{id: s.nextID, workflow: vars["workflow"], createdAt: s.now(), states: states, dispatched: true})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	workflow := mux.Vars(r)["workflow"]
	perPage := 30
	if v, err := strconv.Atoi(r.URL.Query().Get("per_page")); err == nil && v > 0 {
		perPage = v
	}

	s.mu.Lock()
	s.lists++
	var matched []*run
	for _, rn := range s.runs {
		if rn.workflow != workflow {
			continue
		}
		if s.hideRuns && rn.dispatched {
			continue
		}
		matched = append(matched, rn)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].createdAt.After(matched[j].createdAt) })
	if len(matched) > perPage {
		matched = matched[:perPage]
	}
	runs := make([]map[string]any, 0, len(matched))
	for _, rn := range matched {
		runs = append(runs, s.encode(rn))
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"total_count": len(runs), "workflow_runs": runs})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rn := range s.runs {
		if rn.id != id {
			continue
		}
		payload := s.encode(rn)
		rn.gets++
		writeJSON(w, http.StatusOK, payload)
		return
	}
	writeError(w, http.StatusNotFound, "Not Found")
}

func (s *Server) encode(rn *run) map[string]any {
	st := rn.state()
	var conclusion any
	if st.Conclusion != "" {
		conclusion = st.Conclusion
	}
	return map[string]any{
		"id":         rn.id,
		"name":       rn.workflow,
		"status":     st.Status,
		"conclusion": conclusion,
		"html_url":   fmt.Sprintf("https://github.com/actions/runs/%d", rn.id),
		"created_at": rn.createdAt.UTC().Format(time.RFC3339),
		"updated_at": rn.createdAt.UTC().Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

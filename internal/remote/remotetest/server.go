// Package remotetest provides an in-memory channel repository served over
// HTTP, speaking the same GET/HEAD/PUT protocol as the real repository.
package remotetest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/gorilla/mux"
)

// BasePath is the path prefix the channel is served under.
const BasePath = "/repository/conda"

// Request is one request the server received.
type Request struct {
	Method string
	Key    string
}

// Server is a fake channel repository. Files live in memory keyed by their
// channel-relative path.
type Server struct {
	srv *httptest.Server

	mu       sync.Mutex
	files    map[string][]byte
	log      []Request
	user     string
	password string
	failPut  map[string]int
	failHead int
	failGet  map[string]int
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	s := &Server{
		files:   make(map[string][]byte),
		failPut: make(map[string]int),
		failGet: make(map[string]int),
	}

	router := mux.NewRouter()
	router.HandleFunc(BasePath+"/{key:.+}", s.handleRead).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc(BasePath+"/{key:.+}", s.handlePut).Methods(http.MethodPut)

	s.srv = httptest.NewServer(router)
	t.Cleanup(s.srv.Close)
	return s
}

// URL returns the channel base URL, without a trailing slash.
func (s *Server) URL() string {
	return s.srv.URL + BasePath
}

// RequireAuth makes every request require HTTP basic auth.
func (s *Server) RequireAuth(user, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user, s.password = user, password
}

// SetFile stores content at key.
func (s *Server) SetFile(key string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key] = append([]byte(nil), content...)
}

// File returns the content at key.
func (s *Server) File(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[key]
	return data, ok
}

// Keys returns every stored key, sorted.
func (s *Server) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.files))
	for k := range s.files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FailPut makes PUT requests for key answer with status.
func (s *Server) FailPut(key string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPut[key] = status
}

// FailGet makes GET requests for key answer with status.
func (s *Server) FailGet(key string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failGet[key] = status
}

// FailHead makes every HEAD request answer with status.
func (s *Server) FailHead(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failHead = status
}

// Requests returns the requests received so far, in order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.log))
	copy(out, s.log)
	return out
}

// Puts returns the keys written, in order.
func (s *Server) Puts() []string {
	var keys []string
	for _, r := range s.Requests() {
		if r.Method == http.MethodPut {
			keys = append(keys, r.Key)
		}
	}
	return keys
}

func (s *Server) authorized(r *http.Request) bool {
	if s.user == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	return ok && user == s.user && pass == s.password
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	s.mu.Lock()
	s.log = append(s.log, Request{Method: r.Method, Key: key})
	if !s.authorized(r) {
		s.mu.Unlock()
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method == http.MethodHead && s.failHead != 0 {
		status := s.failHead
		s.mu.Unlock()
		w.WriteHeader(status)
		return
	}
	if status, ok := s.failGet[key]; ok && r.Method == http.MethodGet {
		s.mu.Unlock()
		http.Error(w, "injected failure", status)
		return
	}
	data, ok := s.files[key]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write(data)
	}
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, Request{Method: r.Method, Key: key})
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if status, ok := s.failPut[key]; ok {
		http.Error(w, "injected failure", status)
		return
	}
	s.files[key] = data
	w.WriteHeader(http.StatusCreated)
}

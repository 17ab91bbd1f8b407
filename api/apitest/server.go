// Package apitest provides an in-memory stand-in for the Tekst platform API,
// covering the task, search and session endpoints the client uses.
package apitest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"tekst-client/model"
)

const sessionCookie = "tekstuserauth"

// SessionLifetime is the max age of session cookies issued by Server.
const SessionLifetime = time.Hour

type Server struct {
	*httptest.Server

	mu        sync.Mutex
	nextID    int
	tasks     []*model.Task
	artifacts map[string]Artifact
	requests  []Request
	failTasks int
	search    func(model.SearchRequest) model.SearchResults
	users     map[string]string
	sessions  map[string]string
}

type Artifact struct {
	Filename string
	Data     []byte
}

// Request is a recorded incoming request.
type Request struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

func NewServer() *Server {
	s := &Server{
		artifacts: make(map[string]Artifact),
		users:     make(map[string]string),
		sessions:  make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /platform/tasks/user", s.getUserTasks)
	mux.HandleFunc("GET /platform/tasks/download", s.downloadArtifact)
	mux.HandleFunc("GET /platform/tasks", s.getAllTasks)
	mux.HandleFunc("DELETE /platform/tasks", s.deleteAllTasks)
	mux.HandleFunc("DELETE /platform/tasks/{id}", s.deleteTask)
	mux.HandleFunc("POST /search", s.postSearch)
	mux.HandleFunc("POST /search/export", s.postSearchExport)
	mux.HandleFunc("GET /search/index/create", s.createIndex)
	mux.HandleFunc("GET /resources/{id}/export", s.exportResource)
	mux.HandleFunc("POST /auth/cookie/login", s.login)
	mux.HandleFunc("POST /auth/cookie/logout", s.logout)
	mux.HandleFunc("GET /users/me", s.me)

	s.Server = httptest.NewServer(s.record(mux))
	return s
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   body,
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// AddTask registers a task the way a job-starting endpoint would and
// returns a copy. Missing id, pickup key, status and start time are filled in.
func (s *Server) AddTask(task model.Task) model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.addTaskLocked(task)
}

func (s *Server) addTaskLocked(task model.Task) *model.Task {
	s.nextID++
	if task.ID == "" {
		task.ID = fmt.Sprintf("task-%d", s.nextID)
	}
	if task.PickupKey == "" {
		task.PickupKey = fmt.Sprintf("pk-%d", s.nextID)
	}
	if task.Status == "" {
		task.Status = model.StatusWaiting
	}
	if task.StartTime == nil {
		task.StartTime = model.NewTimestamp(time.Now().UTC())
	}
	t := task
	s.tasks = append(s.tasks, &t)
	return &t
}

// SetStatus changes the status (and optionally the result) of a task.
func (s *Server) SetStatus(id string, status model.TaskStatus, result map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id {
			t.Status = status
			if result != nil {
				t.Result = result
			}
			if status.Terminal() {
				t.EndTime = model.NewTimestamp(time.Now().UTC())
			}
		}
	}
}

// SetError marks a task failed with the given error key.
func (s *Server) SetError(id, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id {
			t.Status = model.StatusFailed
			k := key
			t.Error = &k
		}
	}
}

func (s *Server) SetArtifact(pickupKey, filename string, data []byte) {
	s.mu.Lock()
	s.artifacts[pickupKey] = Artifact{Filename: filename, Data: data}
	s.mu.Unlock()
}

// FailTaskPolls makes the next n user task requests answer with 500.
func (s *Server) FailTaskPolls(n int) {
	s.mu.Lock()
	s.failTasks = n
	s.mu.Unlock()
}

// SetSearch installs the function answering POST /search.
func (s *Server) SetSearch(fn func(model.SearchRequest) model.SearchResults) {
	s.mu.Lock()
	s.search = fn
	s.mu.Unlock()
}

func (s *Server) AddUser(username, password string) {
	s.mu.Lock()
	s.users[username] = password
	s.mu.Unlock()
}

// Requests returns the recorded requests whose path equals path, or all of
// them when path is "".
func (s *Server) Requests(path string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, r := range s.requests {
		if path == "" || r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) Tasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	return out
}

func (s *Server) getUserTasks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.failTasks > 0 {
		s.failTasks--
		s.mu.Unlock()
		writeError(w, http.StatusInternalServerError, "serverError", "[API] Database error")
		return
	}
	keys := map[string]bool{}
	for _, k := range strings.Split(r.Header.Get("Pickup-Keys"), ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys[k] = true
		}
	}
	user := s.sessionUser(r)
	tasks := []model.Task{}
	for _, t := range s.tasks {
		if keys[t.PickupKey] || (user != "" && t.UserID == user) {
			tasks = append(tasks, *t)
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) getAllTasks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	user := s.sessionUser(r)
	s.mu.Unlock()
	if user == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "[API] Not logged in")
		return
	}
	writeJSON(w, http.StatusOK, s.Tasks())
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.tasks {
		if t.ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeError(w, http.StatusNotFound, "taskNotFound", "[API] Task not found")
}

func (s *Server) deleteAllTasks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.tasks = nil
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) downloadArtifact(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("pickupKey")
	s.mu.Lock()
	a, ok := s.artifacts[key]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "taskNotFound", "[API] No artifact for pickup key")
		return
	}
	if a.Filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, a.Filename))
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(a.Data)
}

func (s *Server) postSearch(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	req, err := model.UnmarshalSearchRequest(body)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalidSearchRequest", err.Error())
		return
	}
	s.mu.Lock()
	fn := s.search
	s.mu.Unlock()

	results := model.SearchResults{Hits: []model.SearchHit{}, TotalHitsRelation: "eq"}
	if fn != nil {
		results = fn(req)
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) postSearchExport(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	if _, err := model.UnmarshalSearchRequest(body); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalidSearchRequest", err.Error())
		return
	}
	s.startTask(w, r, model.TaskSearchExport, "")
}

func (s *Server) createIndex(w http.ResponseWriter, r *http.Request) {
	s.startTask(w, r, model.TaskIndexCreateUpdate, "")
}

func (s *Server) exportResource(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("format") {
	case "", "json", "tekst-json", "csv":
	default:
		writeError(w, http.StatusUnprocessableEntity, "invalidFormat", "[API] Invalid export format")
		return
	}
	s.startTask(w, r, model.TaskResourceExport, r.PathValue("id"))
}

func (s *Server) startTask(w http.ResponseWriter, r *http.Request, typ model.TaskType, target string) {
	s.mu.Lock()
	task := model.Task{Type: typ, UserID: s.sessionUser(r)}
	if target != "" {
		task.TargetID = &target
	}
	created := *s.addTaskLocked(task)
	s.mu.Unlock()

	writeJSON(w, http.StatusAccepted, created)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "badRequest", err.Error())
		return
	}
	user, pass := r.PostForm.Get("username"), r.PostForm.Get("password")

	s.mu.Lock()
	defer s.mu.Unlock()
	if want, ok := s.users[user]; !ok || want != pass {
		writeError(w, http.StatusBadRequest, "loginBadCredentials", "[API] Bad credentials")
		return
	}
	token := fmt.Sprintf("session-%s-%d", user, len(s.sessions)+1)
	s.sessions[token] = user
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: token, Path: "/", MaxAge: int(SessionLifetime.Seconds())})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, c.Value)
		s.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	user := s.sessionUser(r)
	s.mu.Unlock()
	if user == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "[API] Not logged in")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       "user-" + user,
		"username": user,
		"isActive": true,
	})
}

// sessionUser must be called with s.mu held.
func (s *Server) sessionUser(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return s.sessions[c.Value]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "[API] Encoding error", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, key, msg string) {
	writeJSON(w, status, map[string]any{
		"detail": map[string]any{"key": key, "msg": msg},
	})
}

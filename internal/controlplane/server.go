package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fentz26/pacer/internal/models"
	"github.com/fentz26/pacer/internal/pipeline"
	"github.com/fentz26/pacer/internal/scheduler"
)

// Version is reported by /health. Overridden at build time.
var Version = "dev"

// Server provides the HTTP API for pacer.
type Server struct {
	service   *Service
	scheduler *scheduler.Scheduler
	addr      string
	server    *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(service *Service, addr string) *Server {
	return &Server{
		service: service,
		addr:    addr,
	}
}

// SetScheduler exposes the cron trigger's job stats on /jobs.
func (s *Server) SetScheduler(sch *scheduler.Scheduler) {
	s.scheduler = sch
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)

	// Task endpoints
	mux.HandleFunc("/tasks", s.handleTasks)
	mux.HandleFunc("/tasks/", s.handleTaskByID)

	// Backlog and graveyard endpoints
	mux.HandleFunc("/backlog/", s.handleBacklog)
	mux.HandleFunc("/graveyard", s.handleGraveyard)
	mux.HandleFunc("/graveyard/", s.handleGraveyardByID)

	// Pace, goal and urgency endpoints
	mux.HandleFunc("/momentum", s.handleMomentum)
	mux.HandleFunc("/goals/", s.handleGoals)
	mux.HandleFunc("/urgency/check", s.handleUrgencyCheck)

	// Client endpoints
	mux.HandleFunc("/clients", s.handleClients)
	mux.HandleFunc("/clients/", s.handleClientByName)

	mux.HandleFunc("/jobs", s.handleJobs)
	return mux
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Printf("Starting pacer daemon on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, ErrMethodNotAllowed)
		return
	}

	resp := HealthResponse{OK: true, DB: "ok", Version: Version, Time: time.Now().UTC().Format(time.RFC3339)}
	status := http.StatusOK
	if err := s.service.Health(r.Context()); err != nil {
		resp.OK = false
		resp.DB = err.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleTasks handles POST /tasks and GET /tasks
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createTask(w, r)
	case http.MethodGet:
		s.listTasks(w, r)
	default:
		writeError(w, ErrMethodNotAllowed)
	}
}

// handleTaskByID handles /tasks/{id}/*
func (s *Server) handleTaskByID(w http.ResponseWriter, r *http.Request) {
	taskID, action := splitPath(r.URL.Path, "/tasks/")
	if taskID == "" {
		writeError(w, ErrMissingID)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.getTask(w, r, taskID)
	case action == "events" && r.Method == http.MethodGet:
		s.taskEvents(w, r, taskID)
	case action == "transition" && r.Method == http.MethodPost:
		s.transitionTask(w, r, taskID)
	case action == "promote" && r.Method == http.MethodPost:
		s.stepTask(w, r, taskID, s.service.Promote)
	case action == "demote" && r.Method == http.MethodPost:
		s.stepTask(w, r, taskID, s.service.Demote)
	case action == "edit" && r.Method == http.MethodPost:
		s.editTask(w, r, taskID)
	case action == "archive" && r.Method == http.MethodPost:
		s.archiveTask(w, r, taskID)
	default:
		writeError(w, ErrRouteNotFound)
	}
}

// --- Task Handlers ---

type createTaskRequest struct {
	pipeline.NewTask
	Actor string `json:"actor"`
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	task, err := s.service.CreateTask(r.Context(), req.NewTask, actorOr(req.Actor))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.service.ListTasks(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request, taskID string) {
	task, err := s.service.GetTask(r.Context(), taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) taskEvents(w http.ResponseWriter, r *http.Request, taskID string) {
	events, err := s.service.TaskEvents(r.Context(), taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []models.TaskEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

type transitionRequest struct {
	Status string `json:"status"`
	Actor  string `json:"actor"`
}

func (s *Server) transitionTask(w http.ResponseWriter, r *http.Request, taskID string) {
	var req transitionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	task, err := s.service.Transition(r.Context(), taskID, req.Status, actorOr(req.Actor))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type actorRequest struct {
	Actor string `json:"actor"`
}

func (s *Server) stepTask(w http.ResponseWriter, r *http.Request, taskID string, step func(context.Context, string, string) (*models.Task, error)) {
	var req actorRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	task, err := step(r.Context(), taskID, actorOr(req.Actor))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type editRequest struct {
	pipeline.Edit
	Actor string `json:"actor"`
}

func (s *Server) editTask(w http.ResponseWriter, r *http.Request, taskID string) {
	var req editRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	task, err := s.service.EditTask(r.Context(), taskID, req.Edit, actorOr(req.Actor))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type archiveRequest struct {
	Reason models.ArchiveReason `json:"reason"`
}

func (s *Server) archiveTask(w http.ResponseWriter, r *http.Request, taskID string) {
	var req archiveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	entry, err := s.service.ArchiveTask(r.Context(), taskID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// --- Backlog Handlers ---

// handleBacklog handles GET /backlog/aging, GET /backlog/groups and
// POST /backlog/decay
func (s *Server) handleBacklog(w http.ResponseWriter, r *http.Request) {
	action, _ := splitPath(r.URL.Path, "/backlog/")

	switch {
	case action == "aging" && r.Method == http.MethodGet:
		report, err := s.service.ComputeAging(r.Context())
		respond(w, report, err)
	case action == "groups" && r.Method == http.MethodGet:
		groups, err := s.service.GroupedBacklog(r.Context())
		respond(w, groups, err)
	case action == "decay" && r.Method == http.MethodPost:
		result, err := s.service.RunAutoDecay(r.Context())
		respond(w, result, err)
	default:
		writeError(w, ErrRouteNotFound)
	}
}

func (s *Server) handleGraveyard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, ErrMethodNotAllowed)
		return
	}
	entries, err := s.service.ListGraveyard(r.Context())
	if entries == nil {
		entries = []models.GraveyardEntry{}
	}
	respond(w, entries, err)
}

// handleGraveyardByID handles POST /graveyard/{id}/resurrect
func (s *Server) handleGraveyardByID(w http.ResponseWriter, r *http.Request) {
	id, action := splitPath(r.URL.Path, "/graveyard/")
	if id == "" {
		writeError(w, ErrMissingID)
		return
	}
	if action != "resurrect" || r.Method != http.MethodPost {
		writeError(w, ErrRouteNotFound)
		return
	}

	task, err := s.service.ResurrectTask(r.Context(), id)
	respond(w, task, err)
}

// --- Pace & Goal Handlers ---

func (s *Server) handleMomentum(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, ErrMethodNotAllowed)
		return
	}
	report, err := s.service.CalculateMomentum(r.Context())
	respond(w, report, err)
}

type updateGoalRequest struct {
	Date string `json:"date"`
}

// handleGoals handles POST /goals/update, GET /goals/history and
// GET /goals/heatmap
func (s *Server) handleGoals(w http.ResponseWriter, r *http.Request) {
	action, _ := splitPath(r.URL.Path, "/goals/")
	q := r.URL.Query()

	switch {
	case action == "update" && r.Method == http.MethodPost:
		var req updateGoalRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
		record, err := s.service.UpdateDailyGoal(r.Context(), req.Date)
		respond(w, record, err)
	case action == "history" && r.Method == http.MethodGet:
		days := 7
		if v := q.Get("days"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, ErrInvalidDays)
				return
			}
			days = n
		}
		records, err := s.service.GoalHistory(r.Context(), days)
		if records == nil {
			records = []models.DailyGoalRecord{}
		}
		respond(w, records, err)
	case action == "heatmap" && r.Method == http.MethodGet:
		days, err := s.service.Heatmap(r.Context(), q.Get("from"), q.Get("to"))
		respond(w, days, err)
	default:
		writeError(w, ErrRouteNotFound)
	}
}

type urgencyRequest struct {
	Hour *int `json:"hour"`
}

// handleUrgencyCheck handles POST /urgency/check. Relay failures are part of
// the result body, never an error status.
func (s *Server) handleUrgencyCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, ErrMethodNotAllowed)
		return
	}
	var req urgencyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, ErrInvalidHour)
		return
	}

	result, err := s.service.CheckAndNotify(r.Context(), req.Hour)
	respond(w, result, err)
}

// --- Client Handlers ---

func (s *Server) handleClients(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, ErrMethodNotAllowed)
		return
	}
	clients, err := s.service.ListClients(r.Context())
	if clients == nil {
		clients = []models.ClientMemory{}
	}
	respond(w, clients, err)
}

// handleClientByName handles POST /clients/{name} and
// POST /clients/{name}/reset-avoidance
func (s *Server) handleClientByName(w http.ResponseWriter, r *http.Request) {
	name, action := splitPath(r.URL.Path, "/clients/")
	if name == "" {
		writeError(w, ErrMissingID)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, ErrMethodNotAllowed)
		return
	}

	switch action {
	case "":
		var req ClientProfile
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
		client, err := s.service.UpdateClient(r.Context(), name, req)
		respond(w, client, err)
	case "reset-avoidance":
		client, err := s.service.ResetAvoidance(r.Context(), name)
		respond(w, client, err)
	default:
		writeError(w, ErrRouteNotFound)
	}
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, ErrMethodNotAllowed)
		return
	}
	if s.scheduler == nil {
		writeJSON(w, http.StatusOK, []scheduler.JobStats{})
		return
	}
	writeJSON(w, http.StatusOK, s.scheduler.GetStats())
}

// --- helpers ---

// splitPath returns the first and second segments after prefix. Segments
// are path-unescaped so client names may contain spaces.
func splitPath(path, prefix string) (string, string) {
	parts := strings.SplitN(strings.TrimPrefix(path, prefix), "/", 3)
	first, _ := url.PathUnescape(parts[0])
	second := ""
	if len(parts) > 1 {
		second = parts[1]
	}
	return first, second
}

// decodeBody decodes a JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return nil
}

func respond(w http.ResponseWriter, v any, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func actorOr(actor string) string {
	if actor == "" {
		return "user"
	}
	return actor
}

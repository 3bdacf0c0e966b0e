package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/raysh454/comply/docs/swagger" // registers the OpenAPI document
	"github.com/raysh454/comply/internal/app"
	"github.com/raysh454/comply/internal/dispatch"
	"github.com/raysh454/comply/internal/logging"
	"github.com/raysh454/comply/internal/metrics"
	"github.com/raysh454/comply/internal/model"
	"github.com/raysh454/comply/internal/registry"
	"github.com/raysh454/comply/internal/store"
)

// Server is the HTTP + WebSocket API surface.
type Server struct {
	cfg          Config
	orchestrator *app.Orchestrator
	metrics      *metrics.Tracker
	router       chi.Router
	upgrader     websocket.Upgrader
	logger       logging.Logger
}

// NewServer creates a Server in front of orch. m may be nil.
func NewServer(cfg Config, orch *app.Orchestrator, m *metrics.Tracker) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("server")
	}

	s := &Server{
		cfg:          cfg,
		orchestrator: orch,
		metrics:      m,
		router:       chi.NewRouter(),
		logger:       logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/accounts/{account}", s.optionsHandler("GET, PUT"))
	r.Options("/accounts/{account}/usage", s.optionsHandler("GET"))
	r.Options("/accounts/{account}/projects", s.optionsHandler("GET, POST"))
	r.Options("/accounts/{account}/projects/{project}/websites", s.optionsHandler("GET, POST"))
	r.Options("/accounts/{account}/websites/{website}/scans", s.optionsHandler("GET, POST"))
	r.Options("/accounts/{account}/scans/{scanID}", s.optionsHandler("GET"))
	r.Options("/accounts/{account}/schedules", s.optionsHandler("GET, POST"))
	r.Options("/accounts/{account}/schedules/{scheduleID}", s.optionsHandler("GET, PATCH, DELETE"))
	r.Options("/ws/accounts/{account}/scans/{scanID}", s.optionsHandler("GET"))

	// Accounts
	r.Put("/accounts/{account}", s.handleSyncAccount)
	r.Get("/accounts/{account}", s.handleGetAccount)
	r.Get("/accounts/{account}/usage", s.handleGetUsage)

	// Projects
	r.Post("/accounts/{account}/projects", s.handleCreateProject)
	r.Get("/accounts/{account}/projects", s.handleListProjects)

	// Websites
	r.Post("/accounts/{account}/projects/{project}/websites", s.handleCreateWebsite)
	r.Get("/accounts/{account}/projects/{project}/websites", s.handleListWebsites)

	// Scans
	r.Post("/accounts/{account}/websites/{website}/scans", s.handleStartScan)
	r.Get("/accounts/{account}/websites/{website}/scans", s.handleListScans)
	r.Get("/accounts/{account}/scans/{scanID}", s.handleGetScan)

	// Schedules
	r.Post("/accounts/{account}/schedules", s.handleCreateSchedule)
	r.Get("/accounts/{account}/schedules", s.handleListSchedules)
	r.Get("/accounts/{account}/schedules/{scheduleID}", s.handleGetSchedule)
	r.Patch("/accounts/{account}/schedules/{scheduleID}", s.handleUpdateSchedule)
	r.Delete("/accounts/{account}/schedules/{scheduleID}", s.handleDeactivateSchedule)

	// WebSocket for scan progress
	r.Get("/ws/accounts/{account}/scans/{scanID}", s.handleScanWS)

	// Operations
	r.Get("/healthz", s.handleHealthz)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/swagger/*", httpSwagger.WrapHandler)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}

	if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
		if bodyBytes, err := io.ReadAll(r.Body); err == nil {
			fields = append(fields, logging.Field{Key: "body", Value: string(bodyBytes)})
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		ve *model.ValidationError
		qe *model.QuotaExceededError
		se *model.InvalidStateError
		de *model.DispatchError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &qe), errors.Is(err, app.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, app.ErrScanInProgress), errors.Is(err, store.ErrConflict), errors.As(err, &se):
		return http.StatusConflict
	case errors.As(err, &de):
		return http.StatusServiceUnavailable
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, registry.ErrProjectNotFound),
		errors.Is(err, registry.ErrWebsiteNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op, logging.Field{Key: "error", Value: err.Error()})
	} else {
		s.logger.Warn(op, logging.Field{Key: "error", Value: err.Error()})
	}
	writeError(w, status, err.Error())
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// --- HTTP handlers ---

// Accounts

// handleSyncAccount godoc
// @Summary Create an account or change its tier
// @Tags accounts
// @Accept json
// @Produce json
// @Param account path string true "Account ID"
// @Param body body SyncAccountRequest true "Tier"
// @Success 200 {object} model.Account
// @Failure 400 {object} ErrorResponse
// @Router /accounts/{account} [put]
func (s *Server) handleSyncAccount(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")

	var body SyncAccountRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	acct, err := s.orchestrator.SyncAccount(r.Context(), account, body.Tier)
	if err != nil {
		s.fail(w, "syncing account", err)
		return
	}
	s.logger.Info("synced account", logging.Field{Key: "account", Value: account}, logging.Field{Key: "tier", Value: string(acct.Tier)})
	writeJSON(w, http.StatusOK, acct)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := s.orchestrator.GetAccount(r.Context(), chi.URLParam(r, "account"))
	if err != nil {
		s.fail(w, "getting account", err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// handleGetUsage godoc
// @Summary Monthly usage against tier limits
// @Tags accounts
// @Produce json
// @Param account path string true "Account ID"
// @Success 200 {object} app.UsageReport
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{account}/usage [get]
func (s *Server) handleGetUsage(w http.ResponseWriter, r *http.Request) {
	report, err := s.orchestrator.Usage(r.Context(), chi.URLParam(r, "account"))
	if err != nil {
		s.fail(w, "getting usage", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Projects

// handleCreateProject godoc
// @Summary Create a project
// @Tags projects
// @Accept json
// @Produce json
// @Param account path string true "Account ID"
// @Param body body CreateProjectRequest true "Project"
// @Success 201 {object} model.Project
// @Failure 403 {object} ErrorResponse
// @Router /accounts/{account}/projects [post]
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")

	var body CreateProjectRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	p, err := s.orchestrator.CreateProject(r.Context(), account, body.Slug, body.Name, body.Description)
	if err != nil {
		s.fail(w, "creating project", err)
		return
	}
	s.logger.Info("created project", logging.Field{Key: "account", Value: account}, logging.Field{Key: "slug", Value: p.Slug})
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	ps, err := s.orchestrator.ListProjects(r.Context(), chi.URLParam(r, "account"))
	if err != nil {
		s.fail(w, "listing projects", err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// Websites

// handleCreateWebsite godoc
// @Summary Add a website to a project
// @Tags websites
// @Accept json
// @Produce json
// @Param account path string true "Account ID"
// @Param project path string true "Project ID or slug"
// @Param body body CreateWebsiteRequest true "Website"
// @Success 201 {object} model.Website
// @Failure 400 {object} ErrorResponse
// @Router /accounts/{account}/projects/{project}/websites [post]
func (s *Server) handleCreateWebsite(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	project := chi.URLParam(r, "project")

	var body CreateWebsiteRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	web, err := s.orchestrator.CreateWebsite(r.Context(), account, project, body.Slug, body.Name, body.Origin)
	if err != nil {
		s.fail(w, "creating website", err)
		return
	}
	s.logger.Info("created website", logging.Field{Key: "project", Value: project}, logging.Field{Key: "site", Value: web.Slug})
	writeJSON(w, http.StatusCreated, web)
}

func (s *Server) handleListWebsites(w http.ResponseWriter, r *http.Request) {
	ws, err := s.orchestrator.ListWebsites(r.Context(), chi.URLParam(r, "account"), chi.URLParam(r, "project"))
	if err != nil {
		s.fail(w, "listing websites", err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

// Scans

// handleStartScan godoc
// @Summary Start an on-demand scan
// @Tags scans
// @Accept json
// @Produce json
// @Param account path string true "Account ID"
// @Param website path string true "Website ID"
// @Param body body StartScanRequest false "Options"
// @Success 202 {object} model.ScanRecord
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /accounts/{account}/websites/{website}/scans [post]
func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	website := chi.URLParam(r, "website")

	var body StartScanRequest
	if err := decodeBody(r, &body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	rec, err := s.orchestrator.StartScan(r.Context(), account, website, body.ScanOptions)
	if err != nil {
		s.fail(w, "starting scan", err)
		return
	}
	s.logger.Info("started scan", logging.Field{Key: "scan_id", Value: rec.ID}, logging.Field{Key: "website", Value: website})
	writeJSON(w, http.StatusAccepted, rec)
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if ls := r.URL.Query().Get("limit"); ls != "" {
		if v, err := strconv.Atoi(ls); err == nil && v > 0 {
			limit = v
		}
	}

	scans, err := s.orchestrator.ListScans(r.Context(), chi.URLParam(r, "account"), chi.URLParam(r, "website"), limit)
	if err != nil {
		s.fail(w, "listing scans", err)
		return
	}
	writeJSON(w, http.StatusOK, scans)
}

// handleGetScan godoc
// @Summary Get a scan record
// @Tags scans
// @Produce json
// @Param account path string true "Account ID"
// @Param scanID path string true "Scan ID"
// @Success 200 {object} model.ScanRecord
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{account}/scans/{scanID} [get]
func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	rec, err := s.orchestrator.GetScan(r.Context(), chi.URLParam(r, "account"), chi.URLParam(r, "scanID"))
	if err != nil {
		s.fail(w, "getting scan", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Schedules

// handleCreateSchedule godoc
// @Summary Create a recurring scan
// @Tags schedules
// @Accept json
// @Produce json
// @Param account path string true "Account ID"
// @Param body body CreateScheduleRequest true "Schedule"
// @Success 201 {object} model.ScanDefinition
// @Failure 400 {object} ErrorResponse
// @Router /accounts/{account}/schedules [post]
func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")

	var body CreateScheduleRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	def, err := s.orchestrator.CreateDefinition(r.Context(), account, app.DefinitionInput{
		WebsiteID:   body.WebsiteID,
		Frequency:   body.Frequency,
		TimeOfDay:   body.TimeOfDay,
		DayOfWeek:   body.DayOfWeek,
		DayOfMonth:  body.DayOfMonth,
		ScanOptions: body.ScanOptions,
	})
	if err != nil {
		s.fail(w, "creating schedule", err)
		return
	}
	s.logger.Info("created schedule", logging.Field{Key: "schedule_id", Value: def.ID}, logging.Field{Key: "next_run", Value: def.NextRun})
	writeJSON(w, http.StatusCreated, def)
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	defs, err := s.orchestrator.ListDefinitions(r.Context(), chi.URLParam(r, "account"))
	if err != nil {
		s.fail(w, "listing schedules", err)
		return
	}
	writeJSON(w, http.StatusOK, defs)
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	def, err := s.orchestrator.GetDefinition(r.Context(), chi.URLParam(r, "account"), chi.URLParam(r, "scheduleID"))
	if err != nil {
		s.fail(w, "getting schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// handleUpdateSchedule godoc
// @Summary Change a recurring scan
// @Tags schedules
// @Accept json
// @Produce json
// @Param account path string true "Account ID"
// @Param scheduleID path string true "Schedule ID"
// @Param body body UpdateScheduleRequest true "Changes"
// @Success 200 {object} model.ScanDefinition
// @Failure 400 {object} ErrorResponse
// @Router /accounts/{account}/schedules/{scheduleID} [patch]
func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var body UpdateScheduleRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	def, err := s.orchestrator.UpdateDefinition(r.Context(), chi.URLParam(r, "account"), chi.URLParam(r, "scheduleID"), app.DefinitionPatch{
		Frequency:   body.Frequency,
		TimeOfDay:   body.TimeOfDay,
		DayOfWeek:   body.DayOfWeek,
		DayOfMonth:  body.DayOfMonth,
		ScanOptions: body.ScanOptions,
		IsActive:    body.IsActive,
	})
	if err != nil {
		s.fail(w, "updating schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// handleDeactivateSchedule stops a schedule. Schedules are never deleted.
func (s *Server) handleDeactivateSchedule(w http.ResponseWriter, r *http.Request) {
	def, err := s.orchestrator.DeactivateDefinition(r.Context(), chi.URLParam(r, "account"), chi.URLParam(r, "scheduleID"))
	if err != nil {
		s.fail(w, "deactivating schedule", err)
		return
	}
	s.logger.Info("deactivated schedule", logging.Field{Key: "schedule_id", Value: def.ID})
	writeJSON(w, http.StatusOK, def)
}

// Operations

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleMetrics godoc
// @Summary Scheduler and scan counters
// @Tags operations
// @Produce json
// @Success 200 {object} metrics.Snapshot
// @Router /metrics [get]
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeJSON(w, http.StatusOK, metrics.Snapshot{})
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.GetSnapshot())
}

// WebSockets

// handleScanWS streams a scan's current state followed by its status events.
// The connection is closed after the result event.
func (s *Server) handleScanWS(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	scanID := chi.URLParam(r, "scanID")

	rec, events, cancel, err := s.orchestrator.WatchScan(r.Context(), account, scanID)
	if err != nil {
		s.fail(w, "watching scan", err)
		return
	}
	defer cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	// Reads only detect the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.logger.Info("watching scan", logging.Field{Key: "scan_id", Value: scanID})
	if err := conn.WriteJSON(dispatch.NewEvent(rec)); err != nil {
		return
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "scan finished"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}

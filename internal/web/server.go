package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stablerotor/rotor/internal/config"
	"github.com/stablerotor/rotor/internal/logger"
	"github.com/stablerotor/rotor/internal/oracle"
	"github.com/stablerotor/rotor/internal/policy"
	"github.com/stablerotor/rotor/internal/state"
	"github.com/stablerotor/rotor/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

// STATUS_TOKEN_HEADER carries the shared secret for the /state endpoint.
const STATUS_TOKEN_HEADER = "x-bot-status-token"

// WebServer serves the dashboard, the status document, and the decision API.
type WebServer struct {
	router    *mux.Router
	port      string
	cfg       *config.Config
	engine    *policy.Engine
	oracle    *oracle.Oracle
	startTime time.Time
}

// NewWebServer creates a new web server instance.
func NewWebServer(cfg *config.Config, engine *policy.Engine, priceOracle *oracle.Oracle) *WebServer {
	port := cfg.WebPort
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:    mux.NewRouter(),
		port:      port,
		cfg:       cfg,
		engine:    engine,
		oracle:    priceOracle,
		startTime: time.Now(),
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Dashboard routes
	ws.router.HandleFunc("/", ws.handleDashboard).Methods("GET")
	ws.router.HandleFunc("/dashboard", ws.handleDashboard).Methods("GET")

	// Health and status (direct routes)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	ws.router.HandleFunc("/state", ws.handleState).Methods("GET")
	ws.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/decisions", ws.handleGetDecisions).Methods("GET")
	api.HandleFunc("/decisions/latest", ws.handleGetLatestDecision).Methods("GET")
	api.HandleFunc("/position", ws.handleGetPosition).Methods("GET")
	api.HandleFunc("/oracle", ws.handleGetOracleTelemetry).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbHealthy := true
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
	}

	status := ws.engine.Status()
	hasErrors := !dbHealthy

	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(time.Since(ws.startTime).Seconds()),
		},
		"component": map[string]interface{}{
			"name":    "rotor-yield-rotation-engine",
			"version": "1.0.0",
		},
		"rotor_status": map[string]interface{}{
			"database_healthy": dbHealthy,
			"dry_run":          ws.cfg.DryRun,
			"live_armed":       ws.cfg.LiveArmed,
			"paused":           status.Paused,
			"tick_count":       status.TickCount,
			"last_tick":        status.LastTick,
		},
	}

	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleState serves the status document the migration monitor polls. When a
// status token is configured the request must present it.
func (ws *WebServer) handleState(w http.ResponseWriter, r *http.Request) {
	if ws.cfg.StatusToken != "" && r.Header.Get(STATUS_TOKEN_HEADER) != ws.cfg.StatusToken {
		ws.writeErrorResponse(w, http.StatusUnauthorized, "Invalid or missing status token")
		return
	}

	status := ws.engine.Status()
	decisionCount, err := state.CountDecisions()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to count decisions for status document")
	}

	dbHealthy := state.TestDBConnection() == nil

	botState := types.BotState{
		Healthy: dbHealthy,
		Ready:   dbHealthy && status.TickCount > 0,
	}
	if !dbHealthy {
		botState.Reason = "database unreachable"
	} else if status.TickCount == 0 {
		botState.Reason = "no decision tick completed yet"
	}
	botState.State.Snapshots = status.TickCount
	botState.State.Decisions = decisionCount
	botState.Runtime = map[string]interface{}{
		"dry_run":    ws.cfg.DryRun,
		"live_armed": ws.cfg.LiveArmed,
		"paused":     status.Paused,
		"last_tick":  status.LastTick,
	}

	ws.writeJSONResponse(w, http.StatusOK, botState)
}

// handleGetDecisions returns recent journaled decisions
func (ws *WebServer) handleGetDecisions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	decisions, err := state.GetRecentDecisions(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent decisions")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve decisions")
		return
	}

	response := map[string]interface{}{
		"decisions": decisions,
		"count":     len(decisions),
		"limit":     limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetLatestDecision returns the most recent decision
func (ws *WebServer) handleGetLatestDecision(w http.ResponseWriter, r *http.Request) {
	decisions, err := state.GetRecentDecisions(1)
	if err != nil || len(decisions) == 0 {
		webLogger.Error().Err(err).Msg("Failed to get latest decision")
		ws.writeErrorResponse(w, http.StatusNotFound, "No decisions found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, decisions[0])
}

// handleGetPosition returns the current position, if any
func (ws *WebServer) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	status := ws.engine.Status()

	response := map[string]interface{}{
		"positioned": status.Position != nil,
		"position":   status.Position,
		"timestamp":  time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetOracleTelemetry returns oracle cache and fallback counters
func (ws *WebServer) handleGetOracleTelemetry(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"telemetry": ws.oracle.Telemetry(),
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+STATUS_TOKEN_HEADER)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

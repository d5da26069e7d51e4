package webserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/y0ug/hashscan/internal/history"
	"github.com/y0ug/hashscan/internal/models"
	"github.com/y0ug/hashscan/internal/notifications"
	"github.com/y0ug/hashscan/internal/repository"
	"github.com/y0ug/hashscan/internal/scanner"
)

// WebServer holds the data needed for handling HTTP requests.
type WebServer struct {
	Scanner  *scanner.Scanner
	Merger   *repository.Merger
	History  history.Store           // nil when history is disabled
	Notifier *notifications.Notifier // nil when notifications are disabled
	config   *WebserverConfig
	Logger   *logrus.Logger
}

// NewWebServer initializes a new WebServer.
func NewWebServer(scan *scanner.Scanner, merger *repository.Merger, store history.Store, notifier *notifications.Notifier, config *WebserverConfig, logger *logrus.Logger) *WebServer {
	return &WebServer{
		Scanner:  scan,
		Merger:   merger,
		History:  store,
		Notifier: notifier,
		config:   config,
		Logger:   logger,
	}
}

// StartWebServer starts the HTTP server.
func StartWebServer(ctx context.Context, ws *WebServer) (*http.Server, error) {
	router := ws.InitRouter()

	// Configure CORS options
	corsOptions := cors.Options{
		AllowedOrigins:   ws.config.CorsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		Debug:            false,
	}

	handler := cors.New(corsOptions).Handler(router)

	server := &http.Server{
		Addr:    ws.config.ListenTo,
		Handler: handler,
	}

	// Start the server in a separate goroutine
	go func() {
		ws.Logger.Infof("Server starting on %s", ws.config.ListenTo)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ws.Logger.Errorf("ListenAndServe(): %v", err)
		}
	}()

	ws.Logger.Infof("Server started on %s", ws.config.ListenTo)
	return server, nil
}

// InitRouter initializes the HTTP routes.
func (ws *WebServer) InitRouter() *mux.Router {
	r := mux.NewRouter()

	// Health stays reachable without a token.
	r.HandleFunc("/api/healthz", ws.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	if len(ws.config.JwtSecret) > 0 {
		middleware := NewMiddleware(ws.config, ws.Logger)
		api.Use(middleware.AuthMiddleware)
	}

	// API routes
	api.HandleFunc("/scan", ws.handleScan).Methods(http.MethodPost)
	api.HandleFunc("/verify", ws.handleVerify).Methods(http.MethodPost)
	api.HandleFunc("/lookup", ws.handleLookup).Methods(http.MethodPost)
	api.HandleFunc("/runs", ws.handleGetRuns).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", ws.handleGetRunDetail).Methods(http.MethodGet)
	api.HandleFunc("/stats", ws.handleGetStats).Methods(http.MethodGet)

	return r
}

// scanRequest is the shared request payload of the scanning endpoints.
type scanRequest struct {
	Paths                  []string `json:"paths"`
	Recurse                bool     `json:"recurse"`
	IncludeHidden          bool     `json:"include_hidden"`
	IncludeVersionData     bool     `json:"include_version_data"`
	IncludeCertificateData bool     `json:"include_certificate_data"`
	IncludeRootPath        bool     `json:"include_root_path"`
}

func (req *scanRequest) options() scanner.ScanOptions {
	return scanner.ScanOptions{
		Recurse:                req.Recurse,
		IncludeHidden:          req.IncludeHidden,
		IncludeVersionData:     req.IncludeVersionData,
		IncludeCertificateData: req.IncludeCertificateData,
		IncludeRootPath:        req.IncludeRootPath,
	}
}

type verifyRequest struct {
	scanRequest
	References  []models.ReferenceRecord `json:"references"`
	Placeholder string                   `json:"placeholder"`
}

type verifyResponse struct {
	Records    []models.MatchedRecord `json:"records"`
	Matched    int                    `json:"matched"`
	Mismatched int                    `json:"mismatched"`
	Missing    int                    `json:"missing"`
	Stats      scanner.RunStats       `json:"stats"`
	Partial    bool                   `json:"partial"`
}

type lookupRequest struct {
	scanRequest
	Algorithms []string `json:"algorithms"`
}

type lookupResponse struct {
	Records []models.MergedRecord `json:"records"`
	Stats   scanner.RunStats      `json:"stats"`
	Partial bool                  `json:"partial"`
}

// runsResponse wraps a paginated run history listing.
type runsResponse struct {
	Runs       []history.RunSummary `json:"runs"`
	Page       int                  `json:"page"`
	PerPage    int                  `json:"per_page"`
	Total      int                  `json:"total"`
	TotalPages int                  `json:"total_pages"`
}

// handleScan handles the POST /api/scan endpoint.
func (ws *WebServer) handleScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.Logger.Errorf("Invalid JSON payload: %v", err)
		WriteErrorResponse(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if len(req.Paths) == 0 {
		ws.Logger.Warn("Paths field is required")
		WriteErrorResponse(w, "Paths field is required", http.StatusBadRequest)
		return
	}

	result, err := ws.Scanner.ComputeSignatures(ctx, req.Paths, req.options())
	if err != nil {
		ws.Logger.WithError(err).Error("Scan failed")
		WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	ws.recordRun(ctx, history.RunScan, req.Paths, result, scanner.MatchCounts{})
	WriteSuccessResponse(w, "Scan completed successfully", result)
}

// handleVerify handles the POST /api/verify endpoint.
func (ws *WebServer) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.Logger.Errorf("Invalid JSON payload: %v", err)
		WriteErrorResponse(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if len(req.Paths) == 0 {
		ws.Logger.Warn("Paths field is required")
		WriteErrorResponse(w, "Paths field is required", http.StatusBadRequest)
		return
	}

	result, err := ws.Scanner.ComputeSignatures(ctx, req.Paths, req.options())
	if err != nil {
		ws.Logger.WithError(err).Error("Scan failed")
		WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	matched := scanner.VerifySignatures(result.Records, req.References, req.Placeholder)
	counts := scanner.SummarizeMatches(matched)

	if ws.Notifier != nil {
		ws.Notifier.NotifyMismatches(matched)
	}
	ws.recordRun(ctx, history.RunVerify, req.Paths, result, counts)

	WriteSuccessResponse(w, "Verification completed successfully", verifyResponse{
		Records:    matched,
		Matched:    counts.Matched,
		Mismatched: counts.Mismatched,
		Missing:    counts.Missing,
		Stats:      result.Stats,
		Partial:    result.Partial,
	})
}

// handleLookup handles the POST /api/lookup endpoint.
func (ws *WebServer) handleLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if ws.Merger == nil {
		WriteErrorResponse(w, "Repository lookups are not configured", http.StatusServiceUnavailable)
		return
	}

	var req lookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.Logger.Errorf("Invalid JSON payload: %v", err)
		WriteErrorResponse(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if len(req.Paths) == 0 {
		ws.Logger.Warn("Paths field is required")
		WriteErrorResponse(w, "Paths field is required", http.StatusBadRequest)
		return
	}

	algorithms, err := models.ParseAlgorithms(strings.Join(req.Algorithms, ","))
	if err != nil {
		ws.Logger.WithError(err).Warn("Rejecting unsupported algorithm")
		WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := ws.Scanner.ComputeSignatures(ctx, req.Paths, req.options())
	if err != nil {
		ws.Logger.WithError(err).Error("Scan failed")
		WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	lookup, err := ws.Merger.Lookup(ctx, result.Records, repository.LookupOptions{Algorithms: algorithms})
	if err != nil {
		ws.Logger.WithError(err).Error("Repository lookup failed")
		WriteErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	result.Partial = result.Partial || lookup.Partial

	ws.recordRun(ctx, history.RunLookup, req.Paths, result, scanner.MatchCounts{})

	WriteSuccessResponse(w, "Lookup completed successfully", lookupResponse{
		Records: lookup.Records,
		Stats:   result.Stats,
		Partial: result.Partial,
	})
}

// handleGetRuns handles the GET /api/runs endpoint.
func (ws *WebServer) handleGetRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if ws.History == nil {
		WriteErrorResponse(w, "Run history is not configured", http.StatusServiceUnavailable)
		return
	}

	// Parse query parameters for pagination
	query := r.URL.Query()
	page, err := strconv.Atoi(query.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err := strconv.Atoi(query.Get("per_page"))
	if err != nil || perPage < 1 {
		perPage = 50
	}

	var kind *history.RunKind
	switch value := history.RunKind(strings.ToLower(query.Get("kind"))); value {
	case history.RunScan, history.RunVerify, history.RunLookup:
		kind = &value
	}

	runs, total, err := ws.History.LoadRunsPaginated(ctx, page, perPage, kind)
	if err != nil {
		ws.Logger.WithError(err).Error("Failed to load paginated runs")
		WriteErrorResponse(w, "Failed to retrieve runs", http.StatusInternalServerError)
		return
	}

	totalPages := (total + perPage - 1) / perPage
	WriteSuccessResponse(w, "Runs retrieved successfully", runsResponse{
		Runs:       runs,
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// handleGetRunDetail handles the GET /api/runs/{id} endpoint.
func (ws *WebServer) handleGetRunDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if ws.History == nil {
		WriteErrorResponse(w, "Run history is not configured", http.StatusServiceUnavailable)
		return
	}

	id := mux.Vars(r)["id"]
	run, err := ws.History.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, history.ErrRunNotFound) {
			WriteErrorResponse(w, "Run not found", http.StatusNotFound)
			return
		}
		ws.Logger.Errorf("Failed to get run %s: %v", id, err)
		WriteErrorResponse(w, "Failed to retrieve run", http.StatusInternalServerError)
		return
	}

	WriteSuccessResponse(w, "Run retrieved successfully", run)
}

// handleGetStats handles the GET /api/stats endpoint.
func (ws *WebServer) handleGetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if ws.History == nil {
		WriteErrorResponse(w, "Run history is not configured", http.StatusServiceUnavailable)
		return
	}

	stats, err := ws.History.GetStats(ctx)
	if err != nil {
		ws.Logger.WithError(err).Error("Failed to retrieve stats")
		WriteErrorResponse(w, "Failed to retrieve statistics", http.StatusInternalServerError)
		return
	}

	WriteSuccessResponse(w, "Statistics retrieved successfully", stats)
}

// handleHealth handles the GET /api/healthz endpoint.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteSuccessResponse(w, "Service is healthy", map[string]bool{"healthy": true})
}

// recordRun persists a run summary when history is configured.
func (ws *WebServer) recordRun(ctx context.Context, kind history.RunKind, roots []string, result *scanner.ScanResult, counts scanner.MatchCounts) {
	if ws.History == nil {
		return
	}
	summary := history.RunSummary{
		ID:             history.NewRunID(kind, result.Stats.StartedAt),
		Kind:           kind,
		Roots:          roots,
		StartedAt:      result.Stats.StartedAt,
		FinishedAt:     result.Stats.FinishedAt,
		FilesProcessed: result.Stats.FilesProcessed,
		FilesSkipped:   result.Stats.FilesSkipped,
		Matched:        counts.Matched,
		Mismatched:     counts.Mismatched,
		Missing:        counts.Missing,
		Partial:        result.Partial,
	}
	if err := ws.History.AddRun(ctx, summary); err != nil {
		ws.Logger.WithError(err).Warn("Failed to record run history")
	}
}

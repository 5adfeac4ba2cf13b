package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/califnena/planning-form-sub003/internal/render"
	"github.com/califnena/planning-form-sub003/internal/syncengine"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
			"cache":    map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{"status": "error", "error": err.Error()}
		}
		if err := s.service.PingCache(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["cache"] = map[string]any{"status": "error", "error": err.Error()}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	userID := normalizeUserID(r.Header.Get("X-User-Id"))
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Missing X-User-Id header", nil)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/plan":
		s.handleGetPlan(w, r, userID)
	case r.Method == http.MethodPatch && r.URL.Path == "/api/plan":
		s.handlePatchPlan(w, r, userID)
	case r.Method == http.MethodGet && r.URL.Path == "/api/plan/savestate":
		s.handleSaveState(w, r, userID)
	case r.Method == http.MethodGet && r.URL.Path == "/api/plan/assembled":
		s.handleAssembled(w, r, userID)
	case r.Method == http.MethodPost && r.URL.Path == "/api/plan/export":
		s.handleExport(w, r, userID)
	case r.Method == http.MethodGet && r.URL.Path == "/api/plan/search":
		s.handleSearch(w, r, userID)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleGetPlan(w http.ResponseWriter, r *http.Request, userID string) {
	doc, err := s.service.LoadPlan(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, planResponse(doc, s.service.SaveState(userID)))
}

type patchPlanRequest struct {
	Title          *string        `json:"title"`
	FuneralNotes   *string        `json:"funeral_notes"`
	FinancialNotes *string        `json:"financial_notes"`
	PersonalNotes  *string        `json:"personal_notes"`
	Sections       map[string]any `json:"sections"`
}

func (s *HTTPServer) handlePatchPlan(w http.ResponseWriter, r *http.Request, userID string) {
	var req patchPlanRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if req.Title == nil && req.FuneralNotes == nil && req.FinancialNotes == nil &&
		req.PersonalNotes == nil && len(req.Sections) == 0 {
		writeError(w, http.StatusBadRequest, "EMPTY_UPDATE", "Nothing to update", nil)
		return
	}

	doc, err := s.service.UpdatePlan(r.Context(), userID, syncengine.UpdateInput{
		Title:          req.Title,
		FuneralNotes:   req.FuneralNotes,
		FinancialNotes: req.FinancialNotes,
		PersonalNotes:  req.PersonalNotes,
		Sections:       req.Sections,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, planResponse(doc, s.service.SaveState(userID)))
}

func (s *HTTPServer) handleSaveState(w http.ResponseWriter, r *http.Request, userID string) {
	state := s.service.SaveState(userID)
	writeJSON(w, http.StatusOK, saveStateResponse(state))
}

func (s *HTTPServer) handleAssembled(w http.ResponseWriter, r *http.Request, userID string) {
	doc, err := s.service.Assemble(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": doc})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, userID string) {
	result, err := s.service.ExportPDF(r.Context(), userID)
	if err != nil {
		if errors.Is(err, render.ErrPDFDependencyMissing) {
			writeError(w, http.StatusNotImplemented, "PDF_UNAVAILABLE", "PDF rendering is not available on this server", nil)
			return
		}
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, userID string) {
	query := r.URL.Query().Get("q")
	hits := s.service.SearchSections(r.Context(), userID, query)
	writeJSON(w, http.StatusOK, map[string]any{"hits": hits})
}

func planResponse(doc syncengine.Document, state syncengine.SaveState) map[string]any {
	return map[string]any{
		"plan": map[string]any{
			"id":              doc.PlanID,
			"title":           doc.Title,
			"funeral_notes":   doc.FuneralNotes,
			"financial_notes": doc.FinancialNotes,
			"personal_notes":  doc.PersonalNotes,
			"payload":         doc.Payload,
			"updated_at":      doc.UpdatedAt.UTC().Format(time.RFC3339),
		},
		"save_state": saveStateResponse(state),
	}
}

func saveStateResponse(state syncengine.SaveState) map[string]any {
	response := map[string]any{
		"in_flight": state.InFlight,
		"dirty":     state.Dirty,
		"offline":   state.Offline,
	}
	if !state.LastSavedAt.IsZero() {
		response["last_saved_at"] = state.LastSavedAt.UTC().Format(time.RFC3339)
	}
	if state.LastError != "" {
		response["last_error"] = state.LastError
	}
	return response
}

func writeDomainError(w http.ResponseWriter, err error) {
	var derr *DomainError
	if errors.As(err, &derr) {
		writeError(w, derr.Status, derr.Code, derr.Message, derr.Details)
		return
	}
	writeError(w, http.StatusInternalServerError, "INTERNAL", "Internal error", nil)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-User-Id, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PATCH,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

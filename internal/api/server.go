package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"visionsla/internal/audit"
	"visionsla/internal/config"
	"visionsla/internal/sla"
	"visionsla/internal/snapshot"
	"visionsla/internal/storage"
)

const (
	actionUpdateSLA  = "update_sla"
	actionAuditEvent = "audit_event"
)

type Server struct {
	cfg     *config.Manager
	updater *sla.Updater
	auditor *audit.Recorder
	snap    *snapshot.Store
	recent  *audit.Store
	store   storage.Store
	logger  *slog.Logger
	version string
}

type actionRequest struct {
	Action    string          `json:"action"`
	OrgID     string          `json:"orgId"`
	EventData json.RawMessage `json:"eventData"`
}

type statusResponse struct {
	Status     string       `json:"status"`
	Time       string       `json:"time"`
	Version    string       `json:"version"`
	ConfigPath string       `json:"config_path"`
	Storage    string       `json:"storage_driver"`
	Ingest     ingestStatus `json:"ingest"`
}

type ingestStatus struct {
	REST  bool `json:"rest"`
	Kafka bool `json:"kafka"`
}

func NewServer(cfg *config.Manager, updater *sla.Updater, auditor *audit.Recorder, snap *snapshot.Store, recent *audit.Store, store storage.Store, logger *slog.Logger, version string) *Server {
	return &Server{
		cfg:     cfg,
		updater: updater,
		auditor: auditor,
		snap:    snap,
		recent:  recent,
		store:   store,
		logger:  logger,
		version: version,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/v1/functions", s.handleFunctions)
	mux.HandleFunc("/v1/sla/", s.handleSLARead)
	mux.HandleFunc("/v1/audit/recent", s.handleAuditRecent)
	return mux
}

func Start(ctx context.Context, server *Server, logger *slog.Logger) *http.Server {
	addr := server.cfg.Get().API.Addr
	if logger != nil {
		logger.Info("api enabled", "addr", addr)
	}
	httpServer := &http.Server{Addr: addr, Handler: server.Handler()}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

// handleFunctions is the action-dispatch endpoint ported from the
// hosted edge functions: JSON body with an action discriminator,
// permissive CORS, failures flattened to 500 {"error": msg}.
func (s *Server) handleFunctions(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "request body unreadable")
		return
	}
	var req actionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	switch req.Action {
	case actionUpdateSLA:
		s.updateSLA(w, r, req)
	case actionAuditEvent:
		s.auditEvent(w, r, req)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}

func (s *Server) updateSLA(w http.ResponseWriter, r *http.Request, req actionRequest) {
	summary, _, err := s.updater.Update(r.Context(), req.OrgID)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("update_sla failed", "org_id", req.OrgID, "err", err)
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"metrics_updated":    summary.MetricsUpdated,
		"overall_compliance": summary.OverallCompliance,
		"failed_metrics":     summary.FailedMetrics,
		"timestamp":          summary.Timestamp.Format(time.RFC3339Nano),
	})
}

func (s *Server) auditEvent(w http.ResponseWriter, r *http.Request, req actionRequest) {
	var input audit.EventInput
	if len(req.EventData) > 0 {
		if err := json.Unmarshal(req.EventData, &input); err != nil {
			writeError(w, http.StatusBadRequest, "invalid eventData")
			return
		}
	}
	ev, err := s.auditor.Record(r.Context(), req.OrgID, input)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("audit_event failed", "org_id", req.OrgID, "err", err)
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"audit_logged": true,
		"event_id":     ev.EventID,
		"timestamp":    ev.CreatedAt.Format(time.RFC3339Nano),
	})
}

func (s *Server) handleSLARead(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	orgID := strings.TrimPrefix(r.URL.Path, "/v1/sla/")
	orgID = strings.Trim(orgID, "/")
	if orgID == "" {
		writeError(w, http.StatusBadRequest, "org id required")
		return
	}
	if metrics, updated, ok := s.snap.Get(orgID); ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"org_id":     orgID,
			"updated_at": updated.Format(time.RFC3339Nano),
			"metrics":    metrics,
			"source":     "memory",
		})
		return
	}
	metrics, err := s.store.ListSLAMetrics(r.Context(), orgID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(metrics) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"org_id":  orgID,
		"metrics": metrics,
		"source":  "storage",
	})
}

func (s *Server) handleAuditRecent(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	orgID := r.URL.Query().Get("orgId")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	events := s.recent.Recent(orgID, limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	resp := statusResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339Nano),
		Version:    s.version,
		ConfigPath: s.cfg.Path(),
		Storage:    cfg.Storage.Driver,
		Ingest: ingestStatus{
			REST:  cfg.Ingest.REST.Enabled,
			Kafka: cfg.Ingest.Kafka.Enabled,
		},
	}
	writeJSON(w, http.StatusOK, resp)
}

func setCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

package ingest

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/docdrift/docdrift/internal/audit"
	"github.com/docdrift/docdrift/internal/errors"
	"github.com/docdrift/docdrift/internal/models"
	"github.com/docdrift/docdrift/internal/queue"
	"github.com/docdrift/docdrift/internal/signal"
	"github.com/docdrift/docdrift/internal/storage"
)

const maxBodyBytes = 4 << 20

// Server is the webhook boundary. It normalizes inbound payloads, applies
// the cheap eligibility filters, and creates the SignalEvent and
// DriftCandidate rows in lock step before answering 202.
type Server struct {
	store  storage.Store
	queue  queue.Queue
	mux    *http.ServeMux
	logger *slog.Logger
}

func NewServer(store storage.Store, q queue.Queue) *Server {
	s := &Server{
		store:  store,
		queue:  q,
		mux:    http.NewServeMux(),
		logger: slog.Default().With("component", "ingest"),
	}
	s.mux.HandleFunc("POST /webhooks/{source}/{workspace}", s.handleWebhook)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	workspaceID := r.PathValue("workspace")
	ctx := r.Context()

	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown workspace"})
			return
		}
		s.serverError(w, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	ev, err := s.normalize(source, workspaceID, body)
	if err != nil {
		if errors.CodeOf(err) == errors.CodeExtractedSchemaViolation {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
				"code":  string(errors.CodeExtractedSchemaViolation),
			})
			return
		}
		s.serverError(w, err)
		return
	}
	ev.RawPayload = body

	// Cheap filters answer before any row is written
	if reason := s.ineligible(ws, ev); reason != "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": reason})
		return
	}

	if err := s.store.CreateSignalEvent(ctx, ev); err != nil {
		if !errors.Is(err, storage.ErrConflict) {
			s.serverError(w, err)
			return
		}
		// Re-delivered webhook: the deterministic event ID already exists
		c, lookupErr := s.store.GetCandidateBySignal(ctx, workspaceID, ev.ID)
		if lookupErr == nil {
			writeJSON(w, http.StatusOK, map[string]string{
				"status":        "already_processed",
				"signalEventId": ev.ID,
				"driftId":       c.ID,
			})
			return
		}
		if !errors.Is(lookupErr, storage.ErrNotFound) {
			s.serverError(w, lookupErr)
			return
		}
		// The earlier delivery wrote the signal but died before the
		// candidate; fall through and finish ingestion on the replay.
	}

	c := &models.DriftCandidate{
		WorkspaceID:    workspaceID,
		ID:             uuid.NewString(),
		SignalEventID:  ev.ID,
		State:          models.StateIngested,
		StateUpdatedAt: time.Now().UTC(),
		SourceType:     ev.SourceType,
		Service:        ev.Service,
		Repo:           ev.Repo,
		TraceID:        uuid.NewString(),
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.CreateDriftCandidate(ctx, c); err != nil {
		s.serverError(w, err)
		return
	}
	audit.Event(ctx, s.store, c, audit.ActorPipeline, map[string]interface{}{
		"event":           "ingested",
		"signal_event_id": ev.ID,
		"source":          string(ev.SourceType),
	})

	if _, err := s.queue.Enqueue(ctx, queue.Task{WorkspaceID: workspaceID, DriftID: c.ID}, queue.Options{}); err != nil {
		s.serverError(w, err)
		return
	}

	s.logger.Info("signal ingested",
		"workspace_id", workspaceID,
		"source", source,
		"signal_event_id", ev.ID,
		"drift_id", c.ID,
	)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"signalEventId": ev.ID,
		"driftId":       c.ID,
	})
}

func (s *Server) normalize(source, workspaceID string, body []byte) (*models.SignalEvent, error) {
	switch source {
	case "github":
		var p signal.GitHubPRPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, errors.Wrap(errors.CodeExtractedSchemaViolation, "github payload is not valid JSON", err)
		}
		return signal.NormalizeGitHubPR(workspaceID, &p)
	case "pagerduty":
		var p signal.PagerDutyPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, errors.Wrap(errors.CodeExtractedSchemaViolation, "pagerduty payload is not valid JSON", err)
		}
		return signal.NormalizePagerDuty(workspaceID, &p)
	case "slack":
		var p signal.SlackClusterPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, errors.Wrap(errors.CodeExtractedSchemaViolation, "slack payload is not valid JSON", err)
		}
		return signal.NormalizeSlackCluster(workspaceID, &p)
	case "datadog", "grafana":
		var p signal.MonitorAlertPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, errors.Wrap(errors.CodeExtractedSchemaViolation, "monitor payload is not valid JSON", err)
		}
		st := models.SourceDatadogAlert
		if source == "grafana" {
			st = models.SourceGrafanaAlert
		}
		return signal.NormalizeMonitorAlert(workspaceID, st, &p)
	default:
		return nil, errors.Newf(errors.CodeExtractedSchemaViolation, "unknown webhook source %q", source)
	}
}

// ineligible runs the filters that need no pipeline work: disabled sources
// and unmerged pull requests. Everything else is the state machine's job.
func (s *Server) ineligible(ws *models.Workspace, ev *models.SignalEvent) string {
	if !ws.WorkflowPreferences.SourceEnabled(ev.SourceType) {
		return "source disabled for workspace"
	}
	if pr := ev.Extracted.GitHubPR; pr != nil && !pr.Merged {
		return "pull request not merged"
	}
	return ""
}

func (s *Server) serverError(w http.ResponseWriter, err error) {
	s.logger.Error("webhook handling failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docdrift/docdrift/internal/models"
	"github.com/docdrift/docdrift/internal/queue"
	"github.com/docdrift/docdrift/internal/signal"
	"github.com/docdrift/docdrift/internal/storage"
)

func testServer(t *testing.T, ws *models.Workspace) (*Server, *storage.MemoryStore, *queue.MemoryQueue) {
	t.Helper()
	store := storage.NewMemoryStore()
	q := queue.NewMemoryQueue()
	if ws != nil {
		require.NoError(t, store.SaveWorkspace(context.Background(), ws))
	}
	return NewServer(store, q), store, q
}

func mergedPRPayload(t *testing.T) []byte {
	t.Helper()
	merged := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	p := &signal.GitHubPRPayload{}
	p.Action = "closed"
	p.PullRequest.Number = 7
	p.PullRequest.Title = "Switch deploy to helm"
	p.PullRequest.User.Login = "alice"
	p.PullRequest.Merged = true
	p.PullRequest.MergedAt = &merged
	p.PullRequest.Base.Ref = "main"
	p.PullRequest.Head.Ref = "feat/helm"
	p.PullRequest.Head.SHA = "abc123"
	p.Repository.Name = "payments"
	p.Repository.FullName = "acme/payments"
	p.Repository.Owner.Login = "acme"
	p.ChangedFiles = []signal.ChangedFilePayload{
		{Filename: "deploy/run.sh", Status: "modified", Additions: 3, Deletions: 1},
	}
	p.Diff = "+helm upgrade payments ./chart\n-kubectl apply -f deploy.yaml\n"
	p.Service = "payments"
	body, err := json.Marshal(p)
	require.NoError(t, err)
	return body
}

func post(t *testing.T, s *Server, path string, body []byte) (int, map[string]string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestWebhookAcceptsMergedPR(t *testing.T) {
	s, store, q := testServer(t, &models.Workspace{ID: "ws1", Name: "Acme"})

	code, resp := post(t, s, "/webhooks/github/ws1", mergedPRPayload(t))
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "github_pr_acme_payments_7", resp["signalEventId"])
	require.NotEmpty(t, resp["driftId"])

	c, err := store.GetCandidateBySignal(context.Background(), "ws1", resp["signalEventId"])
	require.NoError(t, err)
	assert.Equal(t, resp["driftId"], c.ID)
	assert.Equal(t, models.StateIngested, c.State)
	assert.Equal(t, models.SourceGitHubPR, c.SourceType)
	assert.Equal(t, "payments", c.Service)

	task, err := q.Dequeue(context.Background(), 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, c.ID, task.DriftID)
}

func TestWebhookReplayAnswersAlreadyProcessed(t *testing.T) {
	s, _, _ := testServer(t, &models.Workspace{ID: "ws1"})
	body := mergedPRPayload(t)

	code, first := post(t, s, "/webhooks/github/ws1", body)
	require.Equal(t, http.StatusAccepted, code)

	code, second := post(t, s, "/webhooks/github/ws1", body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "already_processed", second["status"])
	assert.Equal(t, first["signalEventId"], second["signalEventId"])
	assert.Equal(t, first["driftId"], second["driftId"])
}

func TestWebhookReplayRepairsOrphanedSignal(t *testing.T) {
	s, store, q := testServer(t, &models.Workspace{ID: "ws1"})
	body := mergedPRPayload(t)

	// Simulate a delivery that wrote the signal but crashed before the
	// candidate: pre-create the event with no candidate attached.
	ev, err := signal.NormalizeGitHubPR("ws1", mustUnmarshalPR(t, body))
	require.NoError(t, err)
	require.NoError(t, store.CreateSignalEvent(context.Background(), ev))

	code, resp := post(t, s, "/webhooks/github/ws1", body)
	require.Equal(t, http.StatusAccepted, code)
	require.NotEmpty(t, resp["driftId"])

	c, err := store.GetCandidateBySignal(context.Background(), "ws1", ev.ID)
	require.NoError(t, err)
	assert.Equal(t, resp["driftId"], c.ID)
	assert.Equal(t, models.StateIngested, c.State)

	task, err := q.Dequeue(context.Background(), 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, c.ID, task.DriftID)
}

func mustUnmarshalPR(t *testing.T, body []byte) *signal.GitHubPRPayload {
	t.Helper()
	var p signal.GitHubPRPayload
	require.NoError(t, json.Unmarshal(body, &p))
	return &p
}

func TestWebhookUnknownWorkspace(t *testing.T) {
	s, _, _ := testServer(t, nil)
	code, resp := post(t, s, "/webhooks/github/nope", mergedPRPayload(t))
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "unknown workspace", resp["error"])
}

func TestWebhookIgnoresUnmergedPR(t *testing.T) {
	s, _, q := testServer(t, &models.Workspace{ID: "ws1"})

	var p signal.GitHubPRPayload
	require.NoError(t, json.Unmarshal(mergedPRPayload(t), &p))
	p.PullRequest.Merged = false
	p.PullRequest.MergedAt = nil
	body, err := json.Marshal(&p)
	require.NoError(t, err)

	code, resp := post(t, s, "/webhooks/github/ws1", body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ignored", resp["status"])
	assert.Equal(t, "pull request not merged", resp["reason"])

	task, _ := q.Dequeue(context.Background(), 10*time.Millisecond)
	assert.Nil(t, task, "ignored signals never reach the queue")
}

func TestWebhookIgnoresDisabledSource(t *testing.T) {
	ws := &models.Workspace{
		ID: "ws1",
		WorkflowPreferences: &models.WorkflowPreferences{
			EnabledInputSources: []models.SourceType{models.SourcePagerDutyIncident},
		},
	}
	s, _, _ := testServer(t, ws)

	code, resp := post(t, s, "/webhooks/github/ws1", mergedPRPayload(t))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ignored", resp["status"])
	assert.Equal(t, "source disabled for workspace", resp["reason"])
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	s, _, _ := testServer(t, &models.Workspace{ID: "ws1"})
	code, resp := post(t, s, "/webhooks/github/ws1", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "EXTRACTED_SCHEMA_VIOLATION", resp["code"])
}

func TestWebhookRejectsUnknownSource(t *testing.T) {
	s, _, _ := testServer(t, &models.Workspace{ID: "ws1"})
	code, resp := post(t, s, "/webhooks/jira/ws1", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, resp["error"], "unknown webhook source")
}

func TestHealthz(t *testing.T) {
	s, _, _ := testServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

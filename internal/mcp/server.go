package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docdrift/docdrift/internal/models"
	"github.com/docdrift/docdrift/internal/storage"
)

const serverVersion = "0.1.0"

// Server exposes drift state to agent clients over MCP stdio. Tools are
// read-only; review actions stay behind Slack and the CLI.
type Server struct {
	store  storage.Store
	inner  *mcp.Server
	logger *slog.Logger
}

func NewServer(store storage.Store) *Server {
	s := &Server{
		store:  store,
		logger: slog.Default().With("component", "mcp"),
	}
	s.inner = mcp.NewServer(&mcp.Implementation{
		Name:    "docdrift",
		Version: serverVersion,
	}, nil)

	mcp.AddTool(s.inner, &mcp.Tool{
		Name:        "get_drift_summary",
		Description: "Count documentation drift candidates per pipeline state for a workspace",
	}, s.getDriftSummary)
	mcp.AddTool(s.inner, &mcp.Tool{
		Name:        "list_open_drifts",
		Description: "List drift candidates awaiting review or still in the pipeline",
	}, s.listOpenDrifts)
	mcp.AddTool(s.inner, &mcp.Tool{
		Name:        "get_drift_detail",
		Description: "Full detail for one drift candidate: comparison, routing, audit trail",
	}, s.getDriftDetail)

	return s
}

// Run serves until the client disconnects or the context is cancelled
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server starting", "version", serverVersion)
	return s.inner.Run(ctx, &mcp.StdioTransport{})
}

type summaryArgs struct {
	WorkspaceID string `json:"workspace_id" jsonschema:"workspace to summarize"`
}

type summaryResult struct {
	WorkspaceID string         `json:"workspace_id"`
	States      map[string]int `json:"states"`
	Open        int            `json:"open"`
	Terminal    int            `json:"terminal"`
}

var summaryStates = []models.State{
	models.StateIngested, models.StateNormalized, models.StateEligibilityChecked,
	models.StateEvidenceBuilt, models.StateDocsResolved, models.StateCompared,
	models.StateClassified, models.StatePolicyEvaluated, models.StateRouted,
	models.StatePatchPlanned, models.StatePatchProposed, models.StateAwaitingHuman,
	models.StateSnoozed,
	models.StateApplied, models.StateRejected, models.StateIgnored,
	models.StateFailed, models.StateFailedNeedsMapping, models.StateFailedPatchGen,
}

func (s *Server) getDriftSummary(ctx context.Context, req *mcp.CallToolRequest, args summaryArgs) (*mcp.CallToolResult, summaryResult, error) {
	out := summaryResult{
		WorkspaceID: args.WorkspaceID,
		States:      make(map[string]int),
	}
	for _, st := range summaryStates {
		list, err := s.store.ListCandidatesByState(ctx, args.WorkspaceID, st, 0)
		if err != nil {
			return nil, summaryResult{}, fmt.Errorf("list %s: %w", st, err)
		}
		if len(list) == 0 {
			continue
		}
		out.States[string(st)] = len(list)
		if models.IsTerminal(st) {
			out.Terminal += len(list)
		} else {
			out.Open += len(list)
		}
	}
	return textResult(out), out, nil
}

type listArgs struct {
	WorkspaceID string `json:"workspace_id" jsonschema:"workspace to list"`
	State       string `json:"state,omitempty" jsonschema:"optional state filter, defaults to AWAITING_HUMAN"`
	Limit       int    `json:"limit,omitempty" jsonschema:"max candidates to return, defaults to 20"`
}

type driftSummaryItem struct {
	ID         string    `json:"id"`
	State      string    `json:"state"`
	Service    string    `json:"service,omitempty"`
	DriftType  string    `json:"drift_type,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	SourceType string    `json:"source_type"`
	CreatedAt  time.Time `json:"created_at"`
}

type listResult struct {
	Candidates []driftSummaryItem `json:"candidates"`
}

func (s *Server) listOpenDrifts(ctx context.Context, req *mcp.CallToolRequest, args listArgs) (*mcp.CallToolResult, listResult, error) {
	state := models.StateAwaitingHuman
	if args.State != "" {
		state = models.State(args.State)
	}
	limit := args.Limit
	if limit <= 0 {
		limit = 20
	}

	list, err := s.store.ListCandidatesByState(ctx, args.WorkspaceID, state, limit)
	if err != nil {
		return nil, listResult{}, err
	}
	out := listResult{Candidates: make([]driftSummaryItem, 0, len(list))}
	for _, c := range list {
		out.Candidates = append(out.Candidates, driftSummaryItem{
			ID:         c.ID,
			State:      string(c.State),
			Service:    c.Service,
			DriftType:  string(c.DriftType),
			Confidence: c.Confidence,
			SourceType: string(c.SourceType),
			CreatedAt:  c.CreatedAt,
		})
	}
	return textResult(out), out, nil
}

type detailArgs struct {
	WorkspaceID string `json:"workspace_id"`
	DriftID     string `json:"drift_id"`
}

type detailResult struct {
	Candidate *models.DriftCandidate `json:"candidate"`
	Proposal  *models.PatchProposal  `json:"proposal,omitempty"`
	Audit     []*models.AuditRecord  `json:"audit,omitempty"`
}

func (s *Server) getDriftDetail(ctx context.Context, req *mcp.CallToolRequest, args detailArgs) (*mcp.CallToolResult, detailResult, error) {
	c, err := s.store.GetDriftCandidate(ctx, args.WorkspaceID, args.DriftID)
	if err != nil {
		return nil, detailResult{}, err
	}
	out := detailResult{Candidate: c}
	if p, err := s.store.GetProposalByDrift(ctx, args.WorkspaceID, args.DriftID); err == nil {
		p.ProposedContent = "" // bounded response: the diff is enough
		out.Proposal = p
	}
	if recs, err := s.store.ListAudit(ctx, args.WorkspaceID, args.DriftID); err == nil {
		out.Audit = recs
	}
	return textResult(out), out, nil
}

func textResult(v interface{}) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("marshal error: %v", err)}},
		}
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}

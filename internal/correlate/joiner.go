package correlate

import (
	"context"
	"log/slog"
	"time"

	"github.com/docdrift/docdrift/internal/models"
	"github.com/docdrift/docdrift/internal/storage"
)

// DefaultJoinWindow is how far back the joiner looks for related signals
const DefaultJoinWindow = 7 * 24 * time.Hour

// RelatedSignal is one other signal for the same service inside the window
type RelatedSignal struct {
	SignalEventID string            `json:"signal_event_id"`
	SourceType    models.SourceType `json:"source_type"`
	Relevance     float64           `json:"relevance"`
	HoursApart    float64           `json:"hours_apart"`
}

// JoinResult aggregates the correlation evidence for one candidate
type JoinResult struct {
	Related         []RelatedSignal `json:"related"`
	IsMultiSource   bool            `json:"is_multi_source"`
	ConfidenceBoost float64         `json:"confidence_boost"`
}

// EdgeWriter persists correlation edges out-of-band; wired to the graph
// store when one is configured, a no-op otherwise.
type EdgeWriter interface {
	WriteCorrelation(ctx context.Context, workspaceID, fromSignalID, toSignalID string, relevance float64) error
}

// Joiner scans the signal history for co-occurring events on the same service
type Joiner struct {
	store  storage.Store
	edges  EdgeWriter
	window time.Duration
	logger *slog.Logger
}

func NewJoiner(store storage.Store, edges EdgeWriter, window time.Duration) *Joiner {
	if window <= 0 {
		window = DefaultJoinWindow
	}
	return &Joiner{
		store:  store,
		edges:  edges,
		window: window,
		logger: slog.Default().With("component", "joiner"),
	}
}

// Join computes the correlation result for one signal. Signals with no
// service scope never correlate. The joiner reads whatever has been
// persisted at this moment; it does not wait for in-flight signals.
func (j *Joiner) Join(ctx context.Context, ev *models.SignalEvent) (*JoinResult, error) {
	res := &JoinResult{}
	if ev.Service == "" {
		return res, nil
	}

	since := ev.OccurredAt.Add(-j.window)
	others, err := j.store.ListSignalEventsByService(ctx, ev.WorkspaceID, ev.Service, since)
	if err != nil {
		return nil, err
	}

	windowHours := j.window.Hours()
	sources := map[models.SourceType]bool{ev.SourceType: true}
	hasPR, hasIncident := isPRSource(ev.SourceType), ev.SourceType == models.SourcePagerDutyIncident

	for _, other := range others {
		if other.ID == ev.ID {
			continue
		}
		hoursApart := ev.OccurredAt.Sub(other.OccurredAt).Hours()
		if hoursApart < 0 {
			hoursApart = -hoursApart
		}
		if hoursApart > windowHours {
			continue
		}
		rel := RelatedSignal{
			SignalEventID: other.ID,
			SourceType:    other.SourceType,
			Relevance:     1 - hoursApart/windowHours,
			HoursApart:    hoursApart,
		}
		res.Related = append(res.Related, rel)
		sources[other.SourceType] = true
		if isPRSource(other.SourceType) {
			hasPR = true
		}
		if other.SourceType == models.SourcePagerDutyIncident {
			hasIncident = true
		}

		if j.edges != nil {
			if err := j.edges.WriteCorrelation(ctx, ev.WorkspaceID, ev.ID, other.ID, rel.Relevance); err != nil {
				// Correlation edges are advisory; a graph outage must not
				// stall the pipeline.
				j.logger.Warn("correlation edge write failed", "error", err)
			}
		}
	}

	res.IsMultiSource = len(sources) > 1

	switch {
	case hasPR && hasIncident:
		res.ConfidenceBoost = 0.15
	case len(res.Related) >= 3:
		res.ConfidenceBoost = 0.10
	case len(res.Related) >= 1:
		res.ConfidenceBoost = 0.05
	}

	j.logger.Debug("signals joined",
		"signal_event_id", ev.ID,
		"related", len(res.Related),
		"multi_source", res.IsMultiSource,
		"boost", res.ConfidenceBoost,
	)
	return res, nil
}

func isPRSource(st models.SourceType) bool {
	return st == models.SourceGitHubPR || st == models.SourceGitHubIaC || st == models.SourceGitHubCodeowners
}

package correlate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jEdgeWriter mirrors correlation edges into a graph store for offline
// blast-radius exploration. The relational store stays authoritative.
type Neo4jEdgeWriter struct {
	driver neo4j.DriverWithContext
	logger *slog.Logger
}

// NewNeo4jEdgeWriter connects and verifies the graph store is reachable
func NewNeo4jEdgeWriter(ctx context.Context, uri, user, password string) (*Neo4jEdgeWriter, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to neo4j at %s: %w", uri, err)
	}

	logger := slog.Default().With("component", "graph")
	logger.Info("neo4j edge writer connected", "uri", uri)
	return &Neo4jEdgeWriter{driver: driver, logger: logger}, nil
}

// WriteCorrelation upserts both signal nodes and the CORRELATED_WITH edge
func (w *Neo4jEdgeWriter) WriteCorrelation(ctx context.Context, workspaceID, fromSignalID, toSignalID string, relevance float64) error {
	session := w.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (a:Signal {workspace_id: $workspace_id, id: $from_id})
			MERGE (b:Signal {workspace_id: $workspace_id, id: $to_id})
			MERGE (a)-[r:CORRELATED_WITH]->(b)
			SET r.relevance = $relevance
		`
		return tx.Run(ctx, query, map[string]any{
			"workspace_id": workspaceID,
			"from_id":      fromSignalID,
			"to_id":        toSignalID,
			"relevance":    relevance,
		})
	})
	if err != nil {
		return fmt.Errorf("write correlation edge: %w", err)
	}
	return nil
}

// Close releases the driver
func (w *Neo4jEdgeWriter) Close(ctx context.Context) error {
	return w.driver.Close(ctx)
}

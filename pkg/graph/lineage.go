package graph

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/sprig/pkg/models"
	"github.com/Ramsey-B/sprig/pkg/tracing"
)

// LineageService projects the remix graph into Memgraph for traversal
// queries. PostgreSQL remains authoritative; the projection can be rebuilt
// from it at any time.
type LineageService struct {
	client *Client
	logger ectologger.Logger
}

// NewLineageService creates a new lineage service
func NewLineageService(client *Client, logger ectologger.Logger) *LineageService {
	return &LineageService{
		client: client,
		logger: logger,
	}
}

// Edge is one parent->child projection input
type Edge struct {
	ParentReelID string
	ChildReelID  string
}

// ProjectReel upserts a reel node
func (s *LineageService) ProjectReel(ctx context.Context, reel *models.Reel) error {
	ctx, span := tracing.StartSpan(ctx, "graph.LineageService.ProjectReel")
	defer span.End()

	cypher := `
		MERGE (r:Reel {id: $id})
		SET r.owner_id = $owner_id, r.status = $status
	`

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"id":       reel.ID,
			"owner_id": reel.OwnerID,
			"status":   string(reel.Status),
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to project reel node")
		return fmt.Errorf("failed to project reel node: %w", err)
	}

	return nil
}

// ProjectEdge upserts a remix edge between two reel nodes
func (s *LineageService) ProjectEdge(ctx context.Context, parentReelID, childReelID string) error {
	ctx, span := tracing.StartSpan(ctx, "graph.LineageService.ProjectEdge")
	defer span.End()

	cypher := `
		MERGE (p:Reel {id: $parent_id})
		MERGE (c:Reel {id: $child_id})
		MERGE (p)-[:REMIXED_INTO]->(c)
	`

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"parent_id": parentReelID,
			"child_id":  childReelID,
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to project remix edge")
		return fmt.Errorf("failed to project remix edge: %w", err)
	}

	return nil
}

// UpdateStatus mirrors a lifecycle transition onto the reel node
func (s *LineageService) UpdateStatus(ctx context.Context, reelID string, status models.ReelStatus) error {
	ctx, span := tracing.StartSpan(ctx, "graph.LineageService.UpdateStatus")
	defer span.End()

	cypher := `
		MATCH (r:Reel {id: $id})
		SET r.status = $status
	`

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"id":     reelID,
			"status": string(status),
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to update reel node status")
		return fmt.Errorf("failed to update reel node status: %w", err)
	}

	return nil
}

// Ancestors walks parent links up from a reel, nearest first
func (s *LineageService) Ancestors(ctx context.Context, reelID string, maxDepth int) ([]models.LineageNode, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.LineageService.Ancestors")
	defer span.End()

	cypher := fmt.Sprintf(`
		MATCH path = (a:Reel)-[:REMIXED_INTO*1..%d]->(c:Reel {id: $id})
		RETURN a.id AS reel_id, a.owner_id AS owner_id, a.status AS status, length(path) AS depth
		ORDER BY depth
	`, maxDepth)

	return s.queryNodes(ctx, cypher, map[string]any{"id": reelID})
}

// Descendants walks child links down from a reel, nearest first
func (s *LineageService) Descendants(ctx context.Context, reelID string, maxDepth int) ([]models.LineageNode, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.LineageService.Descendants")
	defer span.End()

	cypher := fmt.Sprintf(`
		MATCH path = (p:Reel {id: $id})-[:REMIXED_INTO*1..%d]->(d:Reel)
		RETURN d.id AS reel_id, d.owner_id AS owner_id, d.status AS status, length(path) AS depth
		ORDER BY depth
	`, maxDepth)

	return s.queryNodes(ctx, cypher, map[string]any{"id": reelID})
}

func (s *LineageService) queryNodes(ctx context.Context, cypher string, params map[string]any) ([]models.LineageNode, error) {
	res, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}

		var nodes []models.LineageNode
		for result.Next(ctx) {
			record := result.Record()
			node := models.LineageNode{}
			if v, ok := record.Get("reel_id"); ok {
				node.ReelID, _ = v.(string)
			}
			if v, ok := record.Get("owner_id"); ok {
				node.OwnerID, _ = v.(string)
			}
			if v, ok := record.Get("status"); ok {
				if str, ok := v.(string); ok {
					node.Status = models.ReelStatus(str)
				}
			}
			if v, ok := record.Get("depth"); ok {
				if d, ok := v.(int64); ok {
					node.Depth = int(d)
				}
			}
			nodes = append(nodes, node)
		}
		return nodes, result.Err()
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to query lineage")
		return nil, fmt.Errorf("failed to query lineage: %w", err)
	}

	nodes, _ := res.([]models.LineageNode)
	return nodes, nil
}

// Rebuild drops the whole projection and re-creates it from the given
// edges. Used on startup and by the repair endpoint after drift.
func (s *LineageService) Rebuild(ctx context.Context, edges []Edge) error {
	ctx, span := tracing.StartSpan(ctx, "graph.LineageService.Rebuild")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{"edges": len(edges)})

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, "MATCH (r:Reel) DETACH DELETE r", nil)
		if err != nil {
			return nil, err
		}
		if _, err := result.Consume(ctx); err != nil {
			return nil, err
		}

		if len(edges) == 0 {
			return nil, nil
		}

		batch := make([]map[string]any, 0, len(edges))
		for _, e := range edges {
			batch = append(batch, map[string]any{
				"parent_id": e.ParentReelID,
				"child_id":  e.ChildReelID,
			})
		}

		result, err = tx.Run(ctx, `
			UNWIND $edges AS edge
			MERGE (p:Reel {id: edge.parent_id})
			MERGE (c:Reel {id: edge.child_id})
			MERGE (p)-[:REMIXED_INTO]->(c)
		`, map[string]any{"edges": batch})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		log.WithError(err).Error("Failed to rebuild lineage projection")
		return fmt.Errorf("failed to rebuild lineage projection: %w", err)
	}

	log.Info("Rebuilt lineage projection")
	return nil
}

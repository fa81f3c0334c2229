// Package lineage answers remix ancestry questions. It prefers the graph
// projection and falls back to recursive SQL when the projection is down,
// since PostgreSQL holds the authoritative edges either way.
package lineage

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/sprig/internal/repositories/reel"
	"github.com/Ramsey-B/sprig/internal/repositories/remixedge"
	"github.com/Ramsey-B/sprig/pkg/graph"
	"github.com/Ramsey-B/sprig/pkg/metrics"
	"github.com/Ramsey-B/sprig/pkg/models"
	"github.com/Ramsey-B/sprig/pkg/tracing"
)

// EdgeStore is the authoritative edge surface in PostgreSQL
type EdgeStore interface {
	ListChildren(ctx context.Context, parentReelID string) ([]models.RemixEdge, error)
	Ancestors(ctx context.Context, reelID string, maxDepth int) ([]models.LineageNode, error)
	Descendants(ctx context.Context, reelID string, maxDepth int) ([]models.LineageNode, error)
	Stats(ctx context.Context, reelID string) (*models.RemixStats, error)
}

// ReelStore resolves reels and enumerates remix sources for rebuilds
type ReelStore interface {
	Get(ctx context.Context, id string) (*models.Reel, error)
	ListRemixSources(ctx context.Context) ([]reel.RemixSource, error)
}

// GraphStore is the traversal fast path. Nil when the graph database is
// disabled.
type GraphStore interface {
	Ancestors(ctx context.Context, reelID string, maxDepth int) ([]models.LineageNode, error)
	Descendants(ctx context.Context, reelID string, maxDepth int) ([]models.LineageNode, error)
	Rebuild(ctx context.Context, edges []graph.Edge) error
}

// Service answers lineage queries with graph-first, SQL-fallback reads
type Service struct {
	edges  EdgeStore
	reels  ReelStore
	graph  GraphStore
	logger ectologger.Logger
}

// NewService creates a new lineage service. graphStore may be nil.
func NewService(edges EdgeStore, reels ReelStore, graphStore GraphStore, logger ectologger.Logger) *Service {
	return &Service{
		edges:  edges,
		reels:  reels,
		graph:  graphStore,
		logger: logger,
	}
}

// Lineage returns a reel's ancestor chain and descendant tree, nearest
// relatives first, bounded by maxDepth hops in each direction.
func (s *Service) Lineage(ctx context.Context, reelID string, maxDepth int) (*models.Lineage, error) {
	ctx, span := tracing.StartSpan(ctx, "lineage.Service.Lineage")
	defer span.End()

	if maxDepth < 1 || maxDepth > remixedge.MaxTraversalDepth {
		maxDepth = remixedge.MaxTraversalDepth
	}

	if _, err := s.reels.Get(ctx, reelID); err != nil {
		return nil, err
	}

	ancestors, err := s.traverse(ctx, reelID, maxDepth, "ancestors")
	if err != nil {
		return nil, err
	}
	descendants, err := s.traverse(ctx, reelID, maxDepth, "descendants")
	if err != nil {
		return nil, err
	}

	return &models.Lineage{
		ReelID:      reelID,
		Ancestors:   ancestors,
		Descendants: descendants,
	}, nil
}

func (s *Service) traverse(ctx context.Context, reelID string, maxDepth int, direction string) ([]models.LineageNode, error) {
	if s.graph != nil {
		start := time.Now()
		var nodes []models.LineageNode
		var err error
		if direction == "ancestors" {
			nodes, err = s.graph.Ancestors(ctx, reelID, maxDepth)
		} else {
			nodes, err = s.graph.Descendants(ctx, reelID, maxDepth)
		}
		if err == nil {
			metrics.LineageQueryDuration.WithLabelValues("graph", direction).Observe(time.Since(start).Seconds())
			return nodes, nil
		}
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"reel_id":   reelID,
			"direction": direction,
		}).Warn("Graph lineage query failed, falling back to postgres")
	}

	start := time.Now()
	var nodes []models.LineageNode
	var err error
	if direction == "ancestors" {
		nodes, err = s.edges.Ancestors(ctx, reelID, maxDepth)
	} else {
		nodes, err = s.edges.Descendants(ctx, reelID, maxDepth)
	}
	if err != nil {
		return nil, err
	}
	metrics.LineageQueryDuration.WithLabelValues("postgres", direction).Observe(time.Since(start).Seconds())
	return nodes, nil
}

// Children lists a reel's direct remixes
func (s *Service) Children(ctx context.Context, reelID string) ([]models.RemixEdge, error) {
	ctx, span := tracing.StartSpan(ctx, "lineage.Service.Children")
	defer span.End()

	if _, err := s.reels.Get(ctx, reelID); err != nil {
		return nil, err
	}
	return s.edges.ListChildren(ctx, reelID)
}

// Stats returns direct and total descendant counts for a reel
func (s *Service) Stats(ctx context.Context, reelID string) (*models.RemixStats, error) {
	ctx, span := tracing.StartSpan(ctx, "lineage.Service.Stats")
	defer span.End()

	if _, err := s.reels.Get(ctx, reelID); err != nil {
		return nil, err
	}
	return s.edges.Stats(ctx, reelID)
}

// Repair rebuilds the graph projection from the reels table. Returns the
// number of edges projected.
func (s *Service) Repair(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "lineage.Service.Repair")
	defer span.End()

	if s.graph == nil {
		return 0, httperror.NewHTTPError(http.StatusServiceUnavailable, "graph projection is disabled")
	}

	sources, err := s.reels.ListRemixSources(ctx)
	if err != nil {
		return 0, err
	}

	edges := make([]graph.Edge, 0, len(sources))
	for _, src := range sources {
		if src.RemixOfID == "" {
			continue
		}
		edges = append(edges, graph.Edge{
			ParentReelID: src.RemixOfID,
			ChildReelID:  src.ID,
		})
	}

	if err := s.graph.Rebuild(ctx, edges); err != nil {
		return 0, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{"edges": len(edges)}).Info("Repaired lineage projection")
	return len(edges), nil
}

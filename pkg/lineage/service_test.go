package lineage

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/sprig/internal/repositories/reel"
	"github.com/Ramsey-B/sprig/pkg/graph"
	"github.com/Ramsey-B/sprig/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fakeEdgeStore struct {
	ancestors   []models.LineageNode
	descendants []models.LineageNode
	children    []models.RemixEdge
	stats       models.RemixStats
	calls       int
}

func (s *fakeEdgeStore) ListChildren(_ context.Context, _ string) ([]models.RemixEdge, error) {
	return s.children, nil
}

func (s *fakeEdgeStore) Ancestors(_ context.Context, _ string, _ int) ([]models.LineageNode, error) {
	s.calls++
	return s.ancestors, nil
}

func (s *fakeEdgeStore) Descendants(_ context.Context, _ string, _ int) ([]models.LineageNode, error) {
	s.calls++
	return s.descendants, nil
}

func (s *fakeEdgeStore) Stats(_ context.Context, _ string) (*models.RemixStats, error) {
	stats := s.stats
	return &stats, nil
}

type fakeReelStore struct {
	reels   map[string]*models.Reel
	sources []reel.RemixSource
}

func (s *fakeReelStore) Get(_ context.Context, id string) (*models.Reel, error) {
	r, ok := s.reels[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "reel not found")
	}
	return r, nil
}

func (s *fakeReelStore) ListRemixSources(_ context.Context) ([]reel.RemixSource, error) {
	return s.sources, nil
}

type fakeGraphStore struct {
	ancestors   []models.LineageNode
	descendants []models.LineageNode
	rebuilt     [][]graph.Edge
	failErr     error
	calls       int
}

func (s *fakeGraphStore) Ancestors(_ context.Context, _ string, _ int) ([]models.LineageNode, error) {
	s.calls++
	if s.failErr != nil {
		return nil, s.failErr
	}
	return s.ancestors, nil
}

func (s *fakeGraphStore) Descendants(_ context.Context, _ string, _ int) ([]models.LineageNode, error) {
	s.calls++
	if s.failErr != nil {
		return nil, s.failErr
	}
	return s.descendants, nil
}

func (s *fakeGraphStore) Rebuild(_ context.Context, edges []graph.Edge) error {
	if s.failErr != nil {
		return s.failErr
	}
	s.rebuilt = append(s.rebuilt, edges)
	return nil
}

func knownReel(id string) *models.Reel {
	return &models.Reel{ID: id, OwnerID: "user-1", Status: models.ReelStatusPublic}
}

func TestLineage(t *testing.T) {
	ctx := context.Background()

	t.Run("serves from the graph when it is healthy", func(t *testing.T) {
		edges := &fakeEdgeStore{}
		graphStore := &fakeGraphStore{
			ancestors:   []models.LineageNode{{ReelID: "parent", Depth: 1}},
			descendants: []models.LineageNode{{ReelID: "child", Depth: 1}},
		}
		reels := &fakeReelStore{reels: map[string]*models.Reel{"reel-1": knownReel("reel-1")}}
		svc := NewService(edges, reels, graphStore, testLogger())

		result, err := svc.Lineage(ctx, "reel-1", 10)
		require.NoError(t, err)
		assert.Equal(t, "parent", result.Ancestors[0].ReelID)
		assert.Equal(t, "child", result.Descendants[0].ReelID)
		assert.Zero(t, edges.calls, "postgres must not be hit when the graph answers")
	})

	t.Run("falls back to postgres when the graph fails", func(t *testing.T) {
		edges := &fakeEdgeStore{
			ancestors: []models.LineageNode{{ReelID: "parent", Depth: 1}},
		}
		graphStore := &fakeGraphStore{failErr: errors.New("connection refused")}
		reels := &fakeReelStore{reels: map[string]*models.Reel{"reel-1": knownReel("reel-1")}}
		svc := NewService(edges, reels, graphStore, testLogger())

		result, err := svc.Lineage(ctx, "reel-1", 10)
		require.NoError(t, err)
		assert.Equal(t, "parent", result.Ancestors[0].ReelID)
		assert.Equal(t, 2, edges.calls)
	})

	t.Run("works without a graph store at all", func(t *testing.T) {
		edges := &fakeEdgeStore{}
		reels := &fakeReelStore{reels: map[string]*models.Reel{"reel-1": knownReel("reel-1")}}
		svc := NewService(edges, reels, nil, testLogger())

		_, err := svc.Lineage(ctx, "reel-1", 10)
		require.NoError(t, err)
	})

	t.Run("unknown reels are not found", func(t *testing.T) {
		svc := NewService(&fakeEdgeStore{}, &fakeReelStore{reels: map[string]*models.Reel{}}, nil, testLogger())

		_, err := svc.Lineage(ctx, "missing", 10)
		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
	})
}

func TestRepair(t *testing.T) {
	ctx := context.Background()

	t.Run("rebuilds the projection from remix sources", func(t *testing.T) {
		parent := "reel-parent"
		reels := &fakeReelStore{
			reels: map[string]*models.Reel{},
			sources: []reel.RemixSource{
				{ID: "reel-root"},
				{ID: "reel-child", RemixOfID: parent},
			},
		}
		graphStore := &fakeGraphStore{}
		svc := NewService(&fakeEdgeStore{}, reels, graphStore, testLogger())

		count, err := svc.Repair(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "reels without a parent project no edge")
		require.Len(t, graphStore.rebuilt, 1)
		assert.Equal(t, []graph.Edge{{ParentReelID: "reel-parent", ChildReelID: "reel-child"}}, graphStore.rebuilt[0])
	})

	t.Run("unavailable without a graph store", func(t *testing.T) {
		svc := NewService(&fakeEdgeStore{}, &fakeReelStore{}, nil, testLogger())

		_, err := svc.Repair(ctx)
		require.Error(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, httperror.GetStatusCode(err))
	})
}

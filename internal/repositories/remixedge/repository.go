package remixedge

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/sprig/pkg/database"
	"github.com/Ramsey-B/sprig/pkg/models"
	"github.com/Ramsey-B/sprig/pkg/tracing"
)

// MaxTraversalDepth caps lineage walks so a pathological chain cannot pin a
// connection.
const MaxTraversalDepth = 50

// Repository handles remix edge persistence. Edges are written once, at
// child creation, and never updated.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new remix edge repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create links a parent reel to a newly created child. The child must
// itself record the parent as its remix source; an edge between two
// unrelated reels is refused. The unique child constraint makes a second
// parent for the same child impossible.
func (r *Repository) Create(ctx context.Context, parentReelID, childReelID string) (*models.RemixEdge, error) {
	ctx, span := tracing.StartSpan(ctx, "remixedge.Repository.Create")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":         "Create",
		"parent_reel_id": parentReelID,
		"child_reel_id":  childReelID,
	})

	if parentReelID == childReelID {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "a reel cannot remix itself")
	}

	edge := &models.RemixEdge{
		ID:           uuid.New().String(),
		ParentReelID: parentReelID,
		ChildReelID:  childReelID,
		CreatedAt:    time.Now().UTC(),
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("remix_edges")
	sb.Cols("id", "parent_reel_id", "child_reel_id", "created_at")
	sb.Values(edge.ID, edge.ParentReelID, edge.ChildReelID, edge.CreatedAt)

	query, args := sb.Build()
	err := database.RunInTx(ctx, r.logger, r.db, func(ctx context.Context, tx database.Tx) error {
		var remixOfID *string
		if err := tx.GetContext(ctx, &remixOfID,
			"SELECT remix_of_id FROM reels WHERE id = $1", childReelID); err != nil {
			if database.IsNoRows(err) {
				return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("reel %s not found", childReelID))
			}
			log.WithError(err).Error("Failed to load child reel for remix edge")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create remix edge")
		}
		if remixOfID == nil || *remixOfID != parentReelID {
			return httperror.NewHTTPError(http.StatusConflict,
				fmt.Sprintf("reel %s does not record %s as its remix source", childReelID, parentReelID))
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if database.IsUniqueViolation(err, "") {
				return httperror.NewHTTPError(http.StatusConflict, "reel already has a remix parent")
			}
			log.WithError(err).Error("Failed to create remix edge")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create remix edge")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("Created remix edge")
	return edge, nil
}

// ListChildren retrieves the direct remixes of a reel
func (r *Repository) ListChildren(ctx context.Context, parentReelID string) ([]models.RemixEdge, error) {
	ctx, span := tracing.StartSpan(ctx, "remixedge.Repository.ListChildren")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "parent_reel_id", "child_reel_id", "created_at")
	sb.From("remix_edges")
	sb.Where(sb.Equal("parent_reel_id", parentReelID))
	sb.OrderBy("created_at ASC")

	query, args := sb.Build()
	var edges []models.RemixEdge
	if err := r.db.SelectContext(ctx, &edges, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list remix children")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list remix children")
	}

	return edges, nil
}

// ListAll retrieves every edge, oldest first, for rebuilding the lineage
// projection.
func (r *Repository) ListAll(ctx context.Context) ([]models.RemixEdge, error) {
	ctx, span := tracing.StartSpan(ctx, "remixedge.Repository.ListAll")
	defer span.End()

	var edges []models.RemixEdge
	err := r.db.SelectContext(ctx, &edges,
		"SELECT id, parent_reel_id, child_reel_id, created_at FROM remix_edges ORDER BY created_at")
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list remix edges")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list remix edges")
	}

	return edges, nil
}

// Ancestors walks parent links up from a reel, nearest first.
func (r *Repository) Ancestors(ctx context.Context, reelID string, maxDepth int) ([]models.LineageNode, error) {
	ctx, span := tracing.StartSpan(ctx, "remixedge.Repository.Ancestors")
	defer span.End()

	if maxDepth < 1 || maxDepth > MaxTraversalDepth {
		maxDepth = MaxTraversalDepth
	}

	var nodes []models.LineageNode
	err := r.db.SelectContext(ctx, &nodes, `
		WITH RECURSIVE ancestry AS (
			SELECT e.parent_reel_id AS reel_id, 1 AS depth
			FROM remix_edges e
			WHERE e.child_reel_id = $1
			UNION ALL
			SELECT e.parent_reel_id, a.depth + 1
			FROM remix_edges e
			JOIN ancestry a ON e.child_reel_id = a.reel_id
			WHERE a.depth < $2
		)
		SELECT r.id AS reel_id, r.owner_id, r.status, a.depth
		FROM ancestry a
		JOIN reels r ON r.id = a.reel_id
		ORDER BY a.depth`, reelID, maxDepth)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to walk ancestry")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to walk ancestry")
	}

	return nodes, nil
}

// Descendants walks child links down from a reel, nearest first.
func (r *Repository) Descendants(ctx context.Context, reelID string, maxDepth int) ([]models.LineageNode, error) {
	ctx, span := tracing.StartSpan(ctx, "remixedge.Repository.Descendants")
	defer span.End()

	if maxDepth < 1 || maxDepth > MaxTraversalDepth {
		maxDepth = MaxTraversalDepth
	}

	var nodes []models.LineageNode
	err := r.db.SelectContext(ctx, &nodes, `
		WITH RECURSIVE offspring AS (
			SELECT e.child_reel_id AS reel_id, 1 AS depth
			FROM remix_edges e
			WHERE e.parent_reel_id = $1
			UNION ALL
			SELECT e.child_reel_id, o.depth + 1
			FROM remix_edges e
			JOIN offspring o ON e.parent_reel_id = o.reel_id
			WHERE o.depth < $2
		)
		SELECT r.id AS reel_id, r.owner_id, r.status, o.depth
		FROM offspring o
		JOIN reels r ON r.id = o.reel_id
		ORDER BY o.depth, r.created_at`, reelID, maxDepth)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to walk descendants")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to walk descendants")
	}

	return nodes, nil
}

// Stats summarizes remix fan-out for a reel
func (r *Repository) Stats(ctx context.Context, reelID string) (*models.RemixStats, error) {
	ctx, span := tracing.StartSpan(ctx, "remixedge.Repository.Stats")
	defer span.End()

	stats := &models.RemixStats{ReelID: reelID}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("remix_edges")
	sb.Where(sb.Equal("parent_reel_id", reelID))

	query, args := sb.Build()
	if err := r.db.GetContext(ctx, &stats.DirectRemixes, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count direct remixes")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count direct remixes")
	}

	err := r.db.GetContext(ctx, &stats.TotalDescendants, `
		WITH RECURSIVE offspring AS (
			SELECT e.child_reel_id AS reel_id, 1 AS depth
			FROM remix_edges e
			WHERE e.parent_reel_id = $1
			UNION ALL
			SELECT e.child_reel_id, o.depth + 1
			FROM remix_edges e
			JOIN offspring o ON e.parent_reel_id = o.reel_id
			WHERE o.depth < $2
		)
		SELECT COUNT(*) FROM offspring`, reelID, MaxTraversalDepth)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count descendants")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count descendants")
	}

	return stats, nil
}

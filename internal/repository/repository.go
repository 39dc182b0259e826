package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"taleweaver/internal/model"
)

// ErrCacheMiss is returned by PlanCache.Get when no entry exists for a topic.
var ErrCacheMiss = errors.New("plan cache miss")

// ProfileRepository resolves stored child profiles. The profile store is an
// external collaborator; the pipeline only reads from it.
type ProfileRepository interface {
	// GetByID returns the profile for the given id (email), or
	// model.ErrProfileNotFound.
	GetByID(ctx context.Context, id string) (*model.UserProfile, error)
}

// HistoryRepository owns completed stories. Appends for the same owner are
// serialized so the most-recent-first ordering never loses updates under
// concurrent story creation.
type HistoryRepository interface {
	Append(ctx context.Context, story *model.Story) error
	// ListByOwner returns the owner's stories, most recent first.
	ListByOwner(ctx context.Context, ownerID string) ([]model.Story, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Story, error)
}

// PlanCache is the read-mostly topic cache for plan skeletons, with
// TTL-based invalidation. Keys are age-band-scoped topic strings built by
// the planner. A pipeline works identically with an empty cache; entries
// only skip recomputation of topic-derived fields.
type PlanCache interface {
	Get(ctx context.Context, topic string) (*model.PlanSkeleton, error)
	Set(ctx context.Context, topic string, skeleton model.PlanSkeleton) error
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"taleweaver/internal/model"
)

var _ HistoryRepository = (*pgHistoryRepository)(nil)

type pgHistoryRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPgHistoryRepository creates a Postgres-backed HistoryRepository.
func NewPgHistoryRepository(db *pgxpool.Pool, logger *zap.Logger) HistoryRepository {
	return &pgHistoryRepository{
		db:     db,
		logger: logger.Named("PgHistoryRepo"),
	}
}

// Append inserts the story inside a transaction holding a per-owner advisory
// lock, so concurrent appends by the same user are serialized and the
// created_at ordering never interleaves. Appends for different owners do not
// contend.
func (r *pgHistoryRepository) Append(ctx context.Context, story *model.Story) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", model.ErrHistoryWrite, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, story.OwnerID); err != nil {
		return fmt.Errorf("%w: failed to acquire owner lock: %v", model.ErrHistoryWrite, err)
	}

	query := `
        INSERT INTO stories
        (id, owner_id, prompt, title, text, image_url, theme, language,
         reading_level, word_count, reading_time_min, degraded, warning, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = tx.Exec(ctx, query,
		story.ID,
		story.OwnerID,
		story.Prompt,
		story.Title,
		story.Text,
		story.ImageURL,
		story.Theme,
		story.Language,
		story.ReadingLevel,
		story.WordCount,
		story.ReadingTimeMin,
		story.Degraded,
		story.Warning,
		story.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert story", zap.String("storyID", story.ID.String()), zap.Error(err))
		return fmt.Errorf("%w: %v", model.ErrHistoryWrite, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: failed to commit: %v", model.ErrHistoryWrite, err)
	}

	r.logger.Debug("Story appended to history",
		zap.String("storyID", story.ID.String()),
		zap.String("ownerID", story.OwnerID),
	)
	return nil
}

func (r *pgHistoryRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.Story, error) {
	query := `
        SELECT id, owner_id, prompt, title, text, image_url, theme, language,
               reading_level, word_count, reading_time_min, degraded, warning, created_at
        FROM stories
        WHERE owner_id = $1
        ORDER BY created_at DESC, id DESC`

	var stories []model.Story
	if err := pgxscan.Select(ctx, r.db, &stories, query, ownerID); err != nil {
		r.logger.Error("Failed to list stories", zap.String("ownerID", ownerID), zap.Error(err))
		return nil, fmt.Errorf("failed to list stories for %s: %w", ownerID, err)
	}
	return stories, nil
}

func (r *pgHistoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Story, error) {
	query := `
        SELECT id, owner_id, prompt, title, text, image_url, theme, language,
               reading_level, word_count, reading_time_min, degraded, warning, created_at
        FROM stories
        WHERE id = $1`

	var story model.Story
	err := pgxscan.Get(ctx, r.db, &story, query, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrStoryNotFound
		}
		return nil, fmt.Errorf("failed to get story %s: %w", id, err)
	}
	return &story, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"taleweaver/internal/model"
)

var _ ProfileRepository = (*pgProfileRepository)(nil)

type pgProfileRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPgProfileRepository creates a Postgres-backed ProfileRepository.
func NewPgProfileRepository(db *pgxpool.Pool, logger *zap.Logger) ProfileRepository {
	return &pgProfileRepository{
		db:     db,
		logger: logger.Named("PgProfileRepo"),
	}
}

func (r *pgProfileRepository) GetByID(ctx context.Context, id string) (*model.UserProfile, error) {
	query := `
        SELECT id, character_name, gender, age, city, region, mother_tongue,
               reading_level, language, favorite_toy, favorite_animal,
               favorite_cartoon, interests, created_at, updated_at
        FROM user_profiles
        WHERE id = $1`

	var profile model.UserProfile
	err := pgxscan.Get(ctx, r.db, &profile, query, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrProfileNotFound
		}
		r.logger.Error("Failed to get profile", zap.String("profileID", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get profile %s: %w", id, err)
	}

	return &profile, nil
}

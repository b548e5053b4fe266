package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TerrainRepository resolves zone terrain from the zone_terrain table. It
// implements the combat engine's terrain source.
type TerrainRepository struct {
	db *pgxpool.Pool
}

// NewTerrainRepository creates a TerrainRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewTerrainRepository(db *pgxpool.Pool) *TerrainRepository {
	return &TerrainRepository{db: db}
}

// TerrainAt returns the terrain type at the given zone cell, or "" when the
// cell has no terrain record.
func (r *TerrainRepository) TerrainAt(ctx context.Context, zoneID int64, x, y int) (string, error) {
	var terrain string
	err := r.db.QueryRow(ctx, `
		SELECT terrain_type FROM zone_terrain
		WHERE zone_id = $1 AND x = $2 AND y = $3`,
		zoneID, x, y,
	).Scan(&terrain)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("querying terrain: %w", err)
	}
	return terrain, nil
}

// SetTerrain upserts the terrain type for a zone cell. Used by content
// seeding and tests.
func (r *TerrainRepository) SetTerrain(ctx context.Context, zoneID int64, x, y int, terrainType string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO zone_terrain (zone_id, x, y, terrain_type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (zone_id, x, y) DO UPDATE SET terrain_type = EXCLUDED.terrain_type`,
		zoneID, x, y, terrainType,
	)
	if err != nil {
		return fmt.Errorf("upserting terrain: %w", err)
	}
	return nil
}

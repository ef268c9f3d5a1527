package repository

import (
	"context"
	"fmt"
	"time"

	"contentaugment/internal/domain/entity"
	"contentaugment/internal/domain/errors/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLContentItemRepository implements the ContentItemRepository interface
type PostgreSQLContentItemRepository struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLContentItemRepository creates a new PostgreSQL content item repository
func NewPostgreSQLContentItemRepository(pool *pgxpool.Pool) *PostgreSQLContentItemRepository {
	return &PostgreSQLContentItemRepository{pool: pool}
}

// FindByID returns nil, nil when the item does not exist.
func (r *PostgreSQLContentItemRepository) FindByID(ctx context.Context, id string) (*entity.ContentItem, error) {
	if id == "" {
		return nil, ErrInvalidArgument
	}

	query := `SELECT id, content, updated_at FROM contentaugment.content_items WHERE id = $1`

	var itemID, content string
	var updatedAt time.Time
	qi := queryFor(ctx, r.pool)
	if err := qi.QueryRow(ctx, query, id).Scan(&itemID, &content, &updatedAt); err != nil {
		if IsNotFoundError(err) {
			return nil, nil //nolint:nilnil // absence is not an error for lookups
		}
		return nil, WrapError(err, "find content item by ID")
	}
	return entity.RestoreContentItem(itemID, content, updatedAt), nil
}

// UpdateContent writes the item's augmented content.
func (r *PostgreSQLContentItemRepository) UpdateContent(ctx context.Context, item *entity.ContentItem) error {
	if item == nil {
		return ErrInvalidArgument
	}

	query := `UPDATE contentaugment.content_items SET content = $2, updated_at = $3 WHERE id = $1`

	qi := queryFor(ctx, r.pool)
	tag, err := qi.Exec(ctx, query, item.ID(), item.Content(), item.UpdatedAt())
	if err != nil {
		return WrapError(err, "update content item")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update content item %s: %w", item.ID(), domain.ErrItemNotFound)
	}
	return nil
}

// Save inserts or replaces an item.
func (r *PostgreSQLContentItemRepository) Save(ctx context.Context, item *entity.ContentItem) error {
	if item == nil {
		return ErrInvalidArgument
	}

	query := `
		INSERT INTO contentaugment.content_items (id, content, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, updated_at = EXCLUDED.updated_at`

	qi := queryFor(ctx, r.pool)
	if _, err := qi.Exec(ctx, query, item.ID(), item.Content(), item.UpdatedAt()); err != nil {
		return WrapError(err, "save content item")
	}
	return nil
}

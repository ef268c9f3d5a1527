package repository

import (
	"context"
	"testing"

	"contentaugment/internal/domain/entity"
	"contentaugment/internal/domain/errors/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentItemRepository(t *testing.T) {
	pool := requireDB(t)
	repo := NewPostgreSQLContentItemRepository(pool)
	ctx := context.Background()

	item := entity.NewContentItem("guide-1", "# Guide\n\nBody text.")
	require.NoError(t, repo.Save(ctx, item))

	found, err := repo.FindByID(ctx, "guide-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "# Guide\n\nBody text.", found.Content())

	found.ReplaceContent("# Guide\n\nBody text with [a link](/docs).")
	require.NoError(t, repo.UpdateContent(ctx, found))

	updated, err := repo.FindByID(ctx, "guide-1")
	require.NoError(t, err)
	assert.Contains(t, updated.Content(), "[a link](/docs)")

	missing, err := repo.FindByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = repo.UpdateContent(ctx, entity.NewContentItem("nope", "x"))
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

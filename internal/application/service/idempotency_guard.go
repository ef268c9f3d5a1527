package service

import (
	"context"
	"fmt"

	"contentaugment/internal/application/worker"
	"contentaugment/internal/domain/errors/domain"
	"contentaugment/internal/domain/operation"
	"contentaugment/internal/port/outbound"
)

// IdempotencyGuard decides whether an item already carries an operation's
// result. It only reads.
type IdempotencyGuard struct {
	items outbound.ContentItemRepository
}

// NewIdempotencyGuard creates a guard over the content item store.
func NewIdempotencyGuard(items outbound.ContentItemRepository) *IdempotencyGuard {
	if items == nil {
		panic("items cannot be nil")
	}
	return &IdempotencyGuard{items: items}
}

// AlreadySatisfied loads the item and evaluates the operation's markers.
// A missing item returns domain.ErrItemNotFound.
func (g *IdempotencyGuard) AlreadySatisfied(
	ctx context.Context,
	itemID string,
	op *operation.Operation,
) (worker.GuardVerdict, error) {
	item, err := g.items.FindByID(ctx, itemID)
	if err != nil {
		return worker.GuardVerdict{}, err
	}
	if item == nil {
		return worker.GuardVerdict{}, fmt.Errorf("%w: %s", domain.ErrItemNotFound, itemID)
	}

	satisfied, reason := op.Satisfied(item.Content())
	return worker.GuardVerdict{Satisfied: satisfied, Reason: reason, Item: item}, nil
}

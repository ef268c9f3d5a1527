package service

import (
	"context"
	"errors"

	"contentaugment/internal/application/common/slogger"
	"contentaugment/internal/application/worker"
	"contentaugment/internal/domain/entity"
	"contentaugment/internal/domain/errors/domain"
	"contentaugment/internal/domain/operation"
	"contentaugment/internal/port/outbound"
)

const reasonTokenBudget = "content exceeds token budget"

// AugmentationService turns one item into augmented text through the
// configured provider. Failures that concern only this item come back as
// *worker.ItemError; throttling and cancellation pass through unchanged.
type AugmentationService struct {
	augmenter      outbound.Augmenter
	counter        outbound.TokenCounter
	maxInputTokens int
}

// NewAugmentationService creates the service. A zero maxInputTokens disables
// the budget check.
func NewAugmentationService(
	augmenter outbound.Augmenter,
	counter outbound.TokenCounter,
	maxInputTokens int,
) *AugmentationService {
	if augmenter == nil {
		panic("augmenter cannot be nil")
	}
	return &AugmentationService{
		augmenter:      augmenter,
		counter:        counter,
		maxInputTokens: maxInputTokens,
	}
}

// Augment sends the item to the provider and validates what comes back.
func (s *AugmentationService) Augment(
	ctx context.Context,
	item *entity.ContentItem,
	op *operation.Operation,
) (string, error) {
	if s.counter != nil && s.maxInputTokens > 0 {
		tokens := s.counter.CountTokens(op.Instruction + item.Content())
		if tokens > s.maxInputTokens {
			slogger.Warn(ctx, "Item exceeds token budget", slogger.Fields3(
				"item_id", item.ID(),
				"tokens", tokens,
				"max_input_tokens", s.maxInputTokens,
			))
			return "", worker.NewItemError(item.ID(), reasonTokenBudget, nil)
		}
	}

	result, err := s.augmenter.Transform(ctx, outbound.TransformRequest{
		ItemID:      item.ID(),
		Content:     item.Content(),
		Instruction: op.Instruction,
	})
	if err != nil {
		if errors.Is(err, domain.ErrProviderThrottled) || ctx.Err() != nil {
			return "", err
		}
		return "", worker.NewItemError(item.ID(), providerFailureReason(err), err)
	}

	text, err := op.ValidateOutput(item.Content(), result.Text)
	if err != nil {
		return "", worker.NewItemError(item.ID(), err.Error(), err)
	}
	return text, nil
}

// Provider names the configured provider.
func (s *AugmentationService) Provider() string {
	return s.augmenter.Provider()
}

func providerFailureReason(err error) string {
	var augErr *outbound.AugmentationError
	if errors.As(err, &augErr) {
		return augErr.Error()
	}
	return err.Error()
}

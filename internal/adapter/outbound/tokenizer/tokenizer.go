// Package tokenizer counts prompt tokens before a provider call.
package tokenizer

import (
	"fmt"
	"unicode/utf8"

	"contentaugment/internal/application/common/slogger"
	"contentaugment/internal/port/outbound"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// DefaultEncoding is the BPE used when none is configured.
	DefaultEncoding = "cl100k_base"

	// Heuristic selects the rune based estimator.
	Heuristic = "heuristic"

	runesPerToken = 3
)

// TiktokenCounter counts tokens with a tiktoken BPE.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the named encoding.
func NewTiktokenCounter(encodingName string) (*TiktokenCounter, error) {
	if encodingName == "" {
		encodingName = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %s: %w", encodingName, err)
	}
	return &TiktokenCounter{encoding: enc}, nil
}

// CountTokens implements outbound.TokenCounter.
func (t *TiktokenCounter) CountTokens(text string) int {
	if t.encoding == nil {
		return HeuristicCounter{}.CountTokens(text)
	}
	return len(t.encoding.Encode(text, nil, nil))
}

// HeuristicCounter over-estimates at one token per three runes.
type HeuristicCounter struct{}

// CountTokens implements outbound.TokenCounter.
func (HeuristicCounter) CountTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + runesPerToken - 1) / runesPerToken
}

// New returns a tiktoken counter for name, falling back to the heuristic when
// name is "heuristic" or the BPE cannot be loaded (it is fetched on first use).
func New(name string) outbound.TokenCounter {
	if name == Heuristic {
		return HeuristicCounter{}
	}
	counter, err := NewTiktokenCounter(name)
	if err != nil {
		slogger.WarnNoCtx("Falling back to heuristic token counting", slogger.Fields{
			"encoding": name,
			"error":    err.Error(),
		})
		return HeuristicCounter{}
	}
	return counter
}

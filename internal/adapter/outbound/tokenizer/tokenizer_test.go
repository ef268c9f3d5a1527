package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeuristicCounter(t *testing.T) {
	c := HeuristicCounter{}
	assert.Equal(t, 0, c.CountTokens(""))
	assert.Equal(t, 1, c.CountTokens("abc"))
	assert.Equal(t, 2, c.CountTokens("abcd"))
	assert.Equal(t, 1, c.CountTokens("日本語"), "runes, not bytes")
}

func TestNew_Heuristic(t *testing.T) {
	assert.IsType(t, HeuristicCounter{}, New(Heuristic))
}

func TestNew_UnknownEncodingFallsBack(t *testing.T) {
	assert.IsType(t, HeuristicCounter{}, New("no_such_encoding"))
}

func TestTiktokenCounter_NilEncoding(t *testing.T) {
	var c TiktokenCounter
	assert.Equal(t, 2, c.CountTokens("abcdef"))
}

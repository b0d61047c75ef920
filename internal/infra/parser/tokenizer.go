package parser

import (
	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"
)

// TokenCounter approximates token counts with one consistent tokenizer so
// chunk budgets line up with what the embedding provider will see.
type TokenCounter interface {
	Count(text string) int
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (t tiktokenCounter) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// heuristicCounter is the chars/4 estimate used when the BPE encoding cannot
// be loaded (e.g. offline). Coarser, but consistent.
type heuristicCounter struct{}

func (heuristicCounter) Count(text string) int {
	return (len(text) + 3) / 4
}

// NewTokenCounter returns a tiktoken-backed counter, falling back to the
// heuristic when the encoding is unavailable.
func NewTokenCounter(encoding string, logger *zerolog.Logger) TokenCounter {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		logger.Warn().Str("encoding", encoding).Err(err).
			Msg("tiktoken encoding unavailable, using chars/4 heuristic")
		return heuristicCounter{}
	}
	return tiktokenCounter{enc: enc}
}

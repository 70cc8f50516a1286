package tokenizer

import "unicode"

// DefaultPieceLen approximates the average subword length of multilingual
// sentencepiece vocabularies on German and English prose.
const DefaultPieceLen = 8

// Heuristic estimates subword token counts without loading a vocabulary.
// A run of letters or digits counts one token per PieceLen runes; every other
// non-space rune counts as one token. The count is deterministic.
type Heuristic struct {
	PieceLen int
}

func NewHeuristic(pieceLen int) *Heuristic {
	if pieceLen <= 0 {
		pieceLen = DefaultPieceLen
	}
	return &Heuristic{PieceLen: pieceLen}
}

func (h *Heuristic) Count(text string) int {
	count := 0
	run := 0
	flush := func() {
		if run > 0 {
			count += (run + h.PieceLen - 1) / h.PieceLen
			run = 0
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			run++
		case unicode.IsSpace(r):
			flush()
		default:
			flush()
			count++
		}
	}
	flush()
	return count
}

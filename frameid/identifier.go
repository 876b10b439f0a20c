package frameid

import (
	"fmt"
	"sort"
	"strconv"
)

// Identifier is the value stamped into a frame. Two identifiers are equal iff
// their canonical texts are equal; Prefix is opaque and may itself end in
// digits.
type Identifier struct {
	Prefix   string
	Sequence uint64
}

// String returns the canonical text: Prefix followed by decimal Sequence.
func (id Identifier) String() string {
	return id.Prefix + strconv.FormatUint(id.Sequence, 10)
}

// ParseIdentifier splits text at its longest trailing run of decimal digits.
// When the original prefix ended in digits the split is ambiguous, and texts
// with zero-padded sequences do not round-trip through String.
func ParseIdentifier(text string) (Identifier, error) {
	i := len(text)
	for i > 0 && text[i-1] >= '0' && text[i-1] <= '9' {
		i--
	}
	if i == len(text) {
		return Identifier{}, fmt.Errorf("frameid: %q has no sequence number", text)
	}

	seq, err := strconv.ParseUint(text[i:], 10, 64)
	if err != nil {
		return Identifier{}, fmt.Errorf("frameid: %q: %w", text, err)
	}

	return Identifier{Prefix: text[:i], Sequence: seq}, nil
}

// SortCanonical orders codes by prefix then numeric sequence, so "f:2" sorts
// before "f:10". Codes without a sequence go last in lexical order.
func SortCanonical(codes []string) {
	sort.SliceStable(codes, func(a, b int) bool {
		ia, errA := ParseIdentifier(codes[a])
		ib, errB := ParseIdentifier(codes[b])
		switch {
		case errA != nil && errB != nil:
			return codes[a] < codes[b]
		case errA != nil:
			return false
		case errB != nil:
			return true
		}
		if ia.Prefix != ib.Prefix {
			return ia.Prefix < ib.Prefix
		}
		if ia.Sequence != ib.Sequence {
			return ia.Sequence < ib.Sequence
		}
		return codes[a] < codes[b]
	})
}

package lottery

import (
	"strconv"
	"strings"
)

// digitsKept is the number of trailing digits each digit-based mode keeps from a selection
var digitsKept = map[Mode]int{
	ModeTen:      2,
	ModeHundred:  3,
	ModeThousand: 4,
}

// NormalizeSelection turns a raw selection into the number the mode compares against.
// The boolean is false for malformed or out-of-range input.
func NormalizeSelection(mode Mode, raw string) (int, bool) {
	if mode == ModeGroup {
		g, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || g < 1 || g > GroupCount {
			return 0, false
		}
		return g, true
	}

	keep, ok := digitsKept[mode]
	if !ok {
		return 0, false
	}

	digits := onlyDigits(raw)
	if len(digits) == 0 {
		return 0, false
	}
	if len(digits) > keep {
		digits = digits[len(digits)-keep:]
	}

	// at most four ASCII digits, always parses
	n, _ := strconv.Atoi(digits)
	return n, true
}

// onlyDigits drops every non-ASCII-digit rune
func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// MatchSelection returns the indices of the prizes a selection hits, ascending by prize index.
// prizes should already be restricted to the placements being scored. Malformed selections
// never error; they simply hit nothing.
func MatchSelection(mode Mode, raw string, prizes []Prize) []int {
	sel, ok := NormalizeSelection(mode, raw)
	if !ok {
		return []int{}
	}

	hits := make([]int, 0, 1)
	for _, p := range prizes {
		if prizeMatches(mode, sel, p) {
			hits = append(hits, p.Index)
		}
	}

	// prizes may arrive unordered when callers filter them themselves
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j-1] > hits[j]; j-- {
			hits[j-1], hits[j] = hits[j], hits[j-1]
		}
	}
	return hits
}

func prizeMatches(mode Mode, sel int, p Prize) bool {
	switch mode {
	case ModeGroup:
		return p.Group == sel
	case ModeTen:
		return p.Ten == sel
	case ModeHundred:
		if p.Kind == KindThousand {
			return p.Value%HundredModulus == sel
		}
		return p.Value == sel
	case ModeThousand:
		return p.Kind == KindThousand && p.Value == sel
	default:
		return false
	}
}

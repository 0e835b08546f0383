package lottery

import (
	"fmt"
	"slices"
	"strconv"
)

// DeriveLeg builds a leg of a coarser mode from base's selections.
//
//	thousand -> hundred            last three digits
//	thousand/hundred/ten -> group  group of the last two digits
//
// Placements, pricing and stake are copied from base. Selections that don't parse under
// base's mode are skipped, and duplicates collapse in first-seen order, so under each
// pricing the derived leg can cost less than base did.
func DeriveLeg(base Leg, target Mode) (Leg, error) {
	if !derivable(base.Mode, target) {
		return Leg{}, ErrUnsupportedDerivation.WithDetails(
			fmt.Sprintf("cannot derive %s from %s", target, base.Mode))
	}

	seen := make(map[int]struct{}, len(base.Selections))
	selections := make([]Selection, 0, len(base.Selections))
	for _, raw := range base.Selections {
		n, ok := NormalizeSelection(base.Mode, string(raw))
		if !ok {
			continue
		}

		var v int
		switch target {
		case ModeHundred:
			v = n % HundredModulus
		case ModeGroup:
			v = GroupFromTen(n % TenModulus)
		}

		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		selections = append(selections, Selection(formatSelection(target, v)))
	}

	if len(selections) == 0 {
		return Leg{}, ErrEmptySelections.WithDetails("no base selection could be derived")
	}

	return Leg{
		Mode:             target,
		Selections:       selections,
		Placements:       slices.Clone(base.Placements),
		SelectionPricing: base.SelectionPricing,
		PlacementPricing: base.PlacementPricing,
		Stake:            base.Stake,
	}, nil
}

func derivable(from, to Mode) bool {
	switch to {
	case ModeHundred:
		return from == ModeThousand
	case ModeGroup:
		return from == ModeThousand || from == ModeHundred || from == ModeTen
	default:
		return false
	}
}

// formatSelection renders a value zero-padded to the width of its mode
func formatSelection(mode Mode, v int) string {
	if mode == ModeGroup {
		return strconv.Itoa(v)
	}
	return fmt.Sprintf("%0*d", digitsKept[mode], v)
}

package lottery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Mode is the granularity a leg's selections are matched at
type Mode string

const (
	ModeGroup    Mode = "group"
	ModeTen      Mode = "ten"
	ModeHundred  Mode = "hundred"
	ModeThousand Mode = "thousand"
)

// Modes lists every known mode
var Modes = []Mode{ModeGroup, ModeTen, ModeHundred, ModeThousand}

var modeAliases = map[string]Mode{
	"group":    ModeGroup,
	"grupo":    ModeGroup,
	"ten":      ModeTen,
	"dezena":   ModeTen,
	"hundred":  ModeHundred,
	"centena":  ModeHundred,
	"thousand": ModeThousand,
	"milhar":   ModeThousand,
}

// ParseMode resolves a mode name; the Portuguese names used by the web client are accepted too
func ParseMode(s string) (Mode, error) {
	if m, ok := modeAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return m, nil
	}
	return "", ErrInvalidMode.WithDetails(fmt.Sprintf("unknown mode %q", s))
}

// UnmarshalJSON accepts any alias ParseMode knows
func (m *Mode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ErrInvalidMode.WithDetails("mode must be a string")
	}
	parsed, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// SelectionPricing governs how the stake is spread across a leg's selections
type SelectionPricing string

const (
	// SelectionEach charges the full stake for every selection
	SelectionEach SelectionPricing = "each"

	// SelectionSplit charges the stake once and divides it across selections
	SelectionSplit SelectionPricing = "split"
)

// PlacementPricing governs how the stake is spread across a leg's placements
type PlacementPricing string

const (
	// PlacementSplit charges the stake once and divides the payout across placements
	PlacementSplit PlacementPricing = "split"

	// PlacementCover multiplies the cost by the placement count and pays full odds per hit
	PlacementCover PlacementPricing = "cover"
)

// Selection is a raw user selection; JSON numbers and strings are both accepted
type Selection string

// UnmarshalJSON keeps the literal text of numbers and strings
func (s *Selection) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Selection(str)
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return ErrInvalidParameters.WithDetails("selection must be a string or a number")
	}
	*s = Selection(num.String())
	return nil
}

// Leg is one priced bet unit
type Leg struct {
	Mode             Mode             `json:"mode"`
	Selections       []Selection      `json:"selections"`
	Placements       []int            `json:"placements"`
	SelectionPricing SelectionPricing `json:"selectionPricing,omitempty"`
	PlacementPricing PlacementPricing `json:"placementPricing,omitempty"`
	Stake            decimal.Decimal  `json:"stake"`
}

// StakeCents converts the stake to integer cents
func (l *Leg) StakeCents() int64 {
	return ToCents(l.Stake)
}

// Normalize validates the leg against rules and returns a copy with defaulted pricing and
// sorted, deduplicated placements. The receiver is never modified.
func (l Leg) Normalize(rules Rules) (Leg, error) {
	if !slices.Contains(Modes, l.Mode) {
		return Leg{}, ErrInvalidMode.WithDetails(fmt.Sprintf("unknown mode %q", l.Mode))
	}

	if !l.Stake.IsPositive() || l.Stake.GreaterThan(rules.MaxStake) {
		return Leg{}, ErrInvalidStake.WithDetails(
			fmt.Sprintf("stake must be between 0.01 and %s", rules.MaxStake.StringFixed(StakeDecimalPlaces)))
	}
	if !l.Stake.Equal(l.Stake.Truncate(StakeDecimalPlaces)) {
		return Leg{}, ErrInvalidStake.WithDetails("stake may have at most two decimal places")
	}

	if len(l.Selections) == 0 {
		return Leg{}, ErrEmptySelections
	}

	switch l.SelectionPricing {
	case "":
		l.SelectionPricing = SelectionEach
	case SelectionEach, SelectionSplit:
	default:
		return Leg{}, ErrInvalidSelectionPricing.WithDetails(fmt.Sprintf("unknown selection pricing %q", l.SelectionPricing))
	}

	switch l.PlacementPricing {
	case "":
		l.PlacementPricing = PlacementSplit
	case PlacementSplit, PlacementCover:
	default:
		return Leg{}, ErrInvalidPlacementPricing.WithDetails(fmt.Sprintf("unknown placement pricing %q", l.PlacementPricing))
	}

	placements, err := normalizePlacements(l.Placements)
	if err != nil {
		return Leg{}, err
	}

	if l.Mode == ModeThousand && slices.Contains(placements, PrizeCount) {
		if rules.PlacementSeven != PlacementSevenDrop {
			return Leg{}, ErrForbiddenPlacement
		}
		placements = slices.DeleteFunc(placements, func(p int) bool { return p == PrizeCount })
		if len(placements) == 0 {
			return Leg{}, ErrInvalidPlacements.WithDetails("no placements left after dropping placement 7")
		}
	}

	l.Placements = placements
	l.Selections = slices.Clone(l.Selections)
	return l, nil
}

// normalizePlacements checks the 1..7 range and returns a sorted, deduplicated copy
func normalizePlacements(placements []int) ([]int, error) {
	if len(placements) == 0 {
		return nil, ErrInvalidPlacements.WithDetails("at least one placement is required")
	}

	out := make([]int, 0, len(placements))
	for _, p := range placements {
		if p < 1 || p > PrizeCount {
			return nil, ErrInvalidPlacements.WithDetails(fmt.Sprintf("placement %d is outside 1..%d", p, PrizeCount))
		}
		out = append(out, p)
	}

	slices.Sort(out)
	return slices.Compact(out), nil
}

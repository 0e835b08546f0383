package lottery

import (
	"fmt"
)

// SelectionHits pairs a selection with the prize indices it hit
type SelectionHits struct {
	Selection Selection `json:"selection"`
	Hits      []int     `json:"hits"`
}

// LegResult is the priced outcome of one leg against one draw. All money is in integer cents.
type LegResult struct {
	Mode             Mode             `json:"mode"`
	Selections       []Selection      `json:"selections"`
	Placements       []int            `json:"placements"`
	SelectionPricing SelectionPricing `json:"selectionPricing"`
	PlacementPricing PlacementPricing `json:"placementPricing"`
	StakeCents       int64            `json:"stakeCents"`
	Multiplier       int64            `json:"multiplier"`

	CostCents              int64           `json:"costCents"`
	PerPlacementStakeCents int64           `json:"perPlacementStakeCents"`
	PerSelectionStakeCents int64           `json:"perSelectionStakeCents"`
	PerHitPayoutCents      int64           `json:"perHitPayoutCents"`
	TotalHits              int             `json:"totalHits"`
	PayoutCents            int64           `json:"payoutCents"`
	HitsBySelection        []SelectionHits `json:"hitsBySelection"`
}

// coverFactor is the cost multiplier for cover placement pricing.
// Covering all seven placements costs twice the stake, any other count costs k stakes.
func coverFactor(k int) int64 {
	if k == PrizeCount {
		return 2
	}
	return int64(k)
}

// PriceLeg prices a normalized leg against the full prize list of a draw.
//
// cost    = stake * (n if selections each) * (coverFactor(k) if placements cover)
// perHit  = floor(stake * multiplier / ((k if placements split) * (n if selections split)))
// payout  = perHit * total hits
func PriceLeg(leg Leg, prizes []Prize, multipliers MultiplierTable) (LegResult, error) {
	k := len(leg.Placements)
	n := len(leg.Selections)
	if k == 0 {
		return LegResult{}, ErrInvalidPlacements.WithDetails("leg has no placements")
	}
	if n == 0 {
		return LegResult{}, ErrEmptySelections
	}

	mult, ok := multipliers[leg.Mode]
	if !ok {
		return LegResult{}, ErrInvalidMode.WithDetails(fmt.Sprintf("no multiplier for mode %q", leg.Mode))
	}

	stake := leg.StakeCents()

	cost := stake
	if leg.SelectionPricing != SelectionSplit {
		cost *= int64(n)
	}
	if leg.PlacementPricing == PlacementCover {
		cost *= coverFactor(k)
	}

	divisor := int64(1)
	perPlacement := stake
	if leg.PlacementPricing != PlacementCover {
		divisor *= int64(k)
		perPlacement = stake / int64(k)
	}
	perSelection := stake
	if leg.SelectionPricing == SelectionSplit {
		divisor *= int64(n)
		perSelection = stake / int64(n)
	}
	perHit := stake * mult / divisor

	scored := FilterPrizes(prizes, leg.Placements)
	bySelection := make([]SelectionHits, 0, n)
	total := 0
	for _, sel := range leg.Selections {
		hits := MatchSelection(leg.Mode, string(sel), scored)
		total += len(hits)
		bySelection = append(bySelection, SelectionHits{Selection: sel, Hits: hits})
	}

	return LegResult{
		Mode:                   leg.Mode,
		Selections:             leg.Selections,
		Placements:             leg.Placements,
		SelectionPricing:       leg.SelectionPricing,
		PlacementPricing:       leg.PlacementPricing,
		StakeCents:             stake,
		Multiplier:             mult,
		CostCents:              cost,
		PerPlacementStakeCents: perPlacement,
		PerSelectionStakeCents: perSelection,
		PerHitPayoutCents:      perHit,
		TotalHits:              total,
		PayoutCents:            perHit * int64(total),
		HitsBySelection:        bySelection,
	}, nil
}

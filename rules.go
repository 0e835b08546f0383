package lottery

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MultiplierTableName names one of the payout tables
type MultiplierTableName string

const (
	// MultiplierTableStandard pays 10/50/150/1000 for group/ten/hundred/thousand
	MultiplierTableStandard MultiplierTableName = "standard"

	// MultiplierTableBoosted pays 20/70/650/4000 for group/ten/hundred/thousand
	MultiplierTableBoosted MultiplierTableName = "boosted"
)

// MultiplierTable maps every mode onto its payout multiplier
type MultiplierTable map[Mode]int64

var multiplierTables = map[MultiplierTableName]MultiplierTable{
	MultiplierTableStandard: {ModeGroup: 10, ModeTen: 50, ModeHundred: 150, ModeThousand: 1000},
	MultiplierTableBoosted:  {ModeGroup: 20, ModeTen: 70, ModeHundred: 650, ModeThousand: 4000},
}

// LookupMultiplierTable returns a copy of the named table
func LookupMultiplierTable(name MultiplierTableName) (MultiplierTable, error) {
	table, ok := multiplierTables[MultiplierTableName(strings.ToLower(string(name)))]
	if !ok {
		return nil, ErrConfigInvalid.WithDetails(fmt.Sprintf("unknown multiplier table %q", name))
	}

	out := make(MultiplierTable, len(table))
	for k, v := range table {
		out[k] = v
	}
	return out, nil
}

// PlacementSevenPolicy decides what happens to thousand-mode legs that name placement 7
type PlacementSevenPolicy string

const (
	// PlacementSevenReject fails validation
	PlacementSevenReject PlacementSevenPolicy = "reject"

	// PlacementSevenDrop removes placement 7 from the leg
	PlacementSevenDrop PlacementSevenPolicy = "drop"
)

// Rules is the canonical rule set settlement prices legs with
type Rules struct {
	TableName       MultiplierTableName  `json:"multiplierTable"`
	Multipliers     MultiplierTable      `json:"multipliers"`
	MaxStake        decimal.Decimal      `json:"maxStake"`
	StartingBalance decimal.Decimal      `json:"startingBalance"`
	PlacementSeven  PlacementSevenPolicy `json:"placementSeven"`
}

// DefaultRules returns the standard table, a 50.00 stake cap and hard placement-7 rejection
func DefaultRules() Rules {
	table, _ := LookupMultiplierTable(DefaultMultiplierTable)
	return Rules{
		TableName:       DefaultMultiplierTable,
		Multipliers:     table,
		MaxStake:        decimal.RequireFromString(DefaultMaxStake),
		StartingBalance: decimal.RequireFromString(DefaultStartingBalance),
		PlacementSeven:  DefaultPlacementSevenPolicy,
	}
}

// NewRules builds a rule set from its configuration values
func NewRules(cfg *RulesConfig) (Rules, error) {
	if cfg == nil {
		return DefaultRules(), nil
	}

	table, err := LookupMultiplierTable(MultiplierTableName(cfg.MultiplierTable))
	if err != nil {
		return Rules{}, err
	}

	maxStake, err := decimal.NewFromString(cfg.MaxStake)
	if err != nil || !maxStake.IsPositive() {
		return Rules{}, ErrConfigInvalid.WithDetails(fmt.Sprintf("invalid max stake %q", cfg.MaxStake))
	}

	starting, err := decimal.NewFromString(cfg.StartingBalance)
	if err != nil || starting.IsNegative() {
		return Rules{}, ErrConfigInvalid.WithDetails(fmt.Sprintf("invalid starting balance %q", cfg.StartingBalance))
	}

	policy := PlacementSevenPolicy(strings.ToLower(cfg.PlacementSeven))
	if policy != PlacementSevenReject && policy != PlacementSevenDrop {
		return Rules{}, ErrConfigInvalid.WithDetails(fmt.Sprintf("invalid placement seven policy %q", cfg.PlacementSeven))
	}

	return Rules{
		TableName:       MultiplierTableName(strings.ToLower(cfg.MultiplierTable)),
		Multipliers:     table,
		MaxStake:        maxStake,
		StartingBalance: starting,
		PlacementSeven:  policy,
	}, nil
}

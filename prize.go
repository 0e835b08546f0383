package lottery

// PrizeKind is the numeric range a prize slot draws from
type PrizeKind string

const (
	// KindThousand prizes range over 0..9999
	KindThousand PrizeKind = "thousand"

	// KindHundred prizes range over 0..999
	KindHundred PrizeKind = "hundred"
)

// Prize represents one of the seven slots of a draw
type Prize struct {
	Index      int       `json:"index"`                // Slot 1..7
	Kind       PrizeKind `json:"kind"`                 // thousand for 1..6, hundred for 7
	Value      int       `json:"value"`                // Drawn number
	Ten        int       `json:"ten"`                  // Last two digits
	Group      int       `json:"group"`                // Group 1..25 of Ten
	Derivation string    `json:"derivation,omitempty"` // How slots 6 and 7 were computed
	Product    int       `json:"product,omitempty"`    // m1*m2 behind slot 7
}

// newPrize annotates a drawn value with its ten and group
func newPrize(index int, kind PrizeKind, value int) Prize {
	ten := value % TenModulus
	return Prize{
		Index: index,
		Kind:  kind,
		Value: value,
		Ten:   ten,
		Group: GroupFromTen(ten),
	}
}

// GroupFromTen maps a ten (0..99) onto its group (1..25).
// Group 25 holds 97, 98, 99 and 00. Values outside 0..99 return 0.
func GroupFromTen(ten int) int {
	if ten < 0 || ten >= TenModulus {
		return 0
	}
	if ten == 0 {
		return GroupCount
	}
	return (ten-1)/TensPerGroup + 1
}

// GroupTens returns the four tens belonging to a group, ascending, or nil for an unknown group
func GroupTens(group int) []int {
	if group < 1 || group > GroupCount {
		return nil
	}

	tens := make([]int, 0, TensPerGroup)
	first := (group-1)*TensPerGroup + 1
	for t := first; t < first+TensPerGroup; t++ {
		tens = append(tens, t%TenModulus)
	}
	if group == GroupCount {
		// 00 sorts first
		tens = append([]int{0}, tens[:TensPerGroup-1]...)
	}
	return tens
}

// FilterPrizes keeps the prizes whose index is among placements, in prize order
func FilterPrizes(prizes []Prize, placements []int) []Prize {
	wanted := make(map[int]struct{}, len(placements))
	for _, p := range placements {
		wanted[p] = struct{}{}
	}

	filtered := make([]Prize, 0, len(placements))
	for _, prize := range prizes {
		if _, ok := wanted[prize.Index]; ok {
			filtered = append(filtered, prize)
		}
	}
	return filtered
}

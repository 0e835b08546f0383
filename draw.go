package lottery

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Draw is one set of seven prizes tied to the seed and timestamp it was derived from
type Draw struct {
	Seed      string            `json:"seed"`
	Timestamp string            `json:"timestamp"`
	Prizes    [PrizeCount]Prize `json:"prizes"`
}

// PrizeList returns the prizes as a slice
func (d Draw) PrizeList() []Prize {
	return d.Prizes[:]
}

// DrawHash returns the lowercase hex SHA-256 of "seed:timestamp"
func DrawHash(seed, timestamp string) string {
	sum := sha256.Sum256([]byte(seed + ":" + timestamp))
	return hex.EncodeToString(sum[:])
}

// GenerateDraw derives the seven prizes for a seed and timestamp.
// Identical inputs always produce identical draws.
func GenerateDraw(seed, timestamp string) Draw {
	hash := DrawHash(seed, timestamp)

	var m [IndependentPrizeCount]int
	for i := range IndependentPrizeCount {
		chunk := hash[i*hashChunkSize : (i+1)*hashChunkSize]
		// 8 hex chars always fit in 32 bits
		v, _ := strconv.ParseUint(chunk, 16, 32)
		m[i] = int(v % ThousandModulus)
	}

	draw := Draw{Seed: seed, Timestamp: timestamp}

	sum := 0
	for i, v := range m {
		draw.Prizes[i] = newPrize(i+1, KindThousand, v)
		sum += v
	}

	sixth := newPrize(6, KindThousand, sum%ThousandModulus)
	sixth.Derivation = DerivationSumMod
	draw.Prizes[5] = sixth

	product := m[0] * m[1]
	seventh := newPrize(7, KindHundred, (product/100)%HundredModulus)
	seventh.Derivation = DerivationProductHundred
	seventh.Product = product
	draw.Prizes[6] = seventh

	return draw
}

package lottery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDraw(t *testing.T) {
	tests := []struct {
		name      string
		seed      string
		timestamp string
		values    [PrizeCount]int
		tens      [PrizeCount]int
		groups    [PrizeCount]int
		product   int
	}{
		{
			name:      "new_year_fixture",
			seed:      "abc",
			timestamp: "2024-01-01T00:00:00.000Z",
			values:    [PrizeCount]int{1518, 8217, 6903, 4698, 927, 2263, 734},
			tens:      [PrizeCount]int{18, 17, 3, 98, 27, 63, 34},
			groups:    [PrizeCount]int{5, 5, 1, 25, 7, 16, 9},
			product:   12473406,
		},
		{
			name:      "june_fixture",
			seed:      "seed-1",
			timestamp: "2024-06-01T12:30:00.000Z",
			values:    [PrizeCount]int{3867, 3049, 9717, 1049, 464, 8146, 904},
			tens:      [PrizeCount]int{67, 49, 17, 49, 64, 46, 4},
			groups:    [PrizeCount]int{17, 13, 5, 13, 16, 12, 1},
			product:   11790483,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draw := GenerateDraw(tt.seed, tt.timestamp)

			assert.Equal(t, tt.seed, draw.Seed)
			assert.Equal(t, tt.timestamp, draw.Timestamp)

			for i, p := range draw.Prizes {
				assert.Equal(t, i+1, p.Index)
				assert.Equal(t, tt.values[i], p.Value, "prize %d value", i+1)
				assert.Equal(t, tt.tens[i], p.Ten, "prize %d ten", i+1)
				assert.Equal(t, tt.groups[i], p.Group, "prize %d group", i+1)
			}

			assert.Equal(t, DerivationSumMod, draw.Prizes[5].Derivation)
			assert.Equal(t, DerivationProductHundred, draw.Prizes[6].Derivation)
			assert.Equal(t, tt.product, draw.Prizes[6].Product)
			assert.Equal(t, KindHundred, draw.Prizes[6].Kind)
			assert.Len(t, draw.PrizeList(), PrizeCount)
		})
	}
}

func TestGenerateDraw_Invariants(t *testing.T) {
	seeds := []string{"", "abc", "seed-1", "0b4c2f0e-52a3-4c55-9a55-4e7c1c4f3a11", "ção"}
	timestamps := []string{"2024-01-01T00:00:00.000Z", "2030-12-31T23:59:59.999Z"}

	for _, seed := range seeds {
		for _, ts := range timestamps {
			draw := GenerateDraw(seed, ts)

			// 相同输入得到相同结果
			assert.Equal(t, draw, GenerateDraw(seed, ts))

			sum := 0
			for i := 0; i < IndependentPrizeCount; i++ {
				p := draw.Prizes[i]
				require.GreaterOrEqual(t, p.Value, 0)
				require.Less(t, p.Value, ThousandModulus)
				assert.Equal(t, KindThousand, p.Kind)
				assert.Empty(t, p.Derivation)
				sum += p.Value
			}

			assert.Equal(t, sum%ThousandModulus, draw.Prizes[5].Value)

			m1, m2 := draw.Prizes[0].Value, draw.Prizes[1].Value
			assert.Equal(t, m1*m2, draw.Prizes[6].Product)
			assert.Equal(t, (m1*m2/100)%HundredModulus, draw.Prizes[6].Value)
			assert.Less(t, draw.Prizes[6].Value, HundredModulus)

			for _, p := range draw.Prizes {
				assert.Equal(t, p.Value%TenModulus, p.Ten)
				assert.Equal(t, GroupFromTen(p.Ten), p.Group)
			}
		}
	}
}

func TestGenerateDraw_InputSensitivity(t *testing.T) {
	base := GenerateDraw("abc", "2024-01-01T00:00:00.000Z")

	assert.NotEqual(t, base.Prizes, GenerateDraw("abd", "2024-01-01T00:00:00.000Z").Prizes)
	assert.NotEqual(t, base.Prizes, GenerateDraw("abc", "2024-01-01T00:00:00.001Z").Prizes)
}

func TestDrawHash(t *testing.T) {
	assert.Equal(t,
		"218bf98ec2e8368932ba4017323290ea291c4e5fc3b57117d83903c8059de92e",
		DrawHash("abc", "2024-01-01T00:00:00.000Z"))
}

func TestGroupFromTen(t *testing.T) {
	tests := []struct {
		name  string
		ten   int
		group int
	}{
		{"zero_is_last_group", 0, 25},
		{"first_ten", 1, 1},
		{"end_of_first_group", 4, 1},
		{"start_of_second_group", 5, 2},
		{"middle", 50, 13},
		{"start_of_last_group", 97, 25},
		{"last_ten", 99, 25},
		{"negative", -1, 0},
		{"out_of_range", 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.group, GroupFromTen(tt.ten))
		})
	}
}

func TestGroupTens(t *testing.T) {
	t.Run("partition", func(t *testing.T) {
		seen := make(map[int]int)
		for g := 1; g <= GroupCount; g++ {
			tens := GroupTens(g)
			require.Len(t, tens, TensPerGroup)
			for _, ten := range tens {
				_, dup := seen[ten]
				require.False(t, dup, "ten %d in two groups", ten)
				seen[ten] = g
				assert.Equal(t, g, GroupFromTen(ten))
			}
		}
		assert.Len(t, seen, TenModulus)
	})

	t.Run("known_groups", func(t *testing.T) {
		assert.Equal(t, []int{1, 2, 3, 4}, GroupTens(1))
		assert.Equal(t, []int{0, 97, 98, 99}, GroupTens(25))
	})

	t.Run("unknown_group", func(t *testing.T) {
		assert.Nil(t, GroupTens(0))
		assert.Nil(t, GroupTens(26))
	})
}

func TestFilterPrizes(t *testing.T) {
	draw := GenerateDraw("abc", "2024-01-01T00:00:00.000Z")

	filtered := FilterPrizes(draw.PrizeList(), []int{7, 2, 2, 5})
	require.Len(t, filtered, 3)
	assert.Equal(t, 2, filtered[0].Index)
	assert.Equal(t, 5, filtered[1].Index)
	assert.Equal(t, 7, filtered[2].Index)

	assert.Empty(t, FilterPrizes(draw.PrizeList(), nil))
}

func TestDraw_PrizeList(t *testing.T) {
	// 直接在返回值上调用
	prizes := GenerateDraw("abc", "2024-01-01T00:00:00.000Z").PrizeList()
	require.Len(t, prizes, PrizeCount)
	assert.Equal(t, 1518, prizes[0].Value)
	assert.Equal(t, 12473406, prizes[6].Product)

	// 切片不与原抽奖共享底层数组
	draw := GenerateDraw("abc", "2024-01-01T00:00:00.000Z")
	list := draw.PrizeList()
	list[0].Value = 0
	assert.Equal(t, 1518, draw.Prizes[0].Value)
}

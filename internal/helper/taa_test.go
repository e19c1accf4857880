package helper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsxjacky/fund-backtest/pkg/types"
)

func taaParam() *types.TAAParam {
	return &types.TAAParam{
		HighThreshold: 0.95,
		HighStop:      0.30,
		HighMinus:     0.05,
		LowThreshold:  0.05,
		LowStop:       0.25,
		LowPlus:       0.05,
	}
}

func TestTAABands(t *testing.T) {
	saa := types.AssetWeight{types.IndexHS300: 0.4}.Normalize()

	tests := []struct {
		name       string
		pct        float64
		wantWeight float64
		wantStatus TAAStatus
	}{
		{"overheated drops to floor", 0.97, 0.30, StatusOverHeated},
		{"hot steps down", 0.50, 0.35, StatusHot},
		{"normal returns to saa", 0.28, 0.40, StatusNormal},
		{"cold steps up", 0.10, 0.45, StatusCold},
		{"undervalued jumps to ceiling", 0.01, 0.95, StatusUndervalued},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewTAAHelper(map[types.IndexID]*types.TAAParam{types.IndexHS300: taaParam()})
			require.NoError(t, err)

			out := h.OnPrice(types.Date(2020, 1, 2),
				saa, map[types.IndexID]float64{types.IndexHS300: tt.pct})
			assert.InDelta(t, tt.wantWeight, out[types.IndexHS300], 1e-9)
			assert.Equal(t, tt.wantStatus, h.Status(types.IndexHS300))
		})
	}
}

func TestTAAStepAccumulates(t *testing.T) {
	saa := types.AssetWeight{types.IndexHS300: 0.5}.Normalize()
	h, err := NewTAAHelper(map[types.IndexID]*types.TAAParam{types.IndexHS300: taaParam()})
	require.NoError(t, err)

	// 连续偏热: 每日减 HighMinus, 不低于 HighStop
	day := types.Date(2020, 1, 2)
	pcts := map[types.IndexID]float64{types.IndexHS300: 0.60}
	out := h.OnPrice(day, saa, pcts)
	assert.InDelta(t, 0.45, out[types.IndexHS300], 1e-9)

	out = h.OnPrice(day.AddDate(0, 0, 1), saa, pcts)
	assert.InDelta(t, 0.40, out[types.IndexHS300], 1e-9)

	for i := 0; i < 10; i++ {
		out = h.OnPrice(day.AddDate(0, 0, 2+i), saa, pcts)
	}
	assert.InDelta(t, 0.30, out[types.IndexHS300], 1e-9, "clamped at HighStop")
}

func TestTAAOverheatedRecordedOnce(t *testing.T) {
	saa := types.AssetWeight{types.IndexHS300: 0.5}.Normalize()
	h, err := NewTAAHelper(map[types.IndexID]*types.TAAParam{types.IndexHS300: taaParam()})
	require.NoError(t, err)

	pcts := map[types.IndexID]float64{types.IndexHS300: 0.99}
	h.OnPrice(types.Date(2020, 1, 2), saa, pcts)
	require.Equal(t, []types.IndexID{types.IndexHS300}, h.OverheatedToday())

	// 次日仍过热, 但只有进入当天记录清减原因
	h.OnPrice(types.Date(2020, 1, 3), saa, pcts)
	assert.Empty(t, h.OverheatedToday())
}

func TestTAAToMmf(t *testing.T) {
	saa := types.AssetWeight{types.IndexHS300: 0.5, types.IndexGold: 0.3}.Normalize()
	p := taaParam()
	p.ToMmf = true
	h, err := NewTAAHelper(map[types.IndexID]*types.TAAParam{types.IndexHS300: p})
	require.NoError(t, err)

	out := h.OnPrice(types.Date(2020, 1, 2), saa,
		map[types.IndexID]float64{types.IndexHS300: 0.99})
	assert.InDelta(t, 0.30, out[types.IndexHS300], 1e-9)
	assert.InDelta(t, 0.20, out[types.IndexMMF], 1e-9, "trimmed weight moved to money fund")
	assert.InDelta(t, 0.30, out[types.IndexGold], 1e-9, "untouched asset keeps saa weight")
}

func TestTAARedistribute(t *testing.T) {
	saa := types.AssetWeight{types.IndexHS300: 0.5, types.IndexGold: 0.3}.Normalize()
	h, err := NewTAAHelper(map[types.IndexID]*types.TAAParam{types.IndexHS300: taaParam()})
	require.NoError(t, err)

	out := h.OnPrice(types.Date(2020, 1, 2), saa,
		map[types.IndexID]float64{types.IndexHS300: 0.99})
	assert.InDelta(t, 0.30, out[types.IndexHS300], 1e-9)
	// 清减的0.2按比例回流未压低的风险资产, 这里只有黄金一个
	assert.InDelta(t, 0.50, out[types.IndexGold], 1e-9)
}

func TestTAAWeightsSumToOne(t *testing.T) {
	saa := types.AssetWeight{types.IndexHS300: 0.4, types.IndexGold: 0.3, types.IndexNationalDebt: 0.2}.Normalize()
	h, err := NewTAAHelper(map[types.IndexID]*types.TAAParam{
		types.IndexHS300: taaParam(),
		types.IndexGold:  taaParam(),
	})
	require.NoError(t, err)

	pctGrid := []float64{0.01, 0.10, 0.28, 0.50, 0.99}
	for _, p1 := range pctGrid {
		for _, p2 := range pctGrid {
			out := h.OnPrice(types.Date(2020, 1, 2), saa, map[types.IndexID]float64{
				types.IndexHS300: p1,
				types.IndexGold:  p2,
			})
			sum := 0.0
			for _, id := range types.AllIndexes() {
				assert.GreaterOrEqual(t, out[id], -types.WeightEps)
				sum += out[id]
			}
			assert.InDelta(t, 1.0, sum, 1e-9, "pcts %.2f/%.2f", p1, p2)
		}
	}
}

func TestTAAMissingPctKeepsSAA(t *testing.T) {
	saa := types.AssetWeight{types.IndexHS300: 0.5}.Normalize()
	h, err := NewTAAHelper(map[types.IndexID]*types.TAAParam{types.IndexHS300: taaParam()})
	require.NoError(t, err)

	out := h.OnPrice(types.Date(2020, 1, 2), saa, nil)
	assert.InDelta(t, 0.5, out[types.IndexHS300], 1e-9)
	assert.Equal(t, StatusNormal, h.Status(types.IndexHS300))
}

func TestTAAParamValidate(t *testing.T) {
	bad := &types.TAAParam{HighThreshold: 0.2, HighStop: 0.5, LowStop: 0.6, LowThreshold: 0.7}
	_, err := NewTAAHelper(map[types.IndexID]*types.TAAParam{types.IndexHS300: bad})
	assert.ErrorIs(t, err, types.ErrInvalidConfig)
}

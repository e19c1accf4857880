package trader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsxjacky/fund-backtest/pkg/types"
)

func TestBasicFundTraderSchedule(t *testing.T) {
	day0 := types.Date(2020, 1, 2)
	day2 := types.Date(2020, 1, 6)
	schedule := []WeightChange{
		{Date: day2, Weights: map[string]float64{"F1": 0.2, "F2": 0.5}},
		{Date: day0, Weights: map[string]float64{"F1": 0.5}},
	}
	tr, err := NewBasicFundTrader(noFeeParam(), stubCal{}, schedule, nil)
	require.NoError(t, err)

	ctx := newCtx(day0)
	ctx.UnitNAVs["F1"], ctx.UnitNAVs["F2"] = 1.0, 1.0
	pos := types.NewFundPosition(1000, day0)

	// 权重表乱序传入, 按日期顺序生效
	_, trades, trigger, _ := tr.CalcTrade(ctx, pos, nil)
	assert.Equal(t, types.TriggerExternalWeight, trigger)
	require.Len(t, trades, 1)
	assert.Equal(t, "F1", trades[0].FundID)
	assert.InDelta(t, 500, trades[0].Amount, 1e-9)

	// 下一期未到, 不动
	ctx.Day = day0.AddDate(0, 0, 1)
	_, trades, trigger, _ = tr.CalcTrade(ctx, pos, nil)
	assert.Equal(t, types.TriggerNone, trigger)
	assert.Empty(t, trades)

	// 到期生效一次
	ctx.Day = day2
	pos.Funds["F1"] = &types.FundPositionItem{FundID: "F1", IndexID: types.IndexHS300, Volume: 500, LastUnitNAV: 1.0}
	pos.Cash = 500
	_, trades, trigger, _ = tr.CalcTrade(ctx, pos, nil)
	assert.Equal(t, types.TriggerExternalWeight, trigger)
	require.Len(t, trades, 2)
	assert.False(t, trades[0].IsBuy, "trim of F1 settles before buy of F2")
	assert.Equal(t, "F1", trades[0].FundID)
	assert.InDelta(t, 300, trades[0].Volume, 1e-9)
	assert.Equal(t, "F2", trades[1].FundID)
	assert.InDelta(t, 500, trades[1].Amount, 1e-9)
}

func TestBasicFundTraderDefersOnNAVGap(t *testing.T) {
	day0 := types.Date(2020, 1, 2)
	day1 := day0.AddDate(0, 0, 1)
	tr, err := NewBasicFundTrader(noFeeParam(), stubCal{},
		[]WeightChange{{Date: day0, Weights: map[string]float64{"F2": 0.5}}}, nil)
	require.NoError(t, err)

	pos := types.NewFundPosition(1000, day0)

	// 生效日 F2 净值缺失, 本期权重顺延而非被消耗
	ctx := newCtx(day0)
	_, trades, trigger, _ := tr.CalcTrade(ctx, pos, nil)
	assert.Equal(t, types.TriggerNone, trigger)
	assert.Empty(t, trades)

	// 次日净值恢复, 调仓照常生效
	ctx = newCtx(day1)
	ctx.UnitNAVs["F2"] = 1.0
	_, trades, trigger, detail := tr.CalcTrade(ctx, pos, nil)
	assert.Equal(t, types.TriggerExternalWeight, trigger)
	require.Len(t, trades, 1)
	assert.InDelta(t, 500, trades[0].Amount, 1e-9)
	assert.Contains(t, detail, "2020-01-02", "detail keeps the scheduled date")

	// 本期仅生效一次
	ctx.Day = day1.AddDate(0, 0, 1)
	_, trades, trigger, _ = tr.CalcTrade(ctx, pos, nil)
	assert.Equal(t, types.TriggerNone, trigger)
	assert.Empty(t, trades)
}

func TestBasicFundTraderValidation(t *testing.T) {
	day := types.Date(2020, 1, 2)

	_, err := NewBasicFundTrader(noFeeParam(), stubCal{},
		[]WeightChange{{Date: day, Weights: map[string]float64{"F1": -0.1}}}, nil)
	assert.ErrorIs(t, err, types.ErrInvalidConfig)

	_, err = NewBasicFundTrader(noFeeParam(), stubCal{},
		[]WeightChange{{Date: day, Weights: map[string]float64{"F1": 0.7, "F2": 0.6}}}, nil)
	assert.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestBasicFundTraderWeightDerivation(t *testing.T) {
	day := types.Date(2020, 1, 2)
	tr, err := NewBasicFundTrader(noFeeParam(), stubCal{},
		[]WeightChange{{Date: day, Weights: map[string]float64{"F1": 0.3, "F2": 0.3, "G1": 0.2}}}, nil)
	require.NoError(t, err)

	ctx := newCtx(day)
	fw := tr.toFundWeight(ctx, map[string]float64{"F1": 0.3, "F2": 0.3, "G1": 0.2})
	require.NoError(t, fw.Validate())
	assert.InDelta(t, 0.6, fw.Items["F1"].AssetWgt, 1e-9, "asset weight summed from funds of the class")
	assert.InDelta(t, 0.5, fw.Items["F1"].FundWgtInAsset, 1e-9)
	assert.InDelta(t, 1.0, fw.Items["G1"].FundWgtInAsset, 1e-9)
}

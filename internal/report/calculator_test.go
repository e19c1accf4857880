package report

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsxjacky/fund-backtest/pkg/types"
)

func dailySeries(start time.Time, mvs ...float64) []MVPoint {
	out := make([]MVPoint, len(mvs))
	for i, mv := range mvs {
		out[i] = MVPoint{Date: start.AddDate(0, 0, i), MV: mv}
	}
	return out
}

func TestCalcStatEmpty(t *testing.T) {
	_, err := CalcStat(nil, 0.025)
	assert.ErrorIs(t, err, types.ErrFatalInput)
}

func TestCalcStatSinglePoint(t *testing.T) {
	res, err := CalcStat([]MVPoint{{Date: types.Date(2020, 1, 2), MV: 100}}, 0.025)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Days)
	assert.InDelta(t, 1.0, res.LastUnitNAV, 1e-12)
	assert.InDelta(t, 0.0, res.AnnualRet, 1e-12)
	assert.False(t, Defined(res.AnnualVol), "volatility needs at least 3 points")
	assert.False(t, Defined(res.Sharpe))
	assert.False(t, Defined(res.LastMVDiff))
	assert.InDelta(t, 0.0, res.MDD, 1e-12)
}

func TestCalcStatFlatSeries(t *testing.T) {
	series := dailySeries(types.Date(2020, 1, 1), 100, 100, 100, 100, 100)
	res, err := CalcStat(series, 0.025)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, res.AnnualRet, 1e-12)
	assert.InDelta(t, 0.0, res.AnnualVol, 1e-12)
	assert.False(t, Defined(res.Sharpe), "zero volatility leaves sharpe undefined")
	assert.InDelta(t, 0.0, res.MDD, 1e-12)
	assert.False(t, Defined(res.RetOverMdd))
}

func TestCalcStatAnnualizedReturn(t *testing.T) {
	// 244个交易日市值翻倍, 年化收益率恰为100%
	series := make([]MVPoint, types.TradingDaysPerYear)
	start := types.Date(2020, 1, 1)
	ratio := math.Pow(2, 1.0/float64(types.TradingDaysPerYear-1))
	mv := 100.0
	for i := range series {
		series[i] = MVPoint{Date: start.AddDate(0, 0, i), MV: mv}
		mv *= ratio
	}
	res, err := CalcStat(series, 0.025)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.AnnualRet, 1e-9)
	assert.InDelta(t, 0.0, res.AnnualVol, 1e-9, "constant growth has zero vol")
}

func TestMaxDrawdown(t *testing.T) {
	start := types.Date(2020, 1, 1)
	series := dailySeries(start, 100, 120, 90, 110, 130, 100)
	res, err := CalcStat(series, 0.025)
	require.NoError(t, err)

	assert.InDelta(t, 0.25, res.MDD, 1e-12)
	assert.Equal(t, start.AddDate(0, 0, 1), res.MddDate1, "drawdown starts at the peak")
	assert.Equal(t, start.AddDate(0, 0, 2), res.MddDate2)
}

func TestRecentRets(t *testing.T) {
	start := types.Date(2020, 6, 1)
	mvs := make([]float64, 30)
	for i := range mvs {
		mvs[i] = 100 + float64(i)
	}
	res, err := CalcStat(dailySeries(start, mvs...), 0.025)
	require.NoError(t, err)

	// 期末 2020-06-30 市值129, 一周前 2020-06-23 市值122
	require.True(t, Defined(res.RecentRets["1w"]))
	assert.InDelta(t, 129.0/122.0-1, res.RecentRets["1w"], 1e-12)
	assert.False(t, Defined(res.RecentRets["5y"]), "series shorter than window")
}

func TestVolByResample(t *testing.T) {
	// 90个自然日, 市值随机走但正负交替, 周/月重采样后序列变短
	start := types.Date(2020, 1, 1)
	mvs := make([]float64, 90)
	mv := 100.0
	for i := range mvs {
		if i%2 == 0 {
			mv *= 1.01
		} else {
			mv *= 0.995
		}
		mvs[i] = mv
	}
	res, err := CalcStat(dailySeries(start, mvs...), 0.025)
	require.NoError(t, err)
	assert.True(t, Defined(res.AnnualVol))
	assert.True(t, Defined(res.VolByWeek))
	assert.True(t, Defined(res.VolByMonth))
	assert.Greater(t, res.AnnualVol, res.VolByWeek, "alternating noise mostly cancels within a week")
}

func TestSafeDivGuards(t *testing.T) {
	assert.False(t, Defined(safeDiv(1, 0)))
	assert.False(t, Defined(safeDiv(math.NaN(), 2)))
	assert.InDelta(t, 0.5, safeDiv(1, 2), 1e-12)
}

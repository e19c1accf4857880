// Package report 记录回测逐日状态并计算绩效统计
package report

import (
	"fmt"
	"math"
	"time"

	"github.com/opsxjacky/fund-backtest/pkg/types"
)

// 周期重采样的年化倍数
const (
	weeksPerYear  = 52
	monthsPerYear = 12
)

// StatResult 市值序列统计. 无法计算的指标为 NaN, 用 Defined 判断
type StatResult struct {
	StartDate        time.Time
	EndDate          time.Time
	Days             int
	InitialMV        float64
	FinalMV          float64
	LastUnitNAV      float64 // 期末净值 = 期末市值/期初市值
	AnnualRet        float64
	AnnualVol        float64
	Sharpe           float64
	MDD              float64
	MddDate1         time.Time
	MddDate2         time.Time
	RetOverMdd       float64
	VolByWeek        float64
	VolByMonth       float64
	LastMVDiff       float64            // 最后一日市值变动
	LastIncreaseRate float64            // 最后一日涨幅
	RecentRets       map[string]float64 // 1w/1m/3m/6m/1y/3y/5y
}

// Defined 指标是否可用
func Defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// MVPoint 市值曲线上的一个点
type MVPoint struct {
	Date time.Time
	MV   float64
}

// CalcStat 计算市值序列的全部统计指标
func CalcStat(series []MVPoint, riskFree float64) (*StatResult, error) {
	n := len(series)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty market value series", types.ErrFatalInput)
	}
	res := &StatResult{
		StartDate:  series[0].Date,
		EndDate:    series[n-1].Date,
		Days:       n,
		InitialMV:  series[0].MV,
		FinalMV:    series[n-1].MV,
		RecentRets: make(map[string]float64),
	}

	res.LastUnitNAV = safeDiv(res.FinalMV, res.InitialMV)
	if n >= 2 {
		res.LastMVDiff = series[n-1].MV - series[n-2].MV
		res.LastIncreaseRate = safeDiv(series[n-1].MV, series[n-2].MV) - 1
	} else {
		res.LastMVDiff = math.NaN()
		res.LastIncreaseRate = math.NaN()
	}

	res.AnnualRet = annualizedRet(res.InitialMV, res.FinalMV, n)
	res.AnnualVol = annualizedVol(values(series), types.TradingDaysPerYear)
	res.Sharpe = safeDiv(res.AnnualRet-riskFree, res.AnnualVol)
	res.MDD, res.MddDate1, res.MddDate2 = maxDrawdown(series)
	res.RetOverMdd = safeDiv(res.AnnualRet, res.MDD)
	res.VolByWeek = annualizedVol(values(resampleLast(series, weekKey)), weeksPerYear)
	res.VolByMonth = annualizedVol(values(resampleLast(series, monthKey)), monthsPerYear)

	for name, ago := range map[string]func(time.Time) time.Time{
		"1w": func(d time.Time) time.Time { return d.AddDate(0, 0, -7) },
		"1m": func(d time.Time) time.Time { return d.AddDate(0, -1, 0) },
		"3m": func(d time.Time) time.Time { return d.AddDate(0, -3, 0) },
		"6m": func(d time.Time) time.Time { return d.AddDate(0, -6, 0) },
		"1y": func(d time.Time) time.Time { return d.AddDate(-1, 0, 0) },
		"3y": func(d time.Time) time.Time { return d.AddDate(-3, 0, 0) },
		"5y": func(d time.Time) time.Time { return d.AddDate(-5, 0, 0) },
	} {
		res.RecentRets[name] = recentRet(series, ago(res.EndDate))
	}
	return res, nil
}

// annualizedRet (期末/期初)^(244/N) - 1
func annualizedRet(initial, final float64, n int) float64 {
	if initial <= 0 || final <= 0 || n == 0 {
		return math.NaN()
	}
	return math.Pow(final/initial, float64(types.TradingDaysPerYear)/float64(n)) - 1
}

// annualizedVol 对数收益率标准差 * sqrt(年化倍数)
func annualizedVol(mv []float64, periodsPerYear float64) float64 {
	rets := make([]float64, 0, len(mv))
	for i := 1; i < len(mv); i++ {
		if mv[i-1] <= 0 || mv[i] <= 0 {
			return math.NaN()
		}
		rets = append(rets, math.Log(mv[i]/mv[i-1]))
	}
	if len(rets) < 2 {
		return math.NaN()
	}
	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	ss := 0.0
	for _, r := range rets {
		ss += (r - mean) * (r - mean)
	}
	std := math.Sqrt(ss / float64(len(rets)-1))
	return std * math.Sqrt(periodsPerYear)
}

// maxDrawdown 最大回撤与起止日期
func maxDrawdown(series []MVPoint) (float64, time.Time, time.Time) {
	if len(series) == 0 {
		return math.NaN(), time.Time{}, time.Time{}
	}
	peak := series[0].MV
	peakDate := series[0].Date
	mdd := 0.0
	var d1, d2 time.Time
	for _, p := range series {
		if p.MV > peak {
			peak = p.MV
			peakDate = p.Date
		}
		if peak <= 0 {
			return math.NaN(), time.Time{}, time.Time{}
		}
		dd := (peak - p.MV) / peak
		if dd > mdd {
			mdd = dd
			d1, d2 = peakDate, p.Date
		}
	}
	return mdd, d1, d2
}

// recentRet 区间收益: 找不晚于 target 的最近一日作为起点
func recentRet(series []MVPoint, target time.Time) float64 {
	var base float64
	found := false
	for _, p := range series {
		if p.Date.After(target) {
			break
		}
		base = p.MV
		found = true
	}
	if !found || base <= 0 {
		return math.NaN()
	}
	return series[len(series)-1].MV/base - 1
}

// resampleLast 按周期取每期最后一个点
func resampleLast(series []MVPoint, key func(time.Time) string) []MVPoint {
	var out []MVPoint
	last := ""
	for _, p := range series {
		k := key(p.Date)
		if k == last && len(out) > 0 {
			out[len(out)-1] = p
		} else {
			out = append(out, p)
			last = k
		}
	}
	return out
}

func weekKey(d time.Time) string {
	y, w := d.ISOWeek()
	return fmt.Sprintf("%d-%02d", y, w)
}

func monthKey(d time.Time) string {
	return d.Format("2006-01")
}

func values(series []MVPoint) []float64 {
	out := make([]float64, len(series))
	for i, p := range series {
		out[i] = p.MV
	}
	return out
}

func safeDiv(a, b float64) float64 {
	if b == 0 || math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	return a / b
}

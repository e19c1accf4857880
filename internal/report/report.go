package report

import (
	"time"

	"github.com/opsxjacky/fund-backtest/pkg/types"
)

// EventKind 当日事件类型
type EventKind string

const (
	EventDataMissing   EventKind = "data_missing"
	EventTradeRejected EventKind = "trade_rejected"
)

// Event 当日局部异常, 不中止回测, 随日记录留存
type Event struct {
	Kind   EventKind
	FundID string
	Detail string
}

// DayRecord 单日回测记录, 追加后不再修改
type DayRecord struct {
	Date          time.Time
	AssetPosition *types.AssetPosition
	FundPosition  *types.FundPosition
	Prices        types.AssetPrice
	NAVs          map[string]float64
	AssetMV       float64
	FundMV        float64
	FundTrades    []*types.FundTrade // 当日确认的基金交易 (含拒绝)
	AssetTrades   []*types.AssetTrade
	Trigger       types.TradeTrigger
	TriggerDetail string
	Events        []Event
}

// AssetResult 资产层回测结果
type AssetResult struct {
	*StatResult
	SAA             types.AssetWeight
	MarketValue     []MVPoint
	TotalCommission float64
	RebalanceTimes  int
}

// FundResult 基金层回测结果
type FundResult struct {
	*StatResult
	SAA               types.AssetWeight
	MarketValue       []MVPoint
	TotalCommission   float64
	RebalanceTimes    int
	TurnoverYearlyAvg float64            // 年均换手率: 年度买入额/年初市值的均值
	HoldYears         map[string]float64 // 每次调仓起的持有年数 (244交易日为一年)
}

// ReportHelper 逐日累积回测状态, 按需给出统计
type ReportHelper struct {
	saa            types.AssetWeight
	riskFree       float64
	records        []*DayRecord
	rebalanceDates []time.Time
	lastTarget     *types.FundWeight
}

// NewReportHelper 创建报告助手
func NewReportHelper(riskFree float64) *ReportHelper {
	return &ReportHelper{riskFree: riskFree}
}

// SetSAA 记录回测所用的战略权重, 附在结果上
func (r *ReportHelper) SetSAA(saa types.AssetWeight) {
	r.saa = saa.Copy()
}

// Update 追加一日记录
func (r *ReportHelper) Update(rec *DayRecord) {
	r.records = append(r.records, rec)
	if rec.Trigger != types.TriggerNone {
		r.rebalanceDates = append(r.rebalanceDates, rec.Date)
	}
}

// SetLastTargetAllocation 记录最近一次目标基金配置. 空目标不覆盖上一次
func (r *ReportHelper) SetLastTargetAllocation(fw *types.FundWeight) {
	if fw != nil && len(fw.Items) > 0 {
		r.lastTarget = fw.Copy()
	}
}

// GetLastTargetFundAllocation 最近一次目标基金配置
func (r *ReportHelper) GetLastTargetFundAllocation() *types.FundWeight {
	return r.lastTarget
}

// Records 全部日记录 (只读使用)
func (r *ReportHelper) Records() []*DayRecord { return r.records }

// LastRecord 最后一日记录, 尚无记录时返回 nil
func (r *ReportHelper) LastRecord() *DayRecord {
	if len(r.records) == 0 {
		return nil
	}
	return r.records[len(r.records)-1]
}

// RebalanceDates 调仓日列表
func (r *ReportHelper) RebalanceDates() []time.Time { return r.rebalanceDates }

// GetAssetEquityCurve 资产层市值曲线
func (r *ReportHelper) GetAssetEquityCurve() []MVPoint {
	out := make([]MVPoint, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, MVPoint{Date: rec.Date, MV: rec.AssetMV})
	}
	return out
}

// GetFundEquityCurve 基金层市值曲线
func (r *ReportHelper) GetFundEquityCurve() []MVPoint {
	out := make([]MVPoint, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, MVPoint{Date: rec.Date, MV: rec.FundMV})
	}
	return out
}

// GetFundMVSeries 单基金市值时间序列
func (r *ReportHelper) GetFundMVSeries(fundID string) []MVPoint {
	var out []MVPoint
	for _, rec := range r.records {
		if rec.FundPosition == nil {
			continue
		}
		if it, ok := rec.FundPosition.Funds[fundID]; ok {
			out = append(out, MVPoint{Date: rec.Date, MV: it.MarketValue()})
		}
	}
	return out
}

// GetFundTrades 已确认的基金交易表 (含拒绝), 按确认顺序
func (r *ReportHelper) GetFundTrades() []*types.FundTrade {
	var out []*types.FundTrade
	for _, rec := range r.records {
		out = append(out, rec.FundTrades...)
	}
	return out
}

// GetAssetTrades 资产层交易表
func (r *ReportHelper) GetAssetTrades() []*types.AssetTrade {
	var out []*types.AssetTrade
	for _, rec := range r.records {
		out = append(out, rec.AssetTrades...)
	}
	return out
}

// GetAssetResult 资产层统计
func (r *ReportHelper) GetAssetResult() (*AssetResult, error) {
	curve := r.GetAssetEquityCurve()
	stat, err := CalcStat(curve, r.riskFree)
	if err != nil {
		return nil, err
	}
	total := 0.0
	for _, tr := range r.GetAssetTrades() {
		total += tr.Commission
	}
	return &AssetResult{
		StatResult:      stat,
		SAA:             r.saa,
		MarketValue:     curve,
		TotalCommission: total,
		RebalanceTimes:  len(r.rebalanceDates),
	}, nil
}

// GetFundResult 基金层统计
func (r *ReportHelper) GetFundResult() (*FundResult, error) {
	curve := r.GetFundEquityCurve()
	stat, err := CalcStat(curve, r.riskFree)
	if err != nil {
		return nil, err
	}
	total := 0.0
	for _, tr := range r.GetFundTrades() {
		if tr.Status == types.TradeSettled {
			total += tr.Commission
		}
	}
	return &FundResult{
		StatResult:        stat,
		SAA:               r.saa,
		MarketValue:       curve,
		TotalCommission:   total,
		RebalanceTimes:    len(r.rebalanceDates),
		TurnoverYearlyAvg: r.turnoverYearlyAvg(curve),
		HoldYears:         r.holdYears(curve),
	}, nil
}

// turnoverYearlyAvg 年度买入额 / 年初市值, 对有交易的年份取平均
func (r *ReportHelper) turnoverYearlyAvg(curve []MVPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	buyByYear := make(map[int]float64)
	for _, tr := range r.GetFundTrades() {
		if tr.IsBuy && tr.Status == types.TradeSettled {
			buyByYear[tr.TradeDate.Year()] += tr.Amount
		}
	}
	if len(buyByYear) == 0 {
		return 0
	}
	beginMV := make(map[int]float64)
	for _, p := range curve {
		if _, ok := beginMV[p.Date.Year()]; !ok {
			beginMV[p.Date.Year()] = p.MV
		}
	}
	sum, n := 0.0, 0
	for year, amt := range buyByYear {
		if mv, ok := beginMV[year]; ok && mv > 0 {
			sum += amt / mv
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// holdYears 相邻调仓日之间的持有时长, 244个交易日折一年
func (r *ReportHelper) holdYears(curve []MVPoint) map[string]float64 {
	out := make(map[string]float64)
	if len(curve) == 0 || len(r.rebalanceDates) == 0 {
		return out
	}
	idxOf := make(map[time.Time]int, len(curve))
	for i, p := range curve {
		idxOf[p.Date] = i
	}
	marks := append(append([]time.Time{}, r.rebalanceDates...), curve[len(curve)-1].Date)
	for i := 0; i < len(marks)-1; i++ {
		i0, ok0 := idxOf[marks[i]]
		i1, ok1 := idxOf[marks[i+1]]
		if ok0 && ok1 && i1 >= i0 {
			out[marks[i].Format("2006-01-02")] = float64(i1-i0) / float64(types.TradingDaysPerYear)
		}
	}
	return out
}

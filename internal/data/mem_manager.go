package data

import (
	"sort"
	"time"

	"github.com/opsxjacky/fund-backtest/pkg/types"
)

// MemManager 内存数据管理器, 供嵌入式调用方与测试直接填充数据
type MemManager struct {
	days       []time.Time
	indexPrice map[time.Time]types.AssetPrice
	indexPct   map[time.Time]map[types.IndexID]float64
	fundNAV    map[time.Time]map[string]float64
	fundUnit   map[time.Time]map[string]float64
	fees       map[string]*types.FeeSchedule
	infos      map[string]*types.FundInfo
	indicators map[time.Time]map[string]map[string]float64
	indDays    []time.Time
	mgrScores  map[time.Time]map[string]float64
	mgrDays    []time.Time
	suspended  map[time.Time]map[string]bool
}

// NewMemManager 创建空的内存数据管理器
func NewMemManager() *MemManager {
	return &MemManager{
		indexPrice: make(map[time.Time]types.AssetPrice),
		indexPct:   make(map[time.Time]map[types.IndexID]float64),
		fundNAV:    make(map[time.Time]map[string]float64),
		fundUnit:   make(map[time.Time]map[string]float64),
		fees:       make(map[string]*types.FeeSchedule),
		infos:      make(map[string]*types.FundInfo),
		indicators: make(map[time.Time]map[string]map[string]float64),
		mgrScores:  make(map[time.Time]map[string]float64),
		suspended:  make(map[time.Time]map[string]bool),
	}
}

// SetTradingDays 设置交易日历
func (m *MemManager) SetTradingDays(days []time.Time) {
	m.days = make([]time.Time, len(days))
	copy(m.days, days)
	sort.Slice(m.days, func(i, j int) bool { return m.days[i].Before(m.days[j]) })
}

// SetIndexPrice 设置某日价格
func (m *MemManager) SetIndexPrice(day time.Time, id types.IndexID, price float64) {
	if m.indexPrice[day] == nil {
		m.indexPrice[day] = make(types.AssetPrice)
	}
	m.indexPrice[day][id] = price
}

// SetIndexPct 设置某日估值百分位
func (m *MemManager) SetIndexPct(day time.Time, id types.IndexID, pct float64) {
	if m.indexPct[day] == nil {
		m.indexPct[day] = make(map[types.IndexID]float64)
	}
	m.indexPct[day][id] = pct
}

// SetFundNAV 设置某日复权净值与单位净值
func (m *MemManager) SetFundNAV(day time.Time, fundID string, nav, unitNav float64) {
	if m.fundNAV[day] == nil {
		m.fundNAV[day] = make(map[string]float64)
		m.fundUnit[day] = make(map[string]float64)
	}
	m.fundNAV[day][fundID] = nav
	m.fundUnit[day][fundID] = unitNav
}

// SetFundInfo 设置基金元信息
func (m *MemManager) SetFundInfo(info *types.FundInfo) {
	m.infos[info.FundID] = info
}

// SetFundFee 设置基金费率
func (m *MemManager) SetFundFee(fundID string, fee *types.FeeSchedule) {
	m.fees[fundID] = fee
}

// SetIndicator 设置某日基金打分指标
func (m *MemManager) SetIndicator(day time.Time, fundID, metric string, value float64) {
	if m.indicators[day] == nil {
		m.indicators[day] = make(map[string]map[string]float64)
		m.indDays = append(m.indDays, day)
		sort.Slice(m.indDays, func(i, j int) bool { return m.indDays[i].Before(m.indDays[j]) })
	}
	if m.indicators[day][fundID] == nil {
		m.indicators[day][fundID] = make(map[string]float64)
	}
	m.indicators[day][fundID][metric] = value
}

// SetManagerScore 设置某日基金经理得分
func (m *MemManager) SetManagerScore(day time.Time, manager string, score float64) {
	if m.mgrScores[day] == nil {
		m.mgrScores[day] = make(map[string]float64)
		m.mgrDays = append(m.mgrDays, day)
		sort.Slice(m.mgrDays, func(i, j int) bool { return m.mgrDays[i].Before(m.mgrDays[j]) })
	}
	m.mgrScores[day][manager] = score
}

// SetSuspended 标记某日暂停申购
func (m *MemManager) SetSuspended(day time.Time, fundID string) {
	if m.suspended[day] == nil {
		m.suspended[day] = make(map[string]bool)
	}
	m.suspended[day][fundID] = true
}

// TradingDays 交易日历
func (m *MemManager) TradingDays() []time.Time { return m.days }

// NextTradingDay 日期 d 之后第 n 个交易日
func (m *MemManager) NextTradingDay(d time.Time, n int) (time.Time, bool) {
	return nextTradingDay(m.days, d, n)
}

// IndexPriceOn 当日价格
func (m *MemManager) IndexPriceOn(day time.Time) types.AssetPrice {
	if p, ok := m.indexPrice[day]; ok {
		return p.Copy()
	}
	return types.AssetPrice{}
}

// IndexPctOn 当日估值百分位
func (m *MemManager) IndexPctOn(day time.Time) map[types.IndexID]float64 {
	out := make(map[types.IndexID]float64)
	for k, v := range m.indexPct[day] {
		out[k] = v
	}
	return out
}

// FundNAVOn 当日复权净值
func (m *MemManager) FundNAVOn(day time.Time) map[string]float64 {
	return copyFloatMap(m.fundNAV[day])
}

// FundUnitNAVOn 当日单位净值
func (m *MemManager) FundUnitNAVOn(day time.Time) map[string]float64 {
	return copyFloatMap(m.fundUnit[day])
}

// FundFees 费率表
func (m *MemManager) FundFees() map[string]*types.FeeSchedule { return m.fees }

// FundInfos 基金元信息
func (m *MemManager) FundInfos() map[string]*types.FundInfo { return m.infos }

// FundEndDates 基金到期日
func (m *MemManager) FundEndDates() map[string]time.Time {
	out := make(map[string]time.Time)
	for id, info := range m.infos {
		if !info.EndDate.IsZero() {
			out[id] = info.EndDate
		}
	}
	return out
}

// AllFunds 基金全集, 升序
func (m *MemManager) AllFunds() []string {
	out := make([]string, 0, len(m.infos))
	for id := range m.infos {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SuspendedOn 当日暂停申购的基金
func (m *MemManager) SuspendedOn(day time.Time) map[string]bool {
	return m.suspended[day]
}

// FundScoresOn 当日基金得分. 指标缺当日数据时回溯最近一期
func (m *MemManager) FundScoresOn(day time.Time, sel ScoreSelect) (filtered, raw map[types.IndexID]map[string]float64) {
	filtered = make(map[types.IndexID]map[string]float64)
	raw = make(map[types.IndexID]map[string]float64)

	ind := m.indicatorsAsOf(day)
	if ind == nil {
		return filtered, raw
	}

	for _, fundID := range m.AllFunds() {
		info := m.infos[fundID]
		fn := sel[info.IndexID]
		if fn == nil {
			continue
		}
		metrics, ok := ind[fundID]
		if !ok {
			continue
		}
		v, ok := fn.Evaluate(metrics)
		if !ok {
			continue
		}
		if raw[info.IndexID] == nil {
			raw[info.IndexID] = make(map[string]float64)
		}
		raw[info.IndexID][fundID] = v
		if info.Expired(day) {
			continue
		}
		if filtered[info.IndexID] == nil {
			filtered[info.IndexID] = make(map[string]float64)
		}
		filtered[info.IndexID][fundID] = v
	}
	return filtered, raw
}

// ManagerScoresOn 当日基金经理得分. scores 为最近一期原始得分,
// managerFunds 为经理到在管基金的映射, cleaned 只保留仍有在管未到期基金的经理
func (m *MemManager) ManagerScoresOn(day time.Time) (scores map[string]float64,
	managerFunds map[string][]string, cleaned map[string]float64) {

	scores = make(map[string]float64)
	managerFunds = make(map[string][]string)
	cleaned = make(map[string]float64)

	idx := sort.Search(len(m.mgrDays), func(i int) bool { return m.mgrDays[i].After(day) })
	if idx > 0 {
		for mgr, v := range m.mgrScores[m.mgrDays[idx-1]] {
			scores[mgr] = v
		}
	}
	for _, fundID := range m.AllFunds() {
		info := m.infos[fundID]
		if info.Manager == "" || info.Expired(day) {
			continue
		}
		managerFunds[info.Manager] = append(managerFunds[info.Manager], fundID)
	}
	for mgr, v := range scores {
		if len(managerFunds[mgr]) > 0 {
			cleaned[mgr] = v
		}
	}
	return scores, managerFunds, cleaned
}

// indicatorsAsOf 最近一期 (≤ day) 的指标
func (m *MemManager) indicatorsAsOf(day time.Time) map[string]map[string]float64 {
	idx := sort.Search(len(m.indDays), func(i int) bool { return m.indDays[i].After(day) })
	if idx == 0 {
		return nil
	}
	return m.indicators[m.indDays[idx-1]]
}

func copyFloatMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

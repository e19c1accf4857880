package data

import (
	"sort"
	"time"

	"github.com/opsxjacky/fund-backtest/internal/score"
	"github.com/opsxjacky/fund-backtest/pkg/types"
)

// ScoreSelect 每个大类使用的打分函数
type ScoreSelect map[types.IndexID]*score.Func

// Manager 数据管理器接口, 为回测提供任意交易日的行情/净值/费率/打分数据.
// 回测运行期间数据只读
type Manager interface {
	// TradingDays 升序交易日历
	TradingDays() []time.Time

	// NextTradingDay 日期 d 之后第 n 个交易日
	NextTradingDay(d time.Time, n int) (time.Time, bool)

	// IndexPriceOn 当日大类资产价格
	IndexPriceOn(day time.Time) types.AssetPrice

	// IndexPctOn 当日大类估值百分位, 取值 [0,1]
	IndexPctOn(day time.Time) map[types.IndexID]float64

	// FundNAVOn 当日复权净值
	FundNAVOn(day time.Time) map[string]float64

	// FundUnitNAVOn 当日单位净值
	FundUnitNAVOn(day time.Time) map[string]float64

	// FundFees 申赎费率表
	FundFees() map[string]*types.FeeSchedule

	// FundScoresOn 当日基金得分, 按大类分组.
	// filtered 剔除到期基金, raw 保留全部可计算的基金
	FundScoresOn(day time.Time, sel ScoreSelect) (filtered, raw map[types.IndexID]map[string]float64)

	// ManagerScoresOn 当日基金经理得分: 最近一期原始得分,
	// 经理到在管基金的映射, 以及只保留仍有在管基金的经理的得分
	ManagerScoresOn(day time.Time) (scores map[string]float64,
		managerFunds map[string][]string, cleaned map[string]float64)

	// FundInfos 基金元信息
	FundInfos() map[string]*types.FundInfo

	// FundEndDates 基金到期日
	FundEndDates() map[string]time.Time

	// AllFunds 基金全集, 升序
	AllFunds() []string

	// SuspendedOn 当日暂停申购的基金
	SuspendedOn(day time.Time) map[string]bool
}

// nextTradingDay 在升序日历上找 d 之后第 n 个交易日
func nextTradingDay(days []time.Time, d time.Time, n int) (time.Time, bool) {
	idx := sort.Search(len(days), func(i int) bool { return days[i].After(d) })
	idx += n - 1
	if n <= 0 || idx < 0 || idx >= len(days) {
		return time.Time{}, false
	}
	return days[idx], true
}

// daysInRange 过滤出 [start, end] 内的交易日
func daysInRange(days []time.Time, start, end time.Time) []time.Time {
	out := make([]time.Time, 0, len(days))
	for _, d := range days {
		if !d.Before(start) && !d.After(end) {
			out = append(out, d)
		}
	}
	return out
}

// DaysInRange 导出给引擎使用
func DaysInRange(days []time.Time, start, end time.Time) []time.Time {
	return daysInRange(days, start, end)
}

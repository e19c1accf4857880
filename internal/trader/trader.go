// Package trader 把目标权重转成可执行的申赎交易, 并负责 T+N 确认.
// 交易员只改动持仓, 不感知数据管理器与引擎
package trader

import (
	"time"

	"github.com/opsxjacky/fund-backtest/pkg/types"
)

// Calendar 交易日历, 用于推算确认日
type Calendar interface {
	NextTradingDay(d time.Time, n int) (time.Time, bool)
}

// Helper 基金选择助手的窄接口, 提交前复核黑名单用
type Helper interface {
	Blacklisted(fundID string) bool
}

// TradeContext 当日交易所需的数据快照
type TradeContext struct {
	Day        time.Time
	Prices     types.AssetPrice
	NAVs       map[string]float64 // 复权净值
	UnitNAVs   map[string]float64 // 单位净值, 申赎按此计价
	Scores     map[types.IndexID]map[string]float64
	Infos      map[string]*types.FundInfo
	Fees       map[string]*types.FeeSchedule
	Overheated []types.IndexID // 当日TAA过热清减的资产
}

// info 查元信息, 缺失时按普通 T+1 基金处理
func (c *TradeContext) info(fundID string) *types.FundInfo {
	if f, ok := c.Infos[fundID]; ok {
		return f
	}
	return &types.FundInfo{FundID: fundID}
}

// fee 查费率, 缺失时按零费率
func (c *TradeContext) fee(fundID string) *types.FeeSchedule {
	if f, ok := c.Fees[fundID]; ok {
		return f
	}
	return &types.FeeSchedule{}
}

// holdingDays 自然日持有天数, 赎回费按此取档
func holdingDays(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

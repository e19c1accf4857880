package trader

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/opsxjacky/fund-backtest/pkg/types"
)

// WeightChange 外部指定的一期目标基金权重
type WeightChange struct {
	Date    time.Time
	Weights map[string]float64 // fund_id -> 组合内权重
}

// BasicFundTrader 按外部权重表调仓的交易员.
// 到达权重表中的日期即触发调仓, 不做任何策略判断
type BasicFundTrader struct {
	inner    *FundTrader
	schedule []WeightChange
	applied  int
}

// NewBasicFundTrader 创建外部权重交易员, 权重表按日期升序执行
func NewBasicFundTrader(param types.FundTradeParam, cal Calendar,
	schedule []WeightChange, logger *zap.Logger) (*BasicFundTrader, error) {

	sorted := make([]WeightChange, len(schedule))
	copy(sorted, schedule)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	for _, wc := range sorted {
		sum := 0.0
		for id, w := range wc.Weights {
			if w < 0 {
				return nil, fmt.Errorf("%w: negative weight for fund %s", types.ErrInvalidConfig, id)
			}
			sum += w
		}
		if sum > 1+types.WeightEps {
			return nil, fmt.Errorf("%w: fund weights on %s sum to %.6f", types.ErrInvalidConfig,
				wc.Date.Format("2006-01-02"), sum)
		}
	}
	return &BasicFundTrader{
		inner:    NewFundTrader(param, cal, logger),
		schedule: sorted,
	}, nil
}

// SetHelper 挂接基金选择助手
func (t *BasicFundTrader) SetHelper(h Helper) { t.inner.SetHelper(h) }

// CalcTrade 权重表到期则生成调仓交易, 否则不动.
// 目标基金当日净值缺失时该期权重顺延到下一交易日重试, 不被消耗
func (t *BasicFundTrader) CalcTrade(ctx *TradeContext, cur *types.FundPosition, pending []*types.FundTrade) (*types.FundPosition, []*types.FundTrade, types.TradeTrigger, string) {
	if t.applied >= len(t.schedule) || t.schedule[t.applied].Date.After(ctx.Day) {
		return nil, nil, types.TriggerNone, ""
	}
	wc := t.schedule[t.applied]
	target := t.toFundWeight(ctx, wc.Weights)
	for _, id := range target.SortedFundIDs() {
		if nav, ok := ctx.UnitNAVs[id]; !ok || nav <= 0 {
			t.inner.logger.Warn("external weight deferred, unit nav missing",
				zap.String("fund_id", id), zap.Time("day", ctx.Day))
			return nil, nil, types.TriggerNone, ""
		}
	}
	t.applied++

	eff := cur
	if len(pending) > 0 {
		eff = t.inner.applyVirtual(ctx, cur, pending)
	}
	trades := t.inner.buildTrades(ctx, target, eff)
	if len(trades) == 0 {
		return nil, nil, types.TriggerNone, ""
	}
	virtual := t.inner.applyVirtual(ctx, eff, trades)
	detail := fmt.Sprintf("external weights effective %s", wc.Date.Format("2006-01-02"))
	return virtual, trades, types.TriggerExternalWeight, detail
}

// toFundWeight 把 fund_id -> 权重 表补全成带大类信息的目标权重
func (t *BasicFundTrader) toFundWeight(ctx *TradeContext, weights map[string]float64) *types.FundWeight {
	ids := make([]string, 0, len(weights))
	for id := range weights {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	assetSum := make(types.AssetWeight)
	for _, id := range ids {
		assetSum[ctx.info(id).IndexID] += weights[id]
	}

	fw := types.NewFundWeight()
	for _, id := range ids {
		w := weights[id]
		if w <= 0 {
			continue
		}
		indexID := ctx.info(id).IndexID
		inAsset := 1.0
		if assetSum[indexID] > 0 {
			inAsset = w / assetSum[indexID]
		}
		_ = fw.Add(&types.FundWeightItem{
			FundID:         id,
			IndexID:        indexID,
			FundWgt:        w,
			AssetWgt:       assetSum[indexID],
			FundWgtInAsset: inAsset,
		})
	}
	return fw
}

// FinalizeTrade 结算在途交易
func (t *BasicFundTrader) FinalizeTrade(day time.Time, pending []*types.FundTrade,
	pos *types.FundPosition, unitNavs map[string]float64, suspended map[string]bool,
	fees map[string]*types.FeeSchedule) ([]*types.FundTrade, []*types.FundTrade) {
	return t.inner.FinalizeTrade(day, pending, pos, unitNavs, suspended, fees)
}

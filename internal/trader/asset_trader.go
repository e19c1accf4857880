package trader

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/opsxjacky/fund-backtest/pkg/types"
)

// AssetTrader 大类资产层交易员. 直接按市值调仓, 只有固定佣金,
// 只看大类偏离一个触发条件, 当日成交
type AssetTrader struct {
	param  types.AssetTradeParam
	logger *zap.Logger
}

// NewAssetTrader 创建资产交易员
func NewAssetTrader(param types.AssetTradeParam, logger *zap.Logger) *AssetTrader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssetTrader{param: param, logger: logger}
}

// CalcTrade 偏离超阈值时按目标权重调仓, 卖先买后, 当日确认
func (t *AssetTrader) CalcTrade(day time.Time, target types.AssetWeight,
	cur *types.AssetPosition, prices types.AssetPrice) ([]*types.AssetTrade, types.TradeTrigger, string) {

	curW := cur.Weights()
	maxDiff, maxID := 0.0, types.IndexID("")
	for _, id := range types.AllIndexes() {
		if id == types.IndexCash {
			continue
		}
		diff := absf(curW[id] - target[id])
		if diff > maxDiff {
			maxDiff, maxID = diff, id
		}
	}
	if maxDiff <= t.param.AssetDiffThreshold {
		return nil, types.TriggerNone, ""
	}
	detail := fmt.Sprintf("%s drift %.4f > %.4f", maxID, maxDiff, t.param.AssetDiffThreshold)

	totalMV := cur.MarketValue()
	if totalMV <= 0 {
		return nil, types.TriggerNone, ""
	}

	var sells, buys []*types.AssetTrade
	for _, id := range types.AllIndexes() {
		if id == types.IndexCash {
			continue
		}
		diff := totalMV*target[id] - cur.Assets[id]
		if absf(diff)/totalMV < t.param.MinCountedRatio {
			continue
		}
		tr := &types.AssetTrade{
			IndexID:    id,
			IsBuy:      diff > 0,
			SubmitDate: day,
			TradeDate:  day,
			Amount:     absf(diff),
			MarkPrice:  prices[id],
			Status:     types.TradeSettled,
		}
		if t.param.EnableCommission {
			tr.Commission = tr.Amount * t.param.CommissionRate
		}
		if tr.IsBuy {
			buys = append(buys, tr)
		} else {
			sells = append(sells, tr)
		}
	}

	trades := append(sells, buys...)
	for _, tr := range trades {
		t.apply(cur, tr)
	}
	return trades, types.TriggerAssetDrift, detail
}

// apply 当日成交: 卖出回笼现金, 买入占用现金, 佣金从现金扣除.
// 现金不足以覆盖买入额加佣金时按可用现金缩量, 佣金按实际成交额重算
func (t *AssetTrader) apply(pos *types.AssetPosition, tr *types.AssetTrade) {
	if tr.IsBuy {
		afford := pos.Cash
		if t.param.EnableCommission {
			afford = pos.Cash / (1 + t.param.CommissionRate)
		}
		if tr.Amount > afford {
			tr.Amount = afford
			if t.param.EnableCommission {
				tr.Commission = tr.Amount * t.param.CommissionRate
			}
		}
		pos.Assets[tr.IndexID] += tr.Amount
		pos.Cash -= tr.Amount + tr.Commission
	} else {
		amt := minf(tr.Amount, pos.Assets[tr.IndexID])
		if amt < tr.Amount {
			tr.Amount = amt
			if t.param.EnableCommission {
				tr.Commission = amt * t.param.CommissionRate
			}
		}
		pos.Assets[tr.IndexID] -= amt
		pos.Cash += amt - tr.Commission
	}
}

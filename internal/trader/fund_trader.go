package trader

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/opsxjacky/fund-backtest/pkg/types"
)

// FundTrader 基金层交易员. 比较当前持仓与目标权重, 判断调仓触发条件,
// 生成申赎交易并在确认日结算
type FundTrader struct {
	param  types.FundTradeParam
	cal    Calendar
	helper Helper
	logger *zap.Logger
}

// NewFundTrader 创建基金交易员
func NewFundTrader(param types.FundTradeParam, cal Calendar, logger *zap.Logger) *FundTrader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FundTrader{param: param, cal: cal, logger: logger}
}

// SetHelper 挂接基金选择助手 (仅用于提交前黑名单复核)
func (t *FundTrader) SetHelper(h Helper) { t.helper = h }

// CalcTrade 计算当日交易. 在途交易按参考净值视同已成交后再判断触发与生成,
// 避免确认前对同一偏离重复下单. 无触发条件时返回空交易表
func (t *FundTrader) CalcTrade(ctx *TradeContext, targetFund *types.FundWeight,
	targetAsset types.AssetWeight, cur *types.FundPosition, pending []*types.FundTrade) (*types.FundPosition, []*types.FundTrade, types.TradeTrigger, string) {

	eff := cur
	if len(pending) > 0 {
		eff = t.applyVirtual(ctx, cur, pending)
	}

	trigger, detail := t.judgeTrigger(ctx, targetFund, targetAsset, eff)
	if trigger == types.TriggerNone {
		return nil, nil, trigger, ""
	}

	trades := t.buildTrades(ctx, targetFund, eff)
	if len(trades) == 0 {
		return nil, nil, types.TriggerNone, ""
	}
	virtual := t.applyVirtual(ctx, eff, trades)
	return virtual, trades, trigger, detail
}

// judgeTrigger 调仓触发判断, 任一满足即触发, 按固定顺序取第一个命中的原因
func (t *FundTrader) judgeTrigger(ctx *TradeContext, targetFund *types.FundWeight,
	targetAsset types.AssetWeight, cur *types.FundPosition) (types.TradeTrigger, string) {

	// 持仓基金到期或进黑名单
	for _, id := range cur.SortedFundIDs() {
		it := cur.Funds[id]
		if it.Volume <= 0 {
			continue
		}
		if ctx.info(id).Expired(ctx.Day) {
			return types.TriggerFundExpiry, fmt.Sprintf("fund %s expired", id)
		}
		if t.helper != nil && t.helper.Blacklisted(id) {
			return types.TriggerFundExpiry, fmt.Sprintf("fund %s blacklisted", id)
		}
	}

	// TAA当日过热清减
	if len(ctx.Overheated) > 0 {
		return types.TriggerTAAOverheated, fmt.Sprintf("overheated assets: %v", ctx.Overheated)
	}

	// 大类偏离
	curW := cur.AssetWeights()
	maxDiff, maxID := 0.0, types.IndexID("")
	for _, id := range types.AllIndexes() {
		if id == types.IndexCash {
			continue
		}
		diff := absf(curW[id] - targetAsset[id])
		if diff > maxDiff {
			maxDiff, maxID = diff, id
		}
	}
	if maxDiff > t.param.JudgeIndexDiff {
		return types.TriggerAssetDrift, fmt.Sprintf("%s drift %.4f > %.4f", maxID, maxDiff, t.param.JudgeIndexDiff)
	}

	// 持仓基金得分排名劣化
	for _, id := range cur.SortedFundIDs() {
		it := cur.Funds[id]
		if it.Volume <= 0 {
			continue
		}
		if pct, ok := rankPct(id, ctx.Scores[it.IndexID]); ok && pct > t.param.JudgeFundSelection {
			return types.TriggerFundSelection, fmt.Sprintf("fund %s rank pct %.2f > %.2f", id, pct, t.param.JudgeFundSelection)
		}
	}

	// 大类内基金权重失衡: 最大/最小权重比超阈值
	_, fundW := cur.Weights()
	byIndex := make(map[types.IndexID][]float64)
	for _, id := range cur.SortedFundIDs() {
		if w, ok := fundW[id]; ok && w > 0 {
			byIndex[cur.Funds[id].IndexID] = append(byIndex[cur.Funds[id].IndexID], w)
		}
	}
	for _, indexID := range types.AllIndexes() {
		ws := byIndex[indexID]
		if len(ws) < 2 {
			continue
		}
		lo, hi := ws[0], ws[0]
		for _, w := range ws[1:] {
			lo, hi = minf(lo, w), maxf(hi, w)
		}
		if lo > 0 && hi/lo > t.param.JudgeFundRebalance {
			return types.TriggerFundRebalance, fmt.Sprintf("%s max/min weight %.2f > %.2f", indexID, hi/lo, t.param.JudgeFundRebalance)
		}
	}
	return types.TriggerNone, ""
}

// buildTrades 生成交易表: 先赎回释放现金, 再申购; 买入金额不超过可用现金
func (t *FundTrader) buildTrades(ctx *TradeContext, targetFund *types.FundWeight, cur *types.FundPosition) []*types.FundTrade {
	totalMV := cur.MarketValue()
	if totalMV <= 0 {
		return nil
	}

	var sells, buys []*types.FundTrade

	// 不在目标中的持仓基金全部赎回
	for _, id := range cur.SortedFundIDs() {
		it := cur.Funds[id]
		if it.Volume <= 0 {
			continue
		}
		tw, inTarget := targetFund.Items[id]
		if inTarget && tw.FundWgt > 0 {
			continue
		}
		sells = append(sells, t.newSell(ctx, id, it.IndexID, it.Volume, it.LastUnitNAV))
	}

	// 目标基金与当前市值的差额
	for _, id := range targetFund.SortedFundIDs() {
		tw := targetFund.Items[id]
		if tw.FundWgt <= 0 {
			continue
		}
		nav, ok := ctx.UnitNAVs[id]
		if !ok || nav <= 0 {
			// 净值缺失当日不交易该基金
			t.logger.Warn("unit nav missing, fund skipped",
				zap.String("fund_id", id), zap.Time("day", ctx.Day))
			continue
		}
		if t.helper != nil && t.helper.Blacklisted(id) {
			t.logger.Warn("target fund blacklisted at submit", zap.String("fund_id", id))
			continue
		}

		curMV := 0.0
		if it, held := cur.Funds[id]; held {
			curMV = it.Volume * nav
		}
		diff := totalMV*tw.FundWgt - curMV
		if absf(diff)/totalMV < t.param.MinActionAmtDiff {
			continue // 小额交易抑制
		}
		if diff > 0 {
			buys = append(buys, t.newBuy(ctx, id, tw.IndexID, diff, nav))
		} else {
			vol := -diff / nav
			if it, held := cur.Funds[id]; held && vol > it.Volume {
				vol = it.Volume
			}
			sells = append(sells, t.newSell(ctx, id, tw.IndexID, vol, nav))
		}
	}

	// 买入总额不得超过现金加预估赎回净回款, 超出时等比压缩
	available := cur.Cash
	for _, s := range sells {
		available += s.Volume*s.MarkPrice - t.estimateRedeemFee(ctx, cur, s)
	}
	buyTotal := 0.0
	for _, b := range buys {
		buyTotal += b.Amount
	}
	if buyTotal > available && buyTotal > 0 {
		scale := available / buyTotal
		if scale < 0 {
			scale = 0
		}
		for _, b := range buys {
			b.Amount *= scale
		}
	}

	trades := make([]*types.FundTrade, 0, len(sells)+len(buys))
	trades = append(trades, sells...)
	trades = append(trades, buys...)
	return trades
}

func (t *FundTrader) newBuy(ctx *TradeContext, fundID string, indexID types.IndexID, amount, nav float64) *types.FundTrade {
	tr := &types.FundTrade{
		FundID:     fundID,
		IndexID:    indexID,
		IsBuy:      true,
		SubmitDate: ctx.Day,
		Amount:     amount,
		MarkPrice:  nav,
		Status:     types.TradePending,
	}
	if d, ok := t.cal.NextTradingDay(ctx.Day, ctx.info(fundID).SettleLag()); ok {
		tr.SettleDate = d
	}
	return tr
}

func (t *FundTrader) newSell(ctx *TradeContext, fundID string, indexID types.IndexID, volume, nav float64) *types.FundTrade {
	tr := &types.FundTrade{
		FundID:     fundID,
		IndexID:    indexID,
		IsBuy:      false,
		SubmitDate: ctx.Day,
		Volume:     volume,
		MarkPrice:  nav,
		Status:     types.TradePending,
	}
	if d, ok := t.cal.NextTradingDay(ctx.Day, ctx.info(fundID).SettleLag()); ok {
		tr.SettleDate = d
	}
	return tr
}

// estimateRedeemFee 按提交日持有天数预估赎回费, 仅用于现金可用量估算
func (t *FundTrader) estimateRedeemFee(ctx *TradeContext, cur *types.FundPosition, s *types.FundTrade) float64 {
	if !t.param.EnableCommission {
		return 0
	}
	it, ok := cur.Funds[s.FundID]
	if !ok {
		return 0
	}
	return redeemFeeFIFO(it.Lots, s.Volume, s.MarkPrice, ctx.Day, ctx.fee(s.FundID), false)
}

// applyVirtual 在持仓副本上按参考净值立即执行交易, 供调用方核对目标达成度
func (t *FundTrader) applyVirtual(ctx *TradeContext, cur *types.FundPosition, trades []*types.FundTrade) *types.FundPosition {
	v := cur.Copy()
	for _, tr := range trades {
		if tr.IsBuy {
			fee := 0.0
			if t.param.EnableCommission {
				fee = tr.Amount * ctx.fee(tr.FundID).PurchaseRate
			}
			it := v.Funds[tr.FundID]
			if it == nil {
				it = &types.FundPositionItem{FundID: tr.FundID, IndexID: tr.IndexID, LastUnitNAV: tr.MarkPrice}
				v.Funds[tr.FundID] = it
			}
			it.Volume += (tr.Amount - fee) / tr.MarkPrice
			v.Cash -= tr.Amount
			if v.Cash < 0 {
				v.Cash = 0
			}
		} else if it, ok := v.Funds[tr.FundID]; ok {
			vol := minf(tr.Volume, it.Volume)
			fee := 0.0
			if t.param.EnableCommission {
				fee = redeemFeeFIFO(it.Lots, vol, tr.MarkPrice, ctx.Day, ctx.fee(tr.FundID), false)
			}
			it.Volume -= vol
			v.Cash += vol*tr.MarkPrice - fee
			if it.Volume <= types.WeightEps {
				delete(v.Funds, tr.FundID)
			}
		}
	}
	return v
}

// FinalizeTrade 结算到期的在途交易. 赎回先于申购执行以释放现金.
// 净值缺失的交易保持在途; 暂停申购或现金不足的交易标记为拒绝
func (t *FundTrader) FinalizeTrade(day time.Time, pending []*types.FundTrade,
	pos *types.FundPosition, unitNavs map[string]float64, suspended map[string]bool,
	fees map[string]*types.FeeSchedule) (stillPending, finalized []*types.FundTrade) {

	due := make([]*types.FundTrade, 0, len(pending))
	for _, tr := range pending {
		if tr.SettleDate.IsZero() || tr.SettleDate.After(day) {
			stillPending = append(stillPending, tr)
			continue
		}
		due = append(due, tr)
	}
	// 卖先买后, 同方向按 fund_id 升序
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].IsBuy != due[j].IsBuy {
			return !due[i].IsBuy
		}
		return due[i].FundID < due[j].FundID
	})

	for _, tr := range due {
		nav, ok := unitNavs[tr.FundID]
		if !ok || nav <= 0 {
			// 确认日净值缺失, 继续等待
			t.logger.Warn("settle nav missing, trade stays pending",
				zap.String("fund_id", tr.FundID), zap.Time("day", day))
			stillPending = append(stillPending, tr)
			continue
		}
		if tr.IsBuy {
			t.settleBuy(day, tr, pos, nav, suspended, fees)
		} else {
			t.settleSell(day, tr, pos, nav, fees)
		}
		finalized = append(finalized, tr)
	}
	return stillPending, finalized
}

func (t *FundTrader) settleBuy(day time.Time, tr *types.FundTrade, pos *types.FundPosition,
	nav float64, suspended map[string]bool, fees map[string]*types.FeeSchedule) {

	if suspended[tr.FundID] {
		tr.Status = types.TradeRejected
		tr.RejectReason = "subscription_suspended"
		tr.TradeDate = day
		return
	}
	if pos.Cash+types.WeightEps < tr.Amount {
		tr.Status = types.TradeRejected
		tr.RejectReason = "insufficient_cash"
		tr.TradeDate = day
		t.logger.Warn("buy rejected: insufficient cash",
			zap.String("fund_id", tr.FundID),
			zap.Float64("amount", tr.Amount), zap.Float64("cash", pos.Cash))
		return
	}

	fee := 0.0
	if t.param.EnableCommission {
		if f, ok := fees[tr.FundID]; ok {
			fee = tr.Amount * f.PurchaseRate
		}
	}
	shares := (tr.Amount - fee) / nav

	_ = pos.ApplyCash(types.CashEntry{Date: day, Kind: types.CashBuySettle, FundID: tr.FundID, Amount: -(tr.Amount - fee)})
	if fee > 0 {
		_ = pos.ApplyCash(types.CashEntry{Date: day, Kind: types.CashBuyFee, FundID: tr.FundID, Amount: -fee})
	}

	it := pos.Funds[tr.FundID]
	if it == nil {
		it = &types.FundPositionItem{FundID: tr.FundID, IndexID: tr.IndexID}
		pos.Funds[tr.FundID] = it
	}
	// 成本按确认日净值摊入
	totalCost := it.AvgCost*it.Volume + shares*nav
	it.Volume += shares
	if it.Volume > 0 {
		it.AvgCost = totalCost / it.Volume
	}
	it.LastUnitNAV = nav
	it.Lots = append(it.Lots, types.FundLot{Date: day, Volume: shares})

	tr.Commission = fee
	tr.TradeDate = day
	tr.Status = types.TradeSettled
}

func (t *FundTrader) settleSell(day time.Time, tr *types.FundTrade, pos *types.FundPosition,
	nav float64, fees map[string]*types.FeeSchedule) {

	it, ok := pos.Funds[tr.FundID]
	if !ok || it.Volume <= 0 {
		tr.Status = types.TradeRejected
		tr.RejectReason = "no_position"
		tr.TradeDate = day
		return
	}
	vol := minf(tr.Volume, it.Volume)

	fee := 0.0
	if t.param.EnableCommission {
		f := &types.FeeSchedule{}
		if v, okF := fees[tr.FundID]; okF {
			f = v
		}
		fee = redeemFeeFIFO(it.Lots, vol, nav, day, f, true)
	} else {
		redeemFeeFIFO(it.Lots, vol, nav, day, &types.FeeSchedule{}, true)
	}

	it.Volume -= vol
	it.LastUnitNAV = nav
	if it.Volume <= types.WeightEps {
		delete(pos.Funds, tr.FundID)
	}
	_ = pos.ApplyCash(types.CashEntry{Date: day, Kind: types.CashSellProceeds, FundID: tr.FundID, Amount: vol * nav})
	if fee > 0 {
		_ = pos.ApplyCash(types.CashEntry{Date: day, Kind: types.CashSellFee, FundID: tr.FundID, Amount: -fee})
	}

	tr.Volume = vol
	tr.Commission = fee
	tr.TradeDate = day
	tr.Status = types.TradeSettled
}

// redeemFeeFIFO 先进先出匹配买入批次计算赎回费.
// consume 为真时同时扣减批次份额
func redeemFeeFIFO(lots []types.FundLot, volume, nav float64, day time.Time,
	fee *types.FeeSchedule, consume bool) float64 {

	remaining := volume
	total := 0.0
	for i := range lots {
		if remaining <= 0 {
			break
		}
		portion := minf(lots[i].Volume, remaining)
		if portion <= 0 {
			continue
		}
		rate := fee.RedeemRate(holdingDays(lots[i].Date, day))
		total += portion * nav * rate
		remaining -= portion
		if consume {
			lots[i].Volume -= portion
		}
	}
	// 没有批次记录的份额按最长持有档计费
	if remaining > 0 {
		total += remaining * nav * fee.RedeemRate(1<<20)
	}
	return total
}

// rankPct 同大类中得分高于该基金的占比 (0=最优). 无得分视作最差
func rankPct(fundID string, scores map[string]float64) (float64, bool) {
	if len(scores) == 0 {
		return 0, false
	}
	v, ok := scores[fundID]
	if !ok {
		return 1, true
	}
	better := 0
	for _, s := range scores {
		if s > v {
			better++
		}
	}
	return float64(better) / float64(len(scores)), true
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

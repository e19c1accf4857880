package types

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// FundWeightItem 单只基金的目标权重
type FundWeightItem struct {
	FundID         string
	IndexID        IndexID
	FundWgt        float64 // 组合内权重 = AssetWgt * FundWgtInAsset
	AssetWgt       float64 // 所属大类权重
	FundWgtInAsset float64 // 大类内权重
}

// FundWeight 目标基金权重集合, fund_id 唯一
type FundWeight struct {
	Items map[string]*FundWeightItem
}

// NewFundWeight 创建空权重集合
func NewFundWeight() *FundWeight {
	return &FundWeight{Items: make(map[string]*FundWeightItem)}
}

// Add 加入一只基金, fund_id 重复时报错
func (fw *FundWeight) Add(item *FundWeightItem) error {
	if _, ok := fw.Items[item.FundID]; ok {
		return fmt.Errorf("%w: duplicated fund %s in fund weight", ErrInvalidConfig, item.FundID)
	}
	fw.Items[item.FundID] = item
	return nil
}

// Sum 组合内权重之和
func (fw *FundWeight) Sum() float64 {
	sum := 0.0
	for _, id := range fw.SortedFundIDs() {
		sum += fw.Items[id].FundWgt
	}
	return sum
}

// SortedFundIDs 按 fund_id 升序
func (fw *FundWeight) SortedFundIDs() []string {
	ids := make([]string, 0, len(fw.Items))
	for id := range fw.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate 校验: 权重非负, fund_wgt = asset_wgt * fund_wgt_in_asset, 总和 ≤ 1
func (fw *FundWeight) Validate() error {
	for _, id := range fw.SortedFundIDs() {
		it := fw.Items[id]
		if it.FundWgt < 0 || it.AssetWgt < 0 || it.FundWgtInAsset < 0 {
			return fmt.Errorf("%w: negative weight for fund %s", ErrInvalidConfig, id)
		}
		if math.Abs(it.FundWgt-it.AssetWgt*it.FundWgtInAsset) > 1e-6 {
			return fmt.Errorf("%w: fund %s weight %.6f != asset %.6f * in-asset %.6f",
				ErrInvalidConfig, id, it.FundWgt, it.AssetWgt, it.FundWgtInAsset)
		}
	}
	if fw.Sum() > 1+WeightEps {
		return fmt.Errorf("%w: fund weights sum to %.6f, must be <= 1", ErrInvalidConfig, fw.Sum())
	}
	return nil
}

// Copy 复制权重集合
func (fw *FundWeight) Copy() *FundWeight {
	out := NewFundWeight()
	for id, it := range fw.Items {
		c := *it
		out.Items[id] = &c
	}
	return out
}

// FundLot 买入批次, 赎回时按先进先出匹配持有天数
type FundLot struct {
	Date   time.Time
	Volume float64
}

// FundPositionItem 单只基金持仓
type FundPositionItem struct {
	FundID      string
	IndexID     IndexID
	Volume      float64
	AvgCost     float64 // 单位成本
	LastUnitNAV float64 // 最近已知单位净值, 净值缺失日按此估值
	LastNAV     float64 // 最近已知复权净值
	Lots        []FundLot
}

// MarketValue 持仓市值 = 份额 * 最近单位净值
func (it *FundPositionItem) MarketValue() float64 {
	return it.Volume * it.LastUnitNAV
}

// CashEntryKind 现金流水类型
type CashEntryKind string

const (
	CashDeposit      CashEntryKind = "deposit"
	CashBuySettle    CashEntryKind = "buy_settle"
	CashBuyFee       CashEntryKind = "buy_fee"
	CashSellProceeds CashEntryKind = "sell_proceeds"
	CashSellFee      CashEntryKind = "sell_fee"
)

// CashEntry 现金流水. 持仓现金只通过流水变动, 避免存取与交易互相覆盖
type CashEntry struct {
	Date   time.Time
	Kind   CashEntryKind
	FundID string
	Amount float64 // 正数入金, 负数出金
}

// FundPosition 基金持仓, 含现金与现金流水账
type FundPosition struct {
	Funds  map[string]*FundPositionItem
	Cash   float64
	Ledger []CashEntry
}

// NewFundPosition 以初始现金建仓, 记一笔入金流水
func NewFundPosition(cash float64, day time.Time) *FundPosition {
	p := &FundPosition{
		Funds: make(map[string]*FundPositionItem),
		Cash:  0,
	}
	if cash != 0 {
		p.mustApply(CashEntry{Date: day, Kind: CashDeposit, Amount: cash})
	}
	return p
}

// ApplyCash 记一笔流水并更新现金, 余额不足时报错且不变动
func (p *FundPosition) ApplyCash(e CashEntry) error {
	if p.Cash+e.Amount < -WeightEps {
		return fmt.Errorf("insufficient cash: have %.2f, need %.2f", p.Cash, -e.Amount)
	}
	p.mustApply(e)
	return nil
}

func (p *FundPosition) mustApply(e CashEntry) {
	p.Cash += e.Amount
	if p.Cash < 0 {
		p.Cash = 0
	}
	p.Ledger = append(p.Ledger, e)
}

// SortedFundIDs 按 fund_id 升序
func (p *FundPosition) SortedFundIDs() []string {
	ids := make([]string, 0, len(p.Funds))
	for id := range p.Funds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MarketValue 总市值 = 现金 + 各基金市值
func (p *FundPosition) MarketValue() float64 {
	mv := p.Cash
	for _, id := range p.SortedFundIDs() {
		mv += p.Funds[id].MarketValue()
	}
	return mv
}

// UpdateNAVs 用当日净值刷新持仓估值, 缺失的基金沿用最近净值
func (p *FundPosition) UpdateNAVs(unitNavs, navs map[string]float64) {
	for _, id := range p.SortedFundIDs() {
		it := p.Funds[id]
		if v, ok := unitNavs[id]; ok && v > 0 {
			it.LastUnitNAV = v
		}
		if v, ok := navs[id]; ok && v > 0 {
			it.LastNAV = v
		}
	}
}

// Weights 总市值与各基金权重
func (p *FundPosition) Weights() (float64, map[string]float64) {
	mv := p.MarketValue()
	w := make(map[string]float64)
	if mv <= 0 {
		return mv, w
	}
	for _, id := range p.SortedFundIDs() {
		if v := p.Funds[id].MarketValue(); v > 0 {
			w[id] = v / mv
		}
	}
	return mv, w
}

// AssetWeights 按所属大类聚合的当前权重
func (p *FundPosition) AssetWeights() AssetWeight {
	mv := p.MarketValue()
	w := make(AssetWeight)
	if mv <= 0 {
		return w
	}
	for _, id := range p.SortedFundIDs() {
		it := p.Funds[id]
		w[it.IndexID] += it.MarketValue() / mv
	}
	w[IndexCash] = p.Cash / mv
	return w
}

// Copy 深拷贝持仓 (流水不拷贝, 快照用)
func (p *FundPosition) Copy() *FundPosition {
	out := &FundPosition{
		Funds: make(map[string]*FundPositionItem, len(p.Funds)),
		Cash:  p.Cash,
	}
	for id, it := range p.Funds {
		c := *it
		c.Lots = make([]FundLot, len(it.Lots))
		copy(c.Lots, it.Lots)
		out.Funds[id] = &c
	}
	return out
}

// TradeStatus 交易状态
type TradeStatus string

const (
	TradePending  TradeStatus = "pending"
	TradeSettled  TradeStatus = "settled"
	TradeRejected TradeStatus = "rejected"
)

// FundTrade 基金交易. 买入以金额计, 卖出以份额计
type FundTrade struct {
	FundID       string
	IndexID      IndexID
	IsBuy        bool
	SubmitDate   time.Time
	SettleDate   time.Time // 预计确认日, 提交时按 T+N 推算
	TradeDate    time.Time // 实际确认日, 结算时写入
	Amount       float64   // 买入金额
	Volume       float64   // 卖出份额
	MarkPrice    float64   // 提交日参考净值
	Commission   float64   // 申赎费, 结算时写入
	Status       TradeStatus
	RejectReason string
}

// AssetTrade 大类资产层交易
type AssetTrade struct {
	IndexID    IndexID
	IsBuy      bool
	SubmitDate time.Time
	TradeDate  time.Time
	Amount     float64 // 交易市值
	MarkPrice  float64
	Commission float64
	Status     TradeStatus
}

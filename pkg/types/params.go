package types

import (
	"fmt"
	"sort"
	"time"
)

// 回测全局默认值, 均可在引擎配置中覆盖
const (
	DefaultCash        = 1000000.0
	DefaultRiskFree    = 0.025
	TradingDaysPerYear = 244
)

// TAAParam 单资产战术配置. 阈值为估值百分位, 满足
// LowThreshold ≤ LowStop < HighStop ≤ HighThreshold
type TAAParam struct {
	HighThreshold float64 // 高估进入清减的百分位
	HighStop      float64 // 高估减仓带下沿, 同时作为减仓后的权重下限
	HighMinus     float64 // 高估带内每日减仓步长
	LowThreshold  float64 // 低估加满的百分位, 权重上限取 1 - LowThreshold
	LowStop       float64 // 低估加仓带上沿
	LowPlus       float64 // 低估带内每日加仓步长
	ToMmf         bool    // 减仓部分流向货基, 否则按比例回流其他资产
}

// Validate 校验百分位顺序
func (p *TAAParam) Validate() error {
	if !(p.LowThreshold <= p.LowStop && p.LowStop < p.HighStop && p.HighStop <= p.HighThreshold) {
		return fmt.Errorf("%w: taa thresholds must satisfy low_threshold <= low_stop < high_stop <= high_threshold, got %.4f %.4f %.4f %.4f",
			ErrInvalidConfig, p.LowThreshold, p.LowStop, p.HighStop, p.HighThreshold)
	}
	if p.HighMinus < 0 || p.LowPlus < 0 {
		return fmt.Errorf("%w: taa step sizes must be non-negative", ErrInvalidConfig)
	}
	return nil
}

// AssetTradeParam 资产层交易参数
type AssetTradeParam struct {
	EnableCommission   bool
	CommissionRate     float64 // 固定佣金率
	MinCountedRatio    float64 // 小额交易抑制: 交易市值/总市值 低于该值不下单
	AssetDiffThreshold float64 // 偏离触发再平衡的阈值
}

// DefaultAssetTradeParam 默认资产层交易参数
func DefaultAssetTradeParam() AssetTradeParam {
	return AssetTradeParam{
		EnableCommission:   false,
		CommissionRate:     0,
		MinCountedRatio:    0.005,
		AssetDiffThreshold: 0.02,
	}
}

// FundTradeParam 基金层交易参数
type FundTradeParam struct {
	EnableCommission   bool
	JudgeIndexDiff     float64 // 大类偏离触发阈值
	JudgeFundSelection float64 // 持仓基金排名劣化到该百分位后触发调仓
	JudgeFundRebalance float64 // 同大类内基金最大/最小权重比超过该值触发
	MinActionAmtDiff   float64 // 小额交易抑制: 差额/总市值 低于该值不下单
}

// DefaultFundTradeParam 默认基金层交易参数
func DefaultFundTradeParam() FundTradeParam {
	return FundTradeParam{
		EnableCommission:   true,
		JudgeIndexDiff:     0.02,
		JudgeFundSelection: 0.5,
		JudgeFundRebalance: 1.5,
		MinActionAmtDiff:   0.001,
	}
}

// SelectionMode 大类内基金权重分配方式
type SelectionMode string

const (
	SelectEqual     SelectionMode = "equal"      // 等权
	SelectScoreProp SelectionMode = "score_prop" // 按得分比例
)

// FAParam 基金选择参数
type FAParam struct {
	MaxFundNumUnderAsset int
	SelectionMode        SelectionMode
}

// DefaultFAParam 默认基金选择参数
func DefaultFAParam() FAParam {
	return FAParam{MaxFundNumUnderAsset: 2, SelectionMode: SelectEqual}
}

// Validate 校验基金选择参数
func (p FAParam) Validate() error {
	if p.MaxFundNumUnderAsset < 1 {
		return fmt.Errorf("%w: max_fund_num_under_asset must be >= 1", ErrInvalidConfig)
	}
	switch p.SelectionMode {
	case SelectEqual, SelectScoreProp:
		return nil
	}
	return fmt.Errorf("%w: unknown selection mode %q", ErrInvalidConfig, p.SelectionMode)
}

// FundInfo 基金元信息
type FundInfo struct {
	FundID        string
	IndexID       IndexID
	DescName      string
	Manager       string // 基金经理, 可为空
	StartDate     time.Time
	EndDate       time.Time // 零值表示未到期
	SettleLagDays int       // T+N 确认天数, 0 按默认 T+1
	IsQDII        bool
}

// SettleLag 确认天数, QDII 默认 T+3, 其余 T+1
func (f *FundInfo) SettleLag() int {
	if f.SettleLagDays > 0 {
		return f.SettleLagDays
	}
	if f.IsQDII {
		return 3
	}
	return 1
}

// Expired 基金在指定日期是否已到期
func (f *FundInfo) Expired(day time.Time) bool {
	return !f.EndDate.IsZero() && !f.EndDate.After(day)
}

// RedeemTier 赎回费率档, 按持有天数取第一个满足的档
type RedeemTier struct {
	MinHoldingDays int
	Rate           float64
}

// FeeSchedule 单基金申赎费率
type FeeSchedule struct {
	PurchaseRate float64
	RedeemTiers  []RedeemTier
}

// RedeemRate 按持有天数取赎回费率. 档位按 MinHoldingDays 降序匹配
func (s *FeeSchedule) RedeemRate(holdingDays int) float64 {
	tiers := make([]RedeemTier, len(s.RedeemTiers))
	copy(tiers, s.RedeemTiers)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinHoldingDays > tiers[j].MinHoldingDays })
	for _, t := range tiers {
		if holdingDays >= t.MinHoldingDays {
			return t.Rate
		}
	}
	return 0
}

// Validate 费率必须在 [0, 1)
func (s *FeeSchedule) Validate() error {
	if s.PurchaseRate < 0 || s.PurchaseRate >= 1 {
		return fmt.Errorf("%w: purchase rate %.4f out of range", ErrInvalidConfig, s.PurchaseRate)
	}
	for _, t := range s.RedeemTiers {
		if t.Rate < 0 || t.Rate >= 1 {
			return fmt.Errorf("%w: redeem rate %.4f out of range", ErrInvalidConfig, t.Rate)
		}
		if t.MinHoldingDays < 0 {
			return fmt.Errorf("%w: redeem tier holding days %d negative", ErrInvalidConfig, t.MinHoldingDays)
		}
	}
	return nil
}

// TradeTrigger 调仓触发原因
type TradeTrigger string

const (
	TriggerNone           TradeTrigger = ""
	TriggerAssetDrift     TradeTrigger = "asset_drift"
	TriggerFundSelection  TradeTrigger = "fund_selection"
	TriggerFundRebalance  TradeTrigger = "fund_rebalance"
	TriggerFundExpiry     TradeTrigger = "fund_expiry"
	TriggerExternalWeight TradeTrigger = "external_weight_change"
	TriggerTAAOverheated  TradeTrigger = "taa_overheated"
)

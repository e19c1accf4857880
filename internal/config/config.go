package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opsxjacky/fund-backtest/internal/data"
	"github.com/opsxjacky/fund-backtest/internal/score"
	"github.com/opsxjacky/fund-backtest/pkg/types"
)

// Config 配置文件结构
type Config struct {
	Backtest BacktestSection         `yaml:"backtest"`
	SAA      map[string]float64      `yaml:"saa"`
	TAA      map[string]TAAParamYAML `yaml:"taa"`
	FA       FASection               `yaml:"fa"`
	Score    map[string]string       `yaml:"score"`
	Trade    TradeSection            `yaml:"trade"`
	Output   OutputSection           `yaml:"output"`
}

// BacktestSection 回测区间与资金
type BacktestSection struct {
	StartDate    string  `yaml:"start_date"`
	EndDate      string  `yaml:"end_date"`
	InitialCash  float64 `yaml:"initial_cash"`
	RiskFreeRate float64 `yaml:"risk_free_rate"`
	DataDir      string  `yaml:"data_dir"`
	LogLevel     string  `yaml:"log_level"`
}

// TAAParamYAML 单资产战术参数
type TAAParamYAML struct {
	HighThreshold float64 `yaml:"high_threshold"`
	HighStop      float64 `yaml:"high_stop"`
	HighMinus     float64 `yaml:"high_minus"`
	LowThreshold  float64 `yaml:"low_threshold"`
	LowStop       float64 `yaml:"low_stop"`
	LowPlus       float64 `yaml:"low_plus"`
	ToMmf         bool    `yaml:"to_mmf"`
}

// FASection 基金选择配置
type FASection struct {
	MaxFundNumUnderAsset int      `yaml:"max_fund_num_under_asset"`
	SelectionMode        string   `yaml:"selection_mode"`
	Blacklist            []string `yaml:"blacklist"`
	Whitelist            []string `yaml:"whitelist"`
}

// TradeSection 交易参数
type TradeSection struct {
	Fund  FundTradeYAML  `yaml:"fund"`
	Asset AssetTradeYAML `yaml:"asset"`
}

// FundTradeYAML 基金层交易参数
type FundTradeYAML struct {
	EnableCommission   bool    `yaml:"enable_commission"`
	JudgeIndexDiff     float64 `yaml:"judge_index_diff"`
	JudgeFundSelection float64 `yaml:"judge_fund_selection"`
	JudgeFundRebalance float64 `yaml:"judge_fund_rebalance"`
	MinActionAmtDiff   float64 `yaml:"min_action_amt_diff"`
}

// AssetTradeYAML 资产层交易参数
type AssetTradeYAML struct {
	EnableCommission   bool    `yaml:"enable_commission"`
	CommissionRate     float64 `yaml:"commission_rate"`
	MinCountedRatio    float64 `yaml:"min_counted_ratio"`
	AssetDiffThreshold float64 `yaml:"asset_diff_threshold"`
}

// OutputSection 输出配置
type OutputSection struct {
	Path string `yaml:"path"`
}

// LoadConfig 从文件加载配置
func LoadConfig(filepath string) (*Config, error) {
	raw, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var config Config
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &config, nil
}

// Dates 解析回测区间
func (c *Config) Dates() (start, end time.Time, err error) {
	start, err = time.Parse("2006-01-02", c.Backtest.StartDate)
	if err != nil {
		return start, end, fmt.Errorf("%w: invalid start_date: %v", types.ErrInvalidConfig, err)
	}
	end, err = time.Parse("2006-01-02", c.Backtest.EndDate)
	if err != nil {
		return start, end, fmt.Errorf("%w: invalid end_date: %v", types.ErrInvalidConfig, err)
	}
	return start, end, nil
}

// InitialCash 初始资金, 未配置时用默认值
func (c *Config) InitialCash() float64 {
	if c.Backtest.InitialCash > 0 {
		return c.Backtest.InitialCash
	}
	return types.DefaultCash
}

// RiskFree 无风险利率, 未配置时用默认值
func (c *Config) RiskFree() float64 {
	if c.Backtest.RiskFreeRate > 0 {
		return c.Backtest.RiskFreeRate
	}
	return types.DefaultRiskFree
}

// SAAWeight 战略权重
func (c *Config) SAAWeight() (types.AssetWeight, error) {
	w := make(types.AssetWeight)
	for k, v := range c.SAA {
		w[types.IndexID(k)] = v
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// TAAParams 战术参数, 未配置时返回空表 (不启用TAA)
func (c *Config) TAAParams() (map[types.IndexID]*types.TAAParam, error) {
	out := make(map[types.IndexID]*types.TAAParam)
	for k, v := range c.TAA {
		id := types.IndexID(k)
		if !types.IsValidIndex(id) {
			return nil, fmt.Errorf("%w: unknown asset class %q in taa section", types.ErrInvalidConfig, k)
		}
		p := &types.TAAParam{
			HighThreshold: v.HighThreshold,
			HighStop:      v.HighStop,
			HighMinus:     v.HighMinus,
			LowThreshold:  v.LowThreshold,
			LowStop:       v.LowStop,
			LowPlus:       v.LowPlus,
			ToMmf:         v.ToMmf,
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		out[id] = p
	}
	return out, nil
}

// FAParam 基金选择参数
func (c *Config) FAParam() types.FAParam {
	p := types.DefaultFAParam()
	if c.FA.MaxFundNumUnderAsset > 0 {
		p.MaxFundNumUnderAsset = c.FA.MaxFundNumUnderAsset
	}
	if c.FA.SelectionMode != "" {
		p.SelectionMode = types.SelectionMode(c.FA.SelectionMode)
	}
	return p
}

// FundTradeParam 基金层交易参数
func (c *Config) FundTradeParam() types.FundTradeParam {
	p := types.DefaultFundTradeParam()
	f := c.Trade.Fund
	p.EnableCommission = f.EnableCommission
	if f.JudgeIndexDiff > 0 {
		p.JudgeIndexDiff = f.JudgeIndexDiff
	}
	if f.JudgeFundSelection > 0 {
		p.JudgeFundSelection = f.JudgeFundSelection
	}
	if f.JudgeFundRebalance > 0 {
		p.JudgeFundRebalance = f.JudgeFundRebalance
	}
	if f.MinActionAmtDiff > 0 {
		p.MinActionAmtDiff = f.MinActionAmtDiff
	}
	return p
}

// AssetTradeParam 资产层交易参数
func (c *Config) AssetTradeParam() types.AssetTradeParam {
	p := types.DefaultAssetTradeParam()
	a := c.Trade.Asset
	p.EnableCommission = a.EnableCommission
	if a.CommissionRate > 0 {
		p.CommissionRate = a.CommissionRate
	}
	if a.MinCountedRatio > 0 {
		p.MinCountedRatio = a.MinCountedRatio
	}
	if a.AssetDiffThreshold > 0 {
		p.AssetDiffThreshold = a.AssetDiffThreshold
	}
	return p
}

// ScoreSelect 各大类打分函数, 表达式在此解析校验
func (c *Config) ScoreSelect() (data.ScoreSelect, error) {
	out := make(data.ScoreSelect)
	for k, expr := range c.Score {
		id := types.IndexID(k)
		if !types.IsValidIndex(id) {
			return nil, fmt.Errorf("%w: unknown asset class %q in score section", types.ErrInvalidConfig, k)
		}
		fn, err := score.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("%w: score for %s: %v", types.ErrInvalidConfig, k, err)
		}
		out[id] = fn
	}
	return out, nil
}

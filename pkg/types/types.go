package types

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// IndexID 大类资产标识
type IndexID string

const (
	IndexHS300        IndexID = "hs300"
	IndexCSI500       IndexID = "csi500"
	IndexGEM          IndexID = "gem"
	IndexSP500RMB     IndexID = "sp500rmb"
	IndexNationalDebt IndexID = "national_debt"
	IndexGold         IndexID = "gold"
	IndexHSI          IndexID = "hsi"
	IndexConvBond     IndexID = "conv_bond"
	IndexActive       IndexID = "active"
	IndexMMF          IndexID = "mmf"
	IndexCash         IndexID = "cash"
)

// allIndexes 固定的资产枚举顺序, 遍历权重时统一按此顺序, 保证回测结果可复现
var allIndexes = []IndexID{
	IndexHS300, IndexCSI500, IndexGEM, IndexSP500RMB,
	IndexNationalDebt, IndexGold, IndexHSI, IndexConvBond,
	IndexActive, IndexMMF, IndexCash,
}

// AllIndexes 返回全部资产枚举 (副本)
func AllIndexes() []IndexID {
	out := make([]IndexID, len(allIndexes))
	copy(out, allIndexes)
	return out
}

// IsValidIndex 是否为已知资产
func IsValidIndex(id IndexID) bool {
	for _, v := range allIndexes {
		if v == id {
			return true
		}
	}
	return false
}

// WeightEps 权重比较容差
const WeightEps = 1e-9

// AssetWeight 大类资产权重, 非现金权重和 ≤ 1, 余量为现金
type AssetWeight map[IndexID]float64

// Copy 复制权重
func (w AssetWeight) Copy() AssetWeight {
	out := make(AssetWeight, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// RiskSum 非现金权重之和
func (w AssetWeight) RiskSum() float64 {
	sum := 0.0
	for _, id := range allIndexes {
		if id == IndexCash {
			continue
		}
		sum += w[id]
	}
	return sum
}

// SortedIndexes 按枚举顺序返回权重非零的资产
func (w AssetWeight) SortedIndexes() []IndexID {
	out := make([]IndexID, 0, len(w))
	for _, id := range allIndexes {
		if w[id] > 0 {
			out = append(out, id)
		}
	}
	return out
}

// Validate 校验权重合法性
func (w AssetWeight) Validate() error {
	for id, v := range w {
		if !IsValidIndex(id) {
			return fmt.Errorf("%w: unknown asset class %q", ErrInvalidConfig, id)
		}
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: weight of %s is %v", ErrInvalidConfig, id, v)
		}
	}
	if w.RiskSum() > 1+WeightEps {
		return fmt.Errorf("%w: asset weights sum to %.6f, must be <= 1", ErrInvalidConfig, w.RiskSum())
	}
	return nil
}

// Normalize 归一化: 非现金权重和超过1时等比例压缩, 余量计入现金
func (w AssetWeight) Normalize() AssetWeight {
	out := w.Copy()
	sum := out.RiskSum()
	if sum > 1 {
		for _, id := range allIndexes {
			if id == IndexCash {
				continue
			}
			if out[id] > 0 {
				out[id] /= sum
			}
		}
		sum = 1
	}
	out[IndexCash] = 1 - sum
	return out
}

// AssetPrice 大类资产价格
type AssetPrice map[IndexID]float64

// Copy 复制价格
func (p AssetPrice) Copy() AssetPrice {
	out := make(AssetPrice, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// AssetPosition 大类资产持仓, 以市值记账
type AssetPosition struct {
	Assets map[IndexID]float64 // 各资产市值
	Cash   float64
}

// NewAssetPosition 以初始现金建仓
func NewAssetPosition(cash float64) *AssetPosition {
	return &AssetPosition{
		Assets: make(map[IndexID]float64),
		Cash:   cash,
	}
}

// Copy 复制持仓
func (p *AssetPosition) Copy() *AssetPosition {
	out := NewAssetPosition(p.Cash)
	for k, v := range p.Assets {
		out.Assets[k] = v
	}
	return out
}

// MarketValue 总市值 = 各资产市值 + 现金
func (p *AssetPosition) MarketValue() float64 {
	mv := p.Cash
	for _, id := range allIndexes {
		mv += p.Assets[id]
	}
	return mv
}

// Weights 当前权重
func (p *AssetPosition) Weights() AssetWeight {
	w := make(AssetWeight)
	mv := p.MarketValue()
	if mv <= 0 {
		return w
	}
	for _, id := range allIndexes {
		if v := p.Assets[id]; v > 0 {
			w[id] = v / mv
		}
	}
	w[IndexCash] = p.Cash / mv
	return w
}

// Evolve 按价格涨跌更新各资产市值
func (p *AssetPosition) Evolve(prev, cur AssetPrice) {
	for _, id := range allIndexes {
		v := p.Assets[id]
		if v <= 0 {
			continue
		}
		p0, ok0 := prev[id]
		p1, ok1 := cur[id]
		if ok0 && ok1 && p0 > 0 {
			p.Assets[id] = v * p1 / p0
		}
	}
}

// SortedDates map键日期排序辅助
func SortedDates(m map[time.Time]struct{}) []time.Time {
	out := make([]time.Time, 0, len(m))
	for d := range m {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Date 构造 UTC 零点日期
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

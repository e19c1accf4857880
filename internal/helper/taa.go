package helper

import (
	"fmt"
	"time"

	"github.com/opsxjacky/fund-backtest/pkg/types"
)

// TAAStatus 单资产战术状态
type TAAStatus string

const (
	StatusNormal      TAAStatus = "normal"
	StatusHot         TAAStatus = "hot"
	StatusOverHeated  TAAStatus = "overheated"
	StatusCold        TAAStatus = "cold"
	StatusUndervalued TAAStatus = "undervalued"
)

// TAAHelper 战术资产配置: 按估值百分位对SAA权重做逐日偏移.
// 每个配置了参数的资产走五段状态机:
//
//	pct ≥ HighThreshold             过热, 权重一步压到下限 HighStop
//	HighStop ≤ pct < HighThreshold  偏热, 每日减 HighMinus, 不低于 HighStop
//	LowStop < pct < HighStop        正常, 回到SAA权重
//	LowThreshold < pct ≤ LowStop    偏冷, 每日加 LowPlus, 不高于上限
//	pct ≤ LowThreshold              低估, 权重一步加到上限
//
// 权重上限取 1 - LowThreshold. 需要上一日战术权重, 因此助手持有输出历史
type TAAHelper struct {
	params      map[types.IndexID]*types.TAAParam
	lastWeights types.AssetWeight
	status      map[types.IndexID]TAAStatus
	overheated  []types.IndexID // 当日新进入过热清减的资产
}

// NewTAAHelper 创建TAA助手
func NewTAAHelper(params map[types.IndexID]*types.TAAParam) (*TAAHelper, error) {
	for _, id := range types.AllIndexes() {
		p, ok := params[id]
		if !ok {
			continue
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("taa setup for %s: %w", id, err)
		}
	}
	return &TAAHelper{
		params: params,
		status: make(map[types.IndexID]TAAStatus),
	}, nil
}

// Status 某资产当前战术状态
func (h *TAAHelper) Status(id types.IndexID) TAAStatus {
	if s, ok := h.status[id]; ok {
		return s
	}
	return StatusNormal
}

// OverheatedToday 当日触发过热清减的资产, 用于调仓原因记录
func (h *TAAHelper) OverheatedToday() []types.IndexID {
	return h.overheated
}

// OnPrice 计算当日战术权重. pct 缺失的资产按正常态处理
func (h *TAAHelper) OnPrice(day time.Time, saa types.AssetWeight, pcts map[types.IndexID]float64) types.AssetWeight {
	out := saa.Copy()
	h.overheated = h.overheated[:0]
	toMmf := 0.0
	removed := 0.0

	for _, id := range types.AllIndexes() {
		p, ok := h.params[id]
		if !ok || id == types.IndexCash {
			continue
		}
		base := saa[id]
		pct, hasPct := pcts[id]
		if !hasPct {
			h.status[id] = StatusNormal
			continue
		}

		prev := base
		if h.lastWeights != nil {
			if w, ok := h.lastWeights[id]; ok {
				prev = w
			}
		}

		floor := p.HighStop
		ceiling := 1 - p.LowThreshold
		if ceiling < base {
			ceiling = base
		}

		var w float64
		var st TAAStatus
		switch {
		case pct >= p.HighThreshold:
			w, st = floor, StatusOverHeated
		case pct >= p.HighStop:
			w, st = maxf(prev-p.HighMinus, floor), StatusHot
		case pct > p.LowStop:
			w, st = base, StatusNormal
		case pct > p.LowThreshold:
			w, st = minf(prev+p.LowPlus, ceiling), StatusCold
		default:
			w, st = ceiling, StatusUndervalued
		}
		if w < 0 {
			w = 0
		}

		// 进入过热态的当天记录清减原因
		if st == StatusOverHeated && h.Status(id) != StatusOverHeated {
			h.overheated = append(h.overheated, id)
		}
		h.status[id] = st
		out[id] = w

		if w < base {
			if p.ToMmf {
				toMmf += base - w
			} else {
				removed += base - w
			}
		}
	}

	if toMmf > 0 {
		out[types.IndexMMF] += toMmf
	}
	// 非货基方向的清减部分, 按权重比例回流未被压低的风险资产
	if removed > 0 {
		base := 0.0
		for _, id := range raisedOrNormal(out, saa, h.params) {
			base += out[id]
		}
		if base > 0 {
			for _, id := range raisedOrNormal(out, saa, h.params) {
				out[id] += removed * out[id] / base
			}
		}
	}
	out = out.Normalize()
	h.lastWeights = out.Copy()
	return out
}

// raisedOrNormal 未被压低的风险资产 (权重 ≥ SAA 且非现金/货基)
func raisedOrNormal(cur, saa types.AssetWeight, params map[types.IndexID]*types.TAAParam) []types.IndexID {
	var out []types.IndexID
	for _, id := range types.AllIndexes() {
		if id == types.IndexCash || id == types.IndexMMF {
			continue
		}
		if cur[id] > 0 && cur[id] >= saa[id] {
			out = append(out, id)
		}
	}
	return out
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

package helper

import (
	"fmt"
	"sort"
	"time"

	"github.com/opsxjacky/fund-backtest/pkg/types"
)

// FAHelper 基金选择: 在每个大类内按得分取前N只, 把大类权重分给选中基金
type FAHelper struct {
	param     types.FAParam
	blacklist map[string]bool
	whitelist map[string]bool // 非空时只允许名单内基金
	mgrScores map[string]float64
}

// NewFAHelper 创建FA助手
func NewFAHelper(param types.FAParam, blacklist, whitelist []string) (*FAHelper, error) {
	if err := param.Validate(); err != nil {
		return nil, fmt.Errorf("fa setup: %w", err)
	}
	h := &FAHelper{
		param:     param,
		blacklist: make(map[string]bool),
		whitelist: make(map[string]bool),
	}
	for _, id := range blacklist {
		h.blacklist[id] = true
	}
	for _, id := range whitelist {
		h.whitelist[id] = true
	}
	return h, nil
}

// SetManagerScores 设置当日基金经理得分, 基金同分时经理得分高者优先
func (h *FAHelper) SetManagerScores(scores map[string]float64) {
	h.mgrScores = scores
}

// Blacklisted 基金是否在黑名单 (交易员提交前复核用)
func (h *FAHelper) Blacklisted(fundID string) bool {
	if h.blacklist[fundID] {
		return true
	}
	return len(h.whitelist) > 0 && !h.whitelist[fundID]
}

// scored 排序用
type scored struct {
	fundID string
	score  float64
}

// OnScores 按目标大类权重与当日得分生成目标基金权重.
// 某大类无可选基金时其权重不落到任何基金, 引擎层面等同于留在现金
func (h *FAHelper) OnScores(day time.Time, target types.AssetWeight,
	scores map[types.IndexID]map[string]float64,
	infos map[string]*types.FundInfo) *types.FundWeight {

	fw := types.NewFundWeight()
	for _, indexID := range target.SortedIndexes() {
		if indexID == types.IndexCash {
			continue
		}
		assetWgt := target[indexID]
		picked := h.pick(day, indexID, scores[indexID], infos)
		if len(picked) == 0 {
			continue
		}

		shares := h.shares(picked)
		for i, c := range picked {
			// FundWeight 不变量: fund_wgt = asset_wgt * fund_wgt_in_asset
			_ = fw.Add(&types.FundWeightItem{
				FundID:         c.fundID,
				IndexID:        indexID,
				FundWgt:        assetWgt * shares[i],
				AssetWgt:       assetWgt,
				FundWgtInAsset: shares[i],
			})
		}
	}
	return fw
}

// pick 过滤并按得分取前N只: 得分存在, 未到期, 不在黑名单
func (h *FAHelper) pick(day time.Time, indexID types.IndexID,
	scores map[string]float64, infos map[string]*types.FundInfo) []scored {

	candidates := make([]scored, 0, len(scores))
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		info := infos[id]
		if info == nil || info.IndexID != indexID {
			continue
		}
		if info.Expired(day) || h.Blacklisted(id) {
			continue
		}
		if !info.StartDate.IsZero() && info.StartDate.After(day) {
			continue
		}
		candidates = append(candidates, scored{fundID: id, score: scores[id]})
	}

	// 得分降序, 同分先比经理得分再按 fund_id 升序, 保证结果可复现
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		mi := h.mgrScores[infos[candidates[i].fundID].Manager]
		mj := h.mgrScores[infos[candidates[j].fundID].Manager]
		if mi != mj {
			return mi > mj
		}
		return candidates[i].fundID < candidates[j].fundID
	})
	if len(candidates) > h.param.MaxFundNumUnderAsset {
		candidates = candidates[:h.param.MaxFundNumUnderAsset]
	}
	return candidates
}

// shares 大类内权重分配. 得分比例模式下出现非正得分时退回等权
func (h *FAHelper) shares(picked []scored) []float64 {
	n := len(picked)
	out := make([]float64, n)
	if h.param.SelectionMode == types.SelectScoreProp {
		sum := 0.0
		ok := true
		for _, c := range picked {
			if c.score <= 0 {
				ok = false
				break
			}
			sum += c.score
		}
		if ok && sum > 0 {
			for i, c := range picked {
				out[i] = c.score / sum
			}
			return out
		}
	}
	for i := range out {
		out[i] = 1.0 / float64(n)
	}
	return out
}

package helper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsxjacky/fund-backtest/pkg/types"
)

func faInfos() map[string]*types.FundInfo {
	return map[string]*types.FundInfo{
		"F1": {FundID: "F1", IndexID: types.IndexHS300},
		"F2": {FundID: "F2", IndexID: types.IndexHS300},
		"F3": {FundID: "F3", IndexID: types.IndexHS300},
		"G1": {FundID: "G1", IndexID: types.IndexGold},
	}
}

func TestFAOnScoresTopN(t *testing.T) {
	h, err := NewFAHelper(types.FAParam{MaxFundNumUnderAsset: 2, SelectionMode: types.SelectEqual}, nil, nil)
	require.NoError(t, err)

	target := types.AssetWeight{types.IndexHS300: 0.6, types.IndexGold: 0.2, types.IndexCash: 0.2}
	scores := map[types.IndexID]map[string]float64{
		types.IndexHS300: {"F1": 3.0, "F2": 2.0, "F3": 1.0},
		types.IndexGold:  {"G1": 1.0},
	}

	fw := h.OnScores(types.Date(2020, 1, 2), target, scores, faInfos())
	require.NoError(t, fw.Validate())
	assert.Equal(t, []string{"F1", "F2", "G1"}, fw.SortedFundIDs(), "top 2 per asset, F3 dropped")

	// 等权: 大类权重均分给选中基金
	assert.InDelta(t, 0.3, fw.Items["F1"].FundWgt, 1e-9)
	assert.InDelta(t, 0.3, fw.Items["F2"].FundWgt, 1e-9)
	assert.InDelta(t, 0.2, fw.Items["G1"].FundWgt, 1e-9)
	assert.InDelta(t, 0.5, fw.Items["F1"].FundWgtInAsset, 1e-9)
}

func TestFAScoreProp(t *testing.T) {
	h, err := NewFAHelper(types.FAParam{MaxFundNumUnderAsset: 2, SelectionMode: types.SelectScoreProp}, nil, nil)
	require.NoError(t, err)

	target := types.AssetWeight{types.IndexHS300: 0.6}
	scores := map[types.IndexID]map[string]float64{
		types.IndexHS300: {"F1": 3.0, "F2": 1.0},
	}
	fw := h.OnScores(types.Date(2020, 1, 2), target, scores, faInfos())
	assert.InDelta(t, 0.45, fw.Items["F1"].FundWgt, 1e-9)
	assert.InDelta(t, 0.15, fw.Items["F2"].FundWgt, 1e-9)
}

func TestFAScorePropFallsBackToEqual(t *testing.T) {
	h, err := NewFAHelper(types.FAParam{MaxFundNumUnderAsset: 2, SelectionMode: types.SelectScoreProp}, nil, nil)
	require.NoError(t, err)

	// 出现非正得分时退回等权
	target := types.AssetWeight{types.IndexHS300: 0.6}
	scores := map[types.IndexID]map[string]float64{
		types.IndexHS300: {"F1": 3.0, "F2": -1.0},
	}
	fw := h.OnScores(types.Date(2020, 1, 2), target, scores, faInfos())
	assert.InDelta(t, 0.3, fw.Items["F1"].FundWgt, 1e-9)
	assert.InDelta(t, 0.3, fw.Items["F2"].FundWgt, 1e-9)
}

func TestFAMaxOnePerAsset(t *testing.T) {
	h, err := NewFAHelper(types.FAParam{MaxFundNumUnderAsset: 1, SelectionMode: types.SelectEqual}, nil, nil)
	require.NoError(t, err)

	target := types.AssetWeight{types.IndexHS300: 0.6}
	scores := map[types.IndexID]map[string]float64{
		types.IndexHS300: {"F1": 1.0, "F2": 2.0, "F3": 1.5},
	}
	fw := h.OnScores(types.Date(2020, 1, 2), target, scores, faInfos())
	require.Len(t, fw.Items, 1)
	assert.InDelta(t, 0.6, fw.Items["F2"].FundWgt, 1e-9, "single best fund takes the full asset weight")
}

func TestFATieBreakByFundID(t *testing.T) {
	h, err := NewFAHelper(types.FAParam{MaxFundNumUnderAsset: 1, SelectionMode: types.SelectEqual}, nil, nil)
	require.NoError(t, err)

	target := types.AssetWeight{types.IndexHS300: 0.5}
	scores := map[types.IndexID]map[string]float64{
		types.IndexHS300: {"F2": 1.0, "F1": 1.0},
	}
	fw := h.OnScores(types.Date(2020, 1, 2), target, scores, faInfos())
	require.Len(t, fw.Items, 1)
	assert.Contains(t, fw.Items, "F1", "equal scores break ties by fund id")
}

func TestFATieBreakByManagerScore(t *testing.T) {
	h, err := NewFAHelper(types.FAParam{MaxFundNumUnderAsset: 1, SelectionMode: types.SelectEqual}, nil, nil)
	require.NoError(t, err)

	infos := faInfos()
	infos["F1"].Manager = "zhang"
	infos["F2"].Manager = "li"
	h.SetManagerScores(map[string]float64{"zhang": 0.5, "li": 0.9})

	target := types.AssetWeight{types.IndexHS300: 0.5}
	scores := map[types.IndexID]map[string]float64{
		types.IndexHS300: {"F1": 1.0, "F2": 1.0},
	}
	fw := h.OnScores(types.Date(2020, 1, 2), target, scores, infos)
	require.Len(t, fw.Items, 1)
	assert.Contains(t, fw.Items, "F2", "equal fund scores defer to the manager score")
}

func TestFABlacklistAndWhitelist(t *testing.T) {
	h, err := NewFAHelper(types.DefaultFAParam(), []string{"F1"}, nil)
	require.NoError(t, err)
	assert.True(t, h.Blacklisted("F1"))
	assert.False(t, h.Blacklisted("F2"))

	target := types.AssetWeight{types.IndexHS300: 0.6}
	scores := map[types.IndexID]map[string]float64{
		types.IndexHS300: {"F1": 3.0, "F2": 2.0, "F3": 1.0},
	}
	fw := h.OnScores(types.Date(2020, 1, 2), target, scores, faInfos())
	assert.Equal(t, []string{"F2", "F3"}, fw.SortedFundIDs())

	// 白名单非空时名单外基金一律排除
	wl, err := NewFAHelper(types.DefaultFAParam(), nil, []string{"F3"})
	require.NoError(t, err)
	assert.True(t, wl.Blacklisted("F2"))
	fw = wl.OnScores(types.Date(2020, 1, 2), target, scores, faInfos())
	assert.Equal(t, []string{"F3"}, fw.SortedFundIDs())
}

func TestFAExpiredAndUnlistedExcluded(t *testing.T) {
	h, err := NewFAHelper(types.DefaultFAParam(), nil, nil)
	require.NoError(t, err)

	infos := faInfos()
	infos["F1"].EndDate = types.Date(2019, 12, 31)
	infos["F2"].StartDate = types.Date(2021, 1, 1)

	target := types.AssetWeight{types.IndexHS300: 0.6}
	scores := map[types.IndexID]map[string]float64{
		types.IndexHS300: {"F1": 3.0, "F2": 2.0, "F3": 1.0},
	}
	fw := h.OnScores(types.Date(2020, 1, 2), target, scores, infos)
	assert.Equal(t, []string{"F3"}, fw.SortedFundIDs(), "expired and not-yet-listed funds excluded")
}

func TestFANoCandidatesLeavesAssetEmpty(t *testing.T) {
	h, err := NewFAHelper(types.DefaultFAParam(), nil, nil)
	require.NoError(t, err)

	target := types.AssetWeight{types.IndexHS300: 0.4, types.IndexGold: 0.4}
	scores := map[types.IndexID]map[string]float64{
		types.IndexHS300: {"F1": 1.0},
	}
	fw := h.OnScores(types.Date(2020, 1, 2), target, scores, faInfos())
	assert.Equal(t, []string{"F1"}, fw.SortedFundIDs())
	assert.InDelta(t, 0.4, fw.Sum(), 1e-9, "gold weight stays unallocated")
}

func TestSAAHelper(t *testing.T) {
	_, err := NewSAAHelper(types.AssetWeight{types.IndexHS300: 1.2})
	assert.ErrorIs(t, err, types.ErrInvalidConfig)

	h, err := NewSAAHelper(types.AssetWeight{types.IndexHS300: 0.6, types.IndexGold: 0.2})
	require.NoError(t, err)

	w := h.OnPrice(types.Date(2020, 1, 2), nil)
	assert.InDelta(t, 0.6, w[types.IndexHS300], 1e-9)
	assert.InDelta(t, 0.2, w[types.IndexCash], 1e-9)

	// 返回副本, 调用方修改不影响助手
	w[types.IndexHS300] = 0
	w2 := h.OnPrice(types.Date(2020, 1, 3), nil)
	assert.InDelta(t, 0.6, w2[types.IndexHS300], 1e-9)
}

package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetWeightValidate(t *testing.T) {
	tests := []struct {
		name    string
		weights AssetWeight
		wantErr bool
	}{
		{
			name:    "valid with implicit cash",
			weights: AssetWeight{IndexHS300: 0.4, IndexNationalDebt: 0.4},
			wantErr: false,
		},
		{
			name:    "fully invested",
			weights: AssetWeight{IndexHS300: 0.6, IndexGold: 0.4},
			wantErr: false,
		},
		{
			name:    "negative weight",
			weights: AssetWeight{IndexHS300: -0.1, IndexGold: 0.5},
			wantErr: true,
		},
		{
			name:    "sum above one",
			weights: AssetWeight{IndexHS300: 0.7, IndexGold: 0.5},
			wantErr: true,
		},
		{
			name:    "unknown asset",
			weights: AssetWeight{IndexID("bitcoin"): 0.5},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.weights.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAssetWeightNormalize(t *testing.T) {
	w := AssetWeight{IndexHS300: 0.3, IndexGold: 0.3}
	n := w.Normalize()
	assert.InDelta(t, 0.3, n[IndexHS300], 1e-12)
	assert.InDelta(t, 0.4, n[IndexCash], 1e-12, "cash takes the residual")

	// 风险权重超1时等比压缩, 现金归零
	w = AssetWeight{IndexHS300: 0.8, IndexGold: 0.8}
	n = w.Normalize()
	assert.InDelta(t, 0.5, n[IndexHS300], 1e-12)
	assert.InDelta(t, 0.0, n[IndexCash], 1e-12)
}

func TestAssetPositionEvolve(t *testing.T) {
	pos := NewAssetPosition(0)
	pos.Assets[IndexHS300] = 1000
	pos.Assets[IndexGold] = 500
	pos.Cash = 100

	prev := AssetPrice{IndexHS300: 100, IndexGold: 50}
	cur := AssetPrice{IndexHS300: 110, IndexGold: 50}
	pos.Evolve(prev, cur)

	assert.InDelta(t, 1100, pos.Assets[IndexHS300], 1e-9)
	assert.InDelta(t, 500, pos.Assets[IndexGold], 1e-9)
	assert.InDelta(t, 100, pos.Cash, 1e-9, "cash unaffected by prices")
	assert.InDelta(t, 1700, pos.MarketValue(), 1e-9)
}

func TestAssetPositionEvolveMissingPrice(t *testing.T) {
	pos := NewAssetPosition(0)
	pos.Assets[IndexHS300] = 1000

	// 缺当日价格的资产保持上一日市值
	pos.Evolve(AssetPrice{IndexHS300: 100}, AssetPrice{})
	assert.InDelta(t, 1000, pos.Assets[IndexHS300], 1e-9)
}

func TestFundPositionCashLedger(t *testing.T) {
	day := Date(2020, 1, 2)
	p := NewFundPosition(10000, day)
	require.InDelta(t, 10000, p.Cash, 1e-9)
	require.Len(t, p.Ledger, 1)
	assert.Equal(t, CashDeposit, p.Ledger[0].Kind)

	err := p.ApplyCash(CashEntry{Date: day, Kind: CashBuySettle, FundID: "F1", Amount: -4000})
	require.NoError(t, err)
	assert.InDelta(t, 6000, p.Cash, 1e-9)

	err = p.ApplyCash(CashEntry{Date: day, Kind: CashBuySettle, FundID: "F2", Amount: -9000})
	assert.Error(t, err, "overdraft rejected")
	assert.InDelta(t, 6000, p.Cash, 1e-9, "balance unchanged on failure")
	assert.Len(t, p.Ledger, 2)
}

func TestFundPositionWeights(t *testing.T) {
	day := Date(2020, 1, 2)
	p := NewFundPosition(500, day)
	p.Funds["F1"] = &FundPositionItem{FundID: "F1", IndexID: IndexHS300, Volume: 100, LastUnitNAV: 2.0}
	p.Funds["F2"] = &FundPositionItem{FundID: "F2", IndexID: IndexHS300, Volume: 100, LastUnitNAV: 1.0}
	p.Funds["F3"] = &FundPositionItem{FundID: "F3", IndexID: IndexGold, Volume: 200, LastUnitNAV: 1.0}

	require.InDelta(t, 1000, p.MarketValue(), 1e-9)

	mv, w := p.Weights()
	assert.InDelta(t, 1000, mv, 1e-9)
	assert.InDelta(t, 0.2, w["F1"], 1e-9)

	aw := p.AssetWeights()
	assert.InDelta(t, 0.3, aw[IndexHS300], 1e-9)
	assert.InDelta(t, 0.2, aw[IndexGold], 1e-9)
	assert.InDelta(t, 0.5, aw[IndexCash], 1e-9)
}

func TestFundWeightValidate(t *testing.T) {
	fw := NewFundWeight()
	require.NoError(t, fw.Add(&FundWeightItem{
		FundID: "F1", IndexID: IndexHS300,
		FundWgt: 0.2, AssetWgt: 0.4, FundWgtInAsset: 0.5,
	}))
	require.NoError(t, fw.Add(&FundWeightItem{
		FundID: "F2", IndexID: IndexHS300,
		FundWgt: 0.2, AssetWgt: 0.4, FundWgtInAsset: 0.5,
	}))
	assert.NoError(t, fw.Validate())
	assert.InDelta(t, 0.4, fw.Sum(), 1e-12)

	// fund_wgt 与 asset_wgt * in_asset 不一致
	bad := NewFundWeight()
	require.NoError(t, bad.Add(&FundWeightItem{
		FundID: "F1", IndexID: IndexHS300,
		FundWgt: 0.3, AssetWgt: 0.4, FundWgtInAsset: 0.5,
	}))
	assert.Error(t, bad.Validate())

	dup := NewFundWeight()
	require.NoError(t, dup.Add(&FundWeightItem{FundID: "F1"}))
	assert.Error(t, dup.Add(&FundWeightItem{FundID: "F1"}))
}

func TestFeeScheduleRedeemRate(t *testing.T) {
	fee := &FeeSchedule{
		PurchaseRate: 0.015,
		RedeemTiers: []RedeemTier{
			{MinHoldingDays: 0, Rate: 0.015},
			{MinHoldingDays: 7, Rate: 0.005},
			{MinHoldingDays: 365, Rate: 0},
		},
	}
	require.NoError(t, fee.Validate())

	assert.InDelta(t, 0.015, fee.RedeemRate(3), 1e-12)
	assert.InDelta(t, 0.005, fee.RedeemRate(7), 1e-12)
	assert.InDelta(t, 0.005, fee.RedeemRate(100), 1e-12)
	assert.InDelta(t, 0.0, fee.RedeemRate(400), 1e-12)
}

func TestFundInfoSettleLag(t *testing.T) {
	plain := &FundInfo{FundID: "F1"}
	assert.Equal(t, 1, plain.SettleLag())

	qdii := &FundInfo{FundID: "F2", IsQDII: true}
	assert.Equal(t, 3, qdii.SettleLag())

	custom := &FundInfo{FundID: "F3", IsQDII: true, SettleLagDays: 2}
	assert.Equal(t, 2, custom.SettleLag())
}

func TestFundInfoExpired(t *testing.T) {
	open := &FundInfo{FundID: "F1"}
	assert.False(t, open.Expired(Date(2030, 1, 1)))

	closed := &FundInfo{FundID: "F2", EndDate: Date(2020, 6, 30)}
	assert.False(t, closed.Expired(Date(2020, 6, 29)))
	assert.True(t, closed.Expired(Date(2020, 6, 30)))
	assert.True(t, closed.Expired(Date(2020, 7, 1)))
}

func TestSortedDates(t *testing.T) {
	m := map[time.Time]struct{}{
		Date(2020, 3, 1): {},
		Date(2020, 1, 1): {},
		Date(2020, 2, 1): {},
	}
	ds := SortedDates(m)
	require.Len(t, ds, 3)
	assert.True(t, ds[0].Before(ds[1]) && ds[1].Before(ds[2]))
}

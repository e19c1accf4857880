package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/opsxjacky/fund-backtest/internal/report"
	"github.com/opsxjacky/fund-backtest/pkg/types"
)

// ResultSummary 结果摘要
type ResultSummary struct {
	StartDate       time.Time          `json:"start_date"`
	EndDate         time.Time          `json:"end_date"`
	InitialCash     float64            `json:"initial_cash"`
	FinalValue      float64            `json:"final_value"`
	AnnualRet       float64            `json:"annual_ret"`
	AnnualVol       float64            `json:"annual_vol"`
	Sharpe          float64            `json:"sharpe"`
	MaxDrawdown     float64            `json:"max_drawdown"`
	TotalTrades     int                `json:"total_trades"`
	TotalCommission float64            `json:"total_commission"`
	RebalanceTimes  int                `json:"rebalance_times"`
	RecentRets      map[string]float64 `json:"recent_rets,omitempty"`
}

// summary 从基金层结果构造摘要. 未定义指标置零, 避免 NaN 进入JSON
func (e *BacktestEngine) summary(res *report.FundResult) ResultSummary {
	recent := make(map[string]float64, len(res.RecentRets))
	for k, v := range res.RecentRets {
		if report.Defined(v) {
			recent[k] = v
		}
	}
	return ResultSummary{
		StartDate:       res.StartDate,
		EndDate:         res.EndDate,
		InitialCash:     res.InitialMV,
		FinalValue:      res.FinalMV,
		AnnualRet:       zeroIfUndef(res.AnnualRet),
		AnnualVol:       zeroIfUndef(res.AnnualVol),
		Sharpe:          zeroIfUndef(res.Sharpe),
		MaxDrawdown:     zeroIfUndef(res.MDD),
		TotalTrades:     len(e.GetFundTrades()),
		TotalCommission: res.TotalCommission,
		RebalanceTimes:  res.RebalanceTimes,
		RecentRets:      recent,
	}
}

func zeroIfUndef(v float64) float64 {
	if !report.Defined(v) {
		return 0
	}
	return v
}

// ExportResults 导出结果到JSON文件
func (e *BacktestEngine) ExportResults(filepath string) error {
	fundRes, err := e.GetFundResult()
	if err != nil {
		return fmt.Errorf("no results to export, run backtest first: %w", err)
	}
	assetRes, err := e.GetAssetResult()
	if err != nil {
		return fmt.Errorf("no results to export, run backtest first: %w", err)
	}

	output := struct {
		Summary     ResultSummary       `json:"summary"`
		AssetResult *report.AssetResult `json:"asset_result"`
		FundResult  *report.FundResult  `json:"fund_result"`
		FundTrades  []*types.FundTrade  `json:"fund_trades"`
		AssetTrades []*types.AssetTrade `json:"asset_trades"`
		EquityCurve []report.MVPoint    `json:"equity_curve"`
	}{
		Summary:     e.summary(fundRes),
		AssetResult: assetRes,
		FundResult:  fundRes,
		FundTrades:  e.GetFundTrades(),
		AssetTrades: e.GetAssetTrades(),
		EquityCurve: e.reporter.GetFundEquityCurve(),
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	fmt.Printf("Results exported to: %s\n", filepath)
	return nil
}

// PrintSummary 打印回测摘要
func (e *BacktestEngine) PrintSummary() {
	fundRes, err := e.GetFundResult()
	if err != nil {
		fmt.Println("No results available")
		return
	}
	s := e.summary(fundRes)

	fmt.Println("\n========== Backtest Summary ==========")
	fmt.Printf("Period: %s to %s\n",
		s.StartDate.Format("2006-01-02"),
		s.EndDate.Format("2006-01-02"))
	fmt.Printf("Initial Cash: %.2f\n", s.InitialCash)
	fmt.Printf("Final Value: %.2f\n", s.FinalValue)
	if report.Defined(s.AnnualRet) {
		fmt.Printf("Annual Return: %.2f%%\n", s.AnnualRet*100)
	}
	if report.Defined(s.AnnualVol) {
		fmt.Printf("Annual Volatility: %.2f%%\n", s.AnnualVol*100)
	}
	if report.Defined(s.Sharpe) {
		fmt.Printf("Sharpe Ratio: %.3f\n", s.Sharpe)
	}
	if report.Defined(s.MaxDrawdown) {
		fmt.Printf("Max Drawdown: %.2f%%\n", s.MaxDrawdown*100)
	}
	fmt.Printf("Total Trades: %d\n", s.TotalTrades)
	fmt.Printf("Total Commission: %.2f\n", s.TotalCommission)
	fmt.Printf("Rebalance Times: %d\n", s.RebalanceTimes)
	fmt.Println("======================================")
}

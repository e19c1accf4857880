package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opsxjacky/fund-backtest/internal/config"
	"github.com/opsxjacky/fund-backtest/internal/data"
	"github.com/opsxjacky/fund-backtest/internal/engine"
	"github.com/opsxjacky/fund-backtest/internal/helper"
	"github.com/opsxjacky/fund-backtest/internal/logger"
	"github.com/opsxjacky/fund-backtest/internal/trader"
)

var (
	configPath string
	outputPath string
)

var rootCmd = &cobra.Command{
	Use:   "fundbt",
	Short: "基金组合回测工具",
	Long:  "按战略/战术配置与基金选择策略, 对公募基金组合做逐日回测",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "运行回测",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBacktest()
	},
}

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "配置文件路径")
	runCmd.Flags().StringVarP(&outputPath, "output", "o", "", "结果JSON输出路径 (默认取配置文件 output.path)")
	rootCmd.AddCommand(runCmd)
}

func runBacktest() error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Backtest.LogLevel)
	defer log.Sync()

	eng, err := buildEngine(cfg, log)
	if err != nil {
		return err
	}

	if err := eng.Run(); err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	eng.PrintSummary()

	out := outputPath
	if out == "" {
		out = cfg.Output.Path
	}
	if out != "" {
		if err := eng.ExportResults(out); err != nil {
			return err
		}
	}
	return nil
}

// buildEngine 按配置组装数据管理器/助手/交易员
func buildEngine(cfg *config.Config, log *zap.Logger) (*engine.BacktestEngine, error) {
	start, end, err := cfg.Dates()
	if err != nil {
		return nil, err
	}
	scoreSel, err := cfg.ScoreSelect()
	if err != nil {
		return nil, err
	}

	dm := data.NewCSVManager(cfg.Backtest.DataDir, log)
	if err := dm.Load(); err != nil {
		return nil, fmt.Errorf("failed to load data from %s: %w", cfg.Backtest.DataDir, err)
	}

	engCfg := engine.DefaultConfig(start, end)
	engCfg.InitialCash = cfg.InitialCash()
	engCfg.RiskFree = cfg.RiskFree()
	engCfg.ScoreSelect = scoreSel
	eng := engine.New(engCfg, log)
	eng.SetDataManager(dm)

	saaWeight, err := cfg.SAAWeight()
	if err != nil {
		return nil, err
	}
	saa, err := helper.NewSAAHelper(saaWeight)
	if err != nil {
		return nil, err
	}
	eng.SetSAAHelper(saa)

	taaParams, err := cfg.TAAParams()
	if err != nil {
		return nil, err
	}
	if len(taaParams) > 0 {
		taa, err := helper.NewTAAHelper(taaParams)
		if err != nil {
			return nil, err
		}
		eng.SetTAAHelper(taa)
	}

	fa, err := helper.NewFAHelper(cfg.FAParam(), cfg.FA.Blacklist, cfg.FA.Whitelist)
	if err != nil {
		return nil, err
	}
	eng.SetFAHelper(fa)

	eng.SetFundTrader(trader.NewFundTrader(cfg.FundTradeParam(), dm, log))
	eng.SetAssetTrader(trader.NewAssetTrader(cfg.AssetTradeParam(), log))
	return eng, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

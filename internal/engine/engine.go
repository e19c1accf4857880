// Package engine 组装数据/策略/交易/报告, 按交易日驱动回测.
// 引擎独占持仓与在途交易, 助手与交易员不保存持仓状态
package engine

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/opsxjacky/fund-backtest/internal/data"
	"github.com/opsxjacky/fund-backtest/internal/helper"
	"github.com/opsxjacky/fund-backtest/internal/report"
	"github.com/opsxjacky/fund-backtest/internal/trader"
	"github.com/opsxjacky/fund-backtest/pkg/types"
)

// Config 引擎配置
type Config struct {
	StartDate   time.Time
	EndDate     time.Time
	InitialCash float64
	RiskFree    float64
	ScoreSelect data.ScoreSelect
}

// DefaultConfig 默认引擎配置
func DefaultConfig(start, end time.Time) Config {
	return Config{
		StartDate:   start,
		EndDate:     end,
		InitialCash: types.DefaultCash,
		RiskFree:    types.DefaultRiskFree,
		ScoreSelect: data.ScoreSelect{},
	}
}

// BacktestEngine 回测引擎
type BacktestEngine struct {
	config      Config
	dm          data.Manager
	saaHelper   *helper.SAAHelper
	taaHelper   *helper.TAAHelper
	faHelper    *helper.FAHelper
	fundTrader  *trader.FundTrader
	basicTrader *trader.BasicFundTrader
	assetTrader *trader.AssetTrader
	reporter    *report.ReportHelper
	logger      *zap.Logger

	curAsset    *types.AssetPosition
	curFund     *types.FundPosition
	pending     []*types.FundTrade
	lastPrices  types.AssetPrice
	lastVirtual *types.FundPosition
}

// New 创建回测引擎
func New(config Config, logger *zap.Logger) *BacktestEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BacktestEngine{
		config:   config,
		logger:   logger,
		reporter: report.NewReportHelper(config.RiskFree),
	}
}

// SetDataManager 设置数据管理器
func (e *BacktestEngine) SetDataManager(dm data.Manager) { e.dm = dm }

// SetSAAHelper 设置战略配置助手
func (e *BacktestEngine) SetSAAHelper(h *helper.SAAHelper) { e.saaHelper = h }

// SetTAAHelper 设置战术配置助手 (可选)
func (e *BacktestEngine) SetTAAHelper(h *helper.TAAHelper) { e.taaHelper = h }

// SetFAHelper 设置基金选择助手
func (e *BacktestEngine) SetFAHelper(h *helper.FAHelper) { e.faHelper = h }

// SetFundTrader 设置策略驱动的基金交易员
func (e *BacktestEngine) SetFundTrader(t *trader.FundTrader) { e.fundTrader = t }

// SetBasicFundTrader 设置外部权重交易员, 与策略模式互斥
func (e *BacktestEngine) SetBasicFundTrader(t *trader.BasicFundTrader) { e.basicTrader = t }

// SetAssetTrader 设置资产层交易员
func (e *BacktestEngine) SetAssetTrader(t *trader.AssetTrader) { e.assetTrader = t }

// Reporter 报告助手, 回测中止后可查询已累积的部分
func (e *BacktestEngine) Reporter() *report.ReportHelper { return e.reporter }

// Setup 校验配置并初始化持仓
func (e *BacktestEngine) Setup() error {
	if e.dm == nil {
		return fmt.Errorf("%w: data manager not set", types.ErrInvalidConfig)
	}
	if e.config.InitialCash <= 0 {
		return fmt.Errorf("%w: initial cash must be positive", types.ErrInvalidConfig)
	}
	if e.config.EndDate.Before(e.config.StartDate) {
		return fmt.Errorf("%w: end date before start date", types.ErrInvalidConfig)
	}
	if e.basicTrader == nil {
		if e.saaHelper == nil || e.faHelper == nil || e.fundTrader == nil {
			return fmt.Errorf("%w: policy mode requires saa helper, fa helper and fund trader", types.ErrInvalidConfig)
		}
		e.fundTrader.SetHelper(e.faHelper)
	}

	days := data.DaysInRange(e.dm.TradingDays(), e.config.StartDate, e.config.EndDate)
	if len(days) == 0 {
		return fmt.Errorf("%w: no trading days between %s and %s", types.ErrFatalInput,
			e.config.StartDate.Format("2006-01-02"), e.config.EndDate.Format("2006-01-02"))
	}

	e.curAsset = types.NewAssetPosition(e.config.InitialCash)
	e.curFund = types.NewFundPosition(e.config.InitialCash, days[0])
	e.pending = nil
	e.lastPrices = nil
	if e.saaHelper != nil {
		e.reporter.SetSAA(e.saaHelper.OnPrice(days[0], nil))
	}
	return nil
}

// Run 运行回测. 局部错误记入当日报告后继续, 致命错误中止并返回
func (e *BacktestEngine) Run() error {
	if e.curFund == nil {
		if err := e.Setup(); err != nil {
			return err
		}
	}

	days := data.DaysInRange(e.dm.TradingDays(), e.config.StartDate, e.config.EndDate)
	e.logger.Info("backtest started",
		zap.Time("start", days[0]), zap.Time("end", days[len(days)-1]),
		zap.Int("trading_days", len(days)))

	for _, day := range days {
		if err := e.step(day); err != nil {
			return fmt.Errorf("backtest aborted on %s: %w", day.Format("2006-01-02"), err)
		}
	}

	e.logger.Info("backtest finished",
		zap.Float64("final_fund_mv", e.curFund.MarketValue()),
		zap.Float64("final_asset_mv", e.curAsset.MarketValue()),
		zap.Int("pending_trades", len(e.pending)))
	return nil
}

// step 单日流程: 取数 → 结算在途 → 计算目标与新交易 → 入队 → 记录
func (e *BacktestEngine) step(day time.Time) error {
	// 1. 当日数据快照
	prices := e.dm.IndexPriceOn(day)
	navs := e.dm.FundNAVOn(day)
	unitNavs := e.dm.FundUnitNAVOn(day)
	pcts := e.dm.IndexPctOn(day)
	suspended := e.dm.SuspendedOn(day)
	fees := e.dm.FundFees()
	infos := e.dm.FundInfos()

	var events []report.Event
	for _, id := range e.curFund.SortedFundIDs() {
		if _, ok := unitNavs[id]; !ok && e.curFund.Funds[id].Volume > 0 {
			// 持仓基金净值缺失: 按最近净值估值, 当日不交易
			events = append(events, report.Event{
				Kind: report.EventDataMissing, FundID: id,
				Detail: "unit nav missing, carried at last known nav",
			})
		}
	}

	// 资产层市值随价格演化, 基金层按当日净值重估
	if e.lastPrices != nil {
		e.curAsset.Evolve(e.lastPrices, prices)
	}
	e.curFund.UpdateNAVs(unitNavs, navs)

	// 2-3. 结算到期在途交易并更新持仓
	var finalized []*types.FundTrade
	e.pending, finalized = e.finalizer().FinalizeTrade(day, e.pending, e.curFund, unitNavs, suspended, fees)
	for _, tr := range finalized {
		if tr.Status == types.TradeRejected {
			events = append(events, report.Event{
				Kind: report.EventTradeRejected, FundID: tr.FundID, Detail: tr.RejectReason,
			})
		}
	}

	// 4. 计算目标权重与新交易
	ctx := &trader.TradeContext{
		Day:      day,
		Prices:   prices,
		NAVs:     navs,
		UnitNAVs: unitNavs,
		Infos:    infos,
		Fees:     fees,
	}
	var (
		newTrades   []*types.FundTrade
		assetTrades []*types.AssetTrade
		trigger     types.TradeTrigger
		detail      string
	)
	if e.basicTrader != nil {
		e.lastVirtual, newTrades, trigger, detail = e.basicTrader.CalcTrade(ctx, e.curFund, e.pending)
	} else {
		saaW := e.saaHelper.OnPrice(day, prices)
		targetAsset := saaW
		if e.taaHelper != nil {
			targetAsset = e.taaHelper.OnPrice(day, saaW, pcts)
			ctx.Overheated = e.taaHelper.OverheatedToday()
		}
		filtered, _ := e.dm.FundScoresOn(day, e.config.ScoreSelect)
		ctx.Scores = filtered
		_, _, mgrScores := e.dm.ManagerScoresOn(day)
		e.faHelper.SetManagerScores(mgrScores)
		targetFund := e.faHelper.OnScores(day, targetAsset, filtered, infos)
		e.reporter.SetLastTargetAllocation(targetFund)

		e.lastVirtual, newTrades, trigger, detail = e.fundTrader.CalcTrade(ctx, targetFund, targetAsset, e.curFund, e.pending)

		if e.assetTrader != nil {
			var aTrigger types.TradeTrigger
			var aDetail string
			assetTrades, aTrigger, aDetail = e.assetTrader.CalcTrade(day, targetAsset, e.curAsset, prices)
			if trigger == types.TriggerNone {
				trigger, detail = aTrigger, aDetail
			}
		}
	}

	// 5. 新交易进入在途队列
	e.pending = append(e.pending, newTrades...)

	// 6. 记录当日状态
	e.reporter.Update(&report.DayRecord{
		Date:          day,
		AssetPosition: e.curAsset.Copy(),
		FundPosition:  e.curFund.Copy(),
		Prices:        prices,
		NAVs:          navs,
		AssetMV:       e.curAsset.MarketValue(),
		FundMV:        e.curFund.MarketValue(),
		FundTrades:    finalized,
		AssetTrades:   assetTrades,
		Trigger:       trigger,
		TriggerDetail: detail,
		Events:        events,
	})

	e.lastPrices = prices
	return nil
}

// finalizer 当前生效的基金交易员
func (e *BacktestEngine) finalizer() fundFinalizer {
	if e.basicTrader != nil {
		return e.basicTrader
	}
	return e.fundTrader
}

type fundFinalizer interface {
	FinalizeTrade(day time.Time, pending []*types.FundTrade, pos *types.FundPosition,
		unitNavs map[string]float64, suspended map[string]bool,
		fees map[string]*types.FeeSchedule) ([]*types.FundTrade, []*types.FundTrade)
}

// GetAssetResult 资产层回测结果
func (e *BacktestEngine) GetAssetResult() (*report.AssetResult, error) {
	return e.reporter.GetAssetResult()
}

// GetFundResult 基金层回测结果
func (e *BacktestEngine) GetFundResult() (*report.FundResult, error) {
	return e.reporter.GetFundResult()
}

// GetFundTrades 已确认基金交易表
func (e *BacktestEngine) GetFundTrades() []*types.FundTrade {
	return e.reporter.GetFundTrades()
}

// GetAssetTrades 资产层交易表
func (e *BacktestEngine) GetAssetTrades() []*types.AssetTrade {
	return e.reporter.GetAssetTrades()
}

// GetLastPosition 期末持仓
func (e *BacktestEngine) GetLastPosition() (*types.AssetPosition, *types.FundPosition) {
	if e.curAsset == nil || e.curFund == nil {
		return nil, nil
	}
	return e.curAsset.Copy(), e.curFund.Copy()
}

// GetLastTargetFundAllocation 最近一次目标基金配置
func (e *BacktestEngine) GetLastTargetFundAllocation() *types.FundWeight {
	return e.reporter.GetLastTargetFundAllocation()
}

// GetVirtualPosition 最近一次调仓返回的虚拟持仓 (按参考净值立即成交的估计)
func (e *BacktestEngine) GetVirtualPosition() *types.FundPosition { return e.lastVirtual }

// PendingTrades 在途交易 (只读)
func (e *BacktestEngine) PendingTrades() []*types.FundTrade { return e.pending }

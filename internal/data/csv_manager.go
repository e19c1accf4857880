package data

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/opsxjacky/fund-backtest/pkg/types"
)

// CSV 数据文件名约定
const (
	fileIndexPrice    = "index_price.csv"
	fileIndexPct      = "index_pct.csv"
	fileFundNAV       = "fund_nav.csv"
	fileFundInfo      = "fund_info.csv"
	fileFundFee       = "fund_fee.csv"
	fileFundIndicator = "fund_indicator.csv"
	fileManagerScore  = "manager_score.csv"
)

const dateLayout = "2006-01-02"

// CSVManager 从目录加载CSV数据的管理器
type CSVManager struct {
	*MemManager
	dataDir string
	logger  *zap.Logger
}

// NewCSVManager 创建CSV数据管理器
func NewCSVManager(dataDir string, logger *zap.Logger) *CSVManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVManager{
		MemManager: NewMemManager(),
		dataDir:    dataDir,
		logger:     logger,
	}
}

// SourceType 数据源类型
func (m *CSVManager) SourceType() string { return "csv" }

// Load 加载全部数据文件. index_price 与 fund_info 必需, 其余可缺省
func (m *CSVManager) Load() error {
	if err := m.loadIndexPrice(); err != nil {
		return err
	}
	if err := m.loadFundInfo(); err != nil {
		return err
	}
	if err := m.loadOptional(fileIndexPct, m.parseIndexPctRow); err != nil {
		return err
	}
	if err := m.loadOptional(fileFundNAV, m.parseFundNAVRow); err != nil {
		return err
	}
	if err := m.loadOptional(fileFundFee, m.parseFundFeeRow); err != nil {
		return err
	}
	if err := m.loadOptional(fileManagerScore, m.parseManagerScoreRow); err != nil {
		return err
	}
	if err := m.loadIndicators(); err != nil {
		return err
	}
	m.logger.Info("csv data loaded",
		zap.Int("trading_days", len(m.days)),
		zap.Int("funds", len(m.infos)))
	return nil
}

func (m *CSVManager) readAll(name string) ([]string, [][]string, error) {
	path := filepath.Join(m.dataDir, name)
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(records) < 1 {
		return nil, nil, fmt.Errorf("%s has no header row", name)
	}
	return records[0], records[1:], nil
}

// parseHeader 解析表头, 返回列名到列号的映射
func parseHeader(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return idx
}

func (m *CSVManager) loadIndexPrice() error {
	header, rows, err := m.readAll(fileIndexPrice)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrFatalInput, err)
	}
	col := parseHeader(header)
	dateSet := make(map[time.Time]struct{})
	for _, row := range rows {
		day, err := time.Parse(dateLayout, pick(row, col, "date"))
		if err != nil {
			continue // 跳过解析错误的行
		}
		id := types.IndexID(pick(row, col, "index_id"))
		price, err := strconv.ParseFloat(pick(row, col, "close"), 64)
		if err != nil || price <= 0 {
			continue
		}
		m.SetIndexPrice(day, id, price)
		dateSet[day] = struct{}{}
	}
	m.SetTradingDays(types.SortedDates(dateSet))
	if len(m.days) == 0 {
		return fmt.Errorf("%w: no trading days in %s", types.ErrFatalInput, fileIndexPrice)
	}
	return nil
}

func (m *CSVManager) loadFundInfo() error {
	header, rows, err := m.readAll(fileFundInfo)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrFatalInput, err)
	}
	col := parseHeader(header)
	for _, row := range rows {
		info := &types.FundInfo{
			FundID:   pick(row, col, "fund_id"),
			IndexID:  types.IndexID(pick(row, col, "index_id")),
			DescName: pick(row, col, "desc_name"),
			Manager:  pick(row, col, "manager"),
		}
		if info.FundID == "" {
			continue
		}
		if d, err := time.Parse(dateLayout, pick(row, col, "start_date")); err == nil {
			info.StartDate = d
		}
		if d, err := time.Parse(dateLayout, pick(row, col, "end_date")); err == nil {
			info.EndDate = d
		}
		if n, err := strconv.Atoi(pick(row, col, "settle_lag")); err == nil {
			info.SettleLagDays = n
		}
		info.IsQDII = pick(row, col, "is_qdii") == "1"
		m.SetFundInfo(info)
	}
	return nil
}

// loadOptional 加载可缺省的文件, 文件不存在时静默跳过
func (m *CSVManager) loadOptional(name string, parse func(map[string]int, []string)) error {
	header, rows, err := m.readAll(name)
	if err != nil {
		if os.IsNotExist(err) {
			m.logger.Debug("optional data file missing", zap.String("file", name))
			return nil
		}
		return fmt.Errorf("%w: %v", types.ErrFatalInput, err)
	}
	col := parseHeader(header)
	for _, row := range rows {
		parse(col, row)
	}
	return nil
}

func (m *CSVManager) parseIndexPctRow(col map[string]int, row []string) {
	day, err := time.Parse(dateLayout, pick(row, col, "date"))
	if err != nil {
		return
	}
	pct, err := strconv.ParseFloat(pick(row, col, "pct"), 64)
	if err != nil || pct < 0 || pct > 1 {
		return
	}
	m.SetIndexPct(day, types.IndexID(pick(row, col, "index_id")), pct)
}

func (m *CSVManager) parseFundNAVRow(col map[string]int, row []string) {
	day, err := time.Parse(dateLayout, pick(row, col, "date"))
	if err != nil {
		return
	}
	fundID := pick(row, col, "fund_id")
	nav, err1 := strconv.ParseFloat(pick(row, col, "nav"), 64)
	unitNav, err2 := strconv.ParseFloat(pick(row, col, "unit_nav"), 64)
	if fundID == "" || err1 != nil || err2 != nil || nav <= 0 || unitNav <= 0 {
		return
	}
	m.SetFundNAV(day, fundID, nav, unitNav)
}

func (m *CSVManager) parseManagerScoreRow(col map[string]int, row []string) {
	day, err := time.Parse(dateLayout, pick(row, col, "date"))
	if err != nil {
		return
	}
	manager := pick(row, col, "manager")
	score, perr := strconv.ParseFloat(pick(row, col, "score"), 64)
	if manager == "" || perr != nil {
		return
	}
	m.SetManagerScore(day, manager, score)
}

// parseFundFeeRow 赎回档位格式 "最短持有天数:费率;..." 例如 "0:0.015;7:0.005;365:0"
func (m *CSVManager) parseFundFeeRow(col map[string]int, row []string) {
	fundID := pick(row, col, "fund_id")
	if fundID == "" {
		return
	}
	fee := &types.FeeSchedule{}
	if v, err := strconv.ParseFloat(pick(row, col, "purchase_rate"), 64); err == nil {
		fee.PurchaseRate = v
	}
	for _, part := range strings.Split(pick(row, col, "redeem_tiers"), ";") {
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			continue
		}
		days, err1 := strconv.Atoi(strings.TrimSpace(kv[0]))
		rate, err2 := strconv.ParseFloat(strings.TrimSpace(kv[1]), 64)
		if err1 != nil || err2 != nil {
			continue
		}
		fee.RedeemTiers = append(fee.RedeemTiers, types.RedeemTier{MinHoldingDays: days, Rate: rate})
	}
	if err := fee.Validate(); err != nil {
		m.logger.Warn("malformed fee schedule dropped",
			zap.String("fund_id", fundID), zap.Error(err))
		return
	}
	m.SetFundFee(fundID, fee)
}

// loadIndicators 指标文件为宽表: date, fund_id, 其余列名即指标名
func (m *CSVManager) loadIndicators() error {
	header, rows, err := m.readAll(fileFundIndicator)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: %v", types.ErrFatalInput, err)
	}
	col := parseHeader(header)
	for _, row := range rows {
		day, err := time.Parse(dateLayout, pick(row, col, "date"))
		if err != nil {
			continue
		}
		fundID := pick(row, col, "fund_id")
		if fundID == "" {
			continue
		}
		for name, i := range col {
			if name == "date" || name == "fund_id" || i >= len(row) {
				continue
			}
			if v, err := strconv.ParseFloat(row[i], 64); err == nil {
				m.SetIndicator(day, fundID, name, v)
			}
		}
	}
	return nil
}

func pick(row []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

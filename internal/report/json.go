package report

import "encoding/json"

// jsonMap 指标转JSON对象, NaN/Inf 输出为 null (encoding/json 不接受 NaN)
func (s *StatResult) jsonMap() map[string]interface{} {
	recent := make(map[string]interface{}, len(s.RecentRets))
	for k, v := range s.RecentRets {
		recent[k] = fnum(v)
	}
	return map[string]interface{}{
		"start_date":         s.StartDate,
		"end_date":           s.EndDate,
		"days":               s.Days,
		"initial_mv":         fnum(s.InitialMV),
		"final_mv":           fnum(s.FinalMV),
		"last_unit_nav":      fnum(s.LastUnitNAV),
		"annual_ret":         fnum(s.AnnualRet),
		"annual_vol":         fnum(s.AnnualVol),
		"sharpe":             fnum(s.Sharpe),
		"mdd":                fnum(s.MDD),
		"mdd_date1":          s.MddDate1,
		"mdd_date2":          s.MddDate2,
		"ret_over_mdd":       fnum(s.RetOverMdd),
		"vol_by_week":        fnum(s.VolByWeek),
		"vol_by_month":       fnum(s.VolByMonth),
		"last_mv_diff":       fnum(s.LastMVDiff),
		"last_increase_rate": fnum(s.LastIncreaseRate),
		"recent_rets":        recent,
	}
}

// MarshalJSON 见 jsonMap
func (s *StatResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.jsonMap())
}

// MarshalJSON 展平嵌入的统计指标
func (r *AssetResult) MarshalJSON() ([]byte, error) {
	m := r.StatResult.jsonMap()
	m["saa"] = r.SAA
	m["market_value"] = r.MarketValue
	m["total_commission"] = fnum(r.TotalCommission)
	m["rebalance_times"] = r.RebalanceTimes
	return json.Marshal(m)
}

// MarshalJSON 展平嵌入的统计指标
func (r *FundResult) MarshalJSON() ([]byte, error) {
	m := r.StatResult.jsonMap()
	m["saa"] = r.SAA
	m["market_value"] = r.MarketValue
	m["total_commission"] = fnum(r.TotalCommission)
	m["rebalance_times"] = r.RebalanceTimes
	m["turnover_yearly_avg"] = fnum(r.TurnoverYearlyAvg)
	m["hold_years"] = r.HoldYears
	return json.Marshal(m)
}

func fnum(v float64) interface{} {
	if !Defined(v) {
		return nil
	}
	return v
}

package cost

import "fmt"

// viableWinRateCeiling 为策略可行性的胜率上限，超过即判定不可行。
const viableWinRateCeiling = 0.70

// WinRateAnalysis 为给定止盈止损下的盈亏平衡分析。
type WinRateAnalysis struct {
	Instrument      string
	TargetPips      float64
	StopLossPips    float64
	TotalCostPips   float64
	NetTargetPips   float64
	NetStopPips     float64
	RequiredWinRate float64
	CostRatioOnWin  float64
	Viable          bool
	Reason          string
}

// RequiredWinRate 计算覆盖成本所需的盈亏平衡胜率。
// 止盈不足以覆盖成本时直接判定不可行。
func (c *Calculator) RequiredWinRate(instrument string, targetPips, stopLossPips float64, tier Tier) (WinRateAnalysis, error) {
	profile, err := c.Profile(instrument)
	if err != nil {
		return WinRateAnalysis{}, err
	}
	if targetPips <= 0 || stopLossPips <= 0 {
		return WinRateAnalysis{}, fmt.Errorf("cost: 止盈止损必须为正 (target=%v stop=%v)", targetPips, stopLossPips)
	}

	totalCostPips := spreadFor(profile, tier)*2 + slippageFor(profile, tier)*2
	netTarget := targetPips - totalCostPips
	netStop := stopLossPips + totalCostPips

	analysis := WinRateAnalysis{
		Instrument:    instrument,
		TargetPips:    targetPips,
		StopLossPips:  stopLossPips,
		TotalCostPips: totalCostPips,
		NetTargetPips: netTarget,
		NetStopPips:   netStop,
	}

	if netTarget <= 0 {
		analysis.Viable = false
		analysis.Reason = "止盈过小，无法覆盖成本"
		return analysis, nil
	}

	// 盈亏平衡：win_rate × net_target = (1 - win_rate) × net_stop
	analysis.RequiredWinRate = netStop / (netTarget + netStop)
	analysis.CostRatioOnWin = totalCostPips / targetPips
	analysis.Viable = analysis.RequiredWinRate < viableWinRateCeiling
	if !analysis.Viable {
		analysis.Reason = "盈亏平衡胜率过高"
	}

	return analysis, nil
}

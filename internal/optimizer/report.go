package optimizer

import (
	"math"
	"sort"
)

// Classification 为参数稳定性的总体评级。
type Classification string

const (
	ClassRobust   Classification = "robust"
	ClassModerate Classification = "moderate"
	ClassUnstable Classification = "unstable"
)

// Aggregate 为样本外指标的均值、中位数与标准差。
type Aggregate struct {
	Mean   float64
	Median float64
	Std    float64
}

// ParamStability 为单个可调参数在各窗口最优解中的均值与波动。
type ParamStability struct {
	Name string
	Mean float64
	Std  float64
}

// Report 为一次走向前优化的完整报告。
type Report struct {
	Windows         []WindowResult
	EligibleWindows int
	FailedWindows   int

	ReturnPct  Aggregate
	WinRatePct Aggregate
	Sharpe     Aggregate

	Stability []ParamStability

	PositiveWindows int
	Consistency     float64
	Classification  Classification
}

// buildReport 按窗口ID排序后汇总样本外表现。
// 只有测试段交易数达标的窗口计入统计，失败窗口保留在报告里。
func buildReport(results []WindowResult) *Report {
	sort.Slice(results, func(i, j int) bool {
		return results[i].Window.ID < results[j].Window.ID
	})

	report := &Report{Windows: results}

	var returns, winRates, sharpes []float64
	var oversold, overbought, rewardRisk, atrMult, maShort, maLong, minVolume, minTrend []float64

	for _, window := range results {
		if window.Failed {
			report.FailedWindows++
			continue
		}
		if !window.Eligible || window.Test == nil {
			continue
		}

		report.EligibleWindows++
		returns = append(returns, window.Test.TotalReturnPct)
		winRates = append(winRates, window.Test.WinRatePct)
		sharpes = append(sharpes, window.Test.Sharpe)
		if window.Test.TotalReturnPct > 0 {
			report.PositiveWindows++
		}

		oversold = append(oversold, window.BestParams.RSIOversold)
		overbought = append(overbought, window.BestParams.RSIOverbought)
		rewardRisk = append(rewardRisk, window.BestParams.RewardRiskRatio)
		atrMult = append(atrMult, window.BestParams.ATRMultiplier)
		maShort = append(maShort, float64(window.BestParams.MAShortPeriod))
		maLong = append(maLong, float64(window.BestParams.MALongPeriod))
		minVolume = append(minVolume, window.BestParams.MinVolume)
		minTrend = append(minTrend, window.BestParams.MinTrendStrength)
	}

	if report.EligibleWindows == 0 {
		report.Classification = ClassUnstable
		return report
	}

	report.ReturnPct = aggregate(returns)
	report.WinRatePct = aggregate(winRates)
	report.Sharpe = aggregate(sharpes)

	report.Stability = []ParamStability{
		stability("rsi_oversold", oversold),
		stability("rsi_overbought", overbought),
		stability("reward_risk_ratio", rewardRisk),
		stability("atr_multiplier", atrMult),
		stability("ma_short_period", maShort),
		stability("ma_long_period", maLong),
		stability("min_volume", minVolume),
		stability("min_trend_strength", minTrend),
	}

	report.Consistency = float64(report.PositiveWindows) / float64(report.EligibleWindows)
	switch {
	case report.Consistency > 0.60:
		report.Classification = ClassRobust
	case report.Consistency > 0.40:
		report.Classification = ClassModerate
	default:
		report.Classification = ClassUnstable
	}

	return report
}

func aggregate(values []float64) Aggregate {
	return Aggregate{
		Mean:   mean(values),
		Median: median(values),
		Std:    std(values),
	}
}

func stability(name string, values []float64) ParamStability {
	return ParamStability{Name: name, Mean: mean(values), Std: std(values)}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func std(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	variance := 0.0
	for _, v := range values {
		variance += (v - m) * (v - m)
	}
	return math.Sqrt(variance / float64(len(values)))
}

package engine

import (
	"math"
	"time"
)

// annualizationFactor 按252个交易日折算夏普比率。
const annualizationFactor = 252

// Result 为一次回测的汇总结果。
type Result struct {
	InitialBalance float64
	FinalBalance   float64
	TotalReturnPct float64

	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRatePct    float64
	AvgWin        float64
	AvgLoss       float64

	Sharpe         float64
	MaxDrawdownPct float64
	ProfitFactor   float64

	TotalCosts float64
	AvgHold    time.Duration

	RejectedSignals int
	StrategyErrors  int

	// NoTrades 为真表示整个区间没有任何成交，统计字段全部为零值。
	NoTrades bool

	Trades []Trade
	Equity []EquityPoint
}

func computeResult(initialBalance float64, state *runState) *Result {
	result := &Result{
		InitialBalance:  initialBalance,
		FinalBalance:    state.balance,
		Trades:          state.trades,
		Equity:          state.equity,
		RejectedSignals: state.rejected,
		StrategyErrors:  state.evalFails,
	}

	if len(state.trades) == 0 {
		result.NoTrades = true
		return result
	}

	result.TotalReturnPct = (state.balance - initialBalance) / initialBalance * 100
	result.TotalTrades = len(state.trades)

	var totalWins, totalLosses, totalCosts float64
	var totalHold time.Duration
	for _, trade := range state.trades {
		totalCosts += trade.Costs
		totalHold += trade.Hold
		if trade.NetPnL > 0 {
			result.WinningTrades++
			totalWins += trade.NetPnL
		} else {
			result.LosingTrades++
			totalLosses += -trade.NetPnL
		}
	}

	result.WinRatePct = float64(result.WinningTrades) / float64(result.TotalTrades) * 100
	if result.WinningTrades > 0 {
		result.AvgWin = totalWins / float64(result.WinningTrades)
	}
	if result.LosingTrades > 0 {
		result.AvgLoss = -totalLosses / float64(result.LosingTrades)
	}
	if totalLosses > 0 {
		result.ProfitFactor = totalWins / totalLosses
	}
	result.TotalCosts = totalCosts
	result.AvgHold = totalHold / time.Duration(result.TotalTrades)

	result.Sharpe = computeSharpe(state.equity)
	result.MaxDrawdownPct = computeDrawdown(state.equity)

	return result
}

// computeSharpe 基于逐点权益收益率计算年化夏普。
// 采样点不足或收益率方差为零时返回0。
func computeSharpe(equity []EquityPoint) float64 {
	if len(equity) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev == 0 {
			return 0
		}
		returns = append(returns, (equity[i].Equity-prev)/prev)
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}

	return mean / std * math.Sqrt(annualizationFactor)
}

// computeDrawdown 返回权益曲线相对历史峰值的最大回撤百分比。
func computeDrawdown(equity []EquityPoint) float64 {
	if len(equity) == 0 {
		return 0
	}

	peak := equity[0].Equity
	maxDrawdown := 0.0
	for _, point := range equity {
		if point.Equity > peak {
			peak = point.Equity
		}
		if peak <= 0 {
			continue
		}
		drawdown := (peak - point.Equity) / peak * 100
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}

	return maxDrawdown
}

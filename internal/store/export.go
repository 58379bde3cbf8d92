package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"fx-backtest/internal/engine"
	"fx-backtest/internal/optimizer"
)

// ExportTradesCSV 将交易明细写成CSV，便于外部分析。
func ExportTradesCSV(path string, trades []engine.Trade) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("store: 创建交易导出文件失败: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	writer := csv.NewWriter(file)
	header := []string{
		"position_id", "instrument", "direction", "units",
		"entry_time", "exit_time", "entry_price", "exit_price",
		"stop_loss", "take_profit", "reason",
		"gross_pnl", "costs", "net_pnl", "pips", "hold_hours", "approximate",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("store: 写入CSV表头失败: %w", err)
	}

	for _, trade := range trades {
		record := []string{
			strconv.FormatInt(trade.PositionID, 10),
			trade.Instrument,
			string(trade.Direction),
			formatFloat(trade.Units),
			trade.EntryTime.Format(time.RFC3339),
			trade.ExitTime.Format(time.RFC3339),
			formatFloat(trade.EntryPrice),
			formatFloat(trade.ExitPrice),
			formatFloat(trade.StopLoss),
			formatFloat(trade.TakeProfit),
			string(trade.Reason),
			formatFloat(trade.GrossPnL),
			formatFloat(trade.Costs),
			formatFloat(trade.NetPnL),
			formatFloat(trade.Pips),
			formatFloat(trade.Hold.Hours()),
			strconv.FormatBool(trade.Approximate),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("store: 写入交易记录失败: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("store: 刷新CSV失败: %w", err)
	}

	return nil
}

// ExportEquityCSV 将权益曲线写成CSV。
func ExportEquityCSV(path string, points []engine.EquityPoint) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("store: 创建权益导出文件失败: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"time", "equity"}); err != nil {
		return fmt.Errorf("store: 写入CSV表头失败: %w", err)
	}

	for _, point := range points {
		record := []string{point.Time.Format(time.RFC3339), formatFloat(point.Equity)}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("store: 写入权益点失败: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("store: 刷新CSV失败: %w", err)
	}

	return nil
}

// ExportSummary 将回测汇总写成扁平的键值文本。
func ExportSummary(path string, result *engine.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("store: 创建汇总文件失败: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	lines := []string{
		fmt.Sprintf("initial_balance: %.2f", result.InitialBalance),
		fmt.Sprintf("final_balance: %.2f", result.FinalBalance),
		fmt.Sprintf("total_return_pct: %.2f", result.TotalReturnPct),
		fmt.Sprintf("total_trades: %d", result.TotalTrades),
		fmt.Sprintf("winning_trades: %d", result.WinningTrades),
		fmt.Sprintf("losing_trades: %d", result.LosingTrades),
		fmt.Sprintf("win_rate_pct: %.1f", result.WinRatePct),
		fmt.Sprintf("avg_win: %.2f", result.AvgWin),
		fmt.Sprintf("avg_loss: %.2f", result.AvgLoss),
		fmt.Sprintf("sharpe: %.2f", result.Sharpe),
		fmt.Sprintf("max_drawdown_pct: %.2f", result.MaxDrawdownPct),
		fmt.Sprintf("profit_factor: %.2f", result.ProfitFactor),
		fmt.Sprintf("total_costs: %.2f", result.TotalCosts),
		fmt.Sprintf("avg_hold_hours: %.1f", result.AvgHold.Hours()),
		fmt.Sprintf("rejected_signals: %d", result.RejectedSignals),
		fmt.Sprintf("strategy_errors: %d", result.StrategyErrors),
	}
	if result.NoTrades {
		lines = append(lines, "note: no trades executed")
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(file, line); err != nil {
			return fmt.Errorf("store: 写入汇总失败: %w", err)
		}
	}

	return nil
}

// ExportWalkForwardSummary 将走向前报告写成扁平文本。
func ExportWalkForwardSummary(path string, report *optimizer.Report) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("store: 创建汇总文件失败: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	lines := []string{
		fmt.Sprintf("windows: %d", len(report.Windows)),
		fmt.Sprintf("eligible_windows: %d", report.EligibleWindows),
		fmt.Sprintf("failed_windows: %d", report.FailedWindows),
		fmt.Sprintf("positive_windows: %d", report.PositiveWindows),
		fmt.Sprintf("consistency: %.2f", report.Consistency),
		fmt.Sprintf("classification: %s", report.Classification),
		fmt.Sprintf("oos_return_mean: %.2f", report.ReturnPct.Mean),
		fmt.Sprintf("oos_return_median: %.2f", report.ReturnPct.Median),
		fmt.Sprintf("oos_return_std: %.2f", report.ReturnPct.Std),
		fmt.Sprintf("oos_win_rate_mean: %.1f", report.WinRatePct.Mean),
		fmt.Sprintf("oos_sharpe_mean: %.2f", report.Sharpe.Mean),
	}
	for _, param := range report.Stability {
		lines = append(lines, fmt.Sprintf("param_%s: %.4f ± %.4f", param.Name, param.Mean, param.Std))
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(file, line); err != nil {
			return fmt.Errorf("store: 写入汇总失败: %w", err)
		}
	}

	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

package store

import (
	"context"
	"fmt"
	"time"

	"fx-backtest/internal/engine"
	"fx-backtest/internal/optimizer"
)

// SaveBacktest 在一个事务里写入回测结果、交易明细与权益曲线。
func (s *Store) SaveBacktest(ctx context.Context, strategyName, instrument string, result *engine.Result) (runID int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: 开启事务失败: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC().Format(time.RFC3339)

	insert, err := tx.ExecContext(ctx,
		`INSERT INTO backtest_runs (
			created_at, strategy, instrument, initial_balance, final_balance,
			total_return_pct, total_trades, win_rate_pct, sharpe,
			max_drawdown_pct, profit_factor, total_costs, no_trades
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		now, strategyName, instrument, result.InitialBalance, result.FinalBalance,
		result.TotalReturnPct, result.TotalTrades, result.WinRatePct, result.Sharpe,
		result.MaxDrawdownPct, result.ProfitFactor, result.TotalCosts, boolToInt(result.NoTrades),
	)
	if err != nil {
		return 0, fmt.Errorf("store: 写入回测记录失败: %w", err)
	}

	runID, err = insert.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: 获取回测记录ID失败: %w", err)
	}

	tradeStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO backtest_trades (
			run_id, position_id, instrument, direction, units,
			entry_time, exit_time, entry_price, exit_price,
			stop_loss, take_profit, reason,
			gross_pnl, costs, net_pnl, pips, hold_seconds, approximate
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("store: 准备交易写入语句失败: %w", err)
	}
	defer func() {
		_ = tradeStmt.Close()
	}()

	for _, trade := range result.Trades {
		if _, err = tradeStmt.ExecContext(ctx,
			runID, trade.PositionID, trade.Instrument, string(trade.Direction), trade.Units,
			trade.EntryTime.Format(time.RFC3339), trade.ExitTime.Format(time.RFC3339),
			trade.EntryPrice, trade.ExitPrice,
			trade.StopLoss, trade.TakeProfit, string(trade.Reason),
			trade.GrossPnL, trade.Costs, trade.NetPnL, trade.Pips,
			int64(trade.Hold.Seconds()), boolToInt(trade.Approximate),
		); err != nil {
			return 0, fmt.Errorf("store: 写入交易明细失败: %w", err)
		}
	}

	equityStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO backtest_equity (run_id, ts, equity) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("store: 准备权益写入语句失败: %w", err)
	}
	defer func() {
		_ = equityStmt.Close()
	}()

	for _, point := range result.Equity {
		if _, err = equityStmt.ExecContext(ctx,
			runID, point.Time.Format(time.RFC3339), point.Equity,
		); err != nil {
			return 0, fmt.Errorf("store: 写入权益曲线失败: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: 提交事务失败: %w", err)
	}

	return runID, nil
}

// SaveWalkForward 写入走向前报告及各窗口明细。
func (s *Store) SaveWalkForward(ctx context.Context, instrument, fitness, gridMode string, report *optimizer.Report) (runID int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: 开启事务失败: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC().Format(time.RFC3339)

	insert, err := tx.ExecContext(ctx,
		`INSERT INTO walkforward_runs (
			created_at, instrument, fitness, grid_mode,
			windows, eligible_windows, failed_windows, positive_windows,
			consistency, classification, return_mean, return_median, return_std
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		now, instrument, fitness, gridMode,
		len(report.Windows), report.EligibleWindows, report.FailedWindows, report.PositiveWindows,
		report.Consistency, string(report.Classification),
		report.ReturnPct.Mean, report.ReturnPct.Median, report.ReturnPct.Std,
	)
	if err != nil {
		return 0, fmt.Errorf("store: 写入走向前记录失败: %w", err)
	}

	runID, err = insert.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: 获取走向前记录ID失败: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO walkforward_windows (
			run_id, window_id, train_start, train_end, test_start, test_end,
			best_params, train_score, train_trades,
			test_return_pct, test_trades, eligible, failed, fail_reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("store: 准备窗口写入语句失败: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, window := range report.Windows {
		testReturn := 0.0
		testTrades := 0
		if window.Test != nil {
			testReturn = window.Test.TotalReturnPct
			testTrades = window.Test.TotalTrades
		}

		if _, err = stmt.ExecContext(ctx,
			runID, window.Window.ID,
			window.Window.TrainStart.Format(time.RFC3339), window.Window.TrainEnd.Format(time.RFC3339),
			window.Window.TestStart.Format(time.RFC3339), window.Window.TestEnd.Format(time.RFC3339),
			window.BestParams.String(), window.TrainScore, window.TrainTrades,
			testReturn, testTrades, boolToInt(window.Eligible), boolToInt(window.Failed), window.FailWhy,
		); err != nil {
			return 0, fmt.Errorf("store: 写入窗口明细失败: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: 提交事务失败: %w", err)
	}

	return runID, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

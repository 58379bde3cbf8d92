package store

import (
	"context"
	"testing"
	"time"

	"fx-backtest/internal/config"
	"fx-backtest/internal/engine"
	"fx-backtest/internal/market"
	"fx-backtest/internal/optimizer"
	"fx-backtest/internal/strategy"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	// 内存库必须限制为单连接，否则每个连接各自是一个空库。
	store, err := NewSQLite(config.DatabaseConfig{
		InMemory:     true,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func sampleResult() *engine.Result {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &engine.Result{
		InitialBalance: 10000,
		FinalBalance:   10100,
		TotalReturnPct: 1.0,
		TotalTrades:    1,
		WinningTrades:  1,
		WinRatePct:     100,
		TotalCosts:     2.6,
		Trades: []engine.Trade{
			{
				PositionID: 1,
				Instrument: "EUR_USD",
				Direction:  market.Long,
				Units:      10000,
				EntryTime:  base,
				ExitTime:   base.Add(8 * time.Hour),
				EntryPrice: 1.0850,
				ExitPrice:  1.0880,
				StopLoss:   1.0820,
				TakeProfit: 1.0880,
				Reason:     engine.ExitTakeProfit,
				GrossPnL:   30,
				Costs:      2.6,
				NetPnL:     27.4,
				Pips:       30,
				Hold:       8 * time.Hour,
			},
		},
		Equity: []engine.EquityPoint{
			{Time: base, Equity: 10000},
			{Time: base.Add(4 * time.Hour), Equity: 10020},
			{Time: base.Add(8 * time.Hour), Equity: 10100},
		},
	}
}

func TestSaveBacktest_PersistsAllRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	runID, err := store.SaveBacktest(ctx, "swing", "EUR_USD", sampleResult())
	if err != nil {
		t.Fatalf("SaveBacktest: %v", err)
	}
	if runID <= 0 {
		t.Fatalf("expected positive run id, got %d", runID)
	}

	var trades, equity int
	if err := store.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM backtest_trades WHERE run_id = ?", runID).Scan(&trades); err != nil {
		t.Fatalf("count trades: %v", err)
	}
	if trades != 1 {
		t.Errorf("expected 1 trade row, got %d", trades)
	}

	if err := store.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM backtest_equity WHERE run_id = ?", runID).Scan(&equity); err != nil {
		t.Fatalf("count equity: %v", err)
	}
	if equity != 3 {
		t.Errorf("expected 3 equity rows, got %d", equity)
	}

	var reason string
	if err := store.DB().QueryRowContext(ctx,
		"SELECT reason FROM backtest_trades WHERE run_id = ?", runID).Scan(&reason); err != nil {
		t.Fatalf("read trade reason: %v", err)
	}
	if reason != string(engine.ExitTakeProfit) {
		t.Errorf("expected TAKE_PROFIT reason, got %s", reason)
	}
}

func TestSaveWalkForward_PersistsWindows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	report := &optimizer.Report{
		Windows: []optimizer.WindowResult{
			{
				Window: optimizer.Window{
					ID:         1,
					TrainStart: base, TrainEnd: base.Add(180 * 24 * time.Hour),
					TestStart: base.Add(180 * 24 * time.Hour), TestEnd: base.Add(240 * 24 * time.Hour),
				},
				BestParams: strategy.ParameterSet{
					RSIOversold: 30, RSIOverbought: 70,
					MAShortPeriod: 20, MALongPeriod: 50,
					ATRMultiplier: 1.5, RewardRiskRatio: 1.5,
					MinVolume: 400, MinTrendStrength: 0.0005,
				},
				TrainScore:  1.2,
				TrainTrades: 8,
				Test:        &engine.Result{TotalReturnPct: 2.5, TotalTrades: 5},
				Eligible:    true,
			},
			{
				Window:  optimizer.Window{ID: 2},
				Failed:  true,
				FailWhy: "训练段没有任何参数组合达到最小交易数",
			},
		},
		EligibleWindows: 1,
		FailedWindows:   1,
		PositiveWindows: 1,
		Consistency:     1.0,
		Classification:  optimizer.ClassRobust,
	}

	runID, err := store.SaveWalkForward(ctx, "EUR_USD", "sharpe", "focused", report)
	if err != nil {
		t.Fatalf("SaveWalkForward: %v", err)
	}

	var windows int
	if err := store.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM walkforward_windows WHERE run_id = ?", runID).Scan(&windows); err != nil {
		t.Fatalf("count windows: %v", err)
	}
	if windows != 2 {
		t.Errorf("expected 2 window rows, got %d", windows)
	}

	var classification string
	if err := store.DB().QueryRowContext(ctx,
		"SELECT classification FROM walkforward_runs WHERE id = ?", runID).Scan(&classification); err != nil {
		t.Fatalf("read classification: %v", err)
	}
	if classification != string(optimizer.ClassRobust) {
		t.Errorf("expected robust classification, got %s", classification)
	}
}

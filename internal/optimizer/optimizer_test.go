package optimizer

import (
	"math"
	"testing"
	"time"

	"fx-backtest/internal/engine"
	"fx-backtest/internal/strategy"
)

func TestBuildWindows_RollingBoundaries(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(365 * 24 * time.Hour)

	train := 180 * 24 * time.Hour
	test := 60 * 24 * time.Hour
	step := 60 * 24 * time.Hour

	windows := BuildWindows(start, end, train, test, step)
	if len(windows) != 3 {
		t.Fatalf("expected 3 windows for 12 months of data, got %d", len(windows))
	}

	for i, window := range windows {
		if window.ID != i+1 {
			t.Errorf("window IDs must be sequential, got %d at index %d", window.ID, i)
		}
		if !window.TrainEnd.Equal(window.TestStart) {
			t.Errorf("window %d: test must start exactly at train end", window.ID)
		}
		if window.TestEnd.After(end) {
			t.Errorf("window %d: test end %v exceeds data end %v", window.ID, window.TestEnd, end)
		}
	}

	if !windows[1].TrainStart.Equal(start.Add(step)) {
		t.Errorf("second window must start one step later, got %v", windows[1].TrainStart)
	}
}

func TestBuildWindows_InsufficientData(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(100 * 24 * time.Hour)

	windows := BuildWindows(start, end, 180*24*time.Hour, 60*24*time.Hour, 60*24*time.Hour)
	if len(windows) != 0 {
		t.Fatalf("expected no windows when data is shorter than train+test, got %d", len(windows))
	}
}

func TestBuildGrid_FiltersInvalidCombinations(t *testing.T) {
	grid := BuildGrid("broad")
	if len(grid) == 0 {
		t.Fatalf("broad grid must not be empty")
	}

	seen := make(map[strategy.ParameterSet]struct{}, len(grid))
	for _, params := range grid {
		if params.RSIOversold >= params.RSIOverbought {
			t.Errorf("invalid RSI combination survived: %s", params)
		}
		if params.MAShortPeriod >= params.MALongPeriod {
			t.Errorf("invalid MA combination survived: %s", params)
		}
		if _, dup := seen[params]; dup {
			t.Errorf("duplicate parameter set in grid: %s", params)
		}
		seen[params] = struct{}{}
	}
}

func TestBuildGrid_UnknownModeFallsBack(t *testing.T) {
	focused := BuildGrid("focused")
	unknown := BuildGrid("whatever")
	if len(unknown) != len(focused) {
		t.Errorf("unknown mode should fall back to focused, got %d vs %d", len(unknown), len(focused))
	}
}

func TestFitnessByName(t *testing.T) {
	result := &engine.Result{Sharpe: 1.5, WinRatePct: 60, ProfitFactor: 2.0}

	for name, want := range map[string]float64{
		"sharpe":        1.5,
		"win_rate":      60,
		"profit_factor": 2.0,
	} {
		fn, err := FitnessByName(name)
		if err != nil {
			t.Fatalf("FitnessByName(%s) returned error: %v", name, err)
		}
		if got := fn(result); got != want {
			t.Errorf("fitness %s: expected %v, got %v", name, want, got)
		}
	}

	if _, err := FitnessByName("alpha"); err == nil {
		t.Errorf("expected error for unknown fitness name")
	}
}

func wfWindow(id int, failed, eligible bool, testReturn float64, testTrades int) WindowResult {
	result := WindowResult{
		Window: Window{ID: id},
		BestParams: strategy.ParameterSet{
			RSIOversold: 30, RSIOverbought: 70,
			MAShortPeriod: 20, MALongPeriod: 50,
			ATRMultiplier: 1.5, RewardRiskRatio: 1.5,
			MinVolume: 400, MinTrendStrength: 0.0005,
		},
		Failed:   failed,
		Eligible: eligible,
	}
	if !failed {
		result.Test = &engine.Result{TotalReturnPct: testReturn, TotalTrades: testTrades, WinRatePct: 50}
	}
	return result
}

func TestBuildReport_ConsistencyClassification(t *testing.T) {
	// 3个有效窗口只有1个为正：一致性约0.33，判定不稳定。
	results := []WindowResult{
		wfWindow(1, false, true, 5.0, 10),
		wfWindow(2, false, true, -2.0, 8),
		wfWindow(3, false, true, -1.0, 6),
	}

	report := buildReport(results)
	if report.EligibleWindows != 3 {
		t.Fatalf("expected 3 eligible windows, got %d", report.EligibleWindows)
	}
	if report.PositiveWindows != 1 {
		t.Errorf("expected 1 positive window, got %d", report.PositiveWindows)
	}
	if math.Abs(report.Consistency-1.0/3.0) > 1e-9 {
		t.Errorf("expected consistency 1/3, got %v", report.Consistency)
	}
	if report.Classification != ClassUnstable {
		t.Errorf("expected unstable classification, got %s", report.Classification)
	}
}

func TestBuildReport_RobustWhenMostWindowsPositive(t *testing.T) {
	results := []WindowResult{
		wfWindow(1, false, true, 5.0, 10),
		wfWindow(2, false, true, 3.0, 8),
		wfWindow(3, false, true, -1.0, 6),
	}

	report := buildReport(results)
	if report.Classification != ClassRobust {
		t.Errorf("2 of 3 positive windows should be robust, got %s", report.Classification)
	}
}

func TestBuildReport_ExcludesIneligibleButKeepsThem(t *testing.T) {
	results := []WindowResult{
		wfWindow(1, false, true, 5.0, 10),
		wfWindow(2, false, false, 50.0, 1), // 交易数不足，不计入统计
		wfWindow(3, true, false, 0, 0),
	}

	report := buildReport(results)
	if report.EligibleWindows != 1 {
		t.Errorf("expected 1 eligible window, got %d", report.EligibleWindows)
	}
	if report.FailedWindows != 1 {
		t.Errorf("expected 1 failed window, got %d", report.FailedWindows)
	}
	if len(report.Windows) != 3 {
		t.Errorf("all windows must stay in the report, got %d", len(report.Windows))
	}
	if math.Abs(report.ReturnPct.Mean-5.0) > 1e-9 {
		t.Errorf("ineligible window leaked into aggregates: mean %v", report.ReturnPct.Mean)
	}
}

func TestBuildReport_SortsByWindowID(t *testing.T) {
	results := []WindowResult{
		wfWindow(3, false, true, 1.0, 5),
		wfWindow(1, false, true, 2.0, 5),
		wfWindow(2, false, true, 3.0, 5),
	}

	report := buildReport(results)
	for i, window := range report.Windows {
		if window.Window.ID != i+1 {
			t.Fatalf("windows must be sorted by ID, got %d at index %d", window.Window.ID, i)
		}
	}
}

func TestBuildReport_AggregateStats(t *testing.T) {
	results := []WindowResult{
		wfWindow(1, false, true, 2.0, 5),
		wfWindow(2, false, true, 4.0, 5),
		wfWindow(3, false, true, 6.0, 5),
	}

	report := buildReport(results)
	if math.Abs(report.ReturnPct.Mean-4.0) > 1e-9 {
		t.Errorf("expected mean 4.0, got %v", report.ReturnPct.Mean)
	}
	if math.Abs(report.ReturnPct.Median-4.0) > 1e-9 {
		t.Errorf("expected median 4.0, got %v", report.ReturnPct.Median)
	}
	expectedStd := math.Sqrt(8.0 / 3.0)
	if math.Abs(report.ReturnPct.Std-expectedStd) > 1e-9 {
		t.Errorf("expected std %v, got %v", expectedStd, report.ReturnPct.Std)
	}
	if len(report.Stability) != 8 {
		t.Errorf("expected stability entry per tunable, got %d", len(report.Stability))
	}
}

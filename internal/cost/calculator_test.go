package cost

import (
	"errors"
	"math"
	"testing"
	"time"

	"fx-backtest/internal/market"
)

func TestCalculate_NormalTierEURUSD(t *testing.T) {
	calc := NewCalculator(nil, nil)

	breakdown, err := calc.Calculate("EUR_USD", 10000, market.Long, 0, TierNormal)
	if err != nil {
		t.Fatalf("Calculate returned error: %v", err)
	}

	// base 0.8 点差、0.5 滑点，进出各一次。
	if math.Abs(breakdown.SpreadPips-1.6) > 1e-9 {
		t.Errorf("expected spread 1.6 pips, got %v", breakdown.SpreadPips)
	}
	if math.Abs(breakdown.SlippagePips-1.0) > 1e-9 {
		t.Errorf("expected slippage 1.0 pips, got %v", breakdown.SlippagePips)
	}
	if math.Abs(breakdown.TotalPips-2.6) > 1e-9 {
		t.Errorf("expected total 2.6 pips, got %v", breakdown.TotalPips)
	}
	if breakdown.SwapCost != 0 {
		t.Errorf("intraday position should have zero swap, got %v", breakdown.SwapCost)
	}
	if math.Abs(breakdown.TotalCost-2.6) > 1e-9 {
		t.Errorf("expected total cost 2.60 for 1 lot, got %v", breakdown.TotalCost)
	}
}

func TestCalculate_TierMultipliers(t *testing.T) {
	calc := NewCalculator(nil, nil)

	cases := []struct {
		tier       Tier
		spreadPips float64
		slipPips   float64
	}{
		{TierQuiet, 1.0, 0.7},
		{TierNormal, 1.6, 1.0},
		{TierVolatile, 2.4, 2.0},
		{TierExtreme, 4.0, 3.0},
	}

	for _, tc := range cases {
		breakdown, err := calc.Calculate("EUR_USD", 10000, market.Long, 0, tc.tier)
		if err != nil {
			t.Fatalf("Calculate(%s) returned error: %v", tc.tier, err)
		}
		if math.Abs(breakdown.SpreadPips-tc.spreadPips) > 1e-9 {
			t.Errorf("%s: expected spread %v pips, got %v", tc.tier, tc.spreadPips, breakdown.SpreadPips)
		}
		if math.Abs(breakdown.SlippagePips-tc.slipPips) > 1e-9 {
			t.Errorf("%s: expected slippage %v pips, got %v", tc.tier, tc.slipPips, breakdown.SlippagePips)
		}
	}
}

func TestCalculate_SwapScalesWithHoldAndDirection(t *testing.T) {
	calc := NewCalculator(nil, nil)

	long, err := calc.Calculate("EUR_USD", 10000, market.Long, 72*time.Hour, TierNormal)
	if err != nil {
		t.Fatalf("Calculate returned error: %v", err)
	}
	if math.Abs(long.SwapCost-(-1.5)) > 1e-9 {
		t.Errorf("expected long swap -1.50 over 3 days, got %v", long.SwapCost)
	}

	short, err := calc.Calculate("EUR_USD", 10000, market.Short, 72*time.Hour, TierNormal)
	if err != nil {
		t.Fatalf("Calculate returned error: %v", err)
	}
	if math.Abs(short.SwapCost-0.6) > 1e-9 {
		t.Errorf("expected short swap +0.60 over 3 days, got %v", short.SwapCost)
	}
}

func TestCalculate_UnknownInstrument(t *testing.T) {
	calc := NewCalculator(nil, nil)

	_, err := calc.Calculate("XAU_USD", 10000, market.Long, 0, TierNormal)
	if !errors.Is(err, ErrUnknownInstrument) {
		t.Fatalf("expected ErrUnknownInstrument, got %v", err)
	}
}

func TestRequiredWinRate_TightTargetIsNotViable(t *testing.T) {
	calc := NewCalculator(nil, nil)

	analysis, err := calc.RequiredWinRate("EUR_USD", 5, 5, TierNormal)
	if err != nil {
		t.Fatalf("RequiredWinRate returned error: %v", err)
	}

	// 成本2.6点：净止盈2.4、净止损7.6，平衡胜率 7.6/10 = 0.76。
	if math.Abs(analysis.RequiredWinRate-0.76) > 1e-9 {
		t.Errorf("expected required win rate 0.76, got %v", analysis.RequiredWinRate)
	}
	if analysis.Viable {
		t.Errorf("0.76 required win rate should not be viable")
	}
}

func TestRequiredWinRate_TargetBelowCosts(t *testing.T) {
	calc := NewCalculator(nil, nil)

	analysis, err := calc.RequiredWinRate("EUR_USD", 2, 5, TierNormal)
	if err != nil {
		t.Fatalf("RequiredWinRate returned error: %v", err)
	}
	if analysis.Viable {
		t.Errorf("target below round-trip costs must be unviable")
	}
	if analysis.NetTargetPips > 0 {
		t.Errorf("expected non-positive net target, got %v", analysis.NetTargetPips)
	}
}

func TestRequiredWinRate_WideTargetIsViable(t *testing.T) {
	calc := NewCalculator(nil, nil)

	analysis, err := calc.RequiredWinRate("EUR_USD", 40, 20, TierNormal)
	if err != nil {
		t.Fatalf("RequiredWinRate returned error: %v", err)
	}
	if !analysis.Viable {
		t.Errorf("40/20 swing setup should be viable, required win rate %v", analysis.RequiredWinRate)
	}
}

package pricing

import (
	"testing"
	"time"

	"fx-backtest/internal/market"
)

func quotedBar() market.Bar {
	return market.Bar{
		Time:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Instrument: "EUR_USD",
		BidHigh:    1.0860, BidLow: 1.0840, BidClose: 1.0850,
		AskHigh: 1.0862, AskLow: 1.0842, AskClose: 1.0852,
	}
}

func TestExecutionPrice_SideSelection(t *testing.T) {
	bar := quotedBar()

	cases := []struct {
		dir    market.Direction
		intent Intent
		want   float64
	}{
		{market.Long, Open, bar.AskClose},
		{market.Short, Open, bar.BidClose},
		{market.Long, Close, bar.BidClose},
		{market.Short, Close, bar.AskClose},
	}

	for _, tc := range cases {
		price, approximate := ExecutionPrice(bar, tc.dir, tc.intent)
		if price != tc.want {
			t.Errorf("dir=%s intent=%d: expected %v, got %v", tc.dir, tc.intent, tc.want, price)
		}
		if approximate {
			t.Errorf("dir=%s intent=%d: two-sided bar should not be approximate", tc.dir, tc.intent)
		}
	}
}

func TestExecutionPrice_MidOnlyIsApproximate(t *testing.T) {
	bar := quotedBar()
	bar.MidOnly = true

	price, approximate := ExecutionPrice(bar, market.Long, Open)
	if !approximate {
		t.Fatalf("mid-only bar must be marked approximate")
	}
	if price != bar.MidClose() {
		t.Errorf("expected midpoint %v, got %v", bar.MidClose(), price)
	}
}

func TestExitExtremes_FollowCloseSide(t *testing.T) {
	bar := quotedBar()

	if got := ExitLow(bar, market.Long); got != bar.BidLow {
		t.Errorf("long exit low should use bid, got %v", got)
	}
	if got := ExitHigh(bar, market.Long); got != bar.BidHigh {
		t.Errorf("long exit high should use bid, got %v", got)
	}
	if got := ExitLow(bar, market.Short); got != bar.AskLow {
		t.Errorf("short exit low should use ask, got %v", got)
	}
	if got := ExitHigh(bar, market.Short); got != bar.AskHigh {
		t.Errorf("short exit high should use ask, got %v", got)
	}
}

func TestMarkPrice_UsesClosingSide(t *testing.T) {
	bar := quotedBar()

	if got := MarkPrice(bar, market.Long); got != bar.BidClose {
		t.Errorf("long mark should use bid close, got %v", got)
	}
	if got := MarkPrice(bar, market.Short); got != bar.AskClose {
		t.Errorf("short mark should use ask close, got %v", got)
	}
}

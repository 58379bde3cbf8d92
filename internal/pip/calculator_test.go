package pip

import (
	"math"
	"testing"

	"fx-backtest/internal/market"
)

func TestLocation_JPYQuoteUsesLargerPip(t *testing.T) {
	loc, err := Location("USD_JPY")
	if err != nil {
		t.Fatalf("Location returned error: %v", err)
	}
	if loc != 0.01 {
		t.Errorf("expected 0.01 for JPY quote, got %v", loc)
	}

	loc, err = Location("EUR_USD")
	if err != nil {
		t.Fatalf("Location returned error: %v", err)
	}
	if loc != 0.0001 {
		t.Errorf("expected 0.0001, got %v", loc)
	}
}

func TestLocation_RejectsMalformedInstrument(t *testing.T) {
	if _, err := Location("EURUSD"); err == nil {
		t.Fatalf("expected error for instrument without separator")
	}
	if _, err := Location("EUR_"); err == nil {
		t.Fatalf("expected error for empty quote currency")
	}
}

func TestValue_QuoteCurrencyAccount(t *testing.T) {
	value, err := Value("EUR_USD", "USD", 1.0850, 10000, nil)
	if err != nil {
		t.Fatalf("Value returned error: %v", err)
	}
	if math.Abs(value-1.0) > 1e-9 {
		t.Errorf("expected pip value 1.0 for 10k units, got %v", value)
	}
}

func TestValue_BaseCurrencyAccount(t *testing.T) {
	value, err := Value("USD_JPY", "USD", 150.0, 10000, nil)
	if err != nil {
		t.Fatalf("Value returned error: %v", err)
	}
	expected := 0.01 / 150.0 * 10000
	if math.Abs(value-expected) > 1e-9 {
		t.Errorf("expected %v, got %v", expected, value)
	}
}

func TestValue_CrossUsesConversionRate(t *testing.T) {
	rates := map[string]float64{"GBP_USD": 1.25}
	value, err := Value("EUR_GBP", "USD", 0.86, 10000, rates)
	if err != nil {
		t.Fatalf("Value returned error: %v", err)
	}
	expected := 0.0001 * 10000 * 1.25
	if math.Abs(value-expected) > 1e-9 {
		t.Errorf("expected %v, got %v", expected, value)
	}
}

func TestFromPriceDiff_LongProfit(t *testing.T) {
	result, err := FromPriceDiff("EUR_USD", 1.0850, 1.0870, 10000, market.Long, "USD", nil)
	if err != nil {
		t.Fatalf("FromPriceDiff returned error: %v", err)
	}
	if math.Abs(result.Pips-20) > 1e-6 {
		t.Errorf("expected +20 pips, got %v", result.Pips)
	}
	if result.Amount <= 0 {
		t.Errorf("long position should profit on rising price, got %v", result.Amount)
	}
}

func TestFromPriceDiff_ShortInvertsSign(t *testing.T) {
	long, err := FromPriceDiff("EUR_USD", 1.0850, 1.0870, 10000, market.Long, "USD", nil)
	if err != nil {
		t.Fatalf("FromPriceDiff returned error: %v", err)
	}
	short, err := FromPriceDiff("EUR_USD", 1.0850, 1.0870, 10000, market.Short, "USD", nil)
	if err != nil {
		t.Fatalf("FromPriceDiff returned error: %v", err)
	}
	if math.Abs(long.Pips+short.Pips) > 1e-9 {
		t.Errorf("long and short pips should be opposite, got %v and %v", long.Pips, short.Pips)
	}
}

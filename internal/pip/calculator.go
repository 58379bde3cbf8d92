// Package pip 提供点值与点位换算。
// 品种名约定为 BASE_QUOTE（如 EUR_USD），JPY/HUF 计价的点位为 0.01。
package pip

import (
	"fmt"
	"strings"

	"fx-backtest/internal/market"
)

var pipLocations = map[string]float64{
	"JPY": 0.01,
	"HUF": 0.01,
}

const defaultPipLocation = 0.0001

// Location 返回品种的点位大小。
func Location(instrument string) (float64, error) {
	_, quote, err := splitInstrument(instrument)
	if err != nil {
		return 0, err
	}
	if loc, ok := pipLocations[quote]; ok {
		return loc, nil
	}
	return defaultPipLocation, nil
}

// Value 计算一个点对应的账户货币价值。
// 覆盖三种情况：账户货币为计价货币、账户货币为基础货币、交叉盘。
// 交叉盘在缺少换算汇率时退化为按计价货币估算。
func Value(instrument, accountCurrency string, currentRate, units float64, rates map[string]float64) (float64, error) {
	base, quote, err := splitInstrument(instrument)
	if err != nil {
		return 0, err
	}

	location, ok := pipLocations[quote]
	if !ok {
		location = defaultPipLocation
	}

	switch {
	case accountCurrency == quote:
		return location * units, nil
	case accountCurrency == base:
		if currentRate <= 0 {
			return 0, fmt.Errorf("pip: 账户货币为基础货币时必须提供现价 (%s)", instrument)
		}
		return location / currentRate * units, nil
	}

	rate, ok := findConversionRate(quote, accountCurrency, rates)
	if !ok {
		// 没有换算汇率时按计价货币估算，调用方需自行注意精度。
		return location * units, nil
	}
	return location * units * rate, nil
}

// Result 为一次价差换算的结果。
type Result struct {
	Pips     float64
	PipValue float64
	Amount   float64
}

// FromPriceDiff 按入场/出场价差计算点数与账户货币盈亏。
func FromPriceDiff(instrument string, entry, exit, units float64, dir market.Direction, accountCurrency string, rates map[string]float64) (Result, error) {
	location, err := Location(instrument)
	if err != nil {
		return Result{}, err
	}

	diff := exit - entry
	if dir == market.Short {
		diff = -diff
	}
	pips := diff / location

	avgRate := (entry + exit) / 2
	value, err := Value(instrument, accountCurrency, avgRate, units, rates)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Pips:     pips,
		PipValue: value,
		Amount:   pips * value,
	}, nil
}

func splitInstrument(instrument string) (base, quote string, err error) {
	parts := strings.Split(instrument, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("pip: 品种格式无效: %q", instrument)
	}
	return parts[0], parts[1], nil
}

func findConversionRate(from, to string, rates map[string]float64) (float64, bool) {
	if rates == nil {
		return 0, false
	}
	if rate, ok := rates[from+"_"+to]; ok && rate > 0 {
		return rate, true
	}
	if rate, ok := rates[to+"_"+from]; ok && rate > 0 {
		return 1 / rate, true
	}
	return 0, false
}

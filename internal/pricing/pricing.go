// Package pricing 决定成交价取盘口哪一侧。
// 买入吃卖价、卖出吃买价；只有中间价的K线用中间价近似并打标。
package pricing

import "fx-backtest/internal/market"

// Intent 表示本次取价是开仓还是平仓。
type Intent int

const (
	Open Intent = iota
	Close
)

// ExecutionPrice 返回按收盘价成交时应使用的价格。
// 多头开仓与空头平仓吃卖价，空头开仓与多头平仓吃买价。
// approximate 为真表示K线只有中间价，成交价为近似值。
func ExecutionPrice(bar market.Bar, dir market.Direction, intent Intent) (price float64, approximate bool) {
	if bar.MidOnly {
		return bar.MidClose(), true
	}
	if buysAtAsk(dir, intent) {
		return bar.AskClose, false
	}
	return bar.BidClose, false
}

// ExitLow 返回判定离场触发时使用的最低价。
// 多头按买价离场，空头按卖价离场。
func ExitLow(bar market.Bar, dir market.Direction) float64 {
	if dir == market.Long {
		return bar.BidLow
	}
	return bar.AskLow
}

// ExitHigh 返回判定离场触发时使用的最高价。
func ExitHigh(bar market.Bar, dir market.Direction) float64 {
	if dir == market.Long {
		return bar.BidHigh
	}
	return bar.AskHigh
}

// MarkPrice 返回浮动盈亏估值用的收盘价，取平仓同侧。
func MarkPrice(bar market.Bar, dir market.Direction) float64 {
	price, _ := ExecutionPrice(bar, dir, Close)
	return price
}

func buysAtAsk(dir market.Direction, intent Intent) bool {
	if intent == Open {
		return dir == market.Long
	}
	return dir == market.Short
}

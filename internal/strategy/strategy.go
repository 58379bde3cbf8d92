// Package strategy 定义信号生成接口与内置波段策略。
package strategy

import (
	"fx-backtest/internal/market"
)

// Action 为信号动作。
type Action string

const (
	ActionBuy   Action = "BUY"
	ActionSell  Action = "SELL"
	ActionClose Action = "CLOSE"
)

// Signal 为策略产出的交易指令。止损止盈为绝对价格。
type Signal struct {
	Action     Action
	Units      float64
	StopLoss   float64
	TakeProfit float64
	Metadata   map[string]float64
}

// Strategy 在每根K线上评估是否发出信号。
// recent 为当前K线之前的历史（最多回看窗口长度），current 为正在收盘的K线。
// 返回 (nil, nil) 表示不交易。
type Strategy interface {
	Name() string
	Evaluate(recent []market.Bar, current market.Bar) (*Signal, error)
}

// Func 将函数适配为 Strategy。
type Func struct {
	StrategyName string
	Fn           func(recent []market.Bar, current market.Bar) (*Signal, error)
}

func (f Func) Name() string {
	if f.StrategyName == "" {
		return "func"
	}
	return f.StrategyName
}

func (f Func) Evaluate(recent []market.Bar, current market.Bar) (*Signal, error) {
	return f.Fn(recent, current)
}

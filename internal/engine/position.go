package engine

import (
	"time"

	"fx-backtest/internal/market"
)

// ExitReason 标记持仓被平掉的原因。
type ExitReason string

const (
	ExitStopLoss    ExitReason = "STOP_LOSS"
	ExitTakeProfit  ExitReason = "TAKE_PROFIT"
	ExitTimeLimit   ExitReason = "TIME_LIMIT"
	ExitSignalClose ExitReason = "SIGNAL_CLOSE"
	ExitEndOfData   ExitReason = "END_OF_DATA"
)

// Position 为回测中的一笔未平仓头寸。
type Position struct {
	ID          int64
	Instrument  string
	Direction   market.Direction
	Units       float64
	EntryTime   time.Time
	EntryPrice  float64
	StopLoss    float64
	TakeProfit  float64
	Approximate bool
	Metadata    map[string]float64
}

// Trade 为一笔已完成交易的完整记录。
type Trade struct {
	PositionID  int64
	Instrument  string
	Direction   market.Direction
	Units       float64
	EntryTime   time.Time
	ExitTime    time.Time
	EntryPrice  float64
	ExitPrice   float64
	StopLoss    float64
	TakeProfit  float64
	Reason      ExitReason
	GrossPnL    float64
	Costs       float64
	NetPnL      float64
	Pips        float64
	Hold        time.Duration
	Approximate bool
	Metadata    map[string]float64
}

// EquityPoint 为权益曲线上的一个采样点。
type EquityPoint struct {
	Time   time.Time
	Equity float64
}

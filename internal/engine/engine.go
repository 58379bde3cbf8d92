// Package engine 实现逐K线的回测执行器。
// 每根K线按固定顺序处理：先检查在场头寸的离场条件，
// 再评估策略信号与风控，最后记录权益点。相同输入必然产生相同输出。
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"fx-backtest/internal/config"
	"fx-backtest/internal/cost"
	"fx-backtest/internal/market"
	"fx-backtest/internal/pip"
	"fx-backtest/internal/pricing"
	"fx-backtest/internal/risk"
	"fx-backtest/internal/strategy"
)

const accountCurrency = "USD"

// Engine 按配置驱动单次回测。
type Engine struct {
	cfg     config.EngineConfig
	costs   *cost.Calculator
	riskMgr *risk.Manager
	tier    cost.Tier
	logger  *zap.Logger
}

// NewEngine 构造回测执行器。
func NewEngine(cfg config.EngineConfig, costs *cost.Calculator, riskMgr *risk.Manager, logger *zap.Logger) (*Engine, error) {
	if costs == nil {
		return nil, errors.New("engine: 成本计算器不能为空")
	}
	if riskMgr == nil {
		return nil, errors.New("engine: 风控管理器不能为空")
	}
	if cfg.InitialBalance <= 0 {
		return nil, fmt.Errorf("engine: 初始资金无效: %v", cfg.InitialBalance)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		cfg:     cfg,
		costs:   costs,
		riskMgr: riskMgr,
		tier:    cost.ParseTier(cfg.MarketTier),
		logger:  logger,
	}, nil
}

type runState struct {
	balance   float64
	open      []*Position
	trades    []Trade
	equity    []EquityPoint
	nextID    int64
	rejected  int
	evalFails int
}

// Run 在给定K线序列上执行一次完整回测。
// 数据校验失败直接终止；策略报错只跳过当根K线的信号。
func (e *Engine) Run(ctx context.Context, bars []market.Bar, strat strategy.Strategy) (*Result, error) {
	if strat == nil {
		return nil, errors.New("engine: 策略不能为空")
	}
	if err := market.ValidateSeries(bars); err != nil {
		return nil, err
	}

	state := &runState{
		balance: e.cfg.InitialBalance,
		equity:  []EquityPoint{{Time: bars[0].Time, Equity: e.cfg.InitialBalance}},
		nextID:  1,
	}

	e.logger.Info("开始回测",
		zap.String("strategy", strat.Name()),
		zap.String("instrument", bars[0].Instrument),
		zap.Int("bars", len(bars)),
		zap.Float64("initial_balance", e.cfg.InitialBalance),
		zap.Time("from", bars[0].Time),
		zap.Time("to", bars[len(bars)-1].Time),
	)

	for i := range bars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bar := bars[i]

		if err := e.updateOpenPositions(state, bar); err != nil {
			return nil, err
		}

		if len(state.open) < e.cfg.MaxPositions {
			if err := e.tryEnter(state, bars, i, strat); err != nil {
				return nil, err
			}
		}

		equity, err := e.currentEquity(state, bar)
		if err != nil {
			return nil, err
		}
		state.equity = append(state.equity, EquityPoint{Time: bar.Time, Equity: equity})
	}

	// 数据走完后强制平掉剩余头寸。
	if len(state.open) > 0 {
		e.logger.Info("数据结束，强平剩余头寸", zap.Int("count", len(state.open)))
		final := bars[len(bars)-1]
		for _, pos := range append([]*Position(nil), state.open...) {
			if err := e.closePosition(state, pos, final, ExitEndOfData); err != nil {
				return nil, err
			}
		}
	}

	result := computeResult(e.cfg.InitialBalance, state)

	e.logger.Info("回测完成",
		zap.Float64("final_balance", result.FinalBalance),
		zap.Float64("total_return_pct", result.TotalReturnPct),
		zap.Int("total_trades", result.TotalTrades),
		zap.Float64("win_rate_pct", result.WinRatePct),
		zap.Float64("sharpe", result.Sharpe),
		zap.Float64("max_drawdown_pct", result.MaxDrawdownPct),
	)

	return result, nil
}

// updateOpenPositions 在新K线上检查止损、止盈与持仓时限。
// 触发判定对K线极值取闭区间；止损止盈同根触发时默认按止损处理，
// 可通过 target_first 翻转。
func (e *Engine) updateOpenPositions(state *runState, bar market.Bar) error {
	for _, pos := range append([]*Position(nil), state.open...) {
		stopHit := e.stopTouched(pos, bar)
		targetHit := e.targetTouched(pos, bar)

		reason := ExitReason("")
		switch {
		case stopHit && targetHit:
			if e.cfg.TargetFirst {
				reason = ExitTakeProfit
			} else {
				reason = ExitStopLoss
			}
		case stopHit:
			reason = ExitStopLoss
		case targetHit:
			reason = ExitTakeProfit
		case e.cfg.MaxHold > 0 && bar.Time.Sub(pos.EntryTime) >= e.cfg.MaxHold:
			reason = ExitTimeLimit
		default:
			continue
		}

		if err := e.closePosition(state, pos, bar, reason); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) stopTouched(pos *Position, bar market.Bar) bool {
	if pos.Direction == market.Long {
		return pricing.ExitLow(bar, market.Long) <= pos.StopLoss
	}
	return pricing.ExitHigh(bar, market.Short) >= pos.StopLoss
}

func (e *Engine) targetTouched(pos *Position, bar market.Bar) bool {
	if pos.Direction == market.Long {
		return pricing.ExitHigh(bar, market.Long) >= pos.TakeProfit
	}
	return pricing.ExitLow(bar, market.Short) <= pos.TakeProfit
}

// tryEnter 评估策略信号并在风控通过后开仓。
func (e *Engine) tryEnter(state *runState, bars []market.Bar, i int, strat strategy.Strategy) error {
	lookback := e.cfg.LookbackBars
	start := i - lookback
	if start < 0 {
		start = 0
	}

	signal, err := e.evaluate(strat, bars[start:i], bars[i])
	if err != nil {
		state.evalFails++
		e.logger.Error("策略评估失败，跳过该K线",
			zap.String("strategy", strat.Name()),
			zap.Time("bar", bars[i].Time),
			zap.Error(err),
		)
		return nil
	}
	if signal == nil {
		return nil
	}

	switch signal.Action {
	case strategy.ActionBuy, strategy.ActionSell:
		return e.openPosition(state, signal, bars[i])
	case strategy.ActionClose:
		for _, pos := range append([]*Position(nil), state.open...) {
			if err := e.closePosition(state, pos, bars[i], ExitSignalClose); err != nil {
				return err
			}
		}
		return nil
	default:
		e.logger.Warn("忽略未知信号动作", zap.String("action", string(signal.Action)))
		return nil
	}
}

// evaluate 调用策略并吸收panic，策略的任何异常都不能中断回测。
func (e *Engine) evaluate(strat strategy.Strategy, recent []market.Bar, current market.Bar) (signal *strategy.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			signal = nil
			err = fmt.Errorf("engine: 策略panic: %v", r)
		}
	}()
	return strat.Evaluate(recent, current)
}

func (e *Engine) openPosition(state *runState, signal *strategy.Signal, bar market.Bar) error {
	dir := market.Long
	if signal.Action == strategy.ActionSell {
		dir = market.Short
	}
	if signal.Units <= 0 {
		e.logger.Warn("信号仓位无效，忽略", zap.Float64("units", signal.Units))
		return nil
	}

	entryPrice, approximate := pricing.ExecutionPrice(bar, dir, pricing.Open)

	stopLoss := signal.StopLoss
	takeProfit := signal.TakeProfit
	if !validProtectiveLevels(dir, entryPrice, stopLoss, takeProfit) {
		e.logger.Warn("信号的止损止盈与方向矛盾，忽略",
			zap.String("direction", string(dir)),
			zap.Float64("entry", entryPrice),
			zap.Float64("stop_loss", stopLoss),
			zap.Float64("take_profit", takeProfit),
		)
		return nil
	}

	profile, err := e.costs.Profile(bar.Instrument)
	if err != nil {
		return err
	}
	stopPips := math.Abs(entryPrice-stopLoss) / profile.PipLocation

	account, err := e.accountState(state, bar)
	if err != nil {
		return err
	}

	validation := e.riskMgr.Validate(account, risk.TradeRequest{
		Instrument: bar.Instrument,
		Units:      signal.Units,
		EntryPrice: entryPrice,
		StopPips:   stopPips,
		PipValue:   profile.PipValue,
	})
	if !validation.Allowed {
		state.rejected++
		e.logger.Warn("开仓被风控拒绝",
			zap.String("instrument", bar.Instrument),
			zap.String("reason", validation.Reason),
		)
		return nil
	}
	if len(validation.Warnings) > 0 {
		e.logger.Warn("风控通过但存在告警",
			zap.String("instrument", bar.Instrument),
			zap.Strings("warnings", validation.Warnings),
		)
	}

	pos := &Position{
		ID:          state.nextID,
		Instrument:  bar.Instrument,
		Direction:   dir,
		Units:       signal.Units,
		EntryTime:   bar.Time,
		EntryPrice:  entryPrice,
		StopLoss:    stopLoss,
		TakeProfit:  takeProfit,
		Approximate: approximate,
		Metadata:    signal.Metadata,
	}
	state.nextID++
	state.open = append(state.open, pos)

	e.logger.Debug("开仓",
		zap.Int64("position_id", pos.ID),
		zap.String("direction", string(dir)),
		zap.Float64("units", pos.Units),
		zap.Float64("entry", entryPrice),
		zap.Float64("stop_loss", stopLoss),
		zap.Float64("take_profit", takeProfit),
	)

	return nil
}

// closePosition 原子地完成一次平仓：计价、算成本、入账、移出在场列表。
func (e *Engine) closePosition(state *runState, pos *Position, bar market.Bar, reason ExitReason) error {
	exitPrice, approximate := pricing.ExecutionPrice(bar, pos.Direction, pricing.Close)

	pnl, err := pip.FromPriceDiff(pos.Instrument, pos.EntryPrice, exitPrice, pos.Units, pos.Direction, accountCurrency, nil)
	if err != nil {
		return err
	}

	hold := bar.Time.Sub(pos.EntryTime)

	costs := 0.0
	if e.cfg.IncludeCosts {
		breakdown, err := e.costs.Calculate(pos.Instrument, pos.Units, pos.Direction, hold, e.tier)
		if err != nil {
			return err
		}
		costs = breakdown.TotalCost
	}

	netPnL := pnl.Amount - costs
	state.balance += netPnL

	state.trades = append(state.trades, Trade{
		PositionID:  pos.ID,
		Instrument:  pos.Instrument,
		Direction:   pos.Direction,
		Units:       pos.Units,
		EntryTime:   pos.EntryTime,
		ExitTime:    bar.Time,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   exitPrice,
		StopLoss:    pos.StopLoss,
		TakeProfit:  pos.TakeProfit,
		Reason:      reason,
		GrossPnL:    pnl.Amount,
		Costs:       costs,
		NetPnL:      netPnL,
		Pips:        pnl.Pips,
		Hold:        hold,
		Approximate: pos.Approximate || approximate,
		Metadata:    pos.Metadata,
	})

	for idx, open := range state.open {
		if open.ID == pos.ID {
			state.open = append(state.open[:idx], state.open[idx+1:]...)
			break
		}
	}

	e.logger.Debug("平仓",
		zap.Int64("position_id", pos.ID),
		zap.String("reason", string(reason)),
		zap.Float64("exit", exitPrice),
		zap.Float64("net_pnl", netPnL),
		zap.Float64("pips", pnl.Pips),
	)

	return nil
}

// currentEquity 为余额加上在场头寸按当前收盘价的浮动盈亏。
func (e *Engine) currentEquity(state *runState, bar market.Bar) (float64, error) {
	equity := state.balance
	for _, pos := range state.open {
		mark := pricing.MarkPrice(bar, pos.Direction)
		pnl, err := pip.FromPriceDiff(pos.Instrument, pos.EntryPrice, mark, pos.Units, pos.Direction, accountCurrency, nil)
		if err != nil {
			return 0, err
		}
		equity += pnl.Amount
	}
	return equity, nil
}

func (e *Engine) accountState(state *runState, bar market.Bar) (risk.AccountState, error) {
	notional := 0.0
	margin := 0.0
	for _, pos := range state.open {
		value := pos.Units * pos.EntryPrice
		notional += value
		margin += e.riskMgr.Margin(value)
	}

	equity, err := e.currentEquity(state, bar)
	if err != nil {
		return risk.AccountState{}, err
	}

	return risk.AccountState{
		Balance:      state.balance,
		Equity:       equity,
		OpenNotional: notional,
		UsedMargin:   margin,
	}, nil
}

func validProtectiveLevels(dir market.Direction, entry, stop, target float64) bool {
	if stop <= 0 || target <= 0 {
		return false
	}
	if dir == market.Long {
		return stop < entry && target > entry
	}
	return stop > entry && target < entry
}

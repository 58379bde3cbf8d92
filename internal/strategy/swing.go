package strategy

import (
	"math"

	talib "github.com/markcheno/go-talib"

	"fx-backtest/internal/config"
	"fx-backtest/internal/market"
)

const (
	rsiPeriod      = 14
	atrPeriod      = 14
	volumeLookback = 10
	slopeLookback  = 10
)

// Swing 为内置的4小时波段策略：顺势回调入场。
// 上升趋势（短均线在长均线之上）且RSI超卖时做多，
// 下降趋势且RSI超买时做空，止损按ATR倍数、止盈按盈亏比推算。
type Swing struct {
	units  float64
	params ParameterSet
}

// NewSwing 按配置构造波段策略。
func NewSwing(cfg config.StrategyConfig) *Swing {
	return &Swing{
		units: cfg.Units,
		params: ParameterSet{
			RSIOversold:      cfg.RSIOversold,
			RSIOverbought:    cfg.RSIOverbought,
			MAShortPeriod:    cfg.MAShortPeriod,
			MALongPeriod:     cfg.MALongPeriod,
			ATRMultiplier:    cfg.ATRMultiplier,
			RewardRiskRatio:  cfg.RewardRiskRatio,
			MinVolume:        cfg.MinVolume,
			MinTrendStrength: cfg.MinTrendStrength,
		},
	}
}

// NewSwingWithParams 用指定参数覆盖默认参数，优化器网格用。
func NewSwingWithParams(cfg config.StrategyConfig, params ParameterSet) *Swing {
	s := NewSwing(cfg)
	s.params = params
	return s
}

func (s *Swing) Name() string { return "swing" }

// Params 返回当前参数组合。
func (s *Swing) Params() ParameterSet { return s.params }

// Evaluate 在K线收盘时评估入场机会，历史不足时不交易。
func (s *Swing) Evaluate(recent []market.Bar, current market.Bar) (*Signal, error) {
	bars := make([]market.Bar, 0, len(recent)+1)
	bars = append(bars, recent...)
	bars = append(bars, current)

	need := s.params.MALongPeriod + slopeLookback
	if len(bars) < need {
		return nil, nil
	}

	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.MidClose()
		highs[i] = (bar.BidHigh + bar.AskHigh) / 2
		lows[i] = (bar.BidLow + bar.AskLow) / 2
	}

	rsiSeries := talib.Rsi(closes, rsiPeriod)
	maShort := talib.Sma(closes, s.params.MAShortPeriod)
	maLong := talib.Sma(closes, s.params.MALongPeriod)
	atrSeries := talib.Atr(highs, lows, closes, atrPeriod)

	last := len(bars) - 1
	rsi := rsiSeries[last]
	shortMA := maShort[last]
	longMA := maLong[last]
	atr := atrSeries[last]
	if atr <= 0 || longMA <= 0 {
		return nil, nil
	}

	// 成交量过滤：近期成交量要有基本的流动性。
	recentVolume := 0.0
	for _, bar := range bars[len(bars)-volumeLookback:] {
		recentVolume += bar.Volume
	}
	recentVolume /= volumeLookback
	if recentVolume < s.params.MinVolume {
		return nil, nil
	}

	// 趋势强度过滤：长均线斜率太平缓时放弃。
	slope := math.Abs(longMA-maLong[last-slopeLookback]) / longMA
	if slope < s.params.MinTrendStrength {
		return nil, nil
	}

	price := closes[last]
	stopDistance := atr * s.params.ATRMultiplier
	targetDistance := stopDistance * s.params.RewardRiskRatio

	meta := map[string]float64{
		"rsi":            rsi,
		"ma_short":       shortMA,
		"ma_long":        longMA,
		"atr":            atr,
		"trend_strength": slope,
		"recent_volume":  recentVolume,
	}

	uptrend := shortMA > longMA
	switch {
	case uptrend && rsi < s.params.RSIOversold:
		return &Signal{
			Action:     ActionBuy,
			Units:      s.units,
			StopLoss:   price - stopDistance,
			TakeProfit: price + targetDistance,
			Metadata:   meta,
		}, nil
	case !uptrend && rsi > s.params.RSIOverbought:
		return &Signal{
			Action:     ActionSell,
			Units:      s.units,
			StopLoss:   price + stopDistance,
			TakeProfit: price - targetDistance,
			Metadata:   meta,
		}, nil
	}

	return nil, nil
}

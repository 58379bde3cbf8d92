package optimizer

import (
	"fmt"
	"strings"

	"fx-backtest/internal/engine"
)

// FitnessFunc 从回测结果里提取用于选参的评分，越大越好。
type FitnessFunc func(*engine.Result) float64

// FitnessByName 返回命名的评分函数。
func FitnessByName(name string) (FitnessFunc, error) {
	switch strings.ToLower(name) {
	case "sharpe":
		return func(r *engine.Result) float64 { return r.Sharpe }, nil
	case "win_rate":
		return func(r *engine.Result) float64 { return r.WinRatePct }, nil
	case "profit_factor":
		return func(r *engine.Result) float64 { return r.ProfitFactor }, nil
	default:
		return nil, fmt.Errorf("optimizer: 未知评分指标: %q", name)
	}
}

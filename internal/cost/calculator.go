// Package cost 对交易成本建模：点差、滑点与隔夜利息。
// 对短线交易来说成本可能吞掉大半毛利，回测必须计入。
package cost

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"fx-backtest/internal/config"
	"fx-backtest/internal/market"
)

// ErrUnknownInstrument 表示品种没有成本画像，属于配置错误。
var ErrUnknownInstrument = errors.New("cost: 品种缺少成本画像")

// Tier 表示市场波动档位，影响点差与滑点。
type Tier string

const (
	TierQuiet    Tier = "quiet"
	TierNormal   Tier = "normal"
	TierVolatile Tier = "volatile"
	TierExtreme  Tier = "extreme"
)

// ParseTier 解析档位字符串，未知值回落到 normal。
func ParseTier(s string) Tier {
	switch Tier(strings.ToLower(s)) {
	case TierQuiet, TierNormal, TierVolatile, TierExtreme:
		return Tier(strings.ToLower(s))
	default:
		return TierNormal
	}
}

// Breakdown 为一笔交易的完整成本拆解，金额为账户货币。
type Breakdown struct {
	SpreadPips   float64
	SpreadCost   float64
	SlippagePips float64
	SlippageCost float64
	SwapCost     float64
	TotalPips    float64
	TotalCost    float64
	Lots         float64
}

// Calculator 按品种成本画像计算交易成本。
type Calculator struct {
	profiles map[string]config.CostProfileConfig
	logger   *zap.Logger
}

// NewCalculator 构造成本计算器。profiles 为空时使用内置画像。
func NewCalculator(profiles map[string]config.CostProfileConfig, logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(profiles) == 0 {
		profiles = config.DefaultCostProfiles()
	}
	return &Calculator{
		profiles: profiles,
		logger:   logger,
	}
}

// Profile 返回品种的成本画像。
func (c *Calculator) Profile(instrument string) (config.CostProfileConfig, error) {
	profile, ok := c.profiles[instrument]
	if !ok {
		return config.CostProfileConfig{}, fmt.Errorf("%w: %s", ErrUnknownInstrument, instrument)
	}
	return profile, nil
}

// Calculate 计算一笔交易的全部成本。
// 点差与滑点按进出各收一次（×2），隔夜利息按持仓自然日比例累计，
// 不足一根K线仍按实际时长折算，持仓时长为零则无隔夜利息。
// 方向只影响隔夜利息的费率选择。
func (c *Calculator) Calculate(instrument string, units float64, dir market.Direction, hold time.Duration, tier Tier) (Breakdown, error) {
	profile, err := c.Profile(instrument)
	if err != nil {
		return Breakdown{}, err
	}
	if units <= 0 {
		return Breakdown{}, fmt.Errorf("cost: 仓位数量必须为正: %v", units)
	}

	spreadPips := spreadFor(profile, tier) * 2
	slippagePips := slippageFor(profile, tier) * 2

	lots := units / 10000
	spreadCost := spreadPips * profile.PipValue * lots
	slippageCost := slippagePips * profile.PipValue * lots
	swapCost := c.swapCost(profile, dir, lots, hold)

	return Breakdown{
		SpreadPips:   spreadPips,
		SpreadCost:   spreadCost,
		SlippagePips: slippagePips,
		SlippageCost: slippageCost,
		SwapCost:     swapCost,
		TotalPips:    spreadPips + slippagePips,
		TotalCost:    spreadCost + slippageCost + swapCost,
		Lots:         lots,
	}, nil
}

func (c *Calculator) swapCost(profile config.CostProfileConfig, dir market.Direction, lots float64, hold time.Duration) float64 {
	if hold <= 0 {
		return 0
	}

	rate := profile.SwapLong
	if dir == market.Short {
		rate = profile.SwapShort
	}

	holdDays := hold.Seconds() / 86400
	return rate * lots * holdDays
}

func spreadFor(profile config.CostProfileConfig, tier Tier) float64 {
	switch tier {
	case TierQuiet:
		return profile.MinSpread
	case TierVolatile:
		return profile.BaseSpread * 1.5
	case TierExtreme:
		return profile.MaxSpread
	default:
		return profile.BaseSpread
	}
}

func slippageFor(profile config.CostProfileConfig, tier Tier) float64 {
	base := profile.SlippageAvg
	switch tier {
	case TierQuiet:
		return base * 0.7
	case TierVolatile:
		return base * 2.0
	case TierExtreme:
		return base * 3.0
	default:
		return base
	}
}

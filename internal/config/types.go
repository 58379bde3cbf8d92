package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了回测系统运行所需的全部配置项。
type Config struct {
	App          AppConfig                    `mapstructure:"app"`
	Exchange     ExchangeConfig               `mapstructure:"exchange"`
	CostProfiles map[string]CostProfileConfig `mapstructure:"cost_profiles"`
	Risk         RiskConfig                   `mapstructure:"risk"`
	Engine       EngineConfig                 `mapstructure:"engine"`
	Strategy     StrategyConfig               `mapstructure:"strategy"`
	Optimizer    OptimizerConfig              `mapstructure:"optimizer"`
	Database     DatabaseConfig               `mapstructure:"database"`
	Logging      LoggingConfig                `mapstructure:"logging"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// ExchangeConfig 描述取数交易所连接信息，仅用于准备历史数据。
type ExchangeConfig struct {
	Name       string      `mapstructure:"name"`
	Market     string      `mapstructure:"market"`
	Timeframe  string      `mapstructure:"timeframe"`
	APIKey     string      `mapstructure:"api_key"`
	APISecret  string      `mapstructure:"api_secret"`
	UseSandbox bool        `mapstructure:"use_sandbox"`
	Retry      RetryConfig `mapstructure:"retry"`
}

// RetryConfig 统一控制重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// CostProfileConfig 描述单个品种的成本画像。
// 点差与滑点单位为 pip，隔夜利息为每标准手每天的账户货币金额。
type CostProfileConfig struct {
	BaseSpread  float64 `mapstructure:"base_spread"`
	MinSpread   float64 `mapstructure:"min_spread"`
	MaxSpread   float64 `mapstructure:"max_spread"`
	SlippageAvg float64 `mapstructure:"slippage_avg"`
	SlippageStd float64 `mapstructure:"slippage_std"`
	SwapLong    float64 `mapstructure:"swap_long"`
	SwapShort   float64 `mapstructure:"swap_short"`
	PipValue    float64 `mapstructure:"pip_value"`
	PipLocation float64 `mapstructure:"pip_location"`
}

// RiskConfig 管理开仓前的风控限制。
type RiskConfig struct {
	MaxLeverage           float64 `mapstructure:"max_leverage"`
	MaxRiskPerTradePct    float64 `mapstructure:"max_risk_per_trade_pct"`
	MaxTotalExposureRatio float64 `mapstructure:"max_total_exposure_ratio"`
	MinMarginLevelPct     float64 `mapstructure:"min_margin_level_pct"`
	MarginRate            float64 `mapstructure:"margin_rate"`
}

// EngineConfig 控制单次回测的执行行为。
type EngineConfig struct {
	InitialBalance float64       `mapstructure:"initial_balance"`
	MaxPositions   int           `mapstructure:"max_positions"`
	MaxHold        time.Duration `mapstructure:"max_hold"`
	LookbackBars   int           `mapstructure:"lookback_bars"`
	MarketTier     string        `mapstructure:"market_tier"`
	TargetFirst    bool          `mapstructure:"target_first"`
	IncludeCosts   bool          `mapstructure:"include_costs"`
}

// StrategyConfig 为内置波段策略的默认参数。
type StrategyConfig struct {
	Units            float64 `mapstructure:"units"`
	RSIOversold      float64 `mapstructure:"rsi_oversold"`
	RSIOverbought    float64 `mapstructure:"rsi_overbought"`
	RewardRiskRatio  float64 `mapstructure:"reward_risk_ratio"`
	ATRMultiplier    float64 `mapstructure:"atr_multiplier"`
	MAShortPeriod    int     `mapstructure:"ma_short_period"`
	MALongPeriod     int     `mapstructure:"ma_long_period"`
	MinVolume        float64 `mapstructure:"min_volume"`
	MinTrendStrength float64 `mapstructure:"min_trend_strength"`
}

// OptimizerConfig 控制走向前优化。
type OptimizerConfig struct {
	TrainSpan      time.Duration `mapstructure:"train_span"`
	TestSpan       time.Duration `mapstructure:"test_span"`
	StepSpan       time.Duration `mapstructure:"step_span"`
	Fitness        string        `mapstructure:"fitness"`
	GridMode       string        `mapstructure:"grid_mode"`
	MinTradesTrain int           `mapstructure:"min_trades_train"`
	MinTradesTest  int           `mapstructure:"min_trades_test"`
	Workers        int           `mapstructure:"workers"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

var validTiers = map[string]bool{
	"quiet":    true,
	"normal":   true,
	"volatile": true,
	"extreme":  true,
}

var validFitness = map[string]bool{
	"sharpe":        true,
	"win_rate":      true,
	"profit_factor": true,
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.Exchange.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.max_attempts 必须大于0"))
	}
	if c.Exchange.Retry.MinDelay <= 0 || c.Exchange.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.delay 必须为正"))
	}
	if c.Exchange.Retry.MinDelay > c.Exchange.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("exchange.retry.min_delay 不能大于 max_delay"))
	}

	for name, profile := range c.CostProfiles {
		if profile.PipLocation <= 0 {
			err = multierr.Append(err, fmt.Errorf("cost_profiles.%s.pip_location 必须为正", name))
		}
		if profile.PipValue <= 0 {
			err = multierr.Append(err, fmt.Errorf("cost_profiles.%s.pip_value 必须为正", name))
		}
		if profile.BaseSpread < 0 || profile.MinSpread < 0 || profile.MaxSpread < 0 {
			err = multierr.Append(err, fmt.Errorf("cost_profiles.%s 的点差不能为负", name))
		}
		if profile.MinSpread > profile.BaseSpread || profile.BaseSpread > profile.MaxSpread {
			err = multierr.Append(err, fmt.Errorf("cost_profiles.%s 需满足 min<=base<=max", name))
		}
		if profile.SlippageAvg < 0 {
			err = multierr.Append(err, fmt.Errorf("cost_profiles.%s.slippage_avg 不能为负", name))
		}
	}

	if c.Risk.MaxLeverage <= 0 {
		err = multierr.Append(err, errors.New("risk.max_leverage 必须大于0"))
	}
	if c.Risk.MaxRiskPerTradePct <= 0 || c.Risk.MaxRiskPerTradePct > 100 {
		err = multierr.Append(err, errors.New("risk.max_risk_per_trade_pct 必须位于(0,100]"))
	}
	if c.Risk.MaxTotalExposureRatio <= 0 {
		err = multierr.Append(err, errors.New("risk.max_total_exposure_ratio 必须大于0"))
	}
	if c.Risk.MinMarginLevelPct <= 0 {
		err = multierr.Append(err, errors.New("risk.min_margin_level_pct 必须大于0"))
	}
	if c.Risk.MarginRate <= 0 || c.Risk.MarginRate >= 1 {
		err = multierr.Append(err, errors.New("risk.margin_rate 必须位于(0,1)"))
	}

	if c.Engine.InitialBalance <= 0 {
		err = multierr.Append(err, errors.New("engine.initial_balance 必须大于0"))
	}
	if c.Engine.MaxPositions <= 0 {
		err = multierr.Append(err, errors.New("engine.max_positions 必须大于0"))
	}
	if c.Engine.LookbackBars <= 0 {
		err = multierr.Append(err, errors.New("engine.lookback_bars 必须大于0"))
	}
	if !validTiers[strings.ToLower(c.Engine.MarketTier)] {
		err = multierr.Append(err, fmt.Errorf("engine.market_tier %q 不是合法档位", c.Engine.MarketTier))
	}

	if c.Strategy.Units <= 0 {
		err = multierr.Append(err, errors.New("strategy.units 必须大于0"))
	}
	if c.Strategy.RSIOversold >= c.Strategy.RSIOverbought {
		err = multierr.Append(err, errors.New("strategy.rsi_oversold 必须小于 rsi_overbought"))
	}
	if c.Strategy.MAShortPeriod <= 0 || c.Strategy.MALongPeriod <= 0 {
		err = multierr.Append(err, errors.New("strategy 均线周期必须大于0"))
	}
	if c.Strategy.MAShortPeriod >= c.Strategy.MALongPeriod {
		err = multierr.Append(err, errors.New("strategy.ma_short_period 必须小于 ma_long_period"))
	}
	if c.Strategy.RewardRiskRatio <= 0 {
		err = multierr.Append(err, errors.New("strategy.reward_risk_ratio 必须大于0"))
	}
	if c.Strategy.ATRMultiplier <= 0 {
		err = multierr.Append(err, errors.New("strategy.atr_multiplier 必须大于0"))
	}

	if c.Optimizer.TrainSpan <= 0 || c.Optimizer.TestSpan <= 0 || c.Optimizer.StepSpan <= 0 {
		err = multierr.Append(err, errors.New("optimizer 的窗口跨度必须为正"))
	}
	if !validFitness[strings.ToLower(c.Optimizer.Fitness)] {
		err = multierr.Append(err, fmt.Errorf("optimizer.fitness %q 不是合法指标", c.Optimizer.Fitness))
	}
	if c.Optimizer.MinTradesTrain < 0 || c.Optimizer.MinTradesTest < 0 {
		err = multierr.Append(err, errors.New("optimizer 的最小交易数不能为负"))
	}
	if c.Optimizer.Workers <= 0 {
		err = multierr.Append(err, errors.New("optimizer.workers 必须大于0"))
	}

	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}

	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}

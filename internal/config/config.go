package config

import (
	"errors"
	"fmt"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "fxbt"
)

// Load 读取配置文件并结合环境变量返回 Config。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if len(cfg.CostProfiles) == 0 {
		cfg.CostProfiles = DefaultCostProfiles()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")

	v.SetDefault("exchange.name", "binanceusdm")
	v.SetDefault("exchange.market", "EUR/USDT")
	v.SetDefault("exchange.timeframe", "4h")
	v.SetDefault("exchange.use_sandbox", false)
	v.SetDefault("exchange.retry.max_attempts", 5)
	v.SetDefault("exchange.retry.min_delay", "500ms")
	v.SetDefault("exchange.retry.max_delay", "5s")

	v.SetDefault("risk.max_leverage", 20.0)
	v.SetDefault("risk.max_risk_per_trade_pct", 1.0)
	v.SetDefault("risk.max_total_exposure_ratio", 3.0)
	v.SetDefault("risk.min_margin_level_pct", 100.0)
	v.SetDefault("risk.margin_rate", 0.03333)

	v.SetDefault("engine.initial_balance", 10000.0)
	v.SetDefault("engine.max_positions", 3)
	v.SetDefault("engine.max_hold", "0s")
	v.SetDefault("engine.lookback_bars", 100)
	v.SetDefault("engine.market_tier", "normal")
	v.SetDefault("engine.target_first", false)
	v.SetDefault("engine.include_costs", true)

	v.SetDefault("strategy.units", 10000)
	v.SetDefault("strategy.rsi_oversold", 30)
	v.SetDefault("strategy.rsi_overbought", 70)
	v.SetDefault("strategy.reward_risk_ratio", 1.5)
	v.SetDefault("strategy.atr_multiplier", 1.5)
	v.SetDefault("strategy.ma_short_period", 20)
	v.SetDefault("strategy.ma_long_period", 50)
	v.SetDefault("strategy.min_volume", 400)
	v.SetDefault("strategy.min_trend_strength", 0.0005)

	v.SetDefault("optimizer.train_span", "4320h")
	v.SetDefault("optimizer.test_span", "1440h")
	v.SetDefault("optimizer.step_span", "1440h")
	v.SetDefault("optimizer.fitness", "sharpe")
	v.SetDefault("optimizer.grid_mode", "focused")
	v.SetDefault("optimizer.min_trades_train", 5)
	v.SetDefault("optimizer.min_trades_test", 3)
	v.SetDefault("optimizer.workers", 4)

	v.SetDefault("database.path", "data/fx_backtest.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// DefaultCostProfiles 返回主要货币对的默认成本画像。
// 成本画像属于配置而非策略逻辑，未覆盖的品种在使用时会直接报错。
func DefaultCostProfiles() map[string]CostProfileConfig {
	return map[string]CostProfileConfig{
		"EUR_USD": {
			BaseSpread: 0.8, MinSpread: 0.5, MaxSpread: 2.0,
			SlippageAvg: 0.5, SlippageStd: 0.3,
			SwapLong: -0.50, SwapShort: 0.20,
			PipValue: 1.0, PipLocation: 0.0001,
		},
		"GBP_USD": {
			BaseSpread: 1.2, MinSpread: 0.8, MaxSpread: 3.0,
			SlippageAvg: 0.7, SlippageStd: 0.4,
			SwapLong: -0.60, SwapShort: 0.25,
			PipValue: 1.0, PipLocation: 0.0001,
		},
		"USD_JPY": {
			BaseSpread: 0.7, MinSpread: 0.4, MaxSpread: 2.0,
			SlippageAvg: 0.5, SlippageStd: 0.3,
			SwapLong: -0.30, SwapShort: -0.10,
			PipValue: 0.91, PipLocation: 0.01,
		},
		"AUD_USD": {
			BaseSpread: 1.0, MinSpread: 0.6, MaxSpread: 2.5,
			SlippageAvg: 0.6, SlippageStd: 0.4,
			SwapLong: -0.40, SwapShort: 0.15,
			PipValue: 1.0, PipLocation: 0.0001,
		},
		"USD_CAD": {
			BaseSpread: 1.2, MinSpread: 0.7, MaxSpread: 3.0,
			SlippageAvg: 0.6, SlippageStd: 0.4,
			SwapLong: -0.45, SwapShort: 0.18,
			PipValue: 0.74, PipLocation: 0.0001,
		},
		"EUR_GBP": {
			BaseSpread: 1.5, MinSpread: 1.0, MaxSpread: 3.5,
			SlippageAvg: 0.8, SlippageStd: 0.5,
			SwapLong: -0.55, SwapShort: 0.22,
			PipValue: 1.27, PipLocation: 0.0001,
		},
	}
}

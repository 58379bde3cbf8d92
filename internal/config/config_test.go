package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		App:      AppConfig{Environment: "test"},
		Exchange: ExchangeConfig{Retry: RetryConfig{MaxAttempts: 3, MinDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second}},
		CostProfiles: map[string]CostProfileConfig{
			"EUR_USD": {
				BaseSpread: 0.8, MinSpread: 0.5, MaxSpread: 2.0,
				SlippageAvg: 0.5, SlippageStd: 0.3,
				SwapLong: -0.5, SwapShort: 0.2,
				PipValue: 1.0, PipLocation: 0.0001,
			},
		},
		Risk: RiskConfig{
			MaxLeverage: 20, MaxRiskPerTradePct: 1,
			MaxTotalExposureRatio: 3, MinMarginLevelPct: 100, MarginRate: 0.03333,
		},
		Engine: EngineConfig{
			InitialBalance: 10000, MaxPositions: 3, LookbackBars: 100, MarketTier: "normal",
		},
		Strategy: StrategyConfig{
			Units: 10000, RSIOversold: 30, RSIOverbought: 70,
			RewardRiskRatio: 1.5, ATRMultiplier: 1.5,
			MAShortPeriod: 20, MALongPeriod: 50,
		},
		Optimizer: OptimizerConfig{
			TrainSpan: 4320 * time.Hour, TestSpan: 1440 * time.Hour, StepSpan: 1440 * time.Hour,
			Fitness: "sharpe", GridMode: "focused", Workers: 4,
		},
		Database: DatabaseConfig{Path: "data/test.db", MaxOpenConns: 4},
		Logging: LoggingConfig{
			Level: "info", Encoding: "console",
			OutputPaths: []string{"stdout"}, ErrorOutputPaths: []string{"stderr"},
		},
	}
}

func TestValidate_AcceptsValidConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config must pass validation: %v", err)
	}
}

func TestValidate_CollectsMultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Risk.MaxLeverage = 0
	cfg.Engine.InitialBalance = -1
	cfg.Optimizer.Fitness = "alpha"

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"max_leverage", "initial_balance", "fitness"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("validation error should mention %s, got %v", want, err)
		}
	}
}

func TestValidate_RejectsInvertedSpreadProfile(t *testing.T) {
	cfg := validConfig()
	profile := cfg.CostProfiles["EUR_USD"]
	profile.MinSpread = 3.0
	cfg.CostProfiles["EUR_USD"] = profile

	if err := cfg.Validate(); err == nil {
		t.Errorf("min spread above base spread must fail validation")
	}
}

func TestValidate_RejectsInvertedStrategyThresholds(t *testing.T) {
	cfg := validConfig()
	cfg.Strategy.RSIOversold = 80

	if err := cfg.Validate(); err == nil {
		t.Errorf("oversold above overbought must fail validation")
	}

	cfg = validConfig()
	cfg.Strategy.MAShortPeriod = 60
	if err := cfg.Validate(); err == nil {
		t.Errorf("short MA above long MA must fail validation")
	}
}

func TestValidate_RejectsBadMarketTier(t *testing.T) {
	cfg := validConfig()
	cfg.Engine.MarketTier = "chaotic"

	if err := cfg.Validate(); err == nil {
		t.Errorf("unknown market tier must fail validation")
	}
}

func TestDefaultCostProfiles(t *testing.T) {
	profiles := DefaultCostProfiles()
	if len(profiles) != 6 {
		t.Fatalf("expected 6 default instruments, got %d", len(profiles))
	}

	eurusd, ok := profiles["EUR_USD"]
	if !ok {
		t.Fatalf("EUR_USD must be present in defaults")
	}
	if eurusd.BaseSpread != 0.8 || eurusd.MinSpread != 0.5 || eurusd.MaxSpread != 2.0 {
		t.Errorf("unexpected EUR_USD spread profile: %+v", eurusd)
	}
	if eurusd.PipLocation != 0.0001 {
		t.Errorf("EUR_USD pip location must be 0.0001, got %v", eurusd.PipLocation)
	}

	usdjpy := profiles["USD_JPY"]
	if usdjpy.PipLocation != 0.01 {
		t.Errorf("USD_JPY pip location must be 0.01, got %v", usdjpy.PipLocation)
	}

	for name, profile := range profiles {
		if profile.MinSpread > profile.BaseSpread || profile.BaseSpread > profile.MaxSpread {
			t.Errorf("%s: spreads must satisfy min<=base<=max, got %+v", name, profile)
		}
	}
}

func TestLoad_ReadsFileAndAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("app:\n  environment: test\nengine:\n  initial_balance: 25000\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Engine.InitialBalance != 25000 {
		t.Errorf("file value must override default, got %v", cfg.Engine.InitialBalance)
	}
	if cfg.Risk.MaxLeverage != 20 {
		t.Errorf("expected default max leverage 20, got %v", cfg.Risk.MaxLeverage)
	}
	if cfg.Optimizer.TrainSpan != 4320*time.Hour {
		t.Errorf("duration defaults must decode, got %v", cfg.Optimizer.TrainSpan)
	}
	if len(cfg.CostProfiles) == 0 {
		t.Errorf("default cost profiles must be filled in when file omits them")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("expected error for missing config file")
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"fx-backtest/internal/config"
	"fx-backtest/internal/cost"
	"fx-backtest/internal/engine"
	"fx-backtest/internal/log"
	"fx-backtest/internal/market"
	"fx-backtest/internal/optimizer"
	"fx-backtest/internal/risk"
	"fx-backtest/internal/store"
	"fx-backtest/internal/strategy"
)

func main() {
	var (
		configPath string
		dataPath   string
		mode       string
		outDir     string
		instrument string
		fromStr    string
		toStr      string
	)
	flag.StringVar(&configPath, "config", "", "配置文件路径，默认使用 configs/config.yaml")
	flag.StringVar(&dataPath, "data", "", "历史K线CSV路径")
	flag.StringVar(&mode, "mode", "backtest", "运行模式: backtest | walkforward | fetch")
	flag.StringVar(&outDir, "out", "", "结果导出目录，为空则不导出文件")
	flag.StringVar(&instrument, "instrument", "EUR_USD", "品种名，仅 fetch 模式使用")
	flag.StringVar(&fromStr, "from", "", "拉取起始日期 (2006-01-02)，仅 fetch 模式使用")
	flag.StringVar(&toStr, "to", "", "拉取结束日期 (2006-01-02)，仅 fetch 模式使用")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.NewLogger(cfg.Logging, mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch mode {
	case "backtest":
		err = runBacktest(ctx, cfg, logger, dataPath, outDir)
	case "walkforward":
		err = runWalkForward(ctx, cfg, logger, dataPath, outDir)
	case "fetch":
		err = runFetch(ctx, cfg, logger, instrument, dataPath, fromStr, toStr)
	default:
		err = fmt.Errorf("未知运行模式: %q", mode)
	}
	if err != nil {
		logger.Error("运行失败", zap.String("mode", mode), zap.Error(err))
		os.Exit(1)
	}

	logger.Info("运行完成", zap.String("mode", mode))
}

func runBacktest(ctx context.Context, cfg *config.Config, logger *zap.Logger, dataPath, outDir string) error {
	if dataPath == "" {
		return fmt.Errorf("backtest 模式需要 -data 指定历史数据")
	}

	bars, err := market.LoadCSV(dataPath)
	if err != nil {
		return err
	}

	costs := cost.NewCalculator(cfg.CostProfiles, logger)
	riskMgr := risk.NewManager(cfg.Risk)

	eng, err := engine.NewEngine(cfg.Engine, costs, riskMgr, logger)
	if err != nil {
		return err
	}

	strat := strategy.NewSwing(cfg.Strategy)
	result, err := eng.Run(ctx, bars, strat)
	if err != nil {
		return err
	}

	sqliteStore, err := store.NewSQLite(cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := sqliteStore.Close(); closeErr != nil {
			logger.Warn("关闭数据库失败", zap.Error(closeErr))
		}
	}()

	runID, err := sqliteStore.SaveBacktest(ctx, strat.Name(), bars[0].Instrument, result)
	if err != nil {
		return err
	}
	logger.Info("回测结果已入库", zap.Int64("run_id", runID))

	if outDir == "" {
		return nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("创建导出目录失败: %w", err)
	}
	if err := store.ExportTradesCSV(filepath.Join(outDir, "trades.csv"), result.Trades); err != nil {
		return err
	}
	if err := store.ExportEquityCSV(filepath.Join(outDir, "equity.csv"), result.Equity); err != nil {
		return err
	}
	return store.ExportSummary(filepath.Join(outDir, "summary.txt"), result)
}

func runWalkForward(ctx context.Context, cfg *config.Config, logger *zap.Logger, dataPath, outDir string) error {
	if dataPath == "" {
		return fmt.Errorf("walkforward 模式需要 -data 指定历史数据")
	}

	bars, err := market.LoadCSV(dataPath)
	if err != nil {
		return err
	}

	costs := cost.NewCalculator(cfg.CostProfiles, logger)
	riskMgr := risk.NewManager(cfg.Risk)

	opt, err := optimizer.NewOptimizer(cfg.Optimizer, cfg.Engine, cfg.Strategy, costs, riskMgr, logger)
	if err != nil {
		return err
	}

	report, err := opt.Run(ctx, bars)
	if err != nil {
		return err
	}

	sqliteStore, err := store.NewSQLite(cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := sqliteStore.Close(); closeErr != nil {
			logger.Warn("关闭数据库失败", zap.Error(closeErr))
		}
	}()

	runID, err := sqliteStore.SaveWalkForward(ctx, bars[0].Instrument, cfg.Optimizer.Fitness, cfg.Optimizer.GridMode, report)
	if err != nil {
		return err
	}
	logger.Info("走向前报告已入库", zap.Int64("run_id", runID))

	if outDir == "" {
		return nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("创建导出目录失败: %w", err)
	}
	return store.ExportWalkForwardSummary(filepath.Join(outDir, "walkforward.txt"), report)
}

func runFetch(ctx context.Context, cfg *config.Config, logger *zap.Logger, instrument, dataPath, fromStr, toStr string) error {
	if dataPath == "" {
		return fmt.Errorf("fetch 模式需要 -data 指定输出文件")
	}
	if fromStr == "" || toStr == "" {
		return fmt.Errorf("fetch 模式需要 -from 与 -to 指定日期区间")
	}

	from, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return fmt.Errorf("解析 -from 失败: %w", err)
	}
	to, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		return fmt.Errorf("解析 -to 失败: %w", err)
	}
	if !to.After(from) {
		return fmt.Errorf("-to 必须晚于 -from")
	}

	fetcher, err := market.NewFetcher(cfg.Exchange, logger)
	if err != nil {
		return err
	}

	bars, err := fetcher.FetchBars(ctx, instrument, from, to, 1000)
	if err != nil {
		return err
	}

	if err := market.SaveCSV(dataPath, bars); err != nil {
		return err
	}

	logger.Info("历史数据已保存",
		zap.String("path", dataPath),
		zap.Int("bars", len(bars)),
	)
	return nil
}

// Package optimizer 实现走向前参数优化：
// 在滚动的训练窗口上选参，在紧随其后的测试窗口上做样本外验证，
// 汇总各窗口表现来度量参数稳定性。
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fx-backtest/internal/config"
	"fx-backtest/internal/cost"
	"fx-backtest/internal/engine"
	"fx-backtest/internal/market"
	"fx-backtest/internal/risk"
	"fx-backtest/internal/strategy"
)

// WindowResult 为单个窗口的优化结论。
type WindowResult struct {
	Window      Window
	BestParams  strategy.ParameterSet
	TrainScore  float64
	TrainTrades int
	Test        *engine.Result
	// Eligible 表示测试段交易数达标，计入汇总统计。
	Eligible bool
	Failed   bool
	FailWhy  string
}

// Optimizer 驱动整个走向前流程。
type Optimizer struct {
	cfg         config.OptimizerConfig
	engineCfg   config.EngineConfig
	strategyCfg config.StrategyConfig
	costs       *cost.Calculator
	riskMgr     *risk.Manager
	fitness     FitnessFunc
	logger      *zap.Logger
}

// NewOptimizer 构造走向前优化器。
func NewOptimizer(
	cfg config.OptimizerConfig,
	engineCfg config.EngineConfig,
	strategyCfg config.StrategyConfig,
	costs *cost.Calculator,
	riskMgr *risk.Manager,
	logger *zap.Logger,
) (*Optimizer, error) {
	if costs == nil {
		return nil, errors.New("optimizer: 成本计算器不能为空")
	}
	if riskMgr == nil {
		return nil, errors.New("optimizer: 风控管理器不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fitness, err := FitnessByName(cfg.Fitness)
	if err != nil {
		return nil, err
	}

	return &Optimizer{
		cfg:         cfg,
		engineCfg:   engineCfg,
		strategyCfg: strategyCfg,
		costs:       costs,
		riskMgr:     riskMgr,
		fitness:     fitness,
		logger:      logger,
	}, nil
}

// Run 在给定数据上执行完整的走向前优化。
func (o *Optimizer) Run(ctx context.Context, bars []market.Bar) (*Report, error) {
	if err := market.ValidateSeries(bars); err != nil {
		return nil, err
	}

	windows := BuildWindows(bars[0].Time, bars[len(bars)-1].Time, o.cfg.TrainSpan, o.cfg.TestSpan, o.cfg.StepSpan)
	if len(windows) == 0 {
		return nil, fmt.Errorf("optimizer: 数据区间不足以构成任何窗口 (%s ~ %s)",
			bars[0].Time.Format("2006-01-02"), bars[len(bars)-1].Time.Format("2006-01-02"))
	}

	grid := BuildGrid(o.cfg.GridMode)
	if len(grid) == 0 {
		return nil, errors.New("optimizer: 参数网格为空")
	}

	o.logger.Info("开始走向前优化",
		zap.Int("windows", len(windows)),
		zap.Int("grid_size", len(grid)),
		zap.String("fitness", o.cfg.Fitness),
		zap.String("grid_mode", o.cfg.GridMode),
		zap.Int("workers", o.cfg.Workers),
	)

	results := make([]WindowResult, len(windows))
	for i, window := range windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results[i] = o.optimizeWindow(ctx, bars, window, grid)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	report := buildReport(results)

	o.logger.Info("走向前优化完成",
		zap.Int("windows", len(results)),
		zap.Int("eligible", report.EligibleWindows),
		zap.Float64("consistency", report.Consistency),
		zap.String("classification", string(report.Classification)),
	)

	return report, nil
}

// optimizeWindow 在训练段并行评估整个网格，用最优参数跑一次测试段。
// 平分时选网格序号更小的组合，保证结果可复现。
func (o *Optimizer) optimizeWindow(ctx context.Context, bars []market.Bar, window Window, grid []strategy.ParameterSet) WindowResult {
	result := WindowResult{Window: window}

	trainBars := market.SliceWindow(bars, window.TrainStart, window.TrainEnd)
	testBars := market.SliceWindow(bars, window.TestStart, window.TestEnd)
	if len(trainBars) == 0 || len(testBars) == 0 {
		result.Failed = true
		result.FailWhy = "窗口内没有K线"
		return result
	}

	type evaluation struct {
		score  float64
		trades int
		ok     bool
	}
	evals := make([]evaluation, len(grid))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.cfg.Workers)

	for i, params := range grid {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			run, err := o.backtest(groupCtx, trainBars, params)
			if err != nil {
				if groupCtx.Err() != nil {
					return err
				}
				// 单个组合失败只影响该组合。
				evals[i] = evaluation{score: math.Inf(-1)}
				return nil
			}
			if run.TotalTrades < o.cfg.MinTradesTrain {
				evals[i] = evaluation{score: math.Inf(-1), trades: run.TotalTrades}
				return nil
			}
			evals[i] = evaluation{score: o.fitness(run), trades: run.TotalTrades, ok: true}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		result.Failed = true
		result.FailWhy = err.Error()
		return result
	}

	bestIdx := -1
	for i, eval := range evals {
		if !eval.ok {
			continue
		}
		if bestIdx < 0 || eval.score > evals[bestIdx].score {
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		result.Failed = true
		result.FailWhy = "训练段没有任何参数组合达到最小交易数"
		return result
	}

	result.BestParams = grid[bestIdx]
	result.TrainScore = evals[bestIdx].score
	result.TrainTrades = evals[bestIdx].trades

	o.logger.Info("窗口训练段选参完成",
		zap.Int("window", window.ID),
		zap.String("params", result.BestParams.String()),
		zap.Float64("train_score", result.TrainScore),
		zap.Int("train_trades", result.TrainTrades),
	)

	test, err := o.backtest(ctx, testBars, result.BestParams)
	if err != nil {
		result.Failed = true
		result.FailWhy = fmt.Sprintf("测试段回测失败: %v", err)
		return result
	}

	result.Test = test
	result.Eligible = test.TotalTrades >= o.cfg.MinTradesTest
	if !result.Eligible {
		o.logger.Warn("窗口测试段交易数不足，不计入汇总",
			zap.Int("window", window.ID),
			zap.Int("test_trades", test.TotalTrades),
			zap.Int("min_required", o.cfg.MinTradesTest),
		)
	}

	return result
}

func (o *Optimizer) backtest(ctx context.Context, bars []market.Bar, params strategy.ParameterSet) (*engine.Result, error) {
	// 网格评估量大，内层引擎不输出日志。
	eng, err := engine.NewEngine(o.engineCfg, o.costs, o.riskMgr, zap.NewNop())
	if err != nil {
		return nil, err
	}
	return eng.Run(ctx, bars, strategy.NewSwingWithParams(o.strategyCfg, params))
}

// Package risk 在开仓前做风控评估。
// 四项检查按固定顺序执行：杠杆、单笔风险、总敞口、保证金水平，
// 任一失败立即拒绝，已执行的检查全部记录在结果里。
package risk

import (
	"fmt"

	"fx-backtest/internal/config"
)

const (
	CheckLeverage     = "leverage"
	CheckRiskPerTrade = "risk_per_trade"
	CheckExposure     = "exposure"
	CheckMargin       = "margin_level"
)

// AccountState 为评估时刻的账户快照。
type AccountState struct {
	Balance      float64
	Equity       float64
	OpenNotional float64
	UsedMargin   float64
}

// TradeRequest 描述待评估的开仓请求。
// PipValue 为每标准手（1万单位）每点的账户货币价值。
type TradeRequest struct {
	Instrument string
	Units      float64
	EntryPrice float64
	StopPips   float64
	PipValue   float64
}

// CheckOutcome 记录单项检查的度量值与阈值。
type CheckOutcome struct {
	Name   string
	Passed bool
	Value  float64
	Limit  float64
}

// Result 为一次风控评估的完整结论。
type Result struct {
	Allowed  bool
	Reason   string
	Checks   []CheckOutcome
	Warnings []string
}

// Manager 负责执行风控评估。
type Manager struct {
	cfg config.RiskConfig
}

// NewManager 构造风控管理器。
func NewManager(cfg config.RiskConfig) *Manager {
	return &Manager{cfg: cfg}
}

// Validate 评估开仓请求。纯函数：不修改账户状态，也没有任何副作用，
// 告警只出现在返回的 Result 里，由调用方决定是否落日志。
func (m *Manager) Validate(state AccountState, req TradeRequest) Result {
	result := Result{Allowed: true}

	if state.Balance <= 0 {
		result.Allowed = false
		result.Reason = "账户余额已耗尽"
		return result
	}
	if req.Units <= 0 || req.EntryPrice <= 0 {
		result.Allowed = false
		result.Reason = fmt.Sprintf("开仓参数无效 (units=%v price=%v)", req.Units, req.EntryPrice)
		return result
	}

	newNotional := req.Units * req.EntryPrice
	totalNotional := state.OpenNotional + newNotional

	// 杠杆
	leverage := totalNotional / state.Balance
	result.record(CheckLeverage, leverage, m.cfg.MaxLeverage, leverage <= m.cfg.MaxLeverage)
	if leverage > m.cfg.MaxLeverage {
		return result.reject(fmt.Sprintf("杠杆 %.2f 超过上限 %.2f", leverage, m.cfg.MaxLeverage))
	}
	if leverage > m.cfg.MaxLeverage*0.8 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("杠杆 %.2f 已接近上限 %.2f", leverage, m.cfg.MaxLeverage))
	}

	// 单笔风险
	lots := req.Units / 10000
	riskAmount := req.StopPips * req.PipValue * lots
	riskPct := riskAmount / state.Balance * 100
	result.record(CheckRiskPerTrade, riskPct, m.cfg.MaxRiskPerTradePct, riskPct <= m.cfg.MaxRiskPerTradePct)
	if riskPct > m.cfg.MaxRiskPerTradePct {
		return result.reject(fmt.Sprintf("单笔风险 %.2f%% 超过上限 %.2f%%", riskPct, m.cfg.MaxRiskPerTradePct))
	}

	// 总敞口
	exposureRatio := totalNotional / state.Balance
	result.record(CheckExposure, exposureRatio, m.cfg.MaxTotalExposureRatio, exposureRatio <= m.cfg.MaxTotalExposureRatio)
	if exposureRatio > m.cfg.MaxTotalExposureRatio {
		return result.reject(fmt.Sprintf("总敞口 %.2f 超过上限 %.2f", exposureRatio, m.cfg.MaxTotalExposureRatio))
	}

	// 保证金水平
	newMargin := newNotional * m.cfg.MarginRate
	totalMargin := state.UsedMargin + newMargin
	marginLevel := 0.0
	if totalMargin > 0 {
		marginLevel = state.Equity / totalMargin * 100
	}
	result.record(CheckMargin, marginLevel, m.cfg.MinMarginLevelPct, totalMargin == 0 || marginLevel >= m.cfg.MinMarginLevelPct)
	if totalMargin > 0 && marginLevel < m.cfg.MinMarginLevelPct {
		return result.reject(fmt.Sprintf("保证金水平 %.1f%% 低于下限 %.1f%%", marginLevel, m.cfg.MinMarginLevelPct))
	}
	if totalMargin > 0 && marginLevel < m.cfg.MinMarginLevelPct*1.5 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("保证金水平 %.1f%% 接近下限 %.1f%%", marginLevel, m.cfg.MinMarginLevelPct))
	}

	return result
}

// Margin 返回给定名义价值所需的保证金。
func (m *Manager) Margin(notional float64) float64 {
	return notional * m.cfg.MarginRate
}

func (r *Result) record(name string, value, limit float64, passed bool) {
	r.Checks = append(r.Checks, CheckOutcome{
		Name:   name,
		Passed: passed,
		Value:  value,
		Limit:  limit,
	})
}

func (r Result) reject(reason string) Result {
	r.Allowed = false
	r.Reason = reason
	return r
}

package strategy

import "fmt"

// ParameterSet 为波段策略的可调参数，值类型便于网格去重与比较。
type ParameterSet struct {
	RSIOversold      float64
	RSIOverbought    float64
	MAShortPeriod    int
	MALongPeriod     int
	ATRMultiplier    float64
	RewardRiskRatio  float64
	MinVolume        float64
	MinTrendStrength float64
}

// Valid 过滤无意义的参数组合。
func (p ParameterSet) Valid() bool {
	return p.RSIOversold < p.RSIOverbought &&
		p.MAShortPeriod > 0 &&
		p.MAShortPeriod < p.MALongPeriod &&
		p.ATRMultiplier > 0 &&
		p.RewardRiskRatio > 0 &&
		p.MinVolume >= 0 &&
		p.MinTrendStrength >= 0
}

func (p ParameterSet) String() string {
	return fmt.Sprintf("rsi=%.0f/%.0f ma=%d/%d atr=%.1f rr=%.1f vol=%.0f trend=%.4f",
		p.RSIOversold, p.RSIOverbought, p.MAShortPeriod, p.MALongPeriod,
		p.ATRMultiplier, p.RewardRiskRatio, p.MinVolume, p.MinTrendStrength)
}

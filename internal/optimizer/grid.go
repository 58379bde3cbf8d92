package optimizer

import "fx-backtest/internal/strategy"

type gridAxes struct {
	rsiOversold      []float64
	rsiOverbought    []float64
	rewardRisk       []float64
	atrMultiplier    []float64
	maShort          []int
	maLong           []int
	minVolume        []float64
	minTrendStrength []float64
}

// focused 围绕当前最优参数做小范围搜索，broad 做大范围扫描。
var gridModes = map[string]gridAxes{
	"focused": {
		rsiOversold:      []float64{25, 30, 35},
		rsiOverbought:    []float64{65, 70, 75},
		rewardRisk:       []float64{1.0, 1.5, 2.0},
		atrMultiplier:    []float64{1.0, 1.5, 2.0},
		maShort:          []int{15, 20, 25},
		maLong:           []int{45, 50, 55},
		minVolume:        []float64{300, 400, 500},
		minTrendStrength: []float64{0.0003, 0.0005, 0.0007},
	},
	"broad": {
		rsiOversold:      []float64{20, 25, 30, 35, 40},
		rsiOverbought:    []float64{60, 65, 70, 75, 80},
		rewardRisk:       []float64{1.0, 1.5, 2.0, 2.5},
		atrMultiplier:    []float64{1.0, 1.5, 2.0, 2.5},
		maShort:          []int{10, 15, 20, 25, 30},
		maLong:           []int{40, 50, 60, 70},
		minVolume:        []float64{200, 300, 400, 500},
		minTrendStrength: []float64{0.0001, 0.0003, 0.0005, 0.0007, 0.001},
	},
}

// BuildGrid 生成去重后的合法参数组合，顺序确定。
// 未知模式回落到 focused。
func BuildGrid(mode string) []strategy.ParameterSet {
	axes, ok := gridModes[mode]
	if !ok {
		axes = gridModes["focused"]
	}

	seen := make(map[strategy.ParameterSet]struct{})
	var grid []strategy.ParameterSet

	for _, oversold := range axes.rsiOversold {
		for _, overbought := range axes.rsiOverbought {
			for _, rr := range axes.rewardRisk {
				for _, atr := range axes.atrMultiplier {
					for _, short := range axes.maShort {
						for _, long := range axes.maLong {
							for _, volume := range axes.minVolume {
								for _, trend := range axes.minTrendStrength {
									params := strategy.ParameterSet{
										RSIOversold:      oversold,
										RSIOverbought:    overbought,
										RewardRiskRatio:  rr,
										ATRMultiplier:    atr,
										MAShortPeriod:    short,
										MALongPeriod:     long,
										MinVolume:        volume,
										MinTrendStrength: trend,
									}
									if !params.Valid() {
										continue
									}
									if _, dup := seen[params]; dup {
										continue
									}
									seen[params] = struct{}{}
									grid = append(grid, params)
								}
							}
						}
					}
				}
			}
		}
	}

	return grid
}

package market

import (
	"errors"
	"time"
)

// ErrData 表示输入行情数据本身不可用，当前回测必须整体中止。
var ErrData = errors.New("market: 行情数据无效")

// Bar 表示一根带买卖双边报价的K线。
// 由数据装载层构造后不再修改；MidOnly 标记该根K线只有中间价，
// 双边字段均填充为中间价，执行层需按近似价处理。
type Bar struct {
	Time       time.Time
	Instrument string

	BidOpen  float64
	BidHigh  float64
	BidLow   float64
	BidClose float64

	AskOpen  float64
	AskHigh  float64
	AskLow   float64
	AskClose float64

	Volume  float64
	MidOnly bool
}

// MidClose 返回收盘中间价。
func (b Bar) MidClose() float64 {
	return (b.BidClose + b.AskClose) / 2
}

// Spread 返回收盘点差。
func (b Bar) Spread() float64 {
	return b.AskClose - b.BidClose
}

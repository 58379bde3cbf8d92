package market

// Direction 表示持仓方向。方向永远显式传递，不允许从仓位符号推断。
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Opposite 返回相反方向。
func (d Direction) Opposite() Direction {
	if d == Long {
		return Short
	}
	return Long
}

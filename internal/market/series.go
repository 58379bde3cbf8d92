package market

import (
	"fmt"
	"sort"
	"time"
)

// ValidateSeries 校验K线序列：时间戳必须严格递增，价格必须有效。
// 任何违规都会返回包装了 ErrData 的错误。
func ValidateSeries(bars []Bar) error {
	if len(bars) == 0 {
		return fmt.Errorf("%w: 序列为空", ErrData)
	}

	for i, bar := range bars {
		if bar.Time.IsZero() {
			return fmt.Errorf("%w: 第%d根K线缺少时间戳", ErrData, i)
		}
		if bar.BidClose <= 0 || bar.AskClose <= 0 {
			return fmt.Errorf("%w: 第%d根K线收盘价无效", ErrData, i)
		}
		if bar.AskClose < bar.BidClose {
			return fmt.Errorf("%w: 第%d根K线买价高于卖价", ErrData, i)
		}
		if i == 0 {
			continue
		}
		prev := bars[i-1]
		if !bar.Time.After(prev.Time) {
			if bar.Time.Equal(prev.Time) {
				return fmt.Errorf("%w: 第%d根K线时间戳重复 (%s)", ErrData, i, bar.Time.Format(time.RFC3339))
			}
			return fmt.Errorf("%w: 第%d根K线时间戳倒序 (%s < %s)",
				ErrData, i, bar.Time.Format(time.RFC3339), prev.Time.Format(time.RFC3339))
		}
		if bar.Instrument != prev.Instrument {
			return fmt.Errorf("%w: 第%d根K线品种不一致 (%s vs %s)", ErrData, i, bar.Instrument, prev.Instrument)
		}
	}

	return nil
}

// SliceWindow 返回落在 [from, to) 内的K线，输入必须已按时间排序。
func SliceWindow(bars []Bar, from, to time.Time) []Bar {
	lo := sort.Search(len(bars), func(i int) bool {
		return !bars[i].Time.Before(from)
	})
	hi := sort.Search(len(bars), func(i int) bool {
		return !bars[i].Time.Before(to)
	})
	return bars[lo:hi]
}

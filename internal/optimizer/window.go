package optimizer

import "time"

// Window 为一个走向前窗口，训练段结束即测试段开始。
type Window struct {
	ID         int
	TrainStart time.Time
	TrainEnd   time.Time
	TestStart  time.Time
	TestEnd    time.Time
}

// BuildWindows 按训练/测试/步进跨度在数据区间内滚动生成窗口。
// 测试段越过数据末尾时停止。
func BuildWindows(dataStart, dataEnd time.Time, train, test, step time.Duration) []Window {
	var windows []Window

	id := 1
	cursor := dataStart
	for {
		trainEnd := cursor.Add(train)
		testEnd := trainEnd.Add(test)
		if testEnd.After(dataEnd) {
			break
		}

		windows = append(windows, Window{
			ID:         id,
			TrainStart: cursor,
			TrainEnd:   trainEnd,
			TestStart:  trainEnd,
			TestEnd:    testEnd,
		})

		cursor = cursor.Add(step)
		id++
	}

	return windows
}

package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

var csvColumns = []string{
	"time", "instrument",
	"bid_open", "bid_high", "bid_low", "bid_close",
	"ask_open", "ask_high", "ask_low", "ask_close",
	"volume",
}

// LoadCSV 从CSV文件加载历史K线并校验排序。
// 期望的列为 time, instrument, bid_open..bid_close, ask_open..ask_close, volume。
func LoadCSV(path string) ([]Bar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("market: 打开数据文件失败: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: 读取CSV表头失败: %v", ErrData, err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, name := range csvColumns {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("%w: CSV缺少列 %q", ErrData, name)
		}
	}

	var bars []Bar
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: 第%d行解析失败: %v", ErrData, line, err)
		}
		line++

		ts, err := time.Parse(time.RFC3339, record[index["time"]])
		if err != nil {
			return nil, fmt.Errorf("%w: 第%d行时间格式无效: %v", ErrData, line, err)
		}

		fields := make(map[string]float64, 9)
		for _, name := range csvColumns[2:] {
			value, err := strconv.ParseFloat(record[index[name]], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: 第%d行列 %q 数值无效: %v", ErrData, line, name, err)
			}
			fields[name] = value
		}

		bars = append(bars, Bar{
			Time:       ts.UTC(),
			Instrument: record[index["instrument"]],
			BidOpen:    fields["bid_open"],
			BidHigh:    fields["bid_high"],
			BidLow:     fields["bid_low"],
			BidClose:   fields["bid_close"],
			AskOpen:    fields["ask_open"],
			AskHigh:    fields["ask_high"],
			AskLow:     fields["ask_low"],
			AskClose:   fields["ask_close"],
			Volume:     fields["volume"],
		})
	}

	if err := ValidateSeries(bars); err != nil {
		return nil, err
	}

	return bars, nil
}

// SaveCSV 将K线序列写成 LoadCSV 可读回的CSV文件。
func SaveCSV(path string, bars []Bar) error {
	if err := ValidateSeries(bars); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("market: 创建数据目录失败: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("market: 创建数据文件失败: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	writer := csv.NewWriter(file)
	if err := writer.Write(csvColumns); err != nil {
		return fmt.Errorf("market: 写入CSV表头失败: %w", err)
	}

	for _, bar := range bars {
		record := []string{
			bar.Time.UTC().Format(time.RFC3339),
			bar.Instrument,
			formatPrice(bar.BidOpen), formatPrice(bar.BidHigh),
			formatPrice(bar.BidLow), formatPrice(bar.BidClose),
			formatPrice(bar.AskOpen), formatPrice(bar.AskHigh),
			formatPrice(bar.AskLow), formatPrice(bar.AskClose),
			formatPrice(bar.Volume),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("market: 写入K线失败: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("market: 刷新CSV失败: %w", err)
	}

	return nil
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

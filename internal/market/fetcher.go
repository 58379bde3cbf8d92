package market

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"

	"fx-backtest/internal/config"
)

// Fetcher 通过 ccxt 拉取历史K线，用于准备回测数据集。
// 交易所只提供中间价OHLCV，因此产出的K线均为 MidOnly。
type Fetcher struct {
	cfg      config.ExchangeConfig
	logger   *zap.Logger
	exchange *ccxt.Binanceusdm

	marketsMu     sync.Mutex
	marketsLoaded bool
}

// NewFetcher 构造历史数据拉取器。
func NewFetcher(cfg config.ExchangeConfig, logger *zap.Logger) (*Fetcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	userConfig := map[string]interface{}{
		"enableRateLimit": true,
		"options": map[string]interface{}{
			"adjustForTimeDifference": true,
		},
	}
	if cfg.APIKey != "" {
		userConfig["apiKey"] = cfg.APIKey
	}
	if cfg.APISecret != "" {
		userConfig["secret"] = cfg.APISecret
	}

	ex := ccxt.NewBinanceusdm(userConfig)
	if cfg.UseSandbox {
		ex.SetSandboxMode(true)
	}

	return &Fetcher{
		cfg:      cfg,
		logger:   logger,
		exchange: ex,
	}, nil
}

// FetchBars 拉取 [since, until) 的K线，分批请求直到覆盖区间。
// instrument 为回测内部使用的品种名（如 EUR_USD），用于填充 Bar。
func (f *Fetcher) FetchBars(ctx context.Context, instrument string, since, until time.Time, limit int64) ([]Bar, error) {
	if limit <= 0 {
		limit = 1000
	}

	var bars []Bar
	cursor := since

	for cursor.Before(until) {
		var raw []ccxt.OHLCV

		err := f.callWithRetry(ctx, "fetch_ohlcv", func() error {
			if err := f.ensureMarketsLoaded(ctx); err != nil {
				return err
			}
			result, err := f.exchange.FetchOHLCV(
				f.cfg.Market,
				ccxt.WithFetchOHLCVTimeframe(f.cfg.Timeframe),
				ccxt.WithFetchOHLCVSince(cursor.UnixMilli()),
				ccxt.WithFetchOHLCVLimit(limit),
			)
			if err != nil {
				return err
			}
			raw = result
			return nil
		})
		if err != nil {
			return nil, err
		}
		if len(raw) == 0 {
			break
		}

		for _, item := range raw {
			ts := time.UnixMilli(item.Timestamp).UTC()
			if !ts.Before(until) {
				break
			}
			bars = append(bars, Bar{
				Time:       ts,
				Instrument: instrument,
				BidOpen:    item.Open,
				BidHigh:    item.High,
				BidLow:     item.Low,
				BidClose:   item.Close,
				AskOpen:    item.Open,
				AskHigh:    item.High,
				AskLow:     item.Low,
				AskClose:   item.Close,
				Volume:     item.Volume,
				MidOnly:    true,
			})
		}

		last := time.UnixMilli(raw[len(raw)-1].Timestamp).UTC()
		if !last.After(cursor) {
			break
		}
		cursor = last.Add(time.Millisecond)

		f.logger.Info("已拉取K线分批",
			zap.String("market", f.cfg.Market),
			zap.Int("batch", len(raw)),
			zap.Int("total", len(bars)),
		)
	}

	if err := ValidateSeries(bars); err != nil {
		return nil, err
	}

	return bars, nil
}

func (f *Fetcher) ensureMarketsLoaded(ctx context.Context) error {
	if f.marketsLoaded {
		return nil
	}

	f.marketsMu.Lock()
	defer f.marketsMu.Unlock()

	if f.marketsLoaded {
		return nil
	}

	loadErr := f.callWithRetry(ctx, "load_markets", func() error {
		_, err := f.exchange.LoadMarkets()
		return err
	})
	if loadErr != nil {
		return loadErr
	}

	f.marketsLoaded = true
	f.logger.Info("已完成市场元数据加载", zap.String("market", f.cfg.Market))
	return nil
}

func (f *Fetcher) callWithRetry(ctx context.Context, operation string, fn func() error) error {
	attempt := 0
	delay := f.cfg.Retry.MinDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := f.cfg.Retry.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		attempt++
		err := fn()
		if err == nil {
			if attempt > 1 {
				f.logger.Info("交易所调用重试后成功",
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
				)
			}
			return nil
		}

		if !isRetryable(err) || attempt >= f.cfg.Retry.MaxAttempts {
			return fmt.Errorf("market: 调用 %s 失败: %w", operation, err)
		}

		f.logger.Warn("交易所调用失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) {
		switch ccxtErr.Type {
		case ccxt.NetworkErrorErrType,
			ccxt.RequestTimeoutErrType,
			ccxt.ExchangeNotAvailableErrType,
			ccxt.RateLimitExceededErrType,
			ccxt.DDoSProtectionErrType,
			ccxt.BadResponseErrType,
			ccxt.NullResponseErrType:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return strings.Contains(err.Error(), "timeout")
}

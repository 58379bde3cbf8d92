// Package store 负责回测结果的持久化与导出。
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"fx-backtest/internal/config"
)

// Store 封装 SQLite 连接。
type Store struct {
	db *sql.DB
}

// NewSQLite 根据配置初始化 SQLite 存储并建表。
func NewSQLite(cfg config.DatabaseConfig) (*Store, error) {
	dsn := cfg.Path
	if cfg.InMemory {
		dsn = ":memory:"
	} else {
		if err := ensureDir(filepath.Dir(cfg.Path)); err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on", dsn))
	if err != nil {
		return nil, fmt.Errorf("打开 SQLite 数据库失败: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("设置 SQLite WAL 模式失败: %w", err)
	}

	if _, err := conn.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("设置 SQLite 同步级别失败: %w", err)
	}

	store := &Store{db: conn}
	if err := store.initSchema(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) initSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS backtest_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			strategy TEXT NOT NULL,
			instrument TEXT NOT NULL,
			initial_balance REAL NOT NULL,
			final_balance REAL NOT NULL,
			total_return_pct REAL NOT NULL,
			total_trades INTEGER NOT NULL,
			win_rate_pct REAL NOT NULL,
			sharpe REAL NOT NULL,
			max_drawdown_pct REAL NOT NULL,
			profit_factor REAL NOT NULL,
			total_costs REAL NOT NULL,
			no_trades INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS backtest_trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL REFERENCES backtest_runs(id),
			position_id INTEGER NOT NULL,
			instrument TEXT NOT NULL,
			direction TEXT NOT NULL,
			units REAL NOT NULL,
			entry_time TEXT NOT NULL,
			exit_time TEXT NOT NULL,
			entry_price REAL NOT NULL,
			exit_price REAL NOT NULL,
			stop_loss REAL NOT NULL,
			take_profit REAL NOT NULL,
			reason TEXT NOT NULL,
			gross_pnl REAL NOT NULL,
			costs REAL NOT NULL,
			net_pnl REAL NOT NULL,
			pips REAL NOT NULL,
			hold_seconds INTEGER NOT NULL,
			approximate INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_backtest_trades_run ON backtest_trades(run_id);`,
		`CREATE TABLE IF NOT EXISTS backtest_equity (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL REFERENCES backtest_runs(id),
			ts TEXT NOT NULL,
			equity REAL NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_backtest_equity_run ON backtest_equity(run_id);`,
		`CREATE TABLE IF NOT EXISTS walkforward_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			instrument TEXT NOT NULL,
			fitness TEXT NOT NULL,
			grid_mode TEXT NOT NULL,
			windows INTEGER NOT NULL,
			eligible_windows INTEGER NOT NULL,
			failed_windows INTEGER NOT NULL,
			positive_windows INTEGER NOT NULL,
			consistency REAL NOT NULL,
			classification TEXT NOT NULL,
			return_mean REAL NOT NULL,
			return_median REAL NOT NULL,
			return_std REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS walkforward_windows (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL REFERENCES walkforward_runs(id),
			window_id INTEGER NOT NULL,
			train_start TEXT NOT NULL,
			train_end TEXT NOT NULL,
			test_start TEXT NOT NULL,
			test_end TEXT NOT NULL,
			best_params TEXT NOT NULL,
			train_score REAL NOT NULL,
			train_trades INTEGER NOT NULL,
			test_return_pct REAL NOT NULL,
			test_trades INTEGER NOT NULL,
			eligible INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			fail_reason TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_walkforward_windows_run ON walkforward_windows(run_id);`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: 初始化表结构失败: %w", err)
		}
	}

	return nil
}

// DB 返回底层 *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close 关闭数据库连接。
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("创建目录 %q 失败: %w", path, err)
	}
	return nil
}

package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"rsi-trends/internal/store"
	"rsi-trends/internal/trend"
)

// ErrNoRuns 表示归档中尚无分析记录。
var ErrNoRuns = errors.New("archive: 暂无分析记录")

const timeLayout = time.RFC3339Nano

// Service 负责持久化分析结果。
type Service struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewService 初始化归档服务，创建所需表结构。
func NewService(store *store.Store, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("archive: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		db:     store.DB(),
		logger: logger,
		now:    time.Now,
	}

	if err := s.initSchema(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS analysis_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source TEXT NOT NULL,
	window_candles INTEGER NOT NULL,
	window_start TEXT NOT NULL,
	window_end TEXT NOT NULL,
	down_threshold REAL NOT NULL,
	up_threshold REAL NOT NULL,
	period INTEGER NOT NULL,
	down_count INTEGER NOT NULL,
	up_count INTEGER NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS trend_episodes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id INTEGER NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
	direction TEXT NOT NULL,
	start_index INTEGER NOT NULL,
	end_index INTEGER NOT NULL,
	start_time TEXT NOT NULL,
	end_time TEXT NOT NULL,
	number_of_candles INTEGER NOT NULL,
	price_change REAL NOT NULL,
	percentage REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trend_episodes_run ON trend_episodes(run_id, direction, start_index);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("archive: 初始化表失败: %w", err)
	}
	return nil
}

// SaveRun 在同一事务中写入分析记录及全部趋势，返回记录ID。
func (s *Service) SaveRun(ctx context.Context, meta RunMeta, report trend.Report) (int64, error) {
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("archive: 开启事务失败: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `
INSERT INTO analysis_runs (source, window_candles, window_start, window_end, down_threshold, up_threshold, period, down_count, up_count, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.Source,
		report.Window.Candles,
		formatTime(report.Window.StartTime),
		formatTime(report.Window.EndTime),
		meta.Analysis.DownThreshold,
		meta.Analysis.UpThreshold,
		meta.Analysis.Period,
		len(report.Down),
		len(report.Up),
		formatTime(meta.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("archive: 写入分析记录失败: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("archive: 获取记录ID失败: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO trend_episodes (run_id, direction, start_index, end_index, start_time, end_time, number_of_candles, price_change, percentage)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("archive: 预编译语句失败: %w", err)
	}
	defer stmt.Close()

	for _, episodes := range [][]trend.Episode{report.Down, report.Up} {
		for _, e := range episodes {
			if _, err := stmt.ExecContext(ctx,
				runID,
				string(e.Direction),
				e.StartIndex,
				e.EndIndex,
				formatTime(e.StartTime),
				formatTime(e.EndTime),
				e.CandleCount,
				e.PriceChange,
				e.PercentageChange,
			); err != nil {
				return 0, fmt.Errorf("archive: 写入趋势失败: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("archive: 提交事务失败: %w", err)
	}

	s.logger.Info("分析结果已归档",
		zap.Int64("run_id", runID),
		zap.Int("down", len(report.Down)),
		zap.Int("up", len(report.Up)),
	)

	return runID, nil
}

// ListRuns 按时间倒序返回最近的分析记录。
func (s *Service) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, source, window_candles, window_start, window_end, down_threshold, up_threshold, period, down_count, up_count, created_at
FROM analysis_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: 查询分析记录失败: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		var (
			run                    Run
			windowStart, windowEnd string
			created                string
		)
		if err := rows.Scan(
			&run.ID, &run.Source, &run.Window.Candles, &windowStart, &windowEnd,
			&run.DownThreshold, &run.UpThreshold, &run.Period,
			&run.DownCount, &run.UpCount, &created,
		); err != nil {
			return nil, fmt.Errorf("archive: 解析分析记录失败: %w", err)
		}
		run.Window.StartTime = parseTime(windowStart)
		run.Window.EndTime = parseTime(windowEnd)
		run.CreatedAt = parseTime(created)
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: 读取分析记录失败: %w", err)
	}

	return runs, nil
}

// LatestRunID 返回最近一次分析的ID。
func (s *Service) LatestRunID(ctx context.Context) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM analysis_runs ORDER BY id DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoRuns
	}
	if err != nil {
		return 0, fmt.Errorf("archive: 查询最新记录失败: %w", err)
	}
	return id, nil
}

// LoadEpisodes 读取某次分析的趋势，dir 为空时返回两个方向，顺序与写入一致。
func (s *Service) LoadEpisodes(ctx context.Context, runID int64, dir trend.Direction) ([]trend.Episode, error) {
	query := `
SELECT direction, start_index, end_index, start_time, end_time, number_of_candles, price_change, percentage
FROM trend_episodes WHERE run_id = ?`
	args := []interface{}{runID}
	if dir != "" {
		query += ` AND direction = ?`
		args = append(args, string(dir))
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("archive: 查询趋势失败: %w", err)
	}
	defer rows.Close()

	episodes := make([]trend.Episode, 0)
	for rows.Next() {
		var (
			e                  trend.Episode
			direction          string
			startTime, endTime string
		)
		if err := rows.Scan(
			&direction, &e.StartIndex, &e.EndIndex, &startTime, &endTime,
			&e.CandleCount, &e.PriceChange, &e.PercentageChange,
		); err != nil {
			return nil, fmt.Errorf("archive: 解析趋势失败: %w", err)
		}
		e.Direction = trend.Direction(direction)
		e.StartTime = parseTime(startTime)
		e.EndTime = parseTime(endTime)
		episodes = append(episodes, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: 读取趋势失败: %w", err)
	}

	return episodes, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

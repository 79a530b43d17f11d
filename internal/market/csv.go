package market

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// 大于该值的时间戳按毫秒解析。
const millisecondThreshold = 1e12

// columnLayout 记录各字段所在列，-1 表示缺失。
type columnLayout struct {
	timestamp int
	open      int
	high      int
	low       int
	close     int
	volume    int
}

// 无表头文件按 Binance 导出的列顺序解析。
var positionalLayout = columnLayout{timestamp: 0, open: 1, high: 2, low: 3, close: 4, volume: 5}

var headerAliases = map[string][]string{
	"timestamp": {"timestamp", "time", "open_time", "unix", "date"},
	"open":      {"open"},
	"high":      {"high"},
	"low":       {"low"},
	"close":     {"close"},
	"volume":    {"volume", "vol"},
}

// CSVReader 逐行读取 timestamp,open,high,low,close,volume 格式的K线。
type CSVReader struct {
	csv    *csv.Reader
	name   string
	layout *columnLayout
	row    int
}

// NewCSVReader 创建 CSVReader，name 仅用于错误信息。
func NewCSVReader(r io.Reader, name string) *CSVReader {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true
	return &CSVReader{csv: reader, name: name}
}

// Read 读取下一根K线，数据读完时返回 io.EOF。
func (r *CSVReader) Read() (Candle, error) {
	record, err := r.next()
	if err != nil {
		return Candle{}, err
	}

	if r.layout == nil {
		layout, isHeader, err := detectLayout(record)
		if err != nil {
			return Candle{}, &DataIntegrityError{Source: r.name, Row: r.row, Field: "header", Reason: err.Error()}
		}
		r.layout = &layout
		if isHeader {
			record, err = r.next()
			if err != nil {
				return Candle{}, err
			}
		}
	}

	return r.decode(record)
}

// ReadAll 读取全部K线。
func (r *CSVReader) ReadAll() ([]Candle, error) {
	var candles []Candle
	for {
		candle, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func (r *CSVReader) next() ([]string, error) {
	for {
		record, err := r.csv.Read()
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return nil, &DataIntegrityError{Source: r.name, Row: parseErr.Line, Field: "record", Reason: parseErr.Err.Error()}
			}
			return nil, err
		}
		r.row++
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		return record, nil
	}
}

func (r *CSVReader) decode(record []string) (Candle, error) {
	layout := r.layout

	ts, err := r.parseTimestamp(record, layout.timestamp)
	if err != nil {
		return Candle{}, err
	}

	closePrice, err := r.parseFloat(record, layout.close, "close", true)
	if err != nil {
		return Candle{}, err
	}

	candle := Candle{Timestamp: ts, Close: closePrice}
	if candle.Open, err = r.parseFloat(record, layout.open, "open", false); err != nil {
		return Candle{}, err
	}
	if candle.High, err = r.parseFloat(record, layout.high, "high", false); err != nil {
		return Candle{}, err
	}
	if candle.Low, err = r.parseFloat(record, layout.low, "low", false); err != nil {
		return Candle{}, err
	}
	if candle.Volume, err = r.parseFloat(record, layout.volume, "volume", false); err != nil {
		return Candle{}, err
	}

	return candle, nil
}

func (r *CSVReader) parseTimestamp(record []string, col int) (time.Time, error) {
	raw, ok := field(record, col)
	if !ok {
		return time.Time{}, &DataIntegrityError{Source: r.name, Row: r.row, Field: "timestamp", Reason: "缺少时间戳列"}
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return time.Time{}, &DataIntegrityError{Source: r.name, Row: r.row, Field: "timestamp", Reason: fmt.Sprintf("无法解析时间戳 %q", raw)}
	}
	if value > millisecondThreshold {
		return time.UnixMilli(int64(value)).UTC(), nil
	}
	return time.Unix(int64(value), 0).UTC(), nil
}

func (r *CSVReader) parseFloat(record []string, col int, name string, required bool) (float64, error) {
	raw, ok := field(record, col)
	if !ok {
		if required {
			return 0, &DataIntegrityError{Source: r.name, Row: r.row, Field: name, Reason: "缺少该列"}
		}
		return 0, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &DataIntegrityError{Source: r.name, Row: r.row, Field: name, Reason: fmt.Sprintf("非数值 %q", raw)}
	}
	return value, nil
}

func field(record []string, col int) (string, bool) {
	if col < 0 || col >= len(record) {
		return "", false
	}
	value := strings.TrimSpace(record[col])
	if value == "" {
		return "", false
	}
	return value, true
}

// detectLayout 首行可解析为数值时视为无表头文件。
func detectLayout(record []string) (columnLayout, bool, error) {
	if len(record) == 0 {
		return columnLayout{}, false, errors.New("首行为空")
	}
	if _, err := strconv.ParseFloat(strings.TrimSpace(record[0]), 64); err == nil {
		if len(record) < 5 {
			return columnLayout{}, false, fmt.Errorf("无表头文件至少需要5列，当前 %d 列", len(record))
		}
		return positionalLayout, false, nil
	}

	index := make(map[string]int, len(record))
	for i, name := range record {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, exists := index[key]; !exists {
			index[key] = i
		}
	}

	lookup := func(name string) int {
		for _, alias := range headerAliases[name] {
			if col, ok := index[alias]; ok {
				return col
			}
		}
		return -1
	}

	layout := columnLayout{
		timestamp: lookup("timestamp"),
		open:      lookup("open"),
		high:      lookup("high"),
		low:       lookup("low"),
		close:     lookup("close"),
		volume:    lookup("volume"),
	}
	if layout.timestamp < 0 {
		return columnLayout{}, true, errors.New("表头缺少 timestamp 列")
	}
	if layout.close < 0 {
		return columnLayout{}, true, errors.New("表头缺少 close 列")
	}
	return layout, true, nil
}

// ReadCandlesCSV 读取单个 CSV 文件，或目录下全部 .csv 文件（按文件名顺序拼接），并校验结果。
func ReadCandlesCSV(path string) ([]Candle, error) {
	var candles []Candle

	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if p != path && filepath.Ext(p) != ".csv" {
			return nil
		}

		file, err := os.Open(p)
		if err != nil {
			return err
		}
		defer file.Close()

		fileCandles, err := NewCSVReader(file, p).ReadAll()
		if err != nil {
			return err
		}
		candles = append(candles, fileCandles...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("market: 读取K线文件 %q 失败: %w", path, err)
	}

	if err := Validate(path, candles); err != nil {
		return nil, err
	}

	return candles, nil
}

// CSVSource 以本地 CSV 作为K线来源。
type CSVSource struct {
	path   string
	logger *zap.Logger
}

// NewCSVSource 创建 CSVSource。
func NewCSVSource(path string, logger *zap.Logger) *CSVSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVSource{path: path, logger: logger}
}

// Name 返回数据来源描述。
func (s *CSVSource) Name() string {
	return "csv:" + s.path
}

// Candles 读取并校验全部K线。
func (s *CSVSource) Candles(ctx context.Context) ([]Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candles, err := ReadCandlesCSV(s.path)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("CSV K线读取完成",
		zap.String("path", s.path),
		zap.Int("candles", len(candles)),
	)

	return candles, nil
}

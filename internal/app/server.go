package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"rsi-trends/internal/archive"
	"rsi-trends/internal/trend"
)

const (
	defaultLimit = 200
	maxLimit     = 1000
)

// resultProvider 为查询接口提供数据。
type resultProvider interface {
	Latest() trend.Report
	Archive() *archive.Service
}

func newHandler(provider resultProvider, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/episodes", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q := r.URL.Query()
		limit := parseLimit(q.Get("limit"))

		var dir trend.Direction
		if ds := strings.TrimSpace(q.Get("direction")); ds != "" {
			parsed, err := trend.ParseDirection(strings.ToLower(ds))
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			dir = parsed
		}

		if rs := q.Get("run_id"); rs != "" {
			runID, err := strconv.ParseInt(rs, 10, 64)
			if err != nil || runID <= 0 {
				http.Error(w, "invalid run_id", http.StatusBadRequest)
				return
			}
			svc := provider.Archive()
			if svc == nil {
				http.Error(w, "archive disabled", http.StatusNotFound)
				return
			}
			episodes, err := svc.LoadEpisodes(r.Context(), runID, dir)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSON(w, truncate(episodes, limit), logger)
			return
		}

		latest := provider.Latest()
		if dir == "" {
			writeJSON(w, trend.Report{
				Window: latest.Window,
				Down:   truncate(latest.Down, limit),
				Up:     truncate(latest.Up, limit),
			}, logger)
			return
		}
		writeJSON(w, truncate(latest.Episodes(dir), limit), logger)
	})

	mux.HandleFunc("/runs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		svc := provider.Archive()
		if svc == nil {
			http.Error(w, "archive disabled", http.StatusNotFound)
			return
		}
		runs, err := svc.ListRuns(r.Context(), parseLimit(r.URL.Query().Get("limit")))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, runs, logger)
	})

	return mux
}

func parseLimit(qs string) int {
	limit := defaultLimit
	if qs != "" {
		if v, err := strconv.Atoi(qs); err == nil && v > 0 {
			if v > maxLimit {
				v = maxLimit
			}
			limit = v
		}
	}
	return limit
}

func truncate(episodes []trend.Episode, limit int) []trend.Episode {
	if episodes == nil {
		return []trend.Episode{}
	}
	if len(episodes) > limit {
		return episodes[:limit]
	}
	return episodes
}

func writeJSON(w http.ResponseWriter, payload interface{}, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warn("写入查询响应失败", zap.Error(err))
	}
}

// serveHTTP 阻塞提供查询接口，ctx 结束后优雅关闭。
func serveHTTP(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("查询接口已启动", zap.String("addr", addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("关闭查询接口失败", zap.Error(err))
		}
		logger.Info("查询接口已停止")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("查询接口异常: %w", err)
	}
}

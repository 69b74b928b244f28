package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"

	"github.com/hitoshi/linenotify/internal/metrics"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	Rate  rate.Limit // 接続元IPごとのレート（req/sec）。120/60 = 2 req/sec
	Burst int        // バーストサイズ
	// IdleTTL は最後のアクセスからリミッターを破棄するまでの時間。
	IdleTTL time.Duration
}

// RateLimiterConfigPerMinute は1分あたりのリクエスト数からレート制限設定を生成する。
func RateLimiterConfigPerMinute(perMinute int) RateLimiterConfig {
	if perMinute <= 0 {
		perMinute = 120
	}
	return RateLimiterConfig{
		Rate:    rate.Limit(float64(perMinute) / 60.0),
		Burst:   perMinute,
		IdleTTL: 10 * time.Minute,
	}
}

// RateLimiter は接続元IPごとのレート制限を管理する。
// リミッターはttlcacheに保持し、一定時間アクセスのないIPは自動的に破棄される。
type RateLimiter struct {
	config    RateLimiterConfig
	limiters  *ttlcache.Cache[string, *rate.Limiter]
	logger    *slog.Logger
	collector metrics.MetricsCollector
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig, logger *slog.Logger, collector metrics.MetricsCollector) *RateLimiter {
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *rate.Limiter](config.IdleTTL),
	)
	go cache.Start()

	return &RateLimiter{
		config:    config,
		limiters:  cache,
		logger:    logger,
		collector: collector,
	}
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	rl.limiters.Stop()
}

// Middleware は接続元IPごとのレート制限ミドルウェアを返す。
func (rl *RateLimiter) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			if !rl.limiterFor(ip).Allow() {
				writeRateLimitResponse(w, rl.config.Rate)
				if rl.collector != nil {
					rl.collector.RecordRateLimited()
				}
				rl.logger.Warn("rate limit exceeded",
					slog.String("client_ip", ip),
					slog.String("path", r.URL.Path),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LimiterCount は現在管理されているリミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) LimiterCount() int {
	return rl.limiters.Len()
}

// limiterFor は接続元IPのリミッターを取得または作成する。
// 取得時にTTLが延長される。
func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	item, _ := rl.limiters.GetOrSet(ip, rate.NewLimiter(rl.config.Rate, rl.config.Burst))
	return item.Value()
}

// clientIP はRemoteAddrからポートを除いたIPを返す。
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(map[string]string{
		"code":     "rate_limit_exceeded",
		"message":  "Too many requests. Please try again later.",
		"category": "system",
		"action":   "Please wait and retry after the specified time.",
	})
}

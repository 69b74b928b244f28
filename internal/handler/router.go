package handler

import (
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/linenotify/internal/config"
	"github.com/hitoshi/linenotify/internal/metrics"
	"github.com/hitoshi/linenotify/internal/middleware"
)

func init() {
	// 一部の環境ではmime.typesに.wasmが登録されていない
	_ = mime.AddExtensionType(".wasm", "application/wasm")
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger      *slog.Logger
	Collector   metrics.MetricsCollector
	Gatherer    prometheus.Gatherer
	RateLimiter *middleware.RateLimiter

	ClientConfig config.ClientConfig
	// AssetsDir はwasmバンドル（app.wasm, wasm_exec.js, loader.js）の配置先。
	AssetsDir string
}

// NewRouter はホストサーバーのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging(+Metrics) → RateLimit
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.ClientConfig.BackendServer))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Collector))

	site := NewSiteHandler(deps.ClientConfig, deps.Collector, deps.Logger)

	// --- 監視用のルート ---
	r.Get("/health", site.Health)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- ブラウザクライアントの配信 ---
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		r.Get("/", site.Index)
		r.Get("/config.json", site.ClientConfig)
		r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.Dir(deps.AssetsDir))))
	})

	return r
}

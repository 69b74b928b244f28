package handler

import (
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/linenotify/internal/config"
	"github.com/hitoshi/linenotify/internal/metrics"
)

//go:embed web/index.html
var indexHTML []byte

// SiteHandler はブラウザクライアントの配信に関わるHTTPハンドラー。
type SiteHandler struct {
	clientConfig config.ClientConfig
	collector    metrics.MetricsCollector
	logger       *slog.Logger
}

// NewSiteHandler はSiteHandlerを生成する。collectorはnilでもよい。
func NewSiteHandler(clientConfig config.ClientConfig, collector metrics.MetricsCollector, logger *slog.Logger) *SiteHandler {
	return &SiteHandler{
		clientConfig: clientConfig,
		collector:    collector,
		logger:       logger,
	}
}

// Health はヘルスチェックに応答する。
// GET /health
func (h *SiteHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ClientConfig はブラウザ向けの設定を返す。
// 設定変更がすぐに反映されるようキャッシュさせない。
// GET /config.json
func (h *SiteHandler) ClientConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, h.clientConfig)
	if h.collector != nil {
		h.collector.RecordConfigServed()
	}
}

// Index はアプリのHTMLを返す。
// GET /
func (h *SiteHandler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := w.Write(indexHTML); err != nil {
		h.logger.Warn("failed to write index", slog.String("error", err.Error()))
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

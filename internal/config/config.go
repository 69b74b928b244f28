package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// LINE
	LineClientID    string `env:"LINE_CLIENT_ID"`
	LineBotClientID string `env:"LINE_BOT_CLIENT_ID"`
	// AutoRegisterAfterLogin は値が設定されていれば有効（値の内容は問わない）。
	AutoRegisterAfterLogin string `env:"AUTO_REGISTER_AFTER_LOGIN"`
	LineAuthURL            string `env:"LINE_AUTH_URL" envDefault:"https://access.line.me/oauth2/v2.1/authorize"`
	LineNotifyAuthURL      string `env:"LINE_NOTIFY_AUTH_URL" envDefault:"https://notify-bot.line.me/oauth/authorize"`

	// Backend
	BackendServer  string        `env:"LINE_BACKEND_SERVER"`
	BackendTimeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"10s"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	BaseURL    string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	AssetsDir  string `env:"ASSETS_DIR" envDefault:"./dist"`

	// Terminal client
	StateDir string `env:"STATE_DIR,expand" envDefault:"${HOME}/.linenotify"`

	// Rate Limit
	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合は、未設定のものをまとめてエラーで返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	// Required fields
	var missing []string
	if cfg.LineClientID == "" {
		missing = append(missing, "LINE_CLIENT_ID")
	}
	if cfg.LineBotClientID == "" {
		missing = append(missing, "LINE_BOT_CLIENT_ID")
	}
	if cfg.BackendServer == "" {
		missing = append(missing, "LINE_BACKEND_SERVER")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.BackendServer = strings.TrimRight(cfg.BackendServer, "/")
	return cfg, nil
}

// AutoRegister はログイン直後にLINE Notify連携へ進むかどうかを返す。
func (c *Config) AutoRegister() bool {
	return c.AutoRegisterAfterLogin != ""
}

// Origin はフラグメントを取り除いた再読み込み先を返す。
func (c *Config) Origin() string {
	return strings.TrimRight(c.BaseURL, "/") + "/"
}

// ClientConfig はブラウザに渡してよい設定のみを持つ。/config.json として配信する。
type ClientConfig struct {
	LineClientID      string `json:"lineClientId"`
	LineBotClientID   string `json:"lineBotClientId"`
	BackendServer     string `json:"backendServer"`
	AutoRegister      bool   `json:"autoRegister"`
	LineAuthURL       string `json:"lineAuthUrl"`
	LineNotifyAuthURL string `json:"lineNotifyAuthUrl"`
	Origin            string `json:"origin"`
	BackendTimeoutMS  int64  `json:"backendTimeoutMs"`
}

// Client はConfigからブラウザ向けの設定を取り出す。
func (c *Config) Client() ClientConfig {
	return ClientConfig{
		LineClientID:      c.LineClientID,
		LineBotClientID:   c.LineBotClientID,
		BackendServer:     c.BackendServer,
		AutoRegister:      c.AutoRegister(),
		LineAuthURL:       c.LineAuthURL,
		LineNotifyAuthURL: c.LineNotifyAuthURL,
		Origin:            c.Origin(),
		BackendTimeoutMS:  c.BackendTimeout.Milliseconds(),
	}
}

// BackendTimeout はブラウザ側のリクエストタイムアウトを返す。未設定の場合は10秒。
func (c ClientConfig) BackendTimeout() time.Duration {
	if c.BackendTimeoutMS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.BackendTimeoutMS) * time.Millisecond
}

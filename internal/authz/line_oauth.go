// Package authz はLINEログインとLINE Notify連携の認可リダイレクトURLを生成する。
//
// どちらも認可コードフローで、認可後のコールバックはバックエンドが受け取る。
// クライアントはURLを組み立てて遷移するだけで、トークン交換は行わない。
package authz

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

const (
	defaultLineAuthURL   = "https://access.line.me/oauth2/v2.1/authorize"
	defaultNotifyAuthURL = "https://notify-bot.line.me/oauth/authorize"

	loginCallbackPath  = "/v1/linecallback"
	notifyCallbackPath = "/v1/linebotcallback"
)

var (
	loginScopes  = []string{"profile", "openid"}
	notifyScopes = []string{"notify"}
)

// Flow は認可フローの種別。
type Flow int

const (
	// FlowLogin はLINEログイン（識別）フロー。
	FlowLogin Flow = iota
	// FlowNotify はLINE Notifyの通知許可フロー。
	FlowNotify
)

// Config は認可URL生成に必要な設定。
type Config struct {
	LoginClientID  string
	NotifyClientID string
	// BackendBaseURL はコールバックを受け取るバックエンドのベースURL。
	BackendBaseURL string

	// テスト用にオーバーライド可能なURL
	LoginAuthURL  string
	NotifyAuthURL string
}

// Correlation はリクエストとコールバックを対応付ける値。
// FlowLoginではState/Nonceに毎回ランダム値を使い、
// FlowNotifyではStateに識別トークンを入れてバックエンドがユーザーを特定できるようにする。
type Correlation struct {
	State string
	Nonce string
}

// BuildURL は指定フローの認可リクエストURLを生成する。
// パラメータはすべてパーセントエンコードされる。
func BuildURL(flow Flow, cfg Config, c Correlation) (string, error) {
	cfg = cfg.withDefaults()
	backend := strings.TrimRight(cfg.BackendBaseURL, "/")

	switch flow {
	case FlowLogin:
		if c.State == "" || c.Nonce == "" {
			return "", errors.New("login flow requires state and nonce")
		}
		oc := oauth2.Config{
			ClientID:    cfg.LoginClientID,
			Endpoint:    oauth2.Endpoint{AuthURL: cfg.LoginAuthURL},
			RedirectURL: backend + loginCallbackPath,
			Scopes:      loginScopes,
		}
		return oc.AuthCodeURL(c.State, oauth2.SetAuthURLParam("nonce", c.Nonce)), nil

	case FlowNotify:
		// stateに識別トークンを渡すため、LINEログインを先に完了している必要がある
		if c.State == "" {
			return "", errors.New("notify flow requires the identity token as state")
		}
		oc := oauth2.Config{
			ClientID:    cfg.NotifyClientID,
			Endpoint:    oauth2.Endpoint{AuthURL: cfg.NotifyAuthURL},
			RedirectURL: backend + notifyCallbackPath,
			Scopes:      notifyScopes,
		}
		return oc.AuthCodeURL(c.State), nil

	default:
		return "", fmt.Errorf("unknown authorization flow: %d", flow)
	}
}

func (c Config) withDefaults() Config {
	if c.LoginAuthURL == "" {
		c.LoginAuthURL = defaultLineAuthURL
	}
	if c.NotifyAuthURL == "" {
		c.NotifyAuthURL = defaultNotifyAuthURL
	}
	return c
}

// Authorizer は設定を保持し、各フローのURLを生成する。
type Authorizer struct {
	config Config
}

// NewAuthorizer はAuthorizerを生成する。
func NewAuthorizer(config Config) *Authorizer {
	return &Authorizer{config: config.withDefaults()}
}

// LoginURL はLINEログインの認可URLを生成する。
func (a *Authorizer) LoginURL(state, nonce string) (string, error) {
	return BuildURL(FlowLogin, a.config, Correlation{State: state, Nonce: nonce})
}

// NotifyURL はLINE Notify連携の認可URLを生成する。stateには識別トークンを使う。
func (a *Authorizer) NotifyURL(userID string) (string, error) {
	return BuildURL(FlowNotify, a.config, Correlation{State: userID})
}

// NewRandomToken はstate/nonce用の暗号的に安全なランダム値を生成する。
func NewRandomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

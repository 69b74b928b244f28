// Package callback はバックエンドからのリダイレクトで付与されるURLフラグメントを解析する。
//
// バックエンドはLINEログイン完了後に "#callback=line&userid=<id>"、
// LINE Notify連携完了後に "#callback=linebot" を付けてクライアントへリダイレクトする。
package callback

import (
	"net/url"
	"strings"
)

const (
	loginPrefix   = "callback=line&"
	botCallback   = "callback=linebot"
	keyUserID     = "userid"
	keyLoginState = "state"
)

// Kind はコールバックの種別を表す。
type Kind int

const (
	// KindNone はコールバックなし（通常のページロード）。
	KindNone Kind = iota
	// KindLineLogin はLINEログイン完了のコールバック。
	KindLineLogin
	// KindLineBot はLINE Notify連携完了のコールバック。
	KindLineBot
)

// String はログ出力用の名前を返す。
func (k Kind) String() string {
	switch k {
	case KindLineLogin:
		return "line_login"
	case KindLineBot:
		return "line_bot"
	default:
		return "none"
	}
}

// Envelope はフラグメントから取り出した1回限りのコールバック情報。
type Envelope struct {
	Kind Kind
	// UserID はKindLineLoginの場合のみ設定される。値がない場合は空文字。
	UserID string
	// State はバックエンドがログイン時のstateを返した場合のみ設定される。
	State string
}

// None は通常ロードを表すEnvelopeを返す。
func None() Envelope {
	return Envelope{Kind: KindNone}
}

// Parse はURLフラグメントを解析してEnvelopeを返す。
// 先頭の "#" はあってもなくてもよい。
// 一致しない形式は常にKindNoneとなり、エラーにはならない。
func Parse(fragment string) Envelope {
	fragment = strings.TrimPrefix(fragment, "#")

	if fragment == botCallback {
		return Envelope{Kind: KindLineBot}
	}

	if !strings.HasPrefix(fragment, loginPrefix) {
		return None()
	}

	env := Envelope{Kind: KindLineLogin}
	for _, item := range strings.Split(fragment, "&") {
		key, value, ok := strings.Cut(item, "=")
		if !ok {
			continue
		}
		// 同じキーが複数ある場合は後勝ち
		switch key {
		case keyUserID:
			env.UserID = unescape(value)
		case keyLoginState:
			env.State = unescape(value)
		}
	}

	return env
}

// unescape はパーセントエンコードを復号する。不正なエンコードの場合は元の値を返す。
func unescape(v string) string {
	decoded, err := url.PathUnescape(v)
	if err != nil {
		return v
	}
	return decoded
}

// Package view はセッション状態から画面に表示する内容と操作を導出する。
package view

import "github.com/hitoshi/linenotify/internal/model"

// Affordance は画面に表示する操作（ボタン）。
type Affordance struct {
	Label string
	Event model.Event
}

var (
	Login       = Affordance{Label: "LINEでログイン", Event: model.EventLogin}
	Logout      = Affordance{Label: "ログアウト", Event: model.EventLogout}
	CheckStatus = Affordance{Label: "状態を確認", Event: model.EventCheckStatus}
	Register    = Affordance{Label: "LINE Notifyに登録", Event: model.EventRegister}
	Revoke      = Affordance{Label: "LINE Notifyの連携を解除", Event: model.EventRevoke}
)

// Model は描画に必要な値。
type Model struct {
	Authenticated bool
	// Username は表示名そのまま。テキストとして描画する場合に使う。
	Username string
	// UsernameHTML はHTMLとして埋め込める表示名。
	UsernameHTML string
	// StatusLabel は "OK"、"Disabled"、未取得の場合は空。
	StatusLabel string
	Affordances []Affordance
}

var defaultSanitizer = NewSanitizer()

// Build はセッション状態から表示内容を導出する。
// 認証済み表示はユーザー名が取得できている場合のみ。
func Build(s model.SessionState) Model {
	if !s.Authenticated() {
		return Model{Affordances: []Affordance{Login}}
	}

	m := Model{
		Authenticated: true,
		Username:      s.Username,
		UsernameHTML:  defaultSanitizer.Sanitize(s.Username),
		StatusLabel:   string(s.Status),
		Affordances:   []Affordance{Logout, CheckStatus},
	}
	if s.Status == model.StatusOK {
		m.Affordances = append(m.Affordances, Revoke)
	} else {
		m.Affordances = append(m.Affordances, Register)
	}
	return m
}

// Has は指定したイベントの操作が表示されているかを返す。
func (m Model) Has(ev model.Event) bool {
	for _, a := range m.Affordances {
		if a.Event == ev {
			return true
		}
	}
	return false
}

// Package model はドメインモデルを定義する。
package model

// SubscriptionStatus はLINE Notify連携の有効状態を表す。
// バックエンドが返す値から導出され、クライアント側では保存しない。
type SubscriptionStatus string

const (
	// StatusUnknown はまだバックエンドから状態を取得していないことを示す。
	StatusUnknown SubscriptionStatus = ""
	// StatusOK は通知が有効であることを示す。
	StatusOK SubscriptionStatus = "OK"
	// StatusDisabled は通知が無効（未登録・解除済み）であることを示す。
	StatusDisabled SubscriptionStatus = "Disabled"
)

// StatusFromCode はバックエンドの {status} 値を購読状態に変換する。
// 200のみOK、それ以外はすべてDisabledとする。
func StatusFromCode(code int) SubscriptionStatus {
	if code == 200 {
		return StatusOK
	}
	return StatusDisabled
}

// Phase はセッションコントローラの状態機械における現在のフェーズ。
type Phase string

const (
	PhaseAnonymous            Phase = "anonymous"
	PhaseIdentified           Phase = "identified"
	PhaseSubscribed           Phase = "subscribed"
	PhaseSubscriptionDisabled Phase = "subscription_disabled"
)

// SessionState はページロードごとに再導出されるメモリ上のセッション状態。
type SessionState struct {
	// UserID はIdentity Storeに保存されている識別トークン。空は匿名。
	UserID string
	// Username はバックエンドが返したLINEの表示名。空はバックエンド上で未認証。
	Username string
	Status   SubscriptionStatus
}

// HasToken は識別トークンを保持しているかを返す。
func (s SessionState) HasToken() bool {
	return s.UserID != ""
}

// Authenticated はバックエンド視点で認証済みの表示を行うべきかを返す。
// トークンの有無ではなくユーザー名の有無で判定する。
func (s SessionState) Authenticated() bool {
	return s.Username != ""
}

// Phase はセッション状態からフェーズを導出する。
func (s SessionState) Phase() Phase {
	switch {
	case !s.HasToken():
		return PhaseAnonymous
	case s.Status == StatusOK:
		return PhaseSubscribed
	case s.Status == StatusDisabled:
		return PhaseSubscriptionDisabled
	default:
		return PhaseIdentified
	}
}

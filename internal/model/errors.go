package model

import (
	"errors"
	"fmt"
)

// ClientError はクライアント内部の診断用エラーを表す。
// UIには表示せず、診断ログの属性として出力する。
type ClientError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: guard, transient, fragment
	Action   string // 利用者向け対処方法
	Err      error  // 原因
}

// Error はerrorインターフェースを実装する。
func (e *ClientError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因のエラーを返す。
func (e *ClientError) Unwrap() error {
	return e.Err
}

// 診断カテゴリ
const (
	CategoryGuard     = "guard"
	CategoryTransient = "transient"
	CategoryFragment  = "fragment"
)

// 定義済みエラーコード
const (
	ErrCodeNotLoggedIn        = "NOT_LOGGED_IN"
	ErrCodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	ErrCodeUnexpectedResponse = "UNEXPECTED_RESPONSE"
	ErrCodeMissingUserID      = "MISSING_USER_ID"
	ErrCodeStateMismatch      = "STATE_MISMATCH"
)

var (
	// ErrNoToken は識別トークンが存在しない場合に返される。
	ErrNoToken = errors.New("identity token is not present")
	// ErrUnexpectedResponse はバックエンドの応答形式が想定外の場合に返される。
	ErrUnexpectedResponse = errors.New("unexpected backend response")
	// ErrStateMismatch はログインコールバックのstateが保留中の値と一致しない場合に返される。
	ErrStateMismatch = errors.New("login state does not match")
)

// NewNotLoggedInError はトークンなしで操作が要求された場合のエラーを生成する。
func NewNotLoggedInError(action string) *ClientError {
	return &ClientError{
		Code:     ErrCodeNotLoggedIn,
		Message:  fmt.Sprintf("ログインしていないため %s を実行できません", action),
		Category: CategoryGuard,
		Action:   "LINEでログインしてください。",
		Err:      ErrNoToken,
	}
}

// NewBackendUnavailableError はバックエンドへのリクエストが完了しなかった場合のエラーを生成する。
func NewBackendUnavailableError(op string, err error) *ClientError {
	return &ClientError{
		Code:     ErrCodeBackendUnavailable,
		Message:  fmt.Sprintf("%s のリクエストに失敗しました: %v", op, err),
		Category: CategoryTransient,
		Action:   "しばらく待ってから再度お試しください。",
		Err:      err,
	}
}

// NewUnexpectedResponseError は応答の形式が想定外だった場合のエラーを生成する。
func NewUnexpectedResponseError(op string, err error) *ClientError {
	return &ClientError{
		Code:     ErrCodeUnexpectedResponse,
		Message:  fmt.Sprintf("%s の応答を解釈できませんでした: %v", op, err),
		Category: CategoryTransient,
		Action:   "しばらく待ってから再度お試しください。",
		Err:      err,
	}
}

// NewMissingUserIDError はログインコールバックにuseridが含まれない場合のエラーを生成する。
func NewMissingUserIDError() *ClientError {
	return &ClientError{
		Code:     ErrCodeMissingUserID,
		Message:  "ログインコールバックにuseridが含まれていません",
		Category: CategoryFragment,
		Action:   "もう一度LINEでログインしてください。",
	}
}

// NewStateMismatchError はコールバックのstateが保留中の値と一致しない場合のエラーを生成する。
func NewStateMismatchError() *ClientError {
	return &ClientError{
		Code:     ErrCodeStateMismatch,
		Message:  "ログインコールバックのstateが一致しません",
		Category: CategoryFragment,
		Action:   "もう一度LINEでログインしてください。",
		Err:      ErrStateMismatch,
	}
}

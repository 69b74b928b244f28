package view

import "github.com/microcosm-cc/bluemonday"

// Sanitizer は表示名に含まれるHTMLを除去する。
// LINEの表示名は利用者が自由に設定できるため、描画前に必ず通す。
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer はタグを一切許可しないSanitizerを生成する。
func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去し、HTMLとして安全な文字列を返す。
func (s *Sanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}

//go:build js && wasm

package browser

import (
	"strings"
	"syscall/js"
)

// Location はwindow.locationを扱うNavigator。
type Location struct {
	loc js.Value
}

// NewLocation はLocationを生成する。
func NewLocation() *Location {
	return &Location{loc: js.Global().Get("location")}
}

// Navigate はページを指定URLへ遷移させる。
func (l *Location) Navigate(url string) {
	l.loc.Set("href", url)
}

// Fragment は先頭の "#" を除いた現在のフラグメントを返す。
func (l *Location) Fragment() string {
	return strings.TrimPrefix(l.loc.Get("hash").String(), "#")
}

// Origin はフラグメントとクエリを除いたアプリのURLを返す。
func (l *Location) Origin() string {
	return l.loc.Get("origin").String() + l.loc.Get("pathname").String()
}

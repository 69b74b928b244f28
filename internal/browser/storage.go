//go:build js && wasm

// Package browser はブラウザ（js/wasm）向けのStorage、Navigator、描画を提供する。
package browser

import (
	"fmt"
	"syscall/js"

	"github.com/hitoshi/linenotify/internal/identity"
)

// LocalStorage はwindow.localStorageをidentity.Storageとして扱う。
type LocalStorage struct {
	ls js.Value
}

var _ identity.Storage = (*LocalStorage)(nil)

// NewLocalStorage はLocalStorageを生成する。
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{ls: js.Global().Get("localStorage")}
}

func (s *LocalStorage) GetItem(key string) (value string, ok bool, err error) {
	defer recoverJSError(&err)
	v := s.ls.Call("getItem", key)
	if v.IsNull() || v.IsUndefined() {
		return "", false, nil
	}
	return v.String(), true, nil
}

func (s *LocalStorage) SetItem(key, value string) (err error) {
	defer recoverJSError(&err)
	s.ls.Call("setItem", key, value)
	return nil
}

func (s *LocalStorage) RemoveItem(key string) (err error) {
	defer recoverJSError(&err)
	s.ls.Call("removeItem", key)
	return nil
}

// recoverJSError はJS側の例外（容量超過やプライベートモードでの拒否）をerrorに変換する。
func recoverJSError(err *error) {
	if r := recover(); r != nil {
		if jsErr, ok := r.(js.Error); ok {
			*err = fmt.Errorf("localStorage: %w", jsErr)
			return
		}
		panic(r)
	}
}

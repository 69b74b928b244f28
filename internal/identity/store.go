// Package identity はページ再読み込みをまたいで識別トークンを保持するストアを提供する。
//
// 保存先はオリジン単位の永続キーバリューストレージで、ブラウザではlocalStorage、
// 端末クライアントではbboltファイルを使う。トークンは常に高々1つ。
package identity

import (
	"errors"
	"fmt"
	"sync"
)

const (
	// KeyUserID は識別トークンを保存するキー。
	KeyUserID = "userid"
	// KeyLoginState はLINEログイン開始時に生成したstateを保存するキー。
	KeyLoginState = "line_login_state"
)

// Storage はオリジン単位の永続キーバリューストレージのインターフェース。
// キーが存在しない場合、GetItemはok=falseを返す。
type Storage interface {
	GetItem(key string) (value string, ok bool, err error)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// Store は識別トークンと保留中のログインstateを扱う。
type Store struct {
	storage Storage
}

// NewStore はStoreを生成する。
func NewStore(storage Storage) *Store {
	return &Store{storage: storage}
}

// Token は保存されている識別トークンを返す。存在しない場合は空文字を返す。
func (s *Store) Token() (string, error) {
	v, ok, err := s.storage.GetItem(KeyUserID)
	if err != nil {
		return "", fmt.Errorf("failed to read identity token: %w", err)
	}
	if !ok {
		return "", nil
	}
	return v, nil
}

// SetToken は識別トークンを保存する。既存のトークンは上書きされる。
func (s *Store) SetToken(userID string) error {
	if userID == "" {
		return errors.New("identity token must not be empty")
	}
	if err := s.storage.SetItem(KeyUserID, userID); err != nil {
		return fmt.Errorf("failed to save identity token: %w", err)
	}
	return nil
}

// Evict は識別トークンを削除する。存在しない場合も成功とする。
func (s *Store) Evict() error {
	if err := s.storage.RemoveItem(KeyUserID); err != nil {
		return fmt.Errorf("failed to evict identity token: %w", err)
	}
	return nil
}

// PendingLoginState はログイン開始時に保存したstateを返す。
func (s *Store) PendingLoginState() (string, error) {
	v, ok, err := s.storage.GetItem(KeyLoginState)
	if err != nil {
		return "", fmt.Errorf("failed to read pending login state: %w", err)
	}
	if !ok {
		return "", nil
	}
	return v, nil
}

// SetPendingLoginState はログイン開始時のstateを保存する。
func (s *Store) SetPendingLoginState(state string) error {
	if err := s.storage.SetItem(KeyLoginState, state); err != nil {
		return fmt.Errorf("failed to save pending login state: %w", err)
	}
	return nil
}

// ClearPendingLoginState は保留中のstateを削除する。
func (s *Store) ClearPendingLoginState() error {
	if err := s.storage.RemoveItem(KeyLoginState); err != nil {
		return fmt.Errorf("failed to clear pending login state: %w", err)
	}
	return nil
}

// MemoryStorage はメモリ上のStorage実装。テストおよびプロセス内利用向け。
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryStorage はMemoryStorageを生成する。
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

// GetItem はキーに対応する値を返す。
func (m *MemoryStorage) GetItem(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

// SetItem は値を保存する。
func (m *MemoryStorage) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

// RemoveItem は値を削除する。
func (m *MemoryStorage) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Len は保存されている項目数を返す。
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// compile-time interface check
var _ Storage = (*MemoryStorage)(nil)

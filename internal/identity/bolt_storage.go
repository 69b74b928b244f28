//go:build !js

package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// boltBucket はbboltファイル内でキーを保持するバケット名。
var boltBucket = []byte("identity")

// BoltStorage はbboltファイルに保存するStorage実装。
// 端末クライアントでブラウザのlocalStorageの代わりに使用する。
type BoltStorage struct {
	db *bbolt.DB
}

// OpenBoltStorage は指定パスのbboltファイルを開く。ディレクトリがなければ作成する。
func OpenBoltStorage(path string) (*BoltStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open state file: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStorage{db: db}, nil
}

// GetItem はキーに対応する値を返す。
func (b *BoltStorage) GetItem(key string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		if bucket == nil {
			return errors.New("identity bucket not found")
		}
		if v := bucket.Get([]byte(key)); v != nil {
			// Getが返すスライスはトランザクション内でのみ有効
			value = string(v)
			ok = true
		}
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return value, ok, nil
}

// SetItem は値を保存する。
func (b *BoltStorage) SetItem(key, value string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), []byte(value))
	})
}

// RemoveItem は値を削除する。存在しないキーの削除は成功とする。
func (b *BoltStorage) RemoveItem(key string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltBucket).Delete([]byte(key))
	})
}

// Close はbboltファイルを閉じる。
func (b *BoltStorage) Close() error {
	return b.db.Close()
}

// compile-time interface check
var _ Storage = (*BoltStorage)(nil)

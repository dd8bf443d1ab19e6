package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileKVStore はJSONファイル1つに全エントリを保存するKVStore。
// プロセス再起動後も内容が残る。書き込みは一時ファイル経由のrenameで置き換える。
type FileKVStore struct {
	path string

	mu   sync.RWMutex
	data map[string]string
}

// NewFileKVStore はFileKVStoreを生成し、既存ファイルがあれば読み込む。
// ファイルが存在しない場合は空のストアとして扱う。
func NewFileKVStore(path string) (*FileKVStore, error) {
	s := &FileKVStore{
		path: path,
		data: make(map[string]string),
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read kv file: %w", err)
	}
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("failed to parse kv file %s: %w", path, err)
	}
	return s, nil
}

// Get は指定キーの値を取得する。
func (s *FileKVStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

// Set は指定キーに値を書き込み、ファイルへ反映する。
func (s *FileKVStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.data[key]
	s.data[key] = value
	if err := s.flushLocked(); err != nil {
		// ファイルに反映できなかった変更はメモリからも戻す
		if existed {
			s.data[key] = prev
		} else {
			delete(s.data, key)
		}
		return err
	}
	return nil
}

// Delete は指定キーを削除し、ファイルへ反映する。
func (s *FileKVStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := s.data[k]; ok {
			removed[k] = v
			delete(s.data, k)
		}
	}
	if len(removed) == 0 {
		return nil
	}
	if err := s.flushLocked(); err != nil {
		// ファイルに反映できなかった削除はメモリからも戻す
		for k, v := range removed {
			s.data[k] = v
		}
		return err
	}
	return nil
}

// flushLocked は現在の内容をファイルに書き出す。呼び出し側でmuを保持すること。
func (s *FileKVStore) flushLocked() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode kv file: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create kv directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".kv-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp kv file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp kv file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp kv file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace kv file: %w", err)
	}
	return nil
}

// compile-time interface check
var _ KVStore = (*FileKVStore)(nil)

package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"leasehub/pkg/config"
)

const (
	ProviderLocal = "local"
	ProviderGCS   = "gcs"
)

// ArtifactStore 渲染产物存储
type ArtifactStore interface {
	// Put 写入对象并返回可持久化的引用
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	// Delete 按引用删除对象，对象不存在不视为错误
	Delete(ctx context.Context, ref string) error
}

// New 按配置创建存储
func New(ctx context.Context, cfg config.StorageConfig) (ArtifactStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderLocal:
		return NewLocalStore(cfg.LocalDir)
	case ProviderGCS:
		return NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSPrefix)
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Provider)
	}
}

// LocalStore 本地目录存储，开发环境使用
type LocalStore struct {
	dir string
}

// NewLocalStore 创建本地存储
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建产物目录失败: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return "file://" + filepath.ToSlash(path), nil
}

func (s *LocalStore) Delete(_ context.Context, ref string) error {
	path := filepath.FromSlash(strings.TrimPrefix(ref, "file://"))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

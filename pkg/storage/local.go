package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage 将文件保存在本地目录下，handle 为相对于根目录的路径。
type LocalStorage struct {
	root string
}

func NewLocal(root string) (*LocalStorage, error) {
	if root == "" {
		root = "./uploads"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("创建本地存储目录失败: %w", err)
	}
	return &LocalStorage{root: root}, nil
}

func (s *LocalStorage) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("创建目录失败: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("创建文件失败: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("写入文件失败: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("关闭文件失败: %w", err)
	}
	return key, ctx.Err()
}

func (s *LocalStorage) Open(_ context.Context, handle string) (io.ReadCloser, error) {
	path, err := s.resolve(handle)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, handle)
	}
	return f, err
}

func (s *LocalStorage) Remove(_ context.Context, handle string) error {
	path, err := s.resolve(handle)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("删除文件失败: %w", err)
	}
	return nil
}

// resolve 拒绝逃逸出根目录的 handle。
func (s *LocalStorage) resolve(handle string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(handle))
	if clean == string(filepath.Separator) || strings.Contains(handle, "\x00") {
		return "", fmt.Errorf("invalid storage handle %q", handle)
	}
	return filepath.Join(s.root, clean), nil
}

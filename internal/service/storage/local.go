package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage 本地目录存储
type LocalStorage struct {
	basePath  string // 基础路径
	urlPrefix string // URL前缀，用于生成访问URL
}

// NewLocalStorage 创建本地存储
func NewLocalStorage(basePath, urlPrefix string) (*LocalStorage, error) {
	if basePath == "" {
		basePath = "exports"
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &LocalStorage{
		basePath:  basePath,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
	}, nil
}

// Save 保存到 {basePath}/{name}
func (s *LocalStorage) Save(ctx context.Context, req *SaveRequest) (string, error) {
	name, err := objectName(req.Name)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(name))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	// 先写临时文件再改名，失败时不留下半个文件
	tmp := fullPath + ".partial"
	file, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(file, req.Reader); err != nil {
		file.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}

	return name, nil
}

// Get 读取文件
func (s *LocalStorage) Get(ctx context.Context, objectPath string) (io.ReadCloser, error) {
	name, err := objectName(objectPath)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(filepath.Join(s.basePath, filepath.FromSlash(name)))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete 删除文件
func (s *LocalStorage) Delete(ctx context.Context, objectPath string) error {
	name, err := objectName(objectPath)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.basePath, filepath.FromSlash(name))); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// GetURL 获取文件的访问URL，未配置前缀时返回本地路径
func (s *LocalStorage) GetURL(objectPath string) string {
	if s.urlPrefix == "" {
		return filepath.Join(s.basePath, filepath.FromSlash(objectPath))
	}
	return fmt.Sprintf("%s/%s", s.urlPrefix, objectPath)
}

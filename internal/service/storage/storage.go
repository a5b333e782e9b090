// Package storage 导出文件的存储后端（本地目录或 MinIO）
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/ashwinyue/convlog/internal/config"
)

// Storage 导出文件存储接口
type Storage interface {
	// Save 保存对象，返回对象路径
	Save(ctx context.Context, req *SaveRequest) (string, error)
	// Get 读取对象内容
	Get(ctx context.Context, objectPath string) (io.ReadCloser, error)
	// Delete 删除对象，不存在时不报错
	Delete(ctx context.Context, objectPath string) error
	// GetURL 获取对象的访问 URL
	GetURL(objectPath string) string
}

// SaveRequest 保存请求
// Size 未知时传 -1
type SaveRequest struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Type 存储类型
type Type string

const (
	TypeLocal Type = "local"
	TypeMinIO Type = "minio"
)

// New 根据配置创建存储后端
func New(cfg *config.StorageConfig) (Storage, error) {
	switch Type(cfg.Type) {
	case TypeLocal, "":
		return NewLocalStorage(cfg.LocalPath, cfg.URLPrefix)
	case TypeMinIO:
		return NewMinIOStorage(&MinIOConfig{
			Endpoint:   cfg.MinIO.Endpoint,
			AccessKey:  cfg.MinIO.AccessKey,
			SecretKey:  cfg.MinIO.SecretKey,
			BucketName: cfg.MinIO.Bucket,
			UseSSL:     cfg.MinIO.UseSSL,
			URLPrefix:  cfg.URLPrefix,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %q", cfg.Type)
	}
}

// objectName 清理对象名，拒绝跳出根目录的路径
func objectName(name string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(name, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("invalid object name: %q", name)
	}
	return cleaned, nil
}

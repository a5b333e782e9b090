package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStorage MinIO 对象存储
type MinIOStorage struct {
	client     *minio.Client
	bucketName string
	urlPrefix  string // 用于生成访问URL
}

// MinIOConfig MinIO 配置
type MinIOConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	BucketName string
	UseSSL     bool
	URLPrefix  string
}

// NewMinIOStorage 创建 MinIO 存储，bucket 不存在时自动创建
func NewMinIOStorage(cfg *MinIOConfig) (*MinIOStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinIOStorage{
		client:     client,
		bucketName: cfg.BucketName,
		urlPrefix:  strings.TrimSuffix(cfg.URLPrefix, "/"),
	}, nil
}

// Save 上传对象
func (s *MinIOStorage) Save(ctx context.Context, req *SaveRequest) (string, error) {
	name, err := objectName(req.Name)
	if err != nil {
		return "", err
	}

	_, err = s.client.PutObject(ctx, s.bucketName, name, req.Reader, req.Size, minio.PutObjectOptions{
		ContentType: req.ContentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object to MinIO: %w", err)
	}
	return name, nil
}

// Get 读取对象
func (s *MinIOStorage) Get(ctx context.Context, objectPath string) (io.ReadCloser, error) {
	object, err := s.client.GetObject(ctx, s.bucketName, objectPath, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from MinIO: %w", err)
	}
	return object, nil
}

// Delete 删除对象
func (s *MinIOStorage) Delete(ctx context.Context, objectPath string) error {
	err := s.client.RemoveObject(ctx, s.bucketName, objectPath, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// GetURL 获取对象的访问URL
func (s *MinIOStorage) GetURL(objectPath string) string {
	return fmt.Sprintf("%s/%s/%s", s.urlPrefix, s.bucketName, objectPath)
}

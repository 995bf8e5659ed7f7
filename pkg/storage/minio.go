package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"project-collab-backend/pkg/models"
)

// MinioBucket S3兼容对象存储实现
type MinioBucket struct {
	client        *minio.Client
	bucketName    string
	publicBaseURL string
}

// NewMinioBucket 创建S3兼容存储实例
func NewMinioBucket(config BucketConfig) (*MinioBucket, error) {
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	publicBaseURL := strings.TrimSuffix(config.PublicBaseURL, "/")
	if publicBaseURL == "" {
		scheme := "http"
		if config.UseSSL {
			scheme = "https"
		}
		publicBaseURL = fmt.Sprintf("%s://%s/%s", scheme, config.Endpoint, config.BucketName)
	}

	return &MinioBucket{
		client:        client,
		bucketName:    config.BucketName,
		publicBaseURL: publicBaseURL,
	}, nil
}

// Upload 上传对象
func (b *MinioBucket) Upload(ctx context.Context, name string, data []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, b.bucketName, name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to upload object %s: %w", name, err)
	}
	return nil
}

// List 列出桶内所有对象
func (b *MinioBucket) List(ctx context.Context) ([]models.FileInfo, error) {
	files := []models.FileInfo{}
	for obj := range b.client.ListObjects(ctx, b.bucketName, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		files = append(files, models.FileInfo{
			Name: obj.Key,
			URL:  b.PublicURL(obj.Key),
		})
	}
	return files, nil
}

// PublicURL 返回对象的公开访问地址
func (b *MinioBucket) PublicURL(name string) string {
	return b.publicBaseURL + "/" + name
}

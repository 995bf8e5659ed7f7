package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"project-collab-backend/pkg/models"
)

// Bucket 对象存储抽象，用于镜像媒体文件到可公开访问的存储
type Bucket interface {
	Upload(ctx context.Context, name string, data []byte, contentType string) error
	List(ctx context.Context) ([]models.FileInfo, error)
	PublicURL(name string) string
}

// BucketConfig 对象存储配置
type BucketConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	BucketName    string
	UseSSL        bool
	PublicBaseURL string
}

// NewBucket 根据配置选择存储实现
// 未配置端点时退化为内存实现（开发与测试）
func NewBucket(config BucketConfig) (Bucket, error) {
	if config.Endpoint == "" {
		fmt.Printf("🧪  Using in-memory object storage (dev/test only)\n")
		return NewMemoryBucket(config.PublicBaseURL), nil
	}

	fmt.Printf("🪣  Using S3-compatible object storage at %s\n", config.Endpoint)
	return NewMinioBucket(config)
}

// MemoryBucket 内存对象存储实现
type MemoryBucket struct {
	mu            sync.RWMutex
	objects       map[string]memoryObject
	publicBaseURL string
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemoryBucket 创建内存对象存储
func NewMemoryBucket(publicBaseURL string) *MemoryBucket {
	return &MemoryBucket{
		objects:       make(map[string]memoryObject),
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
	}
}

// Upload 保存对象
func (b *MemoryBucket) Upload(ctx context.Context, name string, data []byte, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)
	b.objects[name] = memoryObject{data: buf, contentType: contentType}
	return nil
}

// List 列出所有对象
func (b *MemoryBucket) List(ctx context.Context) ([]models.FileInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	files := []models.FileInfo{}
	for name := range b.objects {
		files = append(files, models.FileInfo{
			Name: name,
			URL:  b.PublicURL(name),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// PublicURL 返回对象的公开访问地址
func (b *MemoryBucket) PublicURL(name string) string {
	return b.publicBaseURL + "/" + name
}

// Object 获取对象内容（仅测试使用）
func (b *MemoryBucket) Object(name string) ([]byte, string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, ok := b.objects[name]
	return obj.data, obj.contentType, ok
}

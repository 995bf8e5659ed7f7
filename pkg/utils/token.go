package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateURLToken 生成URL安全的随机令牌
func GenerateURLToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(bytes), nil
}

// internal/service/fulfillment/infrastructure/adapter/token_source.go
package adapter

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// FileTokenSource 从文件读取平台 Bearer token。
// token 的获取与刷新由外部的凭证守护进程负责，它定期覆写该文件；
// 这里只在每次调用时读最新内容。
type FileTokenSource struct {
	path string

	mu     sync.Mutex
	cached string
}

// NewFileTokenSource 创建一个基于文件的 token 源。
func NewFileTokenSource(path string) *FileTokenSource {
	return &FileTokenSource{path: path}
}

// Token 返回当前 token。文件暂时不可读时退回上一次的值。
func (s *FileTokenSource) Token(ctx context.Context) (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.cached != "" {
			return s.cached, nil
		}
		return "", fmt.Errorf("failed to read token file %s: %w", s.path, err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file %s is empty", s.path)
	}
	s.mu.Lock()
	s.cached = token
	s.mu.Unlock()
	return token, nil
}

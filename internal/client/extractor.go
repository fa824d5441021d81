package client

import (
	"context"
	"errors"
	"fmt"
	"os"

	"face-attendance/internal/face"
)

// ErrNoDescriptor 没有可用的特征向量，打卡退回到只凭 token
var ErrNoDescriptor = errors.New("no face descriptor available")

// Extractor 外部人脸提取器
type Extractor interface {
	Extract(ctx context.Context) (face.Descriptor, error)
}

// FileExtractor 读取提取器写出的 JSON 数组文件
type FileExtractor struct {
	Path string
}

func (f FileExtractor) Extract(ctx context.Context) (face.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Path == "" {
		return nil, ErrNoDescriptor
	}
	b, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoDescriptor
		}
		return nil, fmt.Errorf("read descriptor: %w", err)
	}
	d, err := face.Parse(string(b))
	if errors.Is(err, face.ErrEmptyDescriptor) || (err == nil && len(d) == 0) {
		return nil, ErrNoDescriptor
	}
	return d, err
}

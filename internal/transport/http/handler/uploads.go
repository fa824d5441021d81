package handler

import (
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"face-attendance/internal/domain"
)

var allowedImageExt = map[string]struct{}{".jpg": {}, ".jpeg": {}, ".png": {}, ".webp": {}}

// Uploads 注册时附带的人脸照片落本地目录，文件名 <毫秒时间戳>-<原文件名>
type Uploads struct {
	Dir      string
	MaxBytes int64
	Now      func() time.Time
}

func (u *Uploads) Save(c *gin.Context, fh *multipart.FileHeader) (string, error) {
	if u.MaxBytes > 0 && fh.Size > u.MaxBytes {
		return "", domain.Invalid("image", fmt.Sprintf("must be at most %d bytes", u.MaxBytes))
	}
	base := filepath.Base(strings.ReplaceAll(fh.Filename, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(base))
	if _, ok := allowedImageExt[ext]; !ok {
		return "", domain.Invalid("image", "must be a jpg, png or webp file")
	}
	now := time.Now
	if u.Now != nil {
		now = u.Now
	}
	if err := os.MkdirAll(u.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	name := fmt.Sprintf("%d-%s", now().UnixMilli(), sanitize(base))
	if err := c.SaveUploadedFile(fh, filepath.Join(u.Dir, name)); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return name, nil
}

func (u *Uploads) Remove(name string) {
	if name == "" {
		return
	}
	_ = os.Remove(filepath.Join(u.Dir, filepath.Base(name)))
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}

package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"face-attendance/internal/domain"
)

// uploadCtx 构造一个带文件的 multipart 请求上下文
func uploadCtx(t *testing.T, filename string, content []byte) (*gin.Context, *multipart.FileHeader) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, _ = fw.Write(content)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req
	fh, err := c.FormFile("image")
	require.NoError(t, err)
	return c, fh
}

func TestUploadsSave(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := filepath.Join(t.TempDir(), "faces")
	at := time.UnixMilli(1741597200000)
	u := &Uploads{Dir: dir, MaxBytes: 16, Now: func() time.Time { return at }}

	c, fh := uploadCtx(t, `C:\photos\me (1).JPG`, []byte("img"))
	name, err := u.Save(c, fh)
	require.NoError(t, err)
	assert.Equal(t, "1741597200000-me__1_.JPG", name)

	b, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, "img", string(b))

	u.Remove(name)
	_, err = os.Stat(filepath.Join(dir, name))
	assert.ErrorIs(t, err, os.ErrNotExist)
	u.Remove("")

	t.Run("rejects other types", func(t *testing.T) {
		c, fh := uploadCtx(t, "script.sh", []byte("#!"))
		_, err := u.Save(c, fh)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("rejects large files", func(t *testing.T) {
		c, fh := uploadCtx(t, "big.png", bytes.Repeat([]byte("x"), 32))
		_, err := u.Save(c, fh)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

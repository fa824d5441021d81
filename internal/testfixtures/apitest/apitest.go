// Package apitest 在 sqlite 上拉起完整的用户端/管理端引擎
package apitest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"face-attendance/internal/core/auth"
	"face-attendance/internal/domain"
	"face-attendance/internal/face"
	"face-attendance/internal/repo"
	"face-attendance/internal/service"
	"face-attendance/internal/testfixtures"
	"face-attendance/internal/transport/http/handler"
	"face-attendance/internal/transport/http/router"
)

type Server struct {
	API        *gin.Engine
	Admin      *gin.Engine
	Auth       *service.AuthService
	Attendance *service.AttendanceService
	JWT        *auth.JWTer
	Clock      *testfixtures.Clock
	UploadDir  string
}

func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testfixtures.OpenDB(t)
	clock := testfixtures.NewClock(time.Time{})
	jwter := &auth.JWTer{Secret: []byte("test-secret"), Issuer: "face-attendance", TTL: time.Hour, Now: clock.Now}

	authSvc := service.NewAuthService(repo.NewUserRepo(db), jwter, service.AuthOptions{})
	attSvc := service.NewAttendanceService(authSvc, repo.NewAttendanceRepo(db), service.AttendanceOptions{
		Matcher:  face.NewMatcher(face.DefaultThreshold),
		Location: time.UTC,
		Now:      clock.Now,
	})

	dir := t.TempDir()
	uploads := &handler.Uploads{Dir: dir, MaxBytes: 1 << 20, Now: clock.Now}
	reg := router.NewRegistry(
		handler.NewAttendanceHandler(attSvc, nil),
		handler.NewAuthHandler(authSvc, uploads, nil),
		handler.NewAdminHandler(authSvc, attSvc, nil),
	)
	opt := router.Options{Tokens: jwter, UploadDir: dir}

	return &Server{
		API:        router.NewAPIEngine(opt, reg),
		Admin:      router.NewAdminEngine(router.Options{Tokens: jwter}, authSvc, reg),
		Auth:       authSvc,
		Attendance: attSvc,
		JWT:        jwter,
		Clock:      clock,
		UploadDir:  dir,
	}
}

// Do body 非 nil 时按 JSON 发送
func Do(t testing.TB, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// Decode 解析响应体，失败直接 Fatal
func Decode[T any](t testing.TB, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

// SignUp 直接走服务层注册并登录，返回用户和 token
func (s *Server) SignUp(t testing.TB, name, email string, d face.Descriptor) (*domain.User, string) {
	t.Helper()
	ctx := context.Background()
	u, err := s.Auth.Register(ctx, service.RegisterInput{Name: name, Email: email, Password: "pw-123456", FaceDescriptor: d})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	res, err := s.Auth.Login(ctx, email, "pw-123456")
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return u, res.Token
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"face-attendance/internal/domain"
	"face-attendance/internal/face"
	"face-attendance/internal/service"
	httpez "face-attendance/internal/transport/http/ez"
)

const MsgRegistered = "User registered successfully"

// AuthService 由 service.AuthService 实现
type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

type AuthHandler struct {
	auth    AuthService
	uploads *Uploads
	log     *zap.Logger
}

func NewAuthHandler(auth AuthService, uploads *Uploads, l *zap.Logger) *AuthHandler {
	if l == nil {
		l = zap.NewNop()
	}
	return &AuthHandler{auth: auth, uploads: uploads, log: l}
}

type registerIn struct {
	Name           string          `json:"name"           binding:"required,max=64"`
	Email          string          `json:"email"          binding:"required"` // 格式由服务层规范化后再校验
	Password       string          `json:"password"       binding:"required"`
	FaceDescriptor face.Descriptor `json:"faceDescriptor" binding:"required"`
}

type registerOut struct {
	Message string         `json:"message"`
	User    domain.Profile `json:"user"`
}

type loginIn struct {
	Email    string `json:"email"    binding:"required"`
	Password string `json:"password" binding:"required"`
}

type profileOut struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	Role           string          `json:"role"`
	FaceDescriptor face.Descriptor `json:"faceDescriptor"`
}

func (h *AuthHandler) Priority() int { return 10 }

func (h *AuthHandler) MountAPI(public, authed *gin.RouterGroup) {
	ezPublic := httpez.New(public, h.log)
	ezAuth := httpez.New(authed, h.log)

	// JSON 或 multipart/form-data（带 image 文件）
	httpez.RegisterAction(ezPublic, httpez.Action[struct{}, registerOut]{
		Method:  http.MethodPost,
		Path:    "/register",
		Binder:  httpez.BindNone,
		Status:  http.StatusCreated,
		Handler: h.register,
	})

	httpez.RegisterAction(ezPublic, httpez.Action[loginIn, *service.LoginResult]{
		Method: http.MethodPost,
		Path:   "/login",
		Binder: httpez.BindJSON,
		Handler: func(c *gin.Context, in *loginIn) (*service.LoginResult, error) {
			return h.auth.Login(c.Request.Context(), in.Email, in.Password)
		},
	})

	httpez.RegisterAction(ezAuth, httpez.Action[struct{}, profileOut]{
		Method:     http.MethodGet,
		Path:       "/user/:userId",
		Binder:     httpez.BindNone,
		OwnerParam: "userId",
		Handler: func(c *gin.Context, _ *struct{}) (profileOut, error) {
			u, err := h.auth.GetUser(c.Request.Context(), c.Param("userId"))
			if err != nil {
				return profileOut{}, err
			}
			return profileOut{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, FaceDescriptor: u.FaceDescriptor}, nil
		},
	})
}

func (h *AuthHandler) register(c *gin.Context, _ *struct{}) (registerOut, error) {
	in, err := h.bindRegister(c)
	if err != nil {
		return registerOut{}, err
	}
	u, err := h.auth.Register(c.Request.Context(), in)
	if err != nil {
		if h.uploads != nil {
			h.uploads.Remove(in.ImagePath)
		}
		return registerOut{}, err
	}
	return registerOut{Message: MsgRegistered, User: u.Profile()}, nil
}

func (h *AuthHandler) bindRegister(c *gin.Context) (service.RegisterInput, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		var body registerIn
		if err := c.ShouldBindJSON(&body); err != nil {
			return service.RegisterInput{}, domain.Invalid("", httpez.BindMessage(err))
		}
		return service.RegisterInput{
			Name: body.Name, Email: body.Email, Password: body.Password, FaceDescriptor: body.FaceDescriptor,
		}, nil
	}

	// 表单里 faceDescriptor 是 JSON 字符串
	d, err := face.Parse(c.PostForm("faceDescriptor"))
	if err != nil {
		return service.RegisterInput{}, domain.Invalid("faceDescriptor", err.Error())
	}
	in := service.RegisterInput{
		Name:           c.PostForm("name"),
		Email:          c.PostForm("email"),
		Password:       c.PostForm("password"),
		FaceDescriptor: d,
	}
	fh, err := c.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		return service.RegisterInput{}, domain.Invalid("image", err.Error())
	case h.uploads != nil:
		if in.ImagePath, err = h.uploads.Save(c, fh); err != nil {
			return service.RegisterInput{}, err
		}
	}
	return in, nil
}

package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"face-attendance/internal/core/cache"
	"face-attendance/internal/domain"
	"face-attendance/internal/face"
	"face-attendance/pkg/utils"
)

// TokenIssuer 由 auth.JWTer 实现
type TokenIssuer interface {
	Issue(uid string) (string, error)
}

type AuthOptions struct {
	Cache      *cache.Cache // 可为 nil
	ProfileTTL time.Duration
	Dimension  int // 特征向量长度，0 不限制
	Logger     *zap.Logger
}

type AuthService struct {
	users  domain.UserRepository
	tokens TokenIssuer
	opt    AuthOptions
	log    *zap.Logger
}

func NewAuthService(users domain.UserRepository, tokens TokenIssuer, opt AuthOptions) *AuthService {
	l := opt.Logger
	if l == nil {
		l = zap.NewNop()
	}
	if opt.ProfileTTL <= 0 {
		opt.ProfileTTL = 5 * time.Minute
	}
	return &AuthService{users: users, tokens: tokens, opt: opt, log: l.Named("auth")}
}

type RegisterInput struct {
	Name           string
	Email          string
	Password       string
	FaceDescriptor face.Descriptor
	ImagePath      string
}

type LoginResult struct {
	Token string         `json:"token"`
	User  domain.Profile `json:"user"`
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (in *RegisterInput) validate(dim int) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	switch {
	case in.Name == "":
		return domain.Invalid("name", "is required")
	case len(in.Name) > 64:
		return domain.Invalid("name", "must be at most 64 characters")
	case in.Email == "":
		return domain.Invalid("email", "is required")
	case in.Password == "":
		return domain.Invalid("password", "is required")
	case len(in.Password) > 72:
		return domain.Invalid("password", "must be at most 72 bytes")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return domain.Invalid("email", "is not a valid address")
	}
	if err := in.FaceDescriptor.Validate(dim); err != nil {
		return domain.Invalid("faceDescriptor", err.Error())
	}
	return nil
}

// Register 创建用户；密码 bcrypt，参考特征向量原样保存
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if err := in.validate(s.opt.Dimension); err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &domain.User{
		ID:             utils.NewID(),
		Email:          in.Email,
		Name:           in.Name,
		PasswordHash:   hash,
		FaceDescriptor: in.FaceDescriptor,
		ImagePath:      in.ImagePath,
		Role:           domain.RoleUser,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.String("user_id", u.ID), zap.Int("descriptor_len", len(u.FaceDescriptor)))
	return u, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.Invalid("", "email and password are required")
	}
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !utils.CheckPassword(password, u.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	tok, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &LoginResult{Token: tok, User: u.Profile()}, nil
}

// GetUser 含参考特征向量；用户资料创建后不可变，可放心走缓存
func (s *AuthService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.Invalid("userId", "is required")
	}
	return cache.GetOrLoadJSON(s.opt.Cache, ctx, s.opt.Cache.Key("user", id), s.opt.ProfileTTL,
		func(ctx context.Context) (*domain.User, error) { return s.users.FindByID(ctx, id) })
}

func (s *AuthService) ListUsers(ctx context.Context, q string, offset, limit int) ([]domain.User, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.users.List(ctx, q, offset, limit)
}

// Promote 设置角色，角色变化需要清掉资料缓存
func (s *AuthService) Promote(ctx context.Context, email, role string) (*domain.User, error) {
	u, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if err := s.users.SetRole(ctx, u.ID, role); err != nil {
		return nil, err
	}
	_ = s.opt.Cache.Delete(ctx, s.opt.Cache.Key("user", u.ID))
	u.Role = role
	s.log.Info("user role changed", zap.String("user_id", u.ID), zap.String("role", role))
	return u, nil
}

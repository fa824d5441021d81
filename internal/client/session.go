package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"face-attendance/internal/core/auth"
	"face-attendance/internal/domain"
)

// Session 登录时建立，登出时销毁
type Session struct {
	Token     string         `json:"token"`
	User      domain.Profile `json:"user"`
	ExpiresAt time.Time      `json:"expiresAt"`
}

// NewSession 从 token 里读出过期时间
func NewSession(token string, user domain.Profile) (*Session, error) {
	exp, err := auth.PeekExpiry(token)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: user, ExpiresAt: exp}, nil
}

func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.Token != "" && s.User.ID != "" && now.Before(s.ExpiresAt)
}

// SessionStore 会话落在本地 JSON 文件
type SessionStore struct {
	Path string
}

// DefaultSessionPath ~/.face-attendance/session.json
func DefaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".face-attendance-session.json"
	}
	return filepath.Join(home, ".face-attendance", "session.json")
}

// Load 文件不存在返回 nil, nil
func (st SessionStore) Load() (*Session, error) {
	b, err := os.ReadFile(st.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func (st SessionStore) Save(s *Session) error {
	if err := os.MkdirAll(filepath.Dir(st.Path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(st.Path, b, 0o600)
}

// Clear 没有会话也不算错
func (st SessionStore) Clear() error {
	if err := os.Remove(st.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

package domain

import (
	"context"
	"time"

	"face-attendance/internal/face"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID             string          `json:"id"`
	Email          string          `json:"email"`
	Name           string          `json:"name"`
	PasswordHash   string          `json:"-"`
	FaceDescriptor face.Descriptor `json:"faceDescriptor"`
	ImagePath      string          `json:"imagePath,omitempty"`
	Role           string          `json:"role"` // "user"/"admin"
	CreatedAt      time.Time       `json:"createdAt"`
}

// Profile 对外暴露的最小用户信息
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u *User) Profile() Profile { return Profile{ID: u.ID, Name: u.Name, Email: u.Email} }

type UserRepository interface {
	// Create 邮箱冲突时返回 ErrDuplicateEmail
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, q string, offset, limit int) ([]User, int64, error)
	SetRole(ctx context.Context, id, role string) error
}

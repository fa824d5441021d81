package user

import (
	"time"

	"face-attendance/internal/face"
)

type UserModel struct {
	ID             string          `gorm:"primaryKey;type:varchar(36)"`
	Email          string          `gorm:"uniqueIndex;size:255;not null"`
	Name           string          `gorm:"size:64;not null"`
	PasswordHash   string          `gorm:"size:100;not null"`
	FaceDescriptor face.Descriptor `gorm:"type:text;not null"`
	ImagePath      string          `gorm:"size:255"`
	Role           string          `gorm:"size:16;not null;default:user"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string { return "users" }

package attendance

import (
	"time"

	"face-attendance/internal/feature/user"
)

// AttendanceModel (user_id, day) 唯一索引保证每人每天最多一条
type AttendanceModel struct {
	ID       string    `gorm:"primaryKey;type:varchar(36)"`
	UserID   string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_attendance_user_day,priority:1"`
	Day      string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_attendance_user_day,priority:2;index"`
	MarkedAt time.Time `gorm:"not null;index"`
	Status   string    `gorm:"size:16;not null;default:present"`

	User user.UserModel `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (AttendanceModel) TableName() string { return "attendance_records" }

// Models 自动迁移顺序：users 先于 attendance_records
func Models() []any { return []any{&user.UserModel{}, &AttendanceModel{}} }

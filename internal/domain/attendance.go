package domain

import (
	"context"
	"time"
)

const StatusPresent = "present"

// DayLayout 考勤日键格式，按配置时区计算
const DayLayout = "2006-01-02"

type AttendanceRecord struct {
	ID       string    `json:"id"`
	UserID   string    `json:"userId"`
	UserName string    `json:"userName,omitempty"`
	Day      string    `json:"day"`
	MarkedAt time.Time `json:"date"`
	Status   string    `json:"status"`
}

type AttendanceRepository interface {
	// Create 同一 (user, day) 已存在记录时返回 ErrAlreadyMarked
	Create(ctx context.Context, r *AttendanceRecord) error
	FindByUserAndDay(ctx context.Context, userID, day string) (*AttendanceRecord, error)
	// ListByUser 按时间倒序
	ListByUser(ctx context.Context, userID string) ([]AttendanceRecord, error)
	ListByDay(ctx context.Context, day string) ([]AttendanceRecord, error)
}

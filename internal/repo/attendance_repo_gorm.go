package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"face-attendance/internal/core/database"
	"face-attendance/internal/domain"
	"face-attendance/internal/feature/attendance"
)

type AttendanceRepo struct{ db *gorm.DB }

func NewAttendanceRepo(db *gorm.DB) *AttendanceRepo { return &AttendanceRepo{db: db} }

var _ domain.AttendanceRepository = (*AttendanceRepo)(nil)

// Create 依赖 (user_id, day) 唯一索引，并发重复插入只会有一条成功
func (r *AttendanceRepo) Create(ctx context.Context, rec *domain.AttendanceRecord) error {
	m := attendance.AttendanceModel{
		ID:       rec.ID,
		UserID:   rec.UserID,
		Day:      rec.Day,
		MarkedAt: rec.MarkedAt,
		Status:   rec.Status,
	}
	if err := r.db.WithContext(ctx).Omit("User").Create(&m).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return domain.ErrAlreadyMarked
		}
		return fmt.Errorf("create attendance: %w", err)
	}
	return nil
}

func (r *AttendanceRepo) FindByUserAndDay(ctx context.Context, userID, day string) (*domain.AttendanceRecord, error) {
	var m attendance.AttendanceModel
	err := r.withUser(ctx).Where("user_id = ? AND day = ?", userID, day).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	rec := fromAttendanceModel(m)
	return &rec, nil
}

func (r *AttendanceRepo) ListByUser(ctx context.Context, userID string) ([]domain.AttendanceRecord, error) {
	return r.list(ctx, "user_id = ?", userID)
}

func (r *AttendanceRepo) ListByDay(ctx context.Context, day string) ([]domain.AttendanceRecord, error) {
	return r.list(ctx, "day = ?", day)
}

func (r *AttendanceRepo) list(ctx context.Context, cond string, arg any) ([]domain.AttendanceRecord, error) {
	var ms []attendance.AttendanceModel
	if err := r.withUser(ctx).Where(cond, arg).Order("marked_at DESC").Order("id DESC").Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	out := make([]domain.AttendanceRecord, 0, len(ms))
	for _, m := range ms {
		out = append(out, fromAttendanceModel(m))
	}
	return out, nil
}

// withUser 只联出用户名
func (r *AttendanceRepo) withUser(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("User", func(tx *gorm.DB) *gorm.DB {
		return tx.Select("id", "name")
	})
}

func fromAttendanceModel(m attendance.AttendanceModel) domain.AttendanceRecord {
	return domain.AttendanceRecord{
		ID:       m.ID,
		UserID:   m.UserID,
		UserName: m.User.Name,
		Day:      m.Day,
		MarkedAt: m.MarkedAt,
		Status:   m.Status,
	}
}

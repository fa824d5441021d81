// Package testfixtures 测试用的数据库与时钟
package testfixtures

import (
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"face-attendance/internal/core/database"
	"face-attendance/internal/feature/attendance"
)

// OpenDB 在临时目录建 sqlite 库并完成迁移；单连接避免 sqlite 写锁冲突
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "attendance.db") + "?_busy_timeout=5000&_foreign_keys=on"
	db, err := database.NewGorm(database.Opts{
		Driver:       "sqlite",
		DSN:          dsn,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		LogLevel:     "silent",
	}, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(attendance.Models()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

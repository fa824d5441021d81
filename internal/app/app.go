// Package app 两个进程共用的依赖装配
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"face-attendance/internal/core/auth"
	"face-attendance/internal/core/cache"
	"face-attendance/internal/core/config"
	"face-attendance/internal/core/database"
	"face-attendance/internal/face"
	"face-attendance/internal/feature/attendance"
	"face-attendance/internal/repo"
	"face-attendance/internal/service"
	"face-attendance/internal/transport/http/handler"
	"face-attendance/internal/transport/http/router"
)

type App struct {
	Cfg        *config.Config
	Log        *zap.Logger
	DB         *gorm.DB
	Cache      *cache.Cache
	JWT        *auth.JWTer
	Auth       *service.AuthService
	Attendance *service.AttendanceService
}

// New 连库、迁移、组装服务；cleanup 关闭 redis 和连接池
func New(cfg *config.Config, l *zap.Logger) (*App, func(), error) {
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
	}, l)
	if err != nil {
		return nil, nil, fmt.Errorf("db open: %w", err)
	}
	l.Info("database connected",
		zap.String("driver", cfg.DB.Driver),
		zap.String("dsn", database.MaskDSN(cfg.DB.DSN)),
	)

	// 自动迁移
	if cfg.DB.AutoMigrate {
		if err := db.AutoMigrate(attendance.Models()...); err != nil {
			return nil, nil, fmt.Errorf("automigrate: %w", err)
		}
		l.Info("automigrate done")
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}

	c := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
	if c != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := c.Ping(ctx); err != nil {
			// 缓存不可用不影响启动，回源即可
			l.Warn("redis unavailable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		cancel()
	}

	jwter := &auth.JWTer{
		Secret: []byte(cfg.JWT.Secret),
		Issuer: cfg.JWT.Issuer,
		TTL:    cfg.TokenTTL(),
	}

	authSvc := service.NewAuthService(repo.NewUserRepo(db), jwter, service.AuthOptions{
		Cache:      c,
		ProfileTTL: cfg.ProfileTTL(),
		Dimension:  cfg.Face.Dimension,
		Logger:     l,
	})
	attSvc := service.NewAttendanceService(authSvc, repo.NewAttendanceRepo(db), service.AttendanceOptions{
		Matcher:  face.NewMatcher(cfg.Face.Threshold),
		Location: loc,
		Logger:   l,
	})

	cleanup := func() {
		_ = c.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return &App{Cfg: cfg, Log: l, DB: db, Cache: c, JWT: jwter, Auth: authSvc, Attendance: attSvc}, cleanup, nil
}

func (a *App) routerOptions(uploadDir string) router.Options {
	return router.Options{
		Logger:      a.Log,
		Tokens:      a.JWT,
		Limits:      a.Cfg.Limits,
		CORSOrigins: a.Cfg.App.CORSOrigins,
		UploadDir:   uploadDir,
	}
}

// Registry 用户端和管理端的模块都在这里
func (a *App) Registry() *router.Registry {
	uploads := &handler.Uploads{Dir: a.Cfg.Upload.Dir, MaxBytes: a.Cfg.Upload.MaxBytes}
	return router.NewRegistry(
		handler.NewAuthHandler(a.Auth, uploads, a.Log),
		handler.NewAttendanceHandler(a.Attendance, a.Log),
		handler.NewAdminHandler(a.Auth, a.Attendance, a.Log),
	)
}

func (a *App) APIHandler() *gin.Engine {
	return router.NewAPIEngine(a.routerOptions(a.Cfg.Upload.Dir), a.Registry())
}

func (a *App) AdminHandler() *gin.Engine {
	return router.NewAdminEngine(a.routerOptions(""), a.Auth, a.Registry())
}

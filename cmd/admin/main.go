package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"face-attendance/internal/app"
	"face-attendance/internal/core/config"
	"face-attendance/internal/core/logger"
	"face-attendance/internal/core/server"
	"face-attendance/internal/domain"
)

func main() {
	promote := flag.String("promote", "", "set the user with this email to admin and exit")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))
	log, cleanup := logger.New(cfg.Log.Level, cfg.Log.JSON)
	defer cleanup()

	a, closeApp, err := app.New(cfg, log)
	if err != nil {
		log.Fatal("bootstrap failed", zap.Error(err))
	}
	defer closeApp()

	// 开第一个管理员
	if *promote != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		u, err := a.Auth.Promote(ctx, *promote, domain.RoleAdmin)
		if err != nil {
			log.Fatal("promote failed", zap.String("email", *promote), zap.Error(err))
		}
		log.Info("user promoted", zap.String("id", u.ID), zap.String("email", u.Email))
		return
	}

	// HTTP Server
	h := cfg.App.Admin
	addr := server.Addr(h.Host, h.Port)
	srv := server.BuildServer(addr, a.AdminHandler(), 5*time.Second, 10*time.Second, 60*time.Second, log)

	// 启动前打印可点击地址
	baseURL := server.BaseURL(h.Host, h.Port)
	log.Info("admin api starting",
		zap.String("addr", addr),
		zap.String("open", baseURL),
		zap.String("health", baseURL+"/health"),
		zap.String("admin_v1", baseURL+"/admin/v1"),
	)

	// 异步启动；失败立即标红退出
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("admin api start FAILED", zap.Error(err))
		}
	}()
	log.Info("admin api started SUCCESS")

	// 关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Info("admin api stopped gracefully")
}

package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"face-attendance/internal/core/config"
	"face-attendance/internal/core/server"
	mdw "face-attendance/internal/transport/http/middleware"
)

// Options 两个引擎共用
type Options struct {
	Logger      *zap.Logger
	Tokens      mdw.TokenParser
	Limits      config.Limits
	CORSOrigins []string
	// UploadDir 非空时在 /uploads 下提供已上传的人脸照片（需登录）
	UploadDir string
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// base 公共中间件；限额为 0 的项不启用
func base(o Options, name string) *gin.Engine {
	l := o.logger()
	r := server.NewRouter(l, o.CORSOrigins)

	r.Use(mdw.RequestID())
	lim := o.Limits
	if lim.RPS > 0 {
		r.Use(mdw.RateLimit(rate.Limit(lim.RPS), max(lim.Burst, 1)))
	}
	if lim.PerIPRPS > 0 {
		r.Use(mdw.RateLimitPerIP(rate.Limit(lim.PerIPRPS), max(lim.PerIPBurst, 1)))
	}
	if lim.Concurrency > 0 {
		r.Use(mdw.ConcurrencyLimit(lim.Concurrency))
	}
	if lim.BodyBytes > 0 {
		r.Use(mdw.MaxBodyBytes(lim.BodyBytes))
	}
	if lim.TimeoutSec > 0 {
		r.Use(mdw.Timeout(time.Duration(lim.TimeoutSec) * time.Second))
	}
	r.Use(mdw.Metrics(name), mdw.AccessLog(l))

	// 健康检查
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", mdw.MetricsHandler())
	return r
}

func NewAPIEngine(o Options, reg *Registry) *gin.Engine {
	r := base(o, "api")

	api := r.Group("/api")
	authed := api.Group("")
	authed.Use(mdw.AuthJWT(o.Tokens))
	reg.MountAPI(api, authed)

	if o.UploadDir != "" {
		up := r.Group("/uploads")
		up.Use(mdw.AuthJWT(o.Tokens))
		up.Static("/", o.UploadDir)
	}
	return r
}

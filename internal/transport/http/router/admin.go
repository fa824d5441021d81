package router

import (
	"github.com/gin-gonic/gin"

	"face-attendance/internal/domain"
	mdw "face-attendance/internal/transport/http/middleware"
)

// NewAdminEngine 管理端 v1（统一要求 admin 角色，角色回库查）
func NewAdminEngine(o Options, users mdw.UserLookup, reg *Registry) *gin.Engine {
	r := base(o, "admin")

	admin := r.Group("/admin/v1")
	admin.Use(mdw.AuthJWT(o.Tokens), mdw.RequireRole(users, domain.RoleAdmin))
	reg.MountAdmin(admin)
	return r
}

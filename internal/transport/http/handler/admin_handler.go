package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"face-attendance/internal/domain"
	httpez "face-attendance/internal/transport/http/ez"
)

type UserLister interface {
	ListUsers(ctx context.Context, q string, offset, limit int) ([]domain.User, int64, error)
}

// AdminHandler 管理端：用户列表、个人考勤、按天考勤
type AdminHandler struct {
	users      UserLister
	attendance AttendanceService
	log        *zap.Logger
}

func NewAdminHandler(users UserLister, attendance AttendanceService, l *zap.Logger) *AdminHandler {
	if l == nil {
		l = zap.NewNop()
	}
	return &AdminHandler{users: users, attendance: attendance, log: l}
}

type listQ struct {
	Offset int    `form:"offset,default=0"`
	Limit  int    `form:"limit,default=20"`
	Q      string `form:"q"` // 按 email/name 模糊搜
}

type userRow struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type listOut struct {
	Total int64     `json:"total"`
	Items []userRow `json:"items"`
}

type dayQ struct {
	Date string `form:"date" binding:"omitempty,datetime=2006-01-02"`
}

type dayOut struct {
	Date    string                    `json:"date"`
	Records []domain.AttendanceRecord `json:"records"`
}

func (h *AdminHandler) MountAdmin(admin *gin.RouterGroup) {
	ez := httpez.New(admin, h.log)

	httpez.RegisterAction(ez, httpez.Action[listQ, listOut]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: httpez.BindQuery,
		Auth:   true,
		Handler: func(c *gin.Context, in *listQ) (listOut, error) {
			us, total, err := h.users.ListUsers(c.Request.Context(), in.Q, in.Offset, in.Limit)
			if err != nil {
				return listOut{}, err
			}
			out := listOut{Total: total, Items: make([]userRow, 0, len(us))}
			for _, u := range us {
				out.Items = append(out.Items, userRow{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, CreatedAt: u.CreatedAt})
			}
			return out, nil
		},
	})

	httpez.RegisterAction(ez, httpez.Action[struct{}, []domain.AttendanceRecord]{
		Method: http.MethodGet,
		Path:   "/users/:id/attendance",
		Binder: httpez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.AttendanceRecord, error) {
			return h.attendance.History(c.Request.Context(), c.Param("id"))
		},
	})

	httpez.RegisterAction(ez, httpez.Action[dayQ, dayOut]{
		Method: http.MethodGet,
		Path:   "/attendance",
		Binder: httpez.BindQuery,
		Auth:   true,
		Handler: func(c *gin.Context, in *dayQ) (dayOut, error) {
			recs, err := h.attendance.ByDay(c.Request.Context(), in.Date)
			if err != nil {
				return dayOut{}, err
			}
			date := in.Date
			if date == "" {
				date = h.attendance.Today()
			}
			return dayOut{Date: date, Records: recs}, nil
		},
	})
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"face-attendance/internal/domain"
	"face-attendance/internal/face"
	"face-attendance/internal/service"
	httpez "face-attendance/internal/transport/http/ez"
	mdw "face-attendance/internal/transport/http/middleware"
)

// AttendanceService 由 service.AttendanceService 实现
type AttendanceService interface {
	GetToday(ctx context.Context, userID string) (*domain.AttendanceRecord, error)
	History(ctx context.Context, userID string) ([]domain.AttendanceRecord, error)
	Mark(ctx context.Context, userID string, captured face.Descriptor) (*service.MarkResult, error)
	ByDay(ctx context.Context, day string) ([]domain.AttendanceRecord, error)
	Today() string
}

type AttendanceHandler struct {
	svc AttendanceService
	log *zap.Logger
}

func NewAttendanceHandler(svc AttendanceService, l *zap.Logger) *AttendanceHandler {
	if l == nil {
		l = zap.NewNop()
	}
	return &AttendanceHandler{svc: svc, log: l}
}

type markIn struct {
	UserID string `json:"userId" binding:"required"`
	// FaceDescriptor 省略时只凭 token 打卡
	FaceDescriptor face.Descriptor `json:"faceDescriptor"`
}

type markOut struct {
	Message       string                   `json:"message"`
	AlreadyMarked bool                     `json:"alreadyMarked"`
	Record        *domain.AttendanceRecord `json:"record"`
	Score         *float64                 `json:"score,omitempty"`
}

func (h *AttendanceHandler) Priority() int { return 20 }

func (h *AttendanceHandler) MountAPI(_, authed *gin.RouterGroup) {
	ez := httpez.New(authed, h.log)

	httpez.RegisterAction(ez, httpez.Action[markIn, markOut]{
		Method: http.MethodPost,
		Path:   "/mark-attendance",
		Binder: httpez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *markIn) (markOut, error) {
			if in.UserID != mdw.UserID(c) {
				return markOut{}, httpez.Forbidden("cannot mark attendance for another user")
			}
			res, err := h.svc.Mark(c.Request.Context(), in.UserID, in.FaceDescriptor)
			if err != nil {
				return markOut{}, err
			}
			return markOut{Message: res.Message(), AlreadyMarked: res.AlreadyMarked, Record: res.Record, Score: res.Score}, nil
		},
	})

	httpez.RegisterAction(ez, httpez.Action[struct{}, []domain.AttendanceRecord]{
		Method:     http.MethodGet,
		Path:       "/attendance/:userId",
		Binder:     httpez.BindNone,
		OwnerParam: "userId",
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.AttendanceRecord, error) {
			return h.svc.History(c.Request.Context(), c.Param("userId"))
		},
	})

	// 今天没有记录时返回 null
	httpez.RegisterAction(ez, httpez.Action[struct{}, *domain.AttendanceRecord]{
		Method:     http.MethodGet,
		Path:       "/attendance/:userId/today",
		Binder:     httpez.BindNone,
		OwnerParam: "userId",
		Handler: func(c *gin.Context, _ *struct{}) (*domain.AttendanceRecord, error) {
			return h.svc.GetToday(c.Request.Context(), c.Param("userId"))
		},
	})
}

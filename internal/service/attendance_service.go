package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"face-attendance/internal/domain"
	"face-attendance/internal/face"
	"face-attendance/pkg/utils"
)

var attendanceMarks = prometheus.NewCounterVec(
	prometheus.CounterOpts{Name: "attendance_marks_total", Help: "Outcome of mark-attendance calls"},
	[]string{"result"},
)

func init() { prometheus.MustRegister(attendanceMarks) }

const (
	MsgMarked        = "Attendance marked successfully"
	MsgAlreadyMarked = "Attendance already marked today"
)

// UserLookup 由 AuthService 实现
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

type AttendanceOptions struct {
	Matcher  face.Matcher
	Location *time.Location   // "今天"的时区，默认 time.Local
	Now      func() time.Time // 默认 time.Now
	Logger   *zap.Logger
}

type AttendanceService struct {
	users   UserLookup
	records domain.AttendanceRepository
	matcher face.Matcher
	loc     *time.Location
	now     func() time.Time
	log     *zap.Logger
}

func NewAttendanceService(users UserLookup, records domain.AttendanceRepository, opt AttendanceOptions) *AttendanceService {
	s := &AttendanceService{
		users:   users,
		records: records,
		matcher: opt.Matcher,
		loc:     opt.Location,
		now:     opt.Now,
		log:     opt.Logger,
	}
	if s.matcher.Threshold <= 0 {
		s.matcher = face.NewMatcher(face.DefaultThreshold)
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.log = s.log.Named("attendance")
	return s
}

type MarkResult struct {
	Record        *domain.AttendanceRecord `json:"record"`
	AlreadyMarked bool                     `json:"alreadyMarked"`
	// Score 只有带人脸比对时才有
	Score *float64 `json:"score,omitempty"`
}

func (r *MarkResult) Message() string {
	if r.AlreadyMarked {
		return MsgAlreadyMarked
	}
	return MsgMarked
}

// Today 当前时区的日期键
func (s *AttendanceService) Today() string { return s.now().In(s.loc).Format(domain.DayLayout) }

func (s *AttendanceService) GetToday(ctx context.Context, userID string) (*domain.AttendanceRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.Invalid("userId", "is required")
	}
	return s.records.FindByUserAndDay(ctx, userID, s.Today())
}

func (s *AttendanceService) History(ctx context.Context, userID string) ([]domain.AttendanceRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.Invalid("userId", "is required")
	}
	return s.records.ListByUser(ctx, userID)
}

// ByDay day 为空取今天
func (s *AttendanceService) ByDay(ctx context.Context, day string) ([]domain.AttendanceRecord, error) {
	day = strings.TrimSpace(day)
	if day == "" {
		day = s.Today()
	} else if _, err := time.ParseInLocation(domain.DayLayout, day, s.loc); err != nil {
		return nil, domain.Invalid("date", "must be formatted as YYYY-MM-DD")
	}
	return s.records.ListByDay(ctx, day)
}

// Mark 每人每天一条：已有记录直接返回；带特征向量才比对，不带时凭 token 打卡
func (s *AttendanceService) Mark(ctx context.Context, userID string, captured face.Descriptor) (*MarkResult, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	day := now.In(s.loc).Format(domain.DayLayout)

	existing, err := s.records.FindByUserAndDay(ctx, u.ID, day)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		attendanceMarks.WithLabelValues("already_marked").Inc()
		return &MarkResult{Record: existing, AlreadyMarked: true}, nil
	}

	res := &MarkResult{}
	if len(captured) > 0 {
		if err := captured.Validate(0); err != nil {
			return nil, domain.Invalid("faceDescriptor", err.Error())
		}
		ok, score, err := s.matcher.Match(u.FaceDescriptor, captured)
		if err != nil {
			return nil, domain.Invalid("faceDescriptor", err.Error())
		}
		if !ok {
			attendanceMarks.WithLabelValues("face_rejected").Inc()
			s.log.Info("face not recognized", zap.String("user_id", u.ID), zap.Float64("score", score))
			return nil, domain.ErrFaceNotRecognized
		}
		res.Score = &score
	}

	rec := &domain.AttendanceRecord{
		ID:       utils.NewID(),
		UserID:   u.ID,
		UserName: u.Name,
		Day:      day,
		MarkedAt: now,
		Status:   domain.StatusPresent,
	}
	if err := s.records.Create(ctx, rec); err != nil {
		if !errors.Is(err, domain.ErrAlreadyMarked) {
			return nil, err
		}
		// 并发请求先一步写入，按已打卡处理
		s.log.Debug("concurrent mark resolved by unique index", zap.String("user_id", u.ID))
		existing, ferr := s.records.FindByUserAndDay(ctx, u.ID, day)
		if ferr != nil {
			return nil, fmt.Errorf("load concurrent attendance: %w", ferr)
		}
		attendanceMarks.WithLabelValues("already_marked").Inc()
		return &MarkResult{Record: existing, AlreadyMarked: true}, nil
	}
	attendanceMarks.WithLabelValues("created").Inc()
	res.Record = rec
	return res, nil
}

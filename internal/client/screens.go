package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"face-attendance/internal/domain"
	"face-attendance/internal/face"
)

// UI 各个页面共用的依赖
type UI struct {
	API       *API
	Store     SessionStore
	Extractor Extractor
	Matcher   face.Matcher
	In        *bufio.Reader
	Out       io.Writer
	Now       func() time.Time
	// ReadPassword 不回显读取密码，默认走终端
	ReadPassword func() (string, error)
}

func (u *UI) now() time.Time {
	if u.Now != nil {
		return u.Now()
	}
	return time.Now()
}

func (u *UI) printf(format string, args ...any) { fmt.Fprintf(u.Out, format, args...) }

func (u *UI) prompt(label string) (string, error) {
	u.printf("%s: ", label)
	line, err := u.In.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (u *UI) password() (string, error) {
	u.printf("Password: ")
	if u.ReadPassword != nil {
		pw, err := u.ReadPassword()
		u.printf("\n")
		return pw, err
	}
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	u.printf("\n")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Home 当前登录状态和可用命令
func (u *UI) Home(context.Context) error {
	s, err := u.Store.Load()
	if err != nil {
		return err
	}
	u.printf("Face Attendance\n")
	if s.Valid(u.now()) {
		u.printf("Signed in as %s <%s> until %s\n", s.User.Name, s.User.Email, s.ExpiresAt.Local().Format(time.Kitchen))
		u.printf("Commands: dashboard, mark, logout\n")
		return nil
	}
	u.printf("Not signed in.\n")
	u.printf("Commands: register, login\n")
	return nil
}

func (u *UI) Register(ctx context.Context) error {
	d, err := u.Extractor.Extract(ctx)
	if errors.Is(err, ErrNoDescriptor) {
		return errors.New("a face descriptor is required to register; pass --descriptor-file")
	}
	if err != nil {
		return err
	}
	name, err := u.prompt("Name")
	if err != nil {
		return err
	}
	email, err := u.prompt("Email")
	if err != nil {
		return err
	}
	pw, err := u.password()
	if err != nil {
		return err
	}
	msg, err := u.API.Register(ctx, RegisterRequest{Name: name, Email: email, Password: pw, FaceDescriptor: d})
	if err != nil {
		return err
	}
	u.printf("%s. You can now log in.\n", msg)
	return nil
}

// Login 成功后建立并保存会话
func (u *UI) Login(ctx context.Context) (*Session, error) {
	email, err := u.prompt("Email")
	if err != nil {
		return nil, err
	}
	pw, err := u.password()
	if err != nil {
		return nil, err
	}
	res, err := u.API.Login(ctx, email, pw)
	if err != nil {
		return nil, err
	}
	s, err := NewSession(res.Token, res.User)
	if err != nil {
		return nil, err
	}
	if err := u.Store.Save(s); err != nil {
		return nil, err
	}
	u.printf("Welcome, %s.\n", s.User.Name)
	return s, nil
}

// Logout 销毁本地会话
func (u *UI) Logout(context.Context) error {
	if err := u.Store.Clear(); err != nil {
		return err
	}
	u.printf("Signed out.\n")
	return nil
}

// Guard 受保护页面的入口：没有有效会话先走登录
func (u *UI) Guard(ctx context.Context) (*Session, error) {
	s, err := u.Store.Load()
	if err != nil {
		return nil, err
	}
	if s.Valid(u.now()) {
		return s, nil
	}
	if s != nil {
		_ = u.Store.Clear()
		u.printf("Session expired, please log in again.\n")
	} else {
		u.printf("Please log in first.\n")
	}
	return u.Login(ctx)
}

// authed 服务端 401 时清掉本地会话
func (u *UI) authed(err error) error {
	if StatusOf(err) == 401 {
		_ = u.Store.Clear()
	}
	return err
}

// Dashboard 今天的状态 + 历史记录
func (u *UI) Dashboard(ctx context.Context) error {
	s, err := u.Guard(ctx)
	if err != nil {
		return err
	}
	today, err := u.API.Today(ctx, s.Token, s.User.ID)
	if err != nil {
		return u.authed(err)
	}
	history, err := u.API.History(ctx, s.Token, s.User.ID)
	if err != nil {
		return u.authed(err)
	}

	u.printf("Dashboard for %s\n", s.User.Name)
	if today != nil {
		u.printf("Today: %s at %s\n", today.Status, today.MarkedAt.Local().Format(time.Kitchen))
	} else {
		u.printf("Today: not marked\n")
	}
	if len(history) == 0 {
		u.printf("No attendance records yet.\n")
		return nil
	}
	u.printf("History:\n")
	for _, r := range history {
		u.printf("  %s  %s  %s\n", r.Day, r.MarkedAt.Local().Format("15:04:05"), r.Status)
	}
	return nil
}

// Mark 先查今天是否已打卡，再本地比对人脸，最后提交
func (u *UI) Mark(ctx context.Context) error {
	s, err := u.Guard(ctx)
	if err != nil {
		return err
	}
	today, err := u.API.Today(ctx, s.Token, s.User.ID)
	if err != nil {
		return u.authed(err)
	}
	if today != nil {
		u.printf("Attendance already marked today.\n")
		return nil
	}

	captured, err := u.Extractor.Extract(ctx)
	switch {
	case errors.Is(err, ErrNoDescriptor):
		u.printf("No face descriptor available, marking with session only.\n")
		captured = nil
	case err != nil:
		return err
	default:
		profile, err := u.API.User(ctx, s.Token, s.User.ID)
		if err != nil {
			return u.authed(err)
		}
		m := u.Matcher
		if m.Threshold <= 0 {
			m = face.NewMatcher(0)
		}
		ok, score, err := m.Match(profile.FaceDescriptor, captured)
		if err != nil {
			return err
		}
		if !ok {
			u.printf("Face not recognized (score %.3f).\n", score)
			return domain.ErrFaceNotRecognized
		}
	}

	res, err := u.API.Mark(ctx, s.Token, s.User.ID, captured)
	if err != nil {
		return u.authed(err)
	}
	u.printf("%s.\n", strings.TrimSuffix(res.Message, "."))
	return nil
}

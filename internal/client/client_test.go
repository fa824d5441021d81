package client

import (
	"bufio"
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"face-attendance/internal/domain"
	"face-attendance/internal/face"
	"face-attendance/internal/testfixtures/apitest"
)

type harness struct {
	srv  *apitest.Server
	ui   *UI
	out  *bytes.Buffer
	desc string // 提取器输出文件
}

func newHarness(t *testing.T, input string) *harness {
	t.Helper()
	srv := apitest.New(t)
	hs := httptest.NewServer(srv.API)
	t.Cleanup(hs.Close)

	dir := t.TempDir()
	out := &bytes.Buffer{}
	h := &harness{srv: srv, out: out, desc: filepath.Join(dir, "descriptor.json")}
	h.ui = &UI{
		API:          NewAPI(hs.URL + "/"),
		Store:        SessionStore{Path: filepath.Join(dir, "session", "session.json")},
		Extractor:    FileExtractor{Path: h.desc},
		Matcher:      face.NewMatcher(face.DefaultThreshold),
		In:           bufio.NewReader(strings.NewReader(input)),
		Out:          out,
		Now:          srv.Clock.Now,
		ReadPassword: func() (string, error) { return "pw-123456", nil },
	}
	return h
}

func (h *harness) capture(t *testing.T, d string) {
	t.Helper()
	require.NoError(t, os.WriteFile(h.desc, []byte(d), 0o600))
}

func TestRegisterLoginLogout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "Alice\nalice@example.com\nalice@example.com\n")

	err := h.ui.Register(ctx)
	require.Error(t, err, "no descriptor yet")

	h.capture(t, "[0, 0, 0]")
	require.NoError(t, h.ui.Register(ctx))
	assert.Contains(t, h.out.String(), "User registered successfully")

	s, err := h.ui.Login(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Alice", s.User.Name)
	assert.Equal(t, h.srv.Clock.Now().Add(time.Hour).Unix(), s.ExpiresAt.Unix())

	stored, err := h.ui.Store.Load()
	require.NoError(t, err)
	assert.True(t, stored.Valid(h.srv.Clock.Now()))

	require.NoError(t, h.ui.Home(ctx))
	assert.Contains(t, h.out.String(), "Signed in as Alice")

	require.NoError(t, h.ui.Logout(ctx))
	stored, err = h.ui.Store.Load()
	require.NoError(t, err)
	assert.Nil(t, stored)
	require.NoError(t, h.ui.Logout(ctx), "logout twice is fine")
}

func TestLoginErrorsCarryServerMessage(t *testing.T) {
	h := newHarness(t, "ghost@example.com\n")
	_, err := h.ui.Login(context.Background())
	require.Error(t, err)
	assert.Equal(t, 404, StatusOf(err))
	assert.Contains(t, err.Error(), "User not found")
}

func TestGuardRunsLoginWhenSessionMissingOrExpired(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "alice@example.com\nalice@example.com\n")
	h.srv.SignUp(t, "Alice", "alice@example.com", face.Descriptor{0, 0, 0})

	s, err := h.ui.Guard(ctx)
	require.NoError(t, err)
	assert.Contains(t, h.out.String(), "Please log in first")

	again, err := h.ui.Guard(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.Token, again.Token, "valid session is reused")

	h.srv.Clock.Advance(2 * time.Hour)
	_, err = h.ui.Guard(ctx)
	require.NoError(t, err)
	assert.Contains(t, h.out.String(), "Session expired")
}

func TestMarkFlow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "alice@example.com\n")
	h.srv.SignUp(t, "Alice", "alice@example.com", face.Descriptor{0, 0, 0})

	h.capture(t, "[1, 1, 1]")
	err := h.ui.Mark(ctx)
	require.ErrorIs(t, err, domain.ErrFaceNotRecognized)
	assert.Contains(t, h.out.String(), "Face not recognized")

	h.capture(t, "[0.1, 0, 0.1]")
	require.NoError(t, h.ui.Mark(ctx))
	assert.Contains(t, h.out.String(), "Attendance marked successfully")

	h.out.Reset()
	require.NoError(t, h.ui.Mark(ctx))
	assert.Contains(t, h.out.String(), "Attendance already marked today")

	h.out.Reset()
	require.NoError(t, h.ui.Dashboard(ctx))
	assert.Contains(t, h.out.String(), "Today: present")
	assert.Contains(t, h.out.String(), "2025-03-10")
}

func TestMarkWithoutDescriptorFallsBackToToken(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "alice@example.com\n")
	alice, _ := h.srv.SignUp(t, "Alice", "alice@example.com", face.Descriptor{0, 0, 0})

	require.NoError(t, h.ui.Mark(ctx))
	assert.Contains(t, h.out.String(), "marking with session only")

	rec, err := h.srv.Attendance.GetToday(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
}

func TestServerRejectionClearsSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "")
	alice, _ := h.srv.SignUp(t, "Alice", "alice@example.com", face.Descriptor{0})

	// 本地时钟认为有效，服务端验签失败
	forged := &Session{Token: "header.payload.sig", User: domain.Profile{ID: alice.ID}, ExpiresAt: h.srv.Clock.Now().Add(time.Hour)}
	require.NoError(t, h.ui.Store.Save(forged))

	err := h.ui.Dashboard(ctx)
	require.Error(t, err)
	assert.Equal(t, 401, StatusOf(err))
	s, err := h.ui.Store.Load()
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSessionValid(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	var nilSession *Session
	assert.False(t, nilSession.Valid(now))
	assert.False(t, (&Session{Token: "t", User: domain.Profile{ID: "u"}, ExpiresAt: now}).Valid(now))
	assert.True(t, (&Session{Token: "t", User: domain.Profile{ID: "u"}, ExpiresAt: now.Add(time.Second)}).Valid(now))
	assert.False(t, (&Session{User: domain.Profile{ID: "u"}, ExpiresAt: now.Add(time.Hour)}).Valid(now))

	_, err := NewSession("garbage", domain.Profile{})
	assert.Error(t, err)
}

func TestFileExtractor(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	_, err := FileExtractor{}.Extract(ctx)
	assert.ErrorIs(t, err, ErrNoDescriptor)
	_, err = FileExtractor{Path: filepath.Join(dir, "missing.json")}.Extract(ctx)
	assert.ErrorIs(t, err, ErrNoDescriptor)

	p := filepath.Join(dir, "d.json")
	require.NoError(t, os.WriteFile(p, []byte("[]"), 0o600))
	_, err = FileExtractor{Path: p}.Extract(ctx)
	assert.ErrorIs(t, err, ErrNoDescriptor)

	require.NoError(t, os.WriteFile(p, []byte("[0.25, 0.5]\n"), 0o600))
	d, err := FileExtractor{Path: p}.Extract(ctx)
	require.NoError(t, err)
	assert.Equal(t, face.Descriptor{0.25, 0.5}, d)

	require.NoError(t, os.WriteFile(p, []byte("{oops"), 0o600))
	_, err = FileExtractor{Path: p}.Extract(ctx)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoDescriptor)
}

func TestRootCommandHome(t *testing.T) {
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--session-file", filepath.Join(t.TempDir(), "s.json")})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Not signed in")
}

package router_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"face-attendance/internal/domain"
	"face-attendance/internal/face"
	"face-attendance/internal/testfixtures/apitest"
	"face-attendance/internal/transport/http/router"
)

type errBody struct {
	Error string `json:"error"`
}

type loginBody struct {
	Token string         `json:"token"`
	User  domain.Profile `json:"user"`
}

type markBody struct {
	Message       string                   `json:"message"`
	AlreadyMarked bool                     `json:"alreadyMarked"`
	Record        *domain.AttendanceRecord `json:"record"`
	Score         *float64                 `json:"score"`
}

func TestRegisterAndLogin(t *testing.T) {
	s := apitest.New(t)
	reg := gin.H{"name": "Alice", "email": "alice@example.com", "password": "secret-1", "faceDescriptor": []float64{0, 0, 0}}

	w := apitest.Do(t, s.API, http.MethodPost, "/api/register", "", reg)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "User registered successfully", apitest.Decode[gin.H](t, w)["message"])

	w = apitest.Do(t, s.API, http.MethodPost, "/api/register", "", reg)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email already registered", apitest.Decode[errBody](t, w).Error)

	t.Run("bad register bodies", func(t *testing.T) {
		w := apitest.Do(t, s.API, http.MethodPost, "/api/register", "", gin.H{"name": "Bob", "password": "x", "faceDescriptor": []float64{1}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, apitest.Decode[errBody](t, w).Error, "email is required")

		w = apitest.Do(t, s.API, http.MethodPost, "/api/register", "", gin.H{"name": "Bob", "email": "bob@example.com", "password": "x", "faceDescriptor": "not json"})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = apitest.Do(t, s.API, http.MethodPost, "/api/register", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("descriptor as json string", func(t *testing.T) {
		w := apitest.Do(t, s.API, http.MethodPost, "/api/register", "", gin.H{"name": "Carol", "email": "carol@example.com", "password": "x", "faceDescriptor": "[0.1,0.2]"})
		assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	})

	w = apitest.Do(t, s.API, http.MethodPost, "/api/login", "", gin.H{"email": "alice@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid credentials", apitest.Decode[errBody](t, w).Error)

	w = apitest.Do(t, s.API, http.MethodPost, "/api/login", "", gin.H{"email": "nobody@example.com", "password": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found", apitest.Decode[errBody](t, w).Error)

	w = apitest.Do(t, s.API, http.MethodPost, "/api/login", "", gin.H{"email": "alice@example.com", "password": "secret-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	lb := apitest.Decode[loginBody](t, w)
	assert.Equal(t, "Alice", lb.User.Name)
	assert.Equal(t, "alice@example.com", lb.User.Email)

	claims, err := s.JWT.Parse(lb.Token)
	require.NoError(t, err)
	assert.Equal(t, lb.User.ID, claims.UID)
}

func TestRegisterNormalizesEmail(t *testing.T) {
	s := apitest.New(t)

	w := apitest.Do(t, s.API, http.MethodPost, "/api/register", "", gin.H{"name": "Bob", "email": " Bob@Example.com ", "password": "pw-1", "faceDescriptor": []float64{0}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "bob@example.com", apitest.Decode[struct {
		User domain.Profile `json:"user"`
	}](t, w).User.Email)

	w = apitest.Do(t, s.API, http.MethodPost, "/api/login", "", gin.H{"email": "BOB@example.com", "password": "pw-1"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = apitest.Do(t, s.API, http.MethodPost, "/api/register", "", gin.H{"name": "Eve", "email": "not-an-address", "password": "pw-1", "faceDescriptor": []float64{0}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "email: is not a valid address", apitest.Decode[errBody](t, w).Error)
}

func TestMarkAttendanceEmptyDescriptorString(t *testing.T) {
	s := apitest.New(t)
	alice, tok := s.SignUp(t, "Alice", "alice@example.com", face.Descriptor{0, 0, 0})

	w := apitest.Do(t, s.API, http.MethodPost, "/api/mark-attendance", tok, gin.H{"userId": alice.ID, "faceDescriptor": ""})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := apitest.Decode[markBody](t, w)
	assert.False(t, res.AlreadyMarked)
	assert.Nil(t, res.Score, "no face comparison")
}

func TestUserProfileRequiresOwnToken(t *testing.T) {
	s := apitest.New(t)
	alice, tok := s.SignUp(t, "Alice", "alice@example.com", face.Descriptor{0, 0, 0})
	bob, _ := s.SignUp(t, "Bob", "bob@example.com", face.Descriptor{1, 1, 1})

	w := apitest.Do(t, s.API, http.MethodGet, "/api/user/"+alice.ID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = apitest.Do(t, s.API, http.MethodGet, "/api/user/"+alice.ID, "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = apitest.Do(t, s.API, http.MethodGet, "/api/user/"+bob.ID, tok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = apitest.Do(t, s.API, http.MethodGet, "/api/user/"+alice.ID, tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	p := apitest.Decode[struct {
		ID             string          `json:"id"`
		Name           string          `json:"name"`
		FaceDescriptor face.Descriptor `json:"faceDescriptor"`
	}](t, w)
	assert.Equal(t, alice.ID, p.ID)
	assert.Equal(t, face.Descriptor{0, 0, 0}, p.FaceDescriptor)
}

func TestMarkAttendance(t *testing.T) {
	s := apitest.New(t)
	alice, tok := s.SignUp(t, "Alice", "alice@example.com", face.Descriptor{0, 0, 0})
	bob, _ := s.SignUp(t, "Bob", "bob@example.com", face.Descriptor{0, 0, 0})
	today := "/api/attendance/" + alice.ID + "/today"

	w := apitest.Do(t, s.API, http.MethodGet, today, tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", strings.TrimSpace(w.Body.String()))

	w = apitest.Do(t, s.API, http.MethodPost, "/api/mark-attendance", tok, gin.H{"userId": alice.ID, "faceDescriptor": []float64{1, 1, 1}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Face not recognized", apitest.Decode[errBody](t, w).Error)

	w = apitest.Do(t, s.API, http.MethodPost, "/api/mark-attendance", tok, gin.H{"userId": alice.ID, "faceDescriptor": []float64{1, 1}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = apitest.Do(t, s.API, http.MethodPost, "/api/mark-attendance", tok, gin.H{"userId": bob.ID})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = apitest.Do(t, s.API, http.MethodPost, "/api/mark-attendance", tok, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, apitest.Decode[errBody](t, w).Error, "userId is required")

	w = apitest.Do(t, s.API, http.MethodPost, "/api/mark-attendance", tok, gin.H{"userId": alice.ID, "faceDescriptor": []float64{0, 0, 0}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := apitest.Decode[markBody](t, w)
	assert.Equal(t, "Attendance marked successfully", first.Message)
	assert.False(t, first.AlreadyMarked)
	require.NotNil(t, first.Record)
	require.NotNil(t, first.Score)
	assert.Zero(t, *first.Score)

	w = apitest.Do(t, s.API, http.MethodPost, "/api/mark-attendance", tok, gin.H{"userId": alice.ID})
	require.Equal(t, http.StatusOK, w.Code)
	again := apitest.Decode[markBody](t, w)
	assert.Equal(t, "Attendance already marked today", again.Message)
	assert.True(t, again.AlreadyMarked)
	assert.Equal(t, first.Record.ID, again.Record.ID)

	w = apitest.Do(t, s.API, http.MethodGet, today, tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rec := apitest.Decode[*domain.AttendanceRecord](t, w)
	require.NotNil(t, rec)
	assert.Equal(t, first.Record.ID, rec.ID)
	assert.Equal(t, domain.StatusPresent, rec.Status)

	// 第二天只凭 token 打卡；旧 token 已过期，重新签发
	s.Clock.Advance(24 * time.Hour)
	tok, err := s.JWT.Issue(alice.ID)
	require.NoError(t, err)
	w = apitest.Do(t, s.API, http.MethodPost, "/api/mark-attendance", tok, gin.H{"userId": alice.ID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, apitest.Decode[markBody](t, w).AlreadyMarked)

	w = apitest.Do(t, s.API, http.MethodGet, "/api/attendance/"+alice.ID, tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	hist := apitest.Decode[[]domain.AttendanceRecord](t, w)
	require.Len(t, hist, 2)
	assert.True(t, hist[0].MarkedAt.After(hist[1].MarkedAt), "newest first")
	assert.Equal(t, "2025-03-11", hist[0].Day)
	assert.Equal(t, "2025-03-10", hist[1].Day)
	assert.Equal(t, "Alice", hist[0].UserName)

	w = apitest.Do(t, s.API, http.MethodGet, "/api/attendance/"+bob.ID, tok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMarkAttendanceExpiredToken(t *testing.T) {
	s := apitest.New(t)
	alice, tok := s.SignUp(t, "Alice", "alice@example.com", face.Descriptor{0})

	s.Clock.Advance(2 * time.Hour)
	w := apitest.Do(t, s.API, http.MethodPost, "/api/mark-attendance", tok, gin.H{"userId": alice.ID})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterMultipartWithImage(t *testing.T) {
	s := apitest.New(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", "Dana"))
	require.NoError(t, mw.WriteField("email", "dana@example.com"))
	require.NoError(t, mw.WriteField("password", "pw-1"))
	require.NoError(t, mw.WriteField("faceDescriptor", "[0.5, 0.25]"))
	fw, err := mw.CreateFormFile("image", "my face.png")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("\x89PNG fake"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/register", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.API.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	entries, err := os.ReadDir(s.UploadDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	name := entries[0].Name()
	assert.True(t, strings.HasSuffix(name, "-my_face.png"), name)

	u, err := s.Auth.Login(context.Background(), "dana@example.com", "pw-1")
	require.NoError(t, err)
	got, err := s.Auth.GetUser(context.Background(), u.User.ID)
	require.NoError(t, err)
	assert.Equal(t, name, got.ImagePath)
	assert.Equal(t, face.Descriptor{0.5, 0.25}, got.FaceDescriptor)

	w = apitest.Do(t, s.API, http.MethodGet, "/uploads/"+name, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = apitest.Do(t, s.API, http.MethodGet, "/uploads/"+name, u.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// 注册失败时已保存的图片要删掉
	buf.Reset()
	mw = multipart.NewWriter(&buf)
	_ = mw.WriteField("name", "Dana")
	_ = mw.WriteField("email", "dana@example.com")
	_ = mw.WriteField("password", "pw-1")
	_ = mw.WriteField("faceDescriptor", "[1]")
	fw, _ = mw.CreateFormFile("image", "again.jpg")
	_, _ = fw.Write([]byte("jpg"))
	require.NoError(t, mw.Close())
	req = httptest.NewRequest(http.MethodPost, "/api/register", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w = httptest.NewRecorder()
	s.API.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	_, err = os.Stat(filepath.Join(s.UploadDir, name))
	assert.NoError(t, err)
	entries, _ = os.ReadDir(s.UploadDir)
	assert.Len(t, entries, 1)
}

func TestHealthAndMetrics(t *testing.T) {
	s := apitest.New(t)

	w := apitest.Do(t, s.API, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = apitest.Do(t, s.API, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")

	w = apitest.Do(t, s.Admin, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminRequiresRole(t *testing.T) {
	s := apitest.New(t)
	ctx := context.Background()
	alice, tok := s.SignUp(t, "Alice", "alice@example.com", face.Descriptor{0})
	_, _ = s.SignUp(t, "Bob", "bob@example.com", face.Descriptor{0})

	w := apitest.Do(t, s.Admin, http.MethodGet, "/admin/v1/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = apitest.Do(t, s.Admin, http.MethodGet, "/admin/v1/users", tok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	ghost, err := s.JWT.Issue("no-such-user")
	require.NoError(t, err)
	w = apitest.Do(t, s.Admin, http.MethodGet, "/admin/v1/users", ghost, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	_, err = s.Auth.Promote(ctx, "alice@example.com", domain.RoleAdmin)
	require.NoError(t, err)

	w = apitest.Do(t, s.Admin, http.MethodGet, "/admin/v1/users?limit=10", tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list := apitest.Decode[struct {
		Total int64 `json:"total"`
		Items []struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"items"`
	}](t, w)
	assert.EqualValues(t, 2, list.Total)
	assert.Len(t, list.Items, 2)

	w = apitest.Do(t, s.Admin, http.MethodGet, "/admin/v1/users?q=bob", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bob@example.com")
	assert.NotContains(t, w.Body.String(), "alice@example.com")

	_, err = s.Attendance.Mark(ctx, alice.ID, nil)
	require.NoError(t, err)

	w = apitest.Do(t, s.Admin, http.MethodGet, "/admin/v1/users/"+alice.ID+"/attendance", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, apitest.Decode[[]domain.AttendanceRecord](t, w), 1)

	w = apitest.Do(t, s.Admin, http.MethodGet, "/admin/v1/attendance", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	day := apitest.Decode[struct {
		Date    string                    `json:"date"`
		Records []domain.AttendanceRecord `json:"records"`
	}](t, w)
	assert.Equal(t, "2025-03-10", day.Date)
	require.Len(t, day.Records, 1)
	assert.Equal(t, "Alice", day.Records[0].UserName)

	w = apitest.Do(t, s.Admin, http.MethodGet, "/admin/v1/attendance?date=2025-03-09", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, apitest.Decode[struct {
		Records []domain.AttendanceRecord `json:"records"`
	}](t, w).Records)

	w = apitest.Do(t, s.Admin, http.MethodGet, "/admin/v1/attendance?date=yesterday", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type named struct {
	prio int
	log  *[]int
}

func (n named) Priority() int { return n.prio }
func (n named) MountAPI(_, _ *gin.RouterGroup) {
	*n.log = append(*n.log, n.prio)
}

func TestRegistryOrdersByPriority(t *testing.T) {
	var order []int
	reg := router.NewRegistry(named{30, &order}, named{10, &order}, named{20, &order})
	assert.False(t, reg.Register(struct{}{}))

	r := gin.New()
	reg.MountAPI(r.Group("/a"), r.Group("/b"))
	assert.Equal(t, []int{10, 20, 30}, order)
}

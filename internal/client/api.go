// Package client 命令行客户端：HTTP 调用、本地会话、各个页面
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"face-attendance/internal/domain"
	"face-attendance/internal/face"
)

// APIError 服务端返回的 {"error": "..."}
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// StatusOf 非 APIError 返回 0
func StatusOf(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

type API struct {
	BaseURL string
	HTTP    *http.Client
}

func NewAPI(baseURL string) *API {
	return &API{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

type RegisterRequest struct {
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	Password       string          `json:"password"`
	FaceDescriptor face.Descriptor `json:"faceDescriptor"`
}

type LoginResponse struct {
	Token string         `json:"token"`
	User  domain.Profile `json:"user"`
}

type UserProfile struct {
	domain.Profile
	Role           string          `json:"role"`
	FaceDescriptor face.Descriptor `json:"faceDescriptor"`
}

type MarkResponse struct {
	Message       string                   `json:"message"`
	AlreadyMarked bool                     `json:"alreadyMarked"`
	Record        *domain.AttendanceRecord `json:"record"`
	Score         *float64                 `json:"score,omitempty"`
}

func (a *API) Register(ctx context.Context, req RegisterRequest) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := a.do(ctx, http.MethodPost, "/api/register", "", req, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (a *API) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	in := map[string]string{"email": email, "password": password}
	var out LoginResponse
	if err := a.do(ctx, http.MethodPost, "/api/login", "", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) User(ctx context.Context, token, userID string) (*UserProfile, error) {
	var out UserProfile
	if err := a.do(ctx, http.MethodGet, "/api/user/"+userID, token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Today 今天没有记录时返回 nil
func (a *API) Today(ctx context.Context, token, userID string) (*domain.AttendanceRecord, error) {
	var out *domain.AttendanceRecord
	if err := a.do(ctx, http.MethodGet, "/api/attendance/"+userID+"/today", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) History(ctx context.Context, token, userID string) ([]domain.AttendanceRecord, error) {
	var out []domain.AttendanceRecord
	if err := a.do(ctx, http.MethodGet, "/api/attendance/"+userID, token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Mark captured 为空时只凭 token 打卡
func (a *API) Mark(ctx context.Context, token, userID string, captured face.Descriptor) (*MarkResponse, error) {
	in := struct {
		UserID         string          `json:"userId"`
		FaceDescriptor face.Descriptor `json:"faceDescriptor,omitempty"`
	}{UserID: userID, FaceDescriptor: captured}
	var out MarkResponse
	if err := a.do(ctx, http.MethodPost, "/api/mark-attendance", token, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) do(ctx context.Context, method, path, token string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := a.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		var eb struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &eb) != nil || eb.Error == "" {
			eb.Error = http.StatusText(res.StatusCode)
		}
		return &APIError{Status: res.StatusCode, Message: eb.Error}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

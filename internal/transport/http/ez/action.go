package ez

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"face-attendance/internal/domain"
	mdw "face-attendance/internal/transport/http/middleware"
	resp "face-attendance/internal/transport/http/response"
)

// 绑定方式
type Binder string

const (
	BindJSON  Binder = "json"  // 从 JSON 绑定
	BindQuery Binder = "query" // 从 URL ?a=b 绑定
	BindURI   Binder = "uri"   // 从路径参数绑定
	BindNone  Binder = "none"  // 不绑定，自己从 c.Param / c.PostForm 取
)

// AErr 直接指定状态码的错误
type AErr struct {
	Code int
	Msg  string
}

func (e *AErr) Error() string { return e.Msg }

func BadRequest(msg string) error   { return &AErr{Code: http.StatusBadRequest, Msg: msg} }
func Unauthorized(msg string) error { return &AErr{Code: http.StatusUnauthorized, Msg: msg} }
func Forbidden(msg string) error    { return &AErr{Code: http.StatusForbidden, Msg: msg} }

// Action I 入参，O 出参
type Action[I any, O any] struct {
	Method string // "GET" | "POST" | "PUT" | "DELETE"
	Path   string // 例："/login"、"/attendance/:userId"
	Binder Binder
	Auth   bool // 是否要求登录（检查 userId）
	// OwnerParam 路径参数必须等于当前登录用户 ID
	OwnerParam string
	// Status 成功状态码，默认 200
	Status  int
	Handler func(c *gin.Context, in *I) (O, error)
}

type EZ struct {
	g   *gin.RouterGroup
	log *zap.Logger
}

func New(g *gin.RouterGroup, l *zap.Logger) EZ {
	if l == nil {
		l = zap.NewNop()
	}
	return EZ{g: g, log: l}
}

func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	status := a.Status
	if status == 0 {
		status = http.StatusOK
	}
	h := func(c *gin.Context) {
		// 1) 鉴权
		if a.Auth || a.OwnerParam != "" {
			uid := mdw.UserID(c)
			if uid == "" {
				c.JSON(http.StatusUnauthorized, resp.Error(http.StatusUnauthorized, "unauthorized"))
				return
			}
			if a.OwnerParam != "" && c.Param(a.OwnerParam) != uid {
				c.JSON(http.StatusForbidden, resp.Error(http.StatusForbidden, "forbidden"))
				return
			}
		}

		// 2) 绑定入参
		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		case BindURI:
			bindErr = c.ShouldBindUri(&in)
		}
		if bindErr != nil {
			Fail(e, c, domain.Invalid("", BindMessage(bindErr)))
			return
		}

		// 3) 执行
		out, err := a.Handler(c, &in)
		if err != nil {
			Fail(e, c, err)
			return
		}
		c.JSON(status, out)
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default:
		e.g.POST(a.Path, h)
	}
}

// Fail 统一错误映射；5xx 记日志并挂到 gin 错误栈
func Fail(e EZ, c *gin.Context, err error) {
	var ae *AErr
	if errors.As(err, &ae) {
		c.JSON(ae.Code, resp.Error(ae.Code, ae.Msg))
		return
	}
	code := resp.StatusOf(err)
	if code >= http.StatusInternalServerError {
		_ = c.Error(err)
		e.log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("rid", c.GetString(mdw.KeyRequestID)),
			zap.Error(err),
		)
	}
	c.JSON(code, resp.Error(code, resp.PublicMessage(err)))
}

// BindMessage 把绑定/校验错误转成可读文案
func BindMessage(err error) string {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return "request body too large"
	}
	var ves validator.ValidationErrors
	if errors.As(err, &ves) {
		parts := make([]string, 0, len(ves))
		for _, fe := range ves {
			parts = append(parts, fieldName(fe)+" "+ruleText(fe))
		}
		return strings.Join(parts, "; ")
	}
	msg := err.Error()
	if msg == "EOF" {
		return "request body is required"
	}
	return msg
}

// fieldName 用 json 里的小驼峰名字
func fieldName(fe validator.FieldError) string {
	f := fe.Field()
	if f == "" {
		return "field"
	}
	if strings.HasSuffix(f, "ID") {
		return strings.ToLower(f[:1]) + f[1:len(f)-2] + "Id"
	}
	return strings.ToLower(f[:1]) + f[1:]
}

func ruleText(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "is not a valid address"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "datetime":
		return "must be formatted as YYYY-MM-DD"
	}
	return "is invalid"
}

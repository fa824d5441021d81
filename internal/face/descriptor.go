package face

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Descriptor 外部人脸提取器输出的定长特征向量
type Descriptor []float64

var ErrEmptyDescriptor = errors.New("face descriptor is empty")

// UnmarshalJSON 同时接受数组 [0.1, ...] 和 JSON 编码后的字符串 "[0.1, ...]"（表单提交时前端会 stringify）；
// null 和空字符串都视为未提供
func (d *Descriptor) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "null" {
		*d = nil
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*d = nil
			return nil
		}
		parsed, err := Parse(s)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	}
	var raw []float64
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("face descriptor must be a numeric array: %w", err)
	}
	*d = raw
	return nil
}

// Parse 解析 JSON 编码的数值数组
func Parse(s string) (Descriptor, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyDescriptor
	}
	var raw []float64
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("face descriptor must be a numeric array: %w", err)
	}
	return raw, nil
}

// Validate 非空、全部为有限数；dim > 0 时要求长度一致
func (d Descriptor) Validate(dim int) error {
	if len(d) == 0 {
		return ErrEmptyDescriptor
	}
	if dim > 0 && len(d) != dim {
		return fmt.Errorf("face descriptor must have %d values, got %d", dim, len(d))
	}
	for i, v := range d {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("face descriptor value %d is not a finite number", i)
		}
	}
	return nil
}

// Value 以 JSON 文本落库，postgres/mysql/sqlite 通用
func (d Descriptor) Value() (driver.Value, error) {
	if d == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]float64(d))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (d *Descriptor) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*d = nil
		return nil
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return fmt.Errorf("face descriptor: unsupported column type %T", src)
	}
	var raw []float64
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("face descriptor: %w", err)
	}
	if len(raw) == 0 {
		raw = nil
	}
	*d = raw
	return nil
}

package model

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/lazysoft/consultant/pkg/utils/json"
)

// scanBytes 将数据库返回值统一为 []byte。
func scanBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported column value %T", value)
	}
}

func jsonDataType(db *gorm.DB) string {
	switch db.Dialector.Name() {
	case "mysql":
		return "JSON"
	case "postgres":
		return "JSONB"
	default:
		return "TEXT"
	}
}

// LocalizedText 按语言存储的文本，例如 {"uk": "...", "en": "..."}。
type LocalizedText map[string]string

// Get 返回指定语言的文本，缺失时回退到英文。
func (t LocalizedText) Get(lang string) string {
	if s := strings.TrimSpace(t[lang]); s != "" {
		return s
	}
	return strings.TrimSpace(t["en"])
}

// First 按给定顺序返回第一个非空文本。
func (t LocalizedText) First(langs ...string) string {
	for _, l := range langs {
		if s := strings.TrimSpace(t[l]); s != "" {
			return s
		}
	}
	return ""
}

// Scan implements sql.Scanner.
func (t *LocalizedText) Scan(value any) error {
	b, err := scanBytes(value)
	if err != nil || len(b) == 0 {
		*t = LocalizedText{}
		return err
	}
	return json.Unmarshal(b, t)
}

// Value implements driver.Valuer.
func (t LocalizedText) Value() (driver.Value, error) {
	if t == nil {
		return "{}", nil
	}
	return json.MarshalString(t)
}

// GormDBDataType returns the column type per dialect.
func (LocalizedText) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return jsonDataType(db)
}

// StringSlice 以 JSON 数组存储的字符串列表（标签、关键词等）。
type StringSlice []string

// Scan implements sql.Scanner.
func (s *StringSlice) Scan(value any) error {
	b, err := scanBytes(value)
	if err != nil || len(b) == 0 {
		*s = StringSlice{}
		return err
	}
	return json.Unmarshal(b, s)
}

// Value implements driver.Valuer.
func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.MarshalString(s)
}

// GormDBDataType returns the column type per dialect.
func (StringSlice) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return jsonDataType(db)
}

// JSONMap 任意键值元数据。
type JSONMap map[string]any

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value any) error {
	b, err := scanBytes(value)
	if err != nil || len(b) == 0 {
		*m = JSONMap{}
		return err
	}
	return json.Unmarshal(b, m)
}

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.MarshalString(m)
}

// GormDBDataType returns the column type per dialect.
func (JSONMap) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return jsonDataType(db)
}

// String returns the value of key as a string, or "".
func (m JSONMap) String(key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Float returns the numeric value of key. JSON numbers decode as float64.
func (m JSONMap) Float(key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

// Vector 向量列。文本格式 "[0.1,0.2,...]" 同时是合法 JSON 和 pgvector 字面量。
type Vector []float32

// String renders the pgvector text literal.
func (v Vector) String() string {
	var sb strings.Builder
	sb.Grow(len(v) * 10)
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

// Scan implements sql.Scanner.
func (v *Vector) Scan(value any) error {
	b, err := scanBytes(value)
	if err != nil || len(b) == 0 {
		*v = nil
		return err
	}
	var out []float32
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("decode vector: %w", err)
	}
	*v = out
	return nil
}

// Value implements driver.Valuer.
func (v Vector) Value() (driver.Value, error) {
	return v.String(), nil
}

// GormDBDataType returns the column type per dialect. The pgvector backend
// creates its own table with a vector(D) column.
func (Vector) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "mysql" {
		return "LONGTEXT"
	}
	return "TEXT"
}

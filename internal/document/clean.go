package document

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/meigma/nastydata/core"
	"github.com/meigma/nastydata/internal/jsonl"
)

// dateLayouts are tried in order for string values of date fields.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
	time.RubyDate, // Twitter: "Wed Oct 10 20:19:24 +0000 2018"
}

// number is satisfied by json.Number and compatible decoder number types.
type number interface {
	Int64() (int64, error)
	Float64() (float64, error)
	String() string
}

// Clean converts doc to what is sent to Elasticsearch. Mapped values are
// coerced to their field type; unmapped values pass through unchanged. Nil
// values, empty objects and empty lists are dropped.
func Clean(k Kind, doc core.Document) (core.Document, error) {
	out, err := cleanObject(k.Mapping(), doc, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidDocument, err)
	}
	return out, nil
}

func cleanObject(props Properties, obj map[string]any, path string) (map[string]any, error) {
	out := make(map[string]any, len(obj))
	for key, value := range obj {
		f, mapped := props[key]
		if mapped {
			var err error
			if value, err = cleanValue(f, value, path+key); err != nil {
				return nil, err
			}
		}
		if isEmpty(value) {
			continue
		}
		out[key] = value
	}
	return out, nil
}

func cleanValue(f Field, value any, path string) (any, error) {
	if value == nil {
		return nil, nil
	}
	if list, ok := value.([]any); ok {
		out := make([]any, 0, len(list))
		for i, elem := range list {
			cleaned, err := cleanValue(f, elem, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out = append(out, cleaned)
		}
		return out, nil
	}

	if f.isObject() {
		if len(f.Properties) == 0 {
			return value, nil
		}
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %s: expected object, got %T", path, value)
		}
		return cleanObject(f.Properties, obj, path+".")
	}

	var (
		out any
		err error
	)
	switch f.coerce {
	case coerceDate:
		out, err = coerceDateValue(value)
	case coerceRedditDate:
		out, err = coerceRedditDateValue(value, false)
	case coerceRedditDateMillis:
		out, err = coerceRedditDateValue(value, true)
	case coerceJSONString:
		var data []byte
		data, err = jsonl.JSON.Marshal(value)
		out = string(data)
	case coerceInteger:
		out, err = coerceIntegerValue(value)
	case coerceFloat:
		out, err = coerceFloatValue(value)
	case coerceBoolean:
		out = coerceBooleanValue(value)
	default:
		out = value
	}
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", path, err)
	}
	return out, nil
}

func isEmpty(v any) bool {
	switch v := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(v) == 0
	case []any:
		return len(v) == 0
	default:
		return false
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func fromEpoch(f float64, millis bool) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("invalid timestamp %v", f)
	}
	if millis {
		ms, frac := math.Modf(f)
		return formatTime(time.UnixMilli(int64(ms)).Add(time.Duration(frac * float64(time.Millisecond)))), nil
	}
	sec, frac := math.Modf(f)
	return formatTime(time.Unix(int64(sec), int64(frac*1e9))), nil
}

func coerceRedditDateValue(value any, millis bool) (any, error) {
	switch v := value.(type) {
	case bool:
		if v {
			return "0001-01-02", nil
		}
		return "0001-01-01", nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", v, err)
		}
		return fromEpoch(float64(n), millis)
	case number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", v.String(), err)
		}
		return fromEpoch(f, millis)
	case float64:
		return fromEpoch(v, millis)
	case int:
		return fromEpoch(float64(v), millis)
	case int64:
		return fromEpoch(float64(v), millis)
	default:
		return coerceDateValue(value)
	}
}

func coerceDateValue(value any) (any, error) {
	switch v := value.(type) {
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return formatTime(t), nil
			}
		}
		return nil, fmt.Errorf("could not parse date from %q", v)
	case time.Time:
		return formatTime(v), nil
	case number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", v.String(), err)
		}
		return fromEpoch(f, true)
	case float64:
		return fromEpoch(v, true)
	case int:
		return fromEpoch(float64(v), true)
	case int64:
		return fromEpoch(float64(v), true)
	default:
		return nil, fmt.Errorf("could not parse date from %T", value)
	}
}

func coerceIntegerValue(value any) (any, error) {
	switch v := value.(type) {
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return v, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("parse integer %q: %w", v, err)
		}
		return int64(f), nil
	case float64:
		return int64(v), nil
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n, nil
		}
		return nil, fmt.Errorf("parse integer %q", v)
	default:
		return value, nil
	}
}

func coerceFloatValue(value any) (any, error) {
	switch v := value.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("parse float %q: %w", v, err)
		}
		return f, nil
	case bool:
		if v {
			return 1.0, nil
		}
		return 0.0, nil
	default:
		return value, nil
	}
}

func coerceBooleanValue(value any) any {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v != "" && v != "false"
	case json.Number:
		f, err := v.Float64()
		return err != nil || f != 0
	case float64:
		return v != 0
	default:
		return true
	}
}

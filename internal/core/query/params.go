package query

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Params are the decoded list/read options from the query string.
type Params struct {
	Where     map[string]interface{}
	Include   map[string]interface{}
	OrderBy   interface{}
	Select    map[string]interface{}
	Take      *int
	Skip      *int
	WithCount bool
}

// Getter reads one raw query parameter; the second return reports
// whether the key was present at all.
type Getter func(key string) (string, bool)

// Parse decodes the gateway's optional query parameters. JSON-shaped
// parameters decode silently: a malformed value behaves like an absent
// one.
func Parse(get Getter) Params {
	return Params{
		Where:     ParseJSONObject(get, "where"),
		Include:   ParseJSONObject(get, "include"),
		OrderBy:   ParseJSON(get, "orderBy"),
		Select:    ParseJSONObject(get, "select"),
		Take:      ParseInt(get, "take"),
		Skip:      ParseInt(get, "skip"),
		WithCount: ParseBool(get, "withCount"),
	}
}

// ParseJSON decodes a JSON-encoded parameter, yielding nil on absence,
// emptiness or a parse failure.
func ParseJSON(get Getter, key string) interface{} {
	raw, ok := get(key)
	if !ok || raw == "" {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil
	}
	return v
}

// ParseJSONObject is ParseJSON restricted to object-shaped values.
func ParseJSONObject(get Getter, key string) map[string]interface{} {
	v, _ := ParseJSON(get, key).(map[string]interface{})
	return v
}

// ParseInt decodes a numeric parameter, yielding nil when absent, empty
// or not a finite number.
func ParseInt(get Getter, key string) *int {
	raw, ok := get(key)
	if !ok || raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	n := int(f)
	return &n
}

// ParseBool reports whether the parameter equals "true", case-insensitively.
func ParseBool(get Getter, key string) bool {
	raw, _ := get(key)
	return strings.EqualFold(raw, "true")
}

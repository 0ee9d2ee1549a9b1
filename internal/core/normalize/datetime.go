package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// anchorLoc is the timezone bare date and time strings are anchored in.
var anchorLoc atomic.Pointer[time.Location]

func init() {
	anchorLoc.Store(time.UTC)
}

// SetLocation configures the anchor timezone. Called once at startup.
func SetLocation(loc *time.Location) {
	if loc != nil {
		anchorLoc.Store(loc)
	}
}

func anchor() *time.Location {
	return anchorLoc.Load()
}

var dateOnly = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// combineDateTime folds a bare date string and its optional companion
// time string into one absolute timestamp under the date key. An absent
// date key leaves the payload untouched; a blank date becomes null. An
// already-normalized (non-string) value is left alone, which keeps the
// rule idempotent.
func combineDateTime(data map[string]interface{}, dateKey, timeKey string) {
	v, ok := data[dateKey]
	if !ok {
		return
	}
	s, isString := v.(string)
	if !isString {
		delete(data, timeKey)
		return
	}
	if strings.TrimSpace(s) == "" {
		data[dateKey] = nil
		delete(data, timeKey)
		return
	}

	hour, minute := 0, 0
	if t, ok := data[timeKey].(string); ok {
		hour, minute = parseClock(t)
	}
	delete(data, timeKey)

	if d, err := parseDatePart(s); err == nil {
		data[dateKey] = time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, anchor())
	}
}

// coerceDate anchors a bare date string to the given hour of day.
func coerceDate(data map[string]interface{}, key string, hour int) {
	v, ok := data[key]
	if !ok {
		return
	}
	s, isString := v.(string)
	if !isString {
		return
	}
	if strings.TrimSpace(s) == "" {
		data[key] = nil
		return
	}
	if d, err := parseDatePart(s); err == nil {
		data[key] = time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, anchor())
	}
}

// referenceDate is the arbitrary day time-of-day values are anchored to,
// so they stay comparable to one another.
var referenceDate = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// coerceTime anchors a bare time-of-day string to the reference date.
func coerceTime(data map[string]interface{}, key string) {
	v, ok := data[key]
	if !ok {
		return
	}
	s, isString := v.(string)
	if !isString {
		return
	}
	if strings.TrimSpace(s) == "" {
		data[key] = nil
		return
	}
	hour, minute := parseClock(s)
	data[key] = time.Date(referenceDate.Year(), referenceDate.Month(), referenceDate.Day(),
		hour, minute, 0, 0, anchor())
}

func parseDatePart(s string) (time.Time, error) {
	if len(s) > 10 {
		s = s[:10]
	}
	return time.Parse("2006-01-02", s)
}

func parseClock(s string) (int, int) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 3)
	if len(parts) < 2 {
		return 0, 0
	}
	hour, err1 := strconv.Atoi(parts[0])
	minute, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0
	}
	return hour, minute
}

// CoerceDateStringsDeep rewrites every bare YYYY-MM-DD string found
// anywhere inside a filter object into a start-of-day timestamp. The
// financial-transaction list sends calendar dates in range filters.
func CoerceDateStringsDeep(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		if dateOnly.MatchString(val) {
			if d, err := time.Parse("2006-01-02", val); err == nil {
				return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, anchor())
			}
		}
		return val
	case map[string]interface{}:
		for k, item := range val {
			val[k] = CoerceDateStringsDeep(item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = CoerceDateStringsDeep(item)
		}
		return val
	}
	return v
}

package query

import (
	"testing"
)

func getterFor(values map[string]string) Getter {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestParse_JSONParameters(t *testing.T) {
	params := Parse(getterFor(map[string]string{
		"where":   `{"status":"active"}`,
		"include": `{"client":true}`,
		"orderBy": `{"createdAt":"desc"}`,
	}))

	if params.Where["status"] != "active" {
		t.Errorf("where not decoded: %v", params.Where)
	}
	if params.Include["client"] != true {
		t.Errorf("include not decoded: %v", params.Include)
	}
	order, ok := params.OrderBy.(map[string]interface{})
	if !ok || order["createdAt"] != "desc" {
		t.Errorf("orderBy not decoded: %v", params.OrderBy)
	}
}

func TestParse_MalformedJSONIsSilentlyDropped(t *testing.T) {
	params := Parse(getterFor(map[string]string{"where": `{"broken":`}))
	if params.Where != nil {
		t.Errorf("malformed where should decode to nil, got %v", params.Where)
	}
}

func TestParse_AbsentAndEmpty(t *testing.T) {
	params := Parse(getterFor(map[string]string{"where": ""}))
	if params.Where != nil || params.Take != nil || params.Skip != nil {
		t.Errorf("absent params should be nil: %+v", params)
	}
}

func TestParse_Numeric(t *testing.T) {
	params := Parse(getterFor(map[string]string{"take": "25", "skip": "50"}))
	if params.Take == nil || *params.Take != 25 {
		t.Errorf("take = %v, want 25", params.Take)
	}
	if params.Skip == nil || *params.Skip != 50 {
		t.Errorf("skip = %v, want 50", params.Skip)
	}
}

func TestParse_NonFiniteNumeric(t *testing.T) {
	for _, raw := range []string{"abc", "Inf", "NaN", ""} {
		params := Parse(getterFor(map[string]string{"take": raw}))
		if params.Take != nil {
			t.Errorf("take %q should be nil, got %v", raw, *params.Take)
		}
	}
}

func TestParse_WithCount(t *testing.T) {
	if !Parse(getterFor(map[string]string{"withCount": "TRUE"})).WithCount {
		t.Error("withCount should match case-insensitively")
	}
	if Parse(getterFor(map[string]string{"withCount": "1"})).WithCount {
		t.Error("withCount should only accept true")
	}
	if Parse(getterFor(nil)).WithCount {
		t.Error("absent withCount should be false")
	}
}

package normalize

import (
	"testing"

	"github.com/tripdesk/tripdesk/internal/core/catalog"
)

func TestStudioTemplate_FlattenedCreateIsWrapped(t *testing.T) {
	data := map[string]interface{}{
		"layers":    []interface{}{"bg", "text"},
		"logoUrl":   "https://cdn/logo.png",
		"blurLevel": float64(3),
	}
	Apply(catalog.StudioTemplate, Context{Op: OpCreate}, data)

	if data["name"] != "Untitled template" {
		t.Errorf("name = %v, want default", data["name"])
	}
	if data["type"] != "custom" {
		t.Errorf("type = %v, want custom", data["type"])
	}
	blob, _ := data["data"].(map[string]interface{})
	if blob == nil {
		t.Fatal("flattened payload should be wrapped under data")
	}
	if _, ok := blob["layers"]; !ok {
		t.Error("design fields should live inside the blob")
	}
	// Presentational fields readable from both levels.
	if data["logoUrl"] != "https://cdn/logo.png" || blob["logoUrl"] != "https://cdn/logo.png" {
		t.Errorf("logoUrl not mirrored: top=%v blob=%v", data["logoUrl"], blob["logoUrl"])
	}
	if data["blurLevel"] != float64(3) || blob["blurLevel"] != float64(3) {
		t.Error("blurLevel not mirrored")
	}
}

func TestStudioTemplate_StructuredCreateKeepsShape(t *testing.T) {
	data := map[string]interface{}{
		"name": "Summer promo",
		"data": map[string]interface{}{
			"colors": []interface{}{"#fff"},
		},
	}
	Apply(catalog.StudioTemplate, Context{Op: OpCreate}, data)

	if data["name"] != "Summer promo" {
		t.Error("explicit name must survive")
	}
	if data["type"] != "custom" {
		t.Errorf("missing type should default, got %v", data["type"])
	}
	// Nested presentational field promoted to the top level.
	if _, ok := data["colors"]; !ok {
		t.Error("colors should be promoted from the blob")
	}
	blob := data["data"].(map[string]interface{})
	if blob["name"] != "Summer promo" {
		t.Error("name should be mirrored into the blob")
	}
}

func TestStudioTemplate_PartialUpdateSkipsWrapping(t *testing.T) {
	data := map[string]interface{}{"isPublic": true}
	Apply(catalog.StudioTemplate, Context{Op: OpUpdate}, data)

	if _, ok := data["data"]; ok {
		t.Error("partial update without structural fields must not be wrapped")
	}
	if _, ok := data["name"]; ok {
		t.Error("partial update must not synthesize defaults")
	}
}

func TestStudioTemplate_UpdatePromotesNestedPresentational(t *testing.T) {
	data := map[string]interface{}{
		"data": map[string]interface{}{
			"icons":   []interface{}{"star"},
			"logoUrl": "https://cdn/new.png",
		},
		"logoUrl": "https://cdn/top.png",
	}
	Apply(catalog.StudioTemplate, Context{Op: OpUpdate}, data)

	if _, ok := data["icons"]; !ok {
		t.Error("icons should be promoted when top level lacks them")
	}
	if data["logoUrl"] != "https://cdn/top.png" {
		t.Errorf("top-level logoUrl must win, got %v", data["logoUrl"])
	}
}

func TestStudioTemplate_OwnershipBackfill(t *testing.T) {
	data := map[string]interface{}{"name": "T"}
	ctx := Context{Op: OpCreate, ActorID: "u1", AgencyID: "a1"}
	Apply(catalog.StudioTemplate, ctx, data)

	if data["agencyId"] != "a1" {
		t.Errorf("agencyId = %v, want a1", data["agencyId"])
	}
	if data["createdBy"] != "u1" {
		t.Errorf("createdBy = %v, want u1", data["createdBy"])
	}
}

func TestStudioTemplate_OwnershipFromQueryFallback(t *testing.T) {
	data := map[string]interface{}{"name": "T"}
	ctx := Context{
		Op: OpCreate,
		Query: func(key string) (string, bool) {
			switch key {
			case "agencyId":
				return "a9", true
			case "userId":
				return "u9", true
			}
			return "", false
		},
	}
	Apply(catalog.StudioTemplate, ctx, data)

	if data["agencyId"] != "a9" || data["createdBy"] != "u9" {
		t.Errorf("query fallback not applied: %v", data)
	}
}

func TestStudioTemplate_PayloadOwnershipWins(t *testing.T) {
	data := map[string]interface{}{"name": "T", "agencyId": "explicit"}
	Apply(catalog.StudioTemplate, Context{Op: OpCreate, AgencyID: "a1"}, data)

	if data["agencyId"] != "explicit" {
		t.Errorf("payload agencyId must win, got %v", data["agencyId"])
	}
}

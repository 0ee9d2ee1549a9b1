package normalize

// Structural metadata fields of a studio template row. Their presence is
// what classifies a payload as "structured" rather than a flattened
// design blob; a flattened payload that happens to use one of these
// names is misclassified, a known inherited ambiguity.
var studioStructuralFields = []string{"name", "type", "data"}

// Presentational fields mirrored between the top level and the data
// blob so both payload shapes stay readable.
var studioMirroredFields = []string{"images", "colors", "icons", "logoUrl", "blurLevel", "name"}

const (
	defaultTemplateName = "Untitled template"
	defaultTemplateType = "custom"
)

// reshapeStudioTemplate accepts both payload shapes the design tool
// sends: a flattened blob of arbitrary design data, or a structured row
// with explicit template metadata. Creates wrap flattened blobs and
// synthesize missing metadata; partial updates skip the wrapping and
// only promote nested presentational fields upward when the top-level
// equivalent is missing.
func reshapeStudioTemplate(ctx Context, data map[string]interface{}) {
	structured := false
	for _, f := range studioStructuralFields {
		if _, ok := data[f]; ok {
			structured = true
			break
		}
	}

	if !structured {
		if ctx.Op != OpCreate {
			promoteMirrored(data)
			return
		}
		blob := make(map[string]interface{}, len(data))
		for k, v := range data {
			blob[k] = v
			delete(data, k)
		}
		data["data"] = blob
	}

	if ctx.Op == OpCreate {
		if _, ok := data["name"]; !ok {
			data["name"] = defaultTemplateName
		}
		if _, ok := data["type"]; !ok {
			data["type"] = defaultTemplateType
		}
		if _, ok := data["data"]; !ok {
			data["data"] = map[string]interface{}{}
		}
	}

	blob, ok := data["data"].(map[string]interface{})
	if !ok {
		return
	}
	for _, f := range studioMirroredFields {
		if v, ok := data[f]; ok {
			blob[f] = v
		} else if v, ok := blob[f]; ok {
			data[f] = v
		}
	}
}

// promoteMirrored lifts nested presentational fields to the top level
// when the top-level equivalent is absent.
func promoteMirrored(data map[string]interface{}) {
	blob, ok := data["data"].(map[string]interface{})
	if !ok {
		return
	}
	for _, f := range studioMirroredFields {
		if _, ok := data[f]; ok {
			continue
		}
		if v, ok := blob[f]; ok {
			data[f] = v
		}
	}
}

// backfillStudioOwnership defaults the agency and creator identifiers
// from the request identity or query parameters when the payload does
// not carry them.
func backfillStudioOwnership(ctx Context, data map[string]interface{}) {
	if _, ok := data["agencyId"]; !ok {
		if ctx.AgencyID != "" {
			data["agencyId"] = ctx.AgencyID
		} else if v := ctx.queryValue("agencyId"); v != "" {
			data["agencyId"] = v
		}
	}
	if _, ok := data["createdBy"]; !ok {
		if ctx.ActorID != "" {
			data["createdBy"] = ctx.ActorID
		} else if v := ctx.queryValue("userId"); v != "" {
			data["createdBy"] = v
		}
	}
}

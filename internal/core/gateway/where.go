package gateway

import (
	"fmt"
	"strings"

	"github.com/tripdesk/tripdesk/internal/core/catalog"
	"github.com/tripdesk/tripdesk/internal/core/query"
)

// Source yields a candidate value for one primary-key field. Sources are
// tried in order; the first defined value wins, which makes the
// precedence an explicit artifact rather than a coalescing chain.
type Source func(field string) (interface{}, bool)

func pathSource(id string) Source {
	return func(string) (interface{}, bool) {
		if id == "" {
			return nil, false
		}
		return id, true
	}
}

func querySource(get query.Getter) Source {
	return func(field string) (interface{}, bool) {
		if get == nil {
			return nil, false
		}
		v, ok := get(field)
		if !ok || v == "" {
			return nil, false
		}
		return v, true
	}
}

func queryKeySource(get query.Getter, key string) Source {
	inner := querySource(get)
	return func(string) (interface{}, bool) {
		return inner(key)
	}
}

func bodyWhereSource(body map[string]interface{}) Source {
	return func(field string) (interface{}, bool) {
		where, ok := body["where"].(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := where[field]
		return v, ok
	}
}

func bodySource(body map[string]interface{}) Source {
	return func(field string) (interface{}, bool) {
		v, ok := body[field]
		return v, ok
	}
}

func bodyKeySource(body map[string]interface{}, key string) Source {
	return func(string) (interface{}, bool) {
		v, ok := body[key]
		return v, ok
	}
}

func resolveField(field string, sources []Source) (interface{}, bool) {
	for _, src := range sources {
		if v, ok := src(field); ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// buildWhere produces the filter locating exactly one record of the
// type, sourcing each primary-key field with the documented precedence.
func buildWhere(t catalog.EntityType, pathID string, get query.Getter, body map[string]interface{}) (map[string]interface{}, error) {
	if body == nil {
		body = map[string]interface{}{}
	}
	pk := catalog.PrimaryKey(t)

	if len(pk) == 1 {
		field := pk[0]
		sources := []Source{
			pathSource(pathID),
			querySource(get),
			queryKeySource(get, "id"),
			bodyWhereSource(body),
			bodySource(body),
			bodyKeySource(body, "id"),
		}
		v, ok := resolveField(field, sources)
		if !ok {
			return nil, BadRequest(fmt.Sprintf("missing required field %q for %s", field, t))
		}
		return map[string]interface{}{field: v}, nil
	}

	sources := []Source{
		querySource(get),
		bodyWhereSource(body),
		bodySource(body),
	}
	where := make(map[string]interface{}, len(pk))
	var missing []string
	for _, field := range pk {
		v, ok := resolveField(field, sources)
		if !ok {
			missing = append(missing, field)
			continue
		}
		where[field] = v
	}
	if len(missing) > 0 {
		return nil, BadRequest(fmt.Sprintf("missing required fields for %s: %s", t, strings.Join(missing, ", ")))
	}
	return where, nil
}

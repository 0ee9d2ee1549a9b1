package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tripdesk/tripdesk/internal/storage"
)

// auditedTaskFields are the task fields whose changes land on the
// timeline, in emission order.
var auditedTaskFields = []string{
	"title", "description", "startDate", "dueDate", "priority",
	"tags", "clientId", "proposalId", "assignees", "columnId",
}

// Lookups resolve raw identifiers in a diff to human-readable names.
type Lookups struct {
	Columns storage.Delegate
	Users   storage.Delegate
}

// TaskDiff compares the pre-update snapshot to the post-update record
// and produces one entry per changed audited field. Column and assignee
// identifiers are resolved to names; a failed lookup falls back to the
// raw id.
func TaskDiff(ctx context.Context, actorID string, before, after storage.Record, lookups Lookups) []Entry {
	taskID, _ := after["id"].(string)

	var entries []Entry
	for _, field := range auditedTaskFields {
		oldVal := stringify(before[field])
		newVal := stringify(after[field])
		if oldVal == newVal {
			continue
		}

		switch field {
		case "columnId":
			oldVal = resolveName(ctx, lookups.Columns, before[field], oldVal)
			newVal = resolveName(ctx, lookups.Columns, after[field], newVal)
		case "assignees":
			oldVal = resolveNames(ctx, lookups.Users, before[field], oldVal)
			newVal = resolveNames(ctx, lookups.Users, after[field], newVal)
		}

		entries = append(entries, Entry{
			TaskID:   taskID,
			ActorID:  actorID,
			Action:   "Updated",
			Field:    field,
			OldValue: oldVal,
			NewValue: newVal,
		})
	}
	return entries
}

func resolveName(ctx context.Context, delegate storage.Delegate, id interface{}, fallback string) string {
	s, ok := id.(string)
	if !ok || s == "" || delegate == nil {
		return fallback
	}
	rec, err := delegate.FindUnique(ctx, storage.Query{Where: map[string]interface{}{"id": s}})
	if err != nil || rec == nil {
		return fallback
	}
	if name, ok := rec["name"].(string); ok && name != "" {
		return name
	}
	return fallback
}

func resolveNames(ctx context.Context, delegate storage.Delegate, ids interface{}, fallback string) string {
	arr, ok := ids.([]interface{})
	if !ok {
		return fallback
	}
	names := make([]string, 0, len(arr))
	for _, id := range arr {
		names = append(names, resolveName(ctx, delegate, id, fmt.Sprint(id)))
	}
	return strings.Join(names, ", ")
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339)
	case float64:
		return fmt.Sprint(val)
	case bool:
		return fmt.Sprint(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

package gateway

import (
	"context"

	"github.com/tripdesk/tripdesk/internal/core/audit"
	"github.com/tripdesk/tripdesk/internal/core/catalog"
	"github.com/tripdesk/tripdesk/internal/storage"
)

func (s *Service) auditCreate(ctx context.Context, t catalog.EntityType, req Request, payload map[string]interface{}, created storage.Record) {
	switch t {
	case catalog.Task:
		s.recorder.Dispatch(audit.Entry{
			TaskID:  stringField(created, "id"),
			ActorID: req.ActorID,
			Action:  "Creation",
		})
	case catalog.TaskComment:
		s.recorder.Dispatch(audit.Entry{
			TaskID:  stringField(created, "taskId"),
			ActorID: req.ActorID,
			Action:  "Comment added",
			Details: stringField(created, "content"),
		})
	case catalog.TaskChecklist:
		s.recorder.Dispatch(audit.Entry{
			TaskID:  stringField(created, "taskId"),
			ActorID: req.ActorID,
			Action:  "Checklist created",
			Details: stringField(created, "title"),
		})
	case catalog.TaskChecklistItem:
		taskID := stringField(created, "taskId")
		if taskID == "" {
			taskID = stringField(payload, "taskId")
		}
		if taskID == "" {
			taskID = s.taskIDViaChecklist(ctx, stringField(created, "checklistId"))
		}
		s.recorder.Dispatch(audit.Entry{
			TaskID:  taskID,
			ActorID: req.ActorID,
			Action:  "Item added",
			Details: stringField(created, "content"),
		})
	case catalog.TaskFile:
		s.recorder.Dispatch(audit.Entry{
			TaskID:  stringField(created, "taskId"),
			ActorID: req.ActorID,
			Action:  "File attached",
			Details: stringField(created, "fileName"),
		})
	}
}

func (s *Service) auditUpdate(ctx context.Context, t catalog.EntityType, req Request, payload map[string]interface{}, before, after storage.Record) {
	switch t {
	case catalog.Task:
		if before == nil {
			return
		}
		entries := audit.TaskDiff(ctx, req.ActorID, before, after, audit.Lookups{
			Columns: s.delegates[catalog.TaskColumn],
			Users:   s.delegates[catalog.User],
		})
		if len(entries) > 0 {
			s.recorder.Dispatch(entries...)
		}
	case catalog.TaskChecklistItem:
		completed, ok := payload["completed"].(bool)
		if !ok {
			return
		}
		action := "Item reopened"
		if completed {
			action = "Item completed"
		}
		taskID := stringField(after, "taskId")
		if taskID == "" {
			taskID = s.taskIDViaChecklist(ctx, stringField(after, "checklistId"))
		}
		s.recorder.Dispatch(audit.Entry{
			TaskID:  taskID,
			ActorID: req.ActorID,
			Action:  action,
			Details: stringField(after, "content"),
		})
	}
}

func (s *Service) auditDelete(ctx context.Context, t catalog.EntityType, req Request, doomed storage.Record) {
	var action string
	details := stringField(doomed, "content")
	switch t {
	case catalog.TaskComment:
		action = "Comment removed"
	case catalog.TaskChecklist:
		action = "Checklist removed"
		details = stringField(doomed, "title")
	case catalog.TaskChecklistItem:
		action = "Item removed"
	case catalog.TaskFile:
		action = "File removed"
		details = stringField(doomed, "fileName")
	default:
		return
	}

	taskID := stringField(doomed, "taskId")
	if taskID == "" && t == catalog.TaskChecklistItem {
		taskID = s.taskIDViaChecklist(ctx, stringField(doomed, "checklistId"))
	}
	s.recorder.Dispatch(audit.Entry{
		TaskID:  taskID,
		ActorID: req.ActorID,
		Action:  action,
		Details: details,
	})
}

// taskIDViaChecklist resolves the owning task of a checklist item
// through its parent checklist.
func (s *Service) taskIDViaChecklist(ctx context.Context, checklistID string) string {
	if checklistID == "" {
		return ""
	}
	checklist, err := s.delegates[catalog.TaskChecklist].FindUnique(ctx, storage.Query{
		Where: map[string]interface{}{"id": checklistID},
	})
	if err != nil || checklist == nil {
		return ""
	}
	return stringField(checklist, "taskId")
}

func stringField(rec map[string]interface{}, key string) string {
	if rec == nil {
		return ""
	}
	s, _ := rec[key].(string)
	return s
}

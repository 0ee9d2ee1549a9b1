package audit

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/tripdesk/tripdesk/internal/storage"
)

// Entry is one immutable activity record on a task's timeline. Empty
// optional fields persist as null.
type Entry struct {
	TaskID   string
	ActorID  string
	Action   string
	Field    string
	OldValue string
	NewValue string
	Details  string
}

// Recorder appends task activity records. The trail is best-effort: a
// failed append is logged and never propagated, and the create/update
// paths dispatch without waiting.
type Recorder struct {
	activity storage.Delegate
	logger   *zap.Logger
	wg       sync.WaitGroup
}

func NewRecorder(activity storage.Delegate, logger *zap.Logger) *Recorder {
	return &Recorder{activity: activity, logger: logger}
}

// Record appends one entry, swallowing any persistence failure.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	data := map[string]interface{}{
		"taskId":   e.TaskID,
		"userId":   nullable(e.ActorID),
		"action":   e.Action,
		"field":    nullable(e.Field),
		"oldValue": nullable(e.OldValue),
		"newValue": nullable(e.NewValue),
		"details":  nullable(e.Details),
	}
	if _, err := r.activity.Create(ctx, storage.Mutation{Data: data}); err != nil {
		r.logger.Warn("task activity append failed",
			zap.String("taskId", e.TaskID),
			zap.String("action", e.Action),
			zap.Error(err),
		)
	}
}

// Dispatch appends on a detached goroutine. The caller does not wait:
// the response can be written before the record is durable.
func (r *Recorder) Dispatch(entries ...Entry) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("task activity dispatch panicked", zap.Any("panic", p))
			}
		}()
		for _, e := range entries {
			r.Record(context.Background(), e)
		}
	}()
}

// Wait blocks until every dispatched append has finished. Used at
// shutdown and by tests.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

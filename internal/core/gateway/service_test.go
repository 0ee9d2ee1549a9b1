package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/tripdesk/tripdesk/internal/core/audit"
	"github.com/tripdesk/tripdesk/internal/core/catalog"
	"github.com/tripdesk/tripdesk/internal/core/query"
	"github.com/tripdesk/tripdesk/internal/core/validation"
	"github.com/tripdesk/tripdesk/internal/storage"
	"github.com/tripdesk/tripdesk/internal/storage/memory"
)

type fixture struct {
	store    *memory.Store
	recorder *audit.Recorder
	service  *Service
}

func newFixture() *fixture {
	store := memory.NewStore()
	recorder := audit.NewRecorder(store.Delegate(catalog.TaskActivity), zap.NewNop())
	service := NewService(store.Delegates(), recorder, validation.NewValidator(), zap.NewNop())
	return &fixture{store: store, recorder: recorder, service: service}
}

func (f *fixture) activities(t *testing.T) []storage.Record {
	t.Helper()
	f.recorder.Wait()
	records, err := f.store.Delegate(catalog.TaskActivity).FindMany(context.Background(), storage.Query{})
	if err != nil {
		t.Fatalf("reading activities: %v", err)
	}
	return records
}

func emptyQuery(string) (string, bool) { return "", false }

func queryOf(values map[string]string) query.Getter {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestCreate_TaskDefaultsAndCreationActivity(t *testing.T) {
	f := newFixture()

	rec, err := f.service.Create(context.Background(), Request{
		RawType: "tasks",
		Query:   emptyQuery,
		Body:    map[string]interface{}{"title": "Call client"},
		ActorID: "u1",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if rec["id"] == "" || rec["id"] == nil {
		t.Error("created task should carry a generated id")
	}
	if _, ok := rec["startDate"].(time.Time); !ok {
		t.Errorf("startDate not defaulted: %v", rec["startDate"])
	}

	acts := f.activities(t)
	if len(acts) != 1 {
		t.Fatalf("got %d activities, want 1", len(acts))
	}
	if acts[0]["action"] != "Creation" || acts[0]["taskId"] != rec["id"] {
		t.Errorf("activity = %v", acts[0])
	}
	if acts[0]["userId"] != "u1" {
		t.Errorf("activity attribution = %v, want u1", acts[0]["userId"])
	}
}

func TestCreate_DataEnvelope(t *testing.T) {
	f := newFixture()

	rec, err := f.service.Create(context.Background(), Request{
		RawType: "clients",
		Query:   emptyQuery,
		Body: map[string]interface{}{
			"data": map[string]interface{}{"name": "Ana", "birthDate": "1990-07-15"},
		},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if rec["name"] != "Ana" {
		t.Errorf("envelope payload not used: %v", rec)
	}
	want := time.Date(1990, time.July, 15, 12, 0, 0, 0, time.UTC)
	if got, _ := rec["birthDate"].(time.Time); !got.Equal(want) {
		t.Errorf("birthDate = %v, want %v", rec["birthDate"], want)
	}
}

func TestCreate_RejectsNonObjectBody(t *testing.T) {
	f := newFixture()

	for _, body := range []interface{}{nil, []interface{}{"x"}, "text", float64(4)} {
		_, err := f.service.Create(context.Background(), Request{
			RawType: "client",
			Query:   emptyQuery,
			Body:    body,
		})
		ge, ok := AsError(err)
		if !ok || ge.Status != 400 {
			t.Errorf("body %v: expected 400, got %v", body, err)
		}
	}
}

func TestCreate_UnknownTypeEchoesToken(t *testing.T) {
	f := newFixture()

	_, err := f.service.Create(context.Background(), Request{
		RawType: "warp-drives",
		Query:   emptyQuery,
		Body:    map[string]interface{}{},
	})
	ge, ok := AsError(err)
	if !ok || ge.Status != 404 {
		t.Fatalf("expected 404, got %v", err)
	}
	if ge.Message != `unknown entity type: warp-drives` {
		t.Errorf("message = %q", ge.Message)
	}
}

func TestCreate_ValidationSchema(t *testing.T) {
	f := newFixture()

	_, err := f.service.Create(context.Background(), Request{
		RawType: "expedition-signups",
		Query:   emptyQuery,
		Body:    map[string]interface{}{"phone": "123"},
	})
	ge, ok := AsError(err)
	if !ok || ge.Status != 400 {
		t.Fatalf("expected validation 400, got %v", err)
	}
	if ge.Details == nil {
		t.Error("validation failure should carry details")
	}

	_, err = f.service.Create(context.Background(), Request{
		RawType: "expedition-signups",
		Query:   emptyQuery,
		Body:    map[string]interface{}{"name": "Ana", "email": "ana@x.co"},
	})
	if err != nil {
		t.Errorf("valid signup rejected: %v", err)
	}
}

func TestRead_NotFoundNamesType(t *testing.T) {
	f := newFixture()

	_, err := f.service.Read(context.Background(), Request{
		RawType: "clients",
		PathID:  "nope",
		Query:   emptyQuery,
	})
	ge, ok := AsError(err)
	if !ok || ge.Status != 404 {
		t.Fatalf("expected 404, got %v", err)
	}
	if ge.Message != "client not found" {
		t.Errorf("message = %q, want it to name the type", ge.Message)
	}
}

func TestList_WithCount(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for _, name := range []string{"Ana", "Bruno", "Carla"} {
		f.store.Delegate(catalog.Client).Create(ctx, storage.Mutation{
			Data: map[string]interface{}{"name": name, "status": "active"},
		})
	}

	result, err := f.service.List(ctx, Request{
		RawType: "clients",
		Query: queryOf(map[string]string{
			"where":     `{"status":"active"}`,
			"take":      "2",
			"withCount": "true",
		}),
	})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(result.Data) != 2 {
		t.Errorf("got %d records, want take=2", len(result.Data))
	}
	if result.Total == nil || *result.Total != 3 {
		t.Errorf("total = %v, want 3", result.Total)
	}
}

func TestList_FinancialDateCoercion(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	fin := f.store.Delegate(catalog.FinancialTransaction)
	fin.Create(ctx, storage.Mutation{Data: map[string]interface{}{
		"amount": float64(100),
		"date":   time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC),
	}})
	fin.Create(ctx, storage.Mutation{Data: map[string]interface{}{
		"amount": float64(50),
		"date":   time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC),
	}})

	result, err := f.service.List(ctx, Request{
		RawType: "financial-transactions",
		Query: queryOf(map[string]string{
			"where": `{"date":{"gte":"2024-02-01"}}`,
		}),
	})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(result.Data) != 1 {
		t.Fatalf("got %d records, want 1", len(result.Data))
	}
	if result.Data[0]["amount"] != float64(50) {
		t.Errorf("wrong record matched: %v", result.Data[0])
	}
}

func TestUpdate_TaskDiffEmitsPerChangedField(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	columns := f.store.Delegate(catalog.TaskColumn)
	columns.Create(ctx, storage.Mutation{Data: map[string]interface{}{"id": "c1", "name": "Backlog"}})
	columns.Create(ctx, storage.Mutation{Data: map[string]interface{}{"id": "c2", "name": "Done"}})

	created, err := f.service.Create(ctx, Request{
		RawType: "task",
		Query:   emptyQuery,
		Body:    map[string]interface{}{"title": "Call client", "columnId": "c1"},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	f.recorder.Wait()

	_, err = f.service.Update(ctx, Request{
		RawType: "task",
		PathID:  created["id"].(string),
		Query:   emptyQuery,
		Body:    map[string]interface{}{"title": "Call the client", "columnId": "c2"},
		ActorID: "u1",
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	acts := f.activities(t)
	var diffs []storage.Record
	for _, a := range acts {
		if a["action"] == "Updated" {
			diffs = append(diffs, a)
		}
	}
	if len(diffs) != 2 {
		t.Fatalf("got %d update activities, want 2: %v", len(diffs), diffs)
	}
	for _, d := range diffs {
		switch d["field"] {
		case "title":
			if d["oldValue"] != "Call client" || d["newValue"] != "Call the client" {
				t.Errorf("title diff = %v", d)
			}
		case "columnId":
			if d["oldValue"] != "Backlog" || d["newValue"] != "Done" {
				t.Errorf("column diff should carry names: %v", d)
			}
		default:
			t.Errorf("unexpected field %v", d["field"])
		}
	}
}

func TestUpdate_ChecklistItemCompletion(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.store.Delegate(catalog.TaskChecklist).Create(ctx, storage.Mutation{
		Data: map[string]interface{}{"id": "cl1", "taskId": "t1", "title": "Prep"},
	})
	f.store.Delegate(catalog.TaskChecklistItem).Create(ctx, storage.Mutation{
		Data: map[string]interface{}{"id": "i1", "checklistId": "cl1", "content": "Book hotel"},
	})

	_, err := f.service.Update(ctx, Request{
		RawType: "task-checklist-items",
		PathID:  "i1",
		Query:   emptyQuery,
		Body:    map[string]interface{}{"completed": true},
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	acts := f.activities(t)
	if len(acts) != 1 {
		t.Fatalf("got %d activities, want 1", len(acts))
	}
	if acts[0]["action"] != "Item completed" || acts[0]["taskId"] != "t1" {
		t.Errorf("activity = %v", acts[0])
	}
}

func TestUpdate_StripsUpdatedAtForTypesWithout(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.store.Delegate(catalog.ProposalTag).Create(ctx, storage.Mutation{
		Data: map[string]interface{}{"tagId": "tg1", "proposalId": "p1", "order": float64(1)},
	})

	rec, err := f.service.Update(ctx, Request{
		RawType: "proposal-tags",
		Query:   emptyQuery,
		Body: map[string]interface{}{
			"where": map[string]interface{}{"tagId": "tg1", "proposalId": "p1"},
			"data":  map[string]interface{}{"order": float64(2), "updatedAt": "2024-01-01"},
		},
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if rec["order"] != float64(2) {
		t.Errorf("order = %v", rec["order"])
	}
	if _, ok := rec["updatedAt"]; ok {
		t.Error("updatedAt should be stripped for proposalTag")
	}
}

func TestUpdate_AuditFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.service.Create(ctx, Request{
		RawType: "task",
		Query:   emptyQuery,
		Body:    map[string]interface{}{"title": "A"},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	f.recorder.Wait()

	f.store.Delegate(catalog.TaskActivity).CreateErr = errors.New("activity store down")
	updated, err := f.service.Update(ctx, Request{
		RawType: "task",
		PathID:  created["id"].(string),
		Query:   emptyQuery,
		Body:    map[string]interface{}{"title": "B"},
	})
	if err != nil {
		t.Fatalf("primary write must not fail with the audit store down: %v", err)
	}
	if updated["title"] != "B" {
		t.Errorf("title = %v", updated["title"])
	}
	f.recorder.Wait()
}

func TestDelete_CommentEmitsRemovalNote(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.store.Delegate(catalog.TaskComment).Create(ctx, storage.Mutation{
		Data: map[string]interface{}{"id": "cm1", "taskId": "t1", "content": "LGTM"},
	})

	if err := f.service.Delete(ctx, Request{
		RawType: "task-comments",
		PathID:  "cm1",
		Query:   emptyQuery,
		ActorID: "u1",
	}); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if rec, _ := f.store.Delegate(catalog.TaskComment).FindUnique(ctx, storage.Query{
		Where: map[string]interface{}{"id": "cm1"},
	}); rec != nil {
		t.Error("comment still present after delete")
	}

	acts := f.activities(t)
	if len(acts) != 1 {
		t.Fatalf("got %d activities, want 1", len(acts))
	}
	if acts[0]["action"] != "Comment removed" || acts[0]["taskId"] != "t1" {
		t.Errorf("activity = %v", acts[0])
	}
	if acts[0]["details"] != "LGTM" {
		t.Errorf("details = %v", acts[0]["details"])
	}
}

func TestDelete_MissingRecordIs404(t *testing.T) {
	f := newFixture()

	err := f.service.Delete(context.Background(), Request{
		RawType: "clients",
		PathID:  "nope",
		Query:   emptyQuery,
	})
	ge, ok := AsError(err)
	if !ok || ge.Status != 404 {
		t.Errorf("expected 404, got %v", err)
	}
}

// failingDelegate returns a fixed error from every operation.
type failingDelegate struct {
	err error
}

func (d *failingDelegate) FindMany(context.Context, storage.Query) ([]storage.Record, error) {
	return nil, d.err
}
func (d *failingDelegate) FindUnique(context.Context, storage.Query) (storage.Record, error) {
	return nil, d.err
}
func (d *failingDelegate) Count(context.Context, map[string]interface{}) (int, error) {
	return 0, d.err
}
func (d *failingDelegate) Create(context.Context, storage.Mutation) (storage.Record, error) {
	return nil, d.err
}
func (d *failingDelegate) Update(context.Context, storage.Mutation) (storage.Record, error) {
	return nil, d.err
}
func (d *failingDelegate) Delete(context.Context, map[string]interface{}) (storage.Record, error) {
	return nil, d.err
}

func TestProposalHistory_DiagnosticReshaping(t *testing.T) {
	store := memory.NewStore()
	delegates := store.Delegates()
	delegates[catalog.ProposalHistory] = &failingDelegate{err: &pq.Error{
		Code:    "23503",
		Message: "violates foreign key constraint",
		Detail:  "Key (proposalId) is not present",
	}}
	recorder := audit.NewRecorder(store.Delegate(catalog.TaskActivity), zap.NewNop())
	service := NewService(delegates, recorder, validation.NewValidator(), zap.NewNop())

	_, err := service.List(context.Background(), Request{
		RawType: "proposal-history",
		Query:   emptyQuery,
	})
	ge, ok := AsError(err)
	if !ok || ge.Status != 400 {
		t.Fatalf("expected diagnostic 400, got %v", err)
	}
	details, _ := ge.Details.(map[string]interface{})
	if details["code"] != "23503" {
		t.Errorf("details should carry the raw driver code: %v", ge.Details)
	}

	// Other types propagate delegate failures untouched.
	delegates[catalog.Client] = &failingDelegate{err: errors.New("boom")}
	_, err = service.List(context.Background(), Request{RawType: "clients", Query: emptyQuery})
	if _, ok := AsError(err); ok {
		t.Errorf("client delegate failure should propagate unshaped, got %v", err)
	}
}

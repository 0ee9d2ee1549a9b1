package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/tripdesk/tripdesk/internal/core/audit"
	"github.com/tripdesk/tripdesk/internal/core/catalog"
	"github.com/tripdesk/tripdesk/internal/core/normalize"
	"github.com/tripdesk/tripdesk/internal/core/query"
	"github.com/tripdesk/tripdesk/internal/core/validation"
	"github.com/tripdesk/tripdesk/internal/storage"
)

// Service orchestrates the five gateway operations: type resolution,
// parameter parsing, payload normalization, delegation and audit
// emission.
type Service struct {
	delegates map[catalog.EntityType]storage.Delegate
	recorder  *audit.Recorder
	validator *validation.Validator
	logger    *zap.Logger
}

func NewService(
	delegates map[catalog.EntityType]storage.Delegate,
	recorder *audit.Recorder,
	validator *validation.Validator,
	logger *zap.Logger,
) *Service {
	return &Service{
		delegates: delegates,
		recorder:  recorder,
		validator: validator,
		logger:    logger,
	}
}

// Request is one decoded gateway request. Body is the decoded JSON body
// (nil when absent); ActorID and AgencyID come from the identity
// middleware and are best-effort.
type Request struct {
	RawType  string
	PathID   string
	Query    query.Getter
	Body     interface{}
	ActorID  string
	AgencyID string
}

func (r Request) bodyObject() map[string]interface{} {
	obj, _ := r.Body.(map[string]interface{})
	return obj
}

// ListResult carries a page of records, plus the total when requested.
type ListResult struct {
	Data  []storage.Record
	Total *int
}

func (s *Service) resolve(req Request) (catalog.EntityType, storage.Delegate, error) {
	t, err := catalog.Resolve(req.RawType)
	if err != nil {
		return "", nil, NotFound(err.Error())
	}
	return t, s.delegates[t], nil
}

func (s *Service) List(ctx context.Context, req Request) (*ListResult, error) {
	t, delegate, err := s.resolve(req)
	if err != nil {
		return nil, err
	}
	params := query.Parse(req.Query)

	// Financial reports filter by bare calendar dates.
	if t == catalog.FinancialTransaction && params.Where != nil {
		normalize.CoerceDateStringsDeep(params.Where)
	}

	records, err := delegate.FindMany(ctx, storage.Query{
		Where:   params.Where,
		Include: params.Include,
		OrderBy: params.OrderBy,
		Select:  params.Select,
		Take:    params.Take,
		Skip:    params.Skip,
	})
	if err != nil {
		if t == catalog.ProposalHistory {
			return nil, s.historyDiagnostic("list", err)
		}
		return nil, err
	}
	if records == nil {
		records = []storage.Record{}
	}

	result := &ListResult{Data: records}
	if params.WithCount {
		total, err := delegate.Count(ctx, params.Where)
		if err != nil {
			return nil, err
		}
		result.Total = &total
	}
	return result, nil
}

func (s *Service) Read(ctx context.Context, req Request) (storage.Record, error) {
	t, delegate, err := s.resolve(req)
	if err != nil {
		return nil, err
	}
	params := query.Parse(req.Query)

	where, err := buildWhere(t, req.PathID, req.Query, req.bodyObject())
	if err != nil {
		return nil, err
	}

	rec, err := delegate.FindUnique(ctx, storage.Query{
		Where:   where,
		Include: params.Include,
		Select:  params.Select,
	})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, NotFound(fmt.Sprintf("%s not found", t))
	}
	return rec, nil
}

func (s *Service) Create(ctx context.Context, req Request) (storage.Record, error) {
	t, delegate, err := s.resolve(req)
	if err != nil {
		return nil, err
	}
	params := query.Parse(req.Query)

	payload, err := extractPayload(t, req.Body)
	if err != nil {
		return nil, err
	}

	normalize.Apply(t, normalizeContext(normalize.OpCreate, req), payload)

	if err := s.validator.ValidateCreate(t, payload); err != nil {
		if validation.IsValidationError(err) {
			return nil, BadRequestDetails("validation failed", validation.GetValidationErrors(err))
		}
		return nil, err
	}

	created, err := delegate.Create(ctx, storage.Mutation{
		Data:    payload,
		Include: params.Include,
		Select:  params.Select,
	})
	if err != nil {
		if t == catalog.ProposalHistory {
			return nil, s.historyDiagnostic("create", err)
		}
		return nil, err
	}

	s.auditCreate(ctx, t, req, payload, created)
	return created, nil
}

func (s *Service) Update(ctx context.Context, req Request) (storage.Record, error) {
	t, delegate, err := s.resolve(req)
	if err != nil {
		return nil, err
	}
	params := query.Parse(req.Query)

	where, err := buildWhere(t, req.PathID, req.Query, req.bodyObject())
	if err != nil {
		return nil, err
	}

	payload, err := extractPayload(t, req.Body)
	if err != nil {
		return nil, err
	}
	delete(payload, "where")

	normalize.Apply(t, normalizeContext(normalize.OpUpdate, req), payload)
	if !catalog.HasUpdatedAt(t) {
		delete(payload, "updatedAt")
	}

	// Snapshot for the field diff before the write clobbers it.
	var before storage.Record
	if t == catalog.Task {
		before, err = delegate.FindUnique(ctx, storage.Query{Where: where})
		if err != nil {
			return nil, err
		}
	}

	updated, err := delegate.Update(ctx, storage.Mutation{
		Where:   where,
		Data:    payload,
		Include: params.Include,
		Select:  params.Select,
	})
	if errors.Is(err, storage.ErrNoRecord) {
		return nil, NotFound(fmt.Sprintf("%s not found", t))
	}
	if err != nil {
		return nil, err
	}

	s.auditUpdate(ctx, t, req, payload, before, updated)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, req Request) error {
	t, delegate, err := s.resolve(req)
	if err != nil {
		return err
	}

	where, err := buildWhere(t, req.PathID, req.Query, req.bodyObject())
	if err != nil {
		return err
	}

	// Removal notes need the record's identifying fields, which are
	// only available before the delete.
	if catalog.Auditable(t) && t != catalog.Task {
		if doomed, err := delegate.FindUnique(ctx, storage.Query{Where: where}); err == nil && doomed != nil {
			s.auditDelete(ctx, t, req, doomed)
		}
	}

	_, err = delegate.Delete(ctx, where)
	if errors.Is(err, storage.ErrNoRecord) {
		return NotFound(fmt.Sprintf("%s not found", t))
	}
	return err
}

func normalizeContext(op normalize.Op, req Request) normalize.Context {
	return normalize.Context{
		Op:       op,
		ActorID:  req.ActorID,
		AgencyID: req.AgencyID,
		Query:    req.Query,
	}
}

// extractPayload pulls the write payload out of the decoded body. The
// studio design tool posts its payload at the top level; everything else
// nests it under "data" when the envelope form is used.
func extractPayload(t catalog.EntityType, body interface{}) (map[string]interface{}, error) {
	obj, ok := body.(map[string]interface{})
	if !ok {
		return nil, BadRequest("request body must be a JSON object")
	}
	if t == catalog.StudioTemplate {
		return obj, nil
	}
	if nested, ok := obj["data"]; ok {
		inner, ok := nested.(map[string]interface{})
		if !ok {
			return nil, BadRequest("request body must be a JSON object")
		}
		return inner, nil
	}
	return obj, nil
}

// historyDiagnostic reshapes a delegate failure on the proposal-history
// type into a diagnostic 400 carrying the raw driver error, instead of
// propagating. Kept deliberately narrow: this feature has a history of
// constraint failures that the shared boundary handler obscured.
func (s *Service) historyDiagnostic(op string, err error) error {
	s.logger.Error("proposal history delegate failure", zap.String("op", op), zap.Error(err))

	details := map[string]interface{}{"error": err.Error()}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		details["code"] = string(pqErr.Code)
		details["message"] = pqErr.Message
		details["detail"] = pqErr.Detail
	}
	return BadRequestDetails(fmt.Sprintf("proposal history %s failed", op), details)
}

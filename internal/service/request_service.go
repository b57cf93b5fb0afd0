package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/studyhelper/studyhelper-api/internal/dto"
	"github.com/studyhelper/studyhelper-api/internal/models"
	"github.com/studyhelper/studyhelper-api/internal/status"
	appErrors "github.com/studyhelper/studyhelper-api/pkg/errors"
)

type requestStore interface {
	Create(ctx context.Context, draft models.RequestDraft, actor models.Actor) (models.Request, error)
	List(ctx context.Context, filter models.RequestFilter) []models.Request
	FindByID(ctx context.Context, id int) (models.Request, error)
	SetStatus(ctx context.Context, id int, next models.Status) (models.Request, error)
}

// RequestService gates store operations by actor role and feeds both
// dashboards.
type RequestService struct {
	store     requestStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRequestService constructs the service.
func NewRequestService(store requestStore, validate *validator.Validate, logger *zap.Logger) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RequestService{store: store, validator: validate, logger: logger}
}

// Create submits a new request on behalf of the requester actor.
func (s *RequestService) Create(ctx context.Context, payload dto.CreateRequestRequest, actor *models.JWTClaims) (*models.Request, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleRequester {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only requesters can submit requests")
	}
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}

	created, err := s.store.Create(ctx, models.RequestDraft{
		Category:     payload.Category,
		Topic:        payload.Topic,
		MaterialKind: payload.MaterialKind,
		Difficulty:   payload.Difficulty,
		DueDate:      payload.DueDate,
		Notes:        payload.Notes,
	}, actor.Actor())
	if err != nil {
		return nil, err
	}

	s.logger.Info("request created",
		zap.Int("request_id", created.ID),
		zap.String("requester_id", created.RequesterID),
		zap.String("topic", created.Topic))
	return &created, nil
}

// List returns the requests visible to the actor: requesters see their
// own, the fulfiller sees everything with an optional status filter.
func (s *RequestService) List(ctx context.Context, statusFilter string, actor *models.JWTClaims) ([]models.Request, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if statusFilter != "" && statusFilter != status.FilterAll && !models.Status(statusFilter).Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status filter")
	}

	filter := models.RequestFilter{}
	if actor.Role == models.RoleRequester {
		filter.RequesterID = actor.ActorID
	}
	requests := s.store.List(ctx, filter)
	return status.FilterByStatus(requests, statusFilter), nil
}

// Get looks up one request, enforcing requester ownership.
func (s *RequestService) Get(ctx context.Context, id int, actor *models.JWTClaims) (*models.Request, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	req, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleRequester && req.RequesterID != actor.ActorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another requester")
	}
	return &req, nil
}

// SetStatus moves a request through its lifecycle. Fulfiller only.
func (s *RequestService) SetStatus(ctx context.Context, id int, payload dto.UpdateStatusRequest, actor *models.JWTClaims) (*models.Request, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleFulfiller {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the fulfiller can change request status")
	}
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	updated, err := s.store.SetStatus(ctx, id, models.Status(payload.Status))
	if err != nil {
		return nil, err
	}
	s.logger.Info("request status updated",
		zap.Int("request_id", id),
		zap.String("status", payload.Status))
	return &updated, nil
}

// Stats aggregates the actor's visible requests by status.
func (s *RequestService) Stats(ctx context.Context, actor *models.JWTClaims) (*models.StatusCounts, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.RequestFilter{}
	if actor.Role == models.RoleRequester {
		filter.RequesterID = actor.ActorID
	}
	counts := status.CountByStatus(s.store.List(ctx, filter))
	return &counts, nil
}

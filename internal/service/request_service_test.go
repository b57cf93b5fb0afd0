package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhelper/studyhelper-api/internal/dto"
	"github.com/studyhelper/studyhelper-api/internal/models"
	appErrors "github.com/studyhelper/studyhelper-api/pkg/errors"
)

type stubRequestStore struct {
	requests []models.Request
	nextID   int
}

func (s *stubRequestStore) Create(_ context.Context, draft models.RequestDraft, actor models.Actor) (models.Request, error) {
	s.nextID++
	req := models.Request{
		ID:             s.nextID,
		RequesterID:    actor.ID,
		RequesterName:  actor.DisplayName,
		RequesterEmail: actor.Email,
		Category:       draft.Category,
		Topic:          draft.Topic,
		MaterialKind:   draft.MaterialKind,
		Difficulty:     draft.Difficulty,
		DueDate:        draft.DueDate,
		Notes:          draft.Notes,
		Status:         models.StatusPending,
		CreatedAt:      time.Now().UTC(),
		Attachments:    []models.Attachment{},
	}
	s.requests = append(s.requests, req)
	return req, nil
}

func (s *stubRequestStore) List(_ context.Context, filter models.RequestFilter) []models.Request {
	out := make([]models.Request, 0, len(s.requests))
	for _, req := range s.requests {
		if filter.RequesterID != "" && req.RequesterID != filter.RequesterID {
			continue
		}
		out = append(out, req)
	}
	return out
}

func (s *stubRequestStore) FindByID(_ context.Context, id int) (models.Request, error) {
	for _, req := range s.requests {
		if req.ID == id {
			return req, nil
		}
	}
	return models.Request{}, appErrors.Clone(appErrors.ErrNotFound, "request not found")
}

func (s *stubRequestStore) SetStatus(_ context.Context, id int, next models.Status) (models.Request, error) {
	for i := range s.requests {
		if s.requests[i].ID == id {
			s.requests[i].Status = next
			return s.requests[i], nil
		}
	}
	return models.Request{}, appErrors.Clone(appErrors.ErrNotFound, "request not found")
}

func seededRequestStore() *stubRequestStore {
	store := &stubRequestStore{nextID: 3}
	store.requests = []models.Request{
		{ID: 1, RequesterID: "requester-1", Topic: "Quadratic Equations", Status: models.StatusCompleted},
		{ID: 2, RequesterID: "requester-1", Topic: "Cell Biology", Status: models.StatusInProgress},
		{ID: 3, RequesterID: "requester-2", Topic: "World War II", Status: models.StatusPending},
	}
	return store
}

func validDraft() dto.CreateRequestRequest {
	return dto.CreateRequestRequest{
		Category:     "Mathematics",
		Topic:        "Derivatives",
		MaterialKind: "Practice Problems",
		Difficulty:   "Intermediate",
		DueDate:      "2024-03-01",
		Notes:        "Focus on the chain rule",
	}
}

func TestCreateRequest(t *testing.T) {
	store := seededRequestStore()
	svc := NewRequestService(store, nil, nil)

	created, err := svc.Create(context.Background(), validDraft(), requesterClaims("requester-9"))
	require.NoError(t, err)
	assert.Equal(t, 4, created.ID)
	assert.Equal(t, "requester-9", created.RequesterID)
	assert.Equal(t, models.StatusPending, created.Status)
	assert.Empty(t, created.Attachments)
}

func TestCreateRequestRequesterOnly(t *testing.T) {
	svc := NewRequestService(seededRequestStore(), nil, nil)

	_, err := svc.Create(context.Background(), validDraft(), fulfillerClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), validDraft(), nil)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestCreateRequestValidation(t *testing.T) {
	svc := NewRequestService(seededRequestStore(), nil, nil)

	draft := validDraft()
	draft.Topic = ""
	_, err := svc.Create(context.Background(), draft, requesterClaims("requester-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestListScopedByRole(t *testing.T) {
	svc := NewRequestService(seededRequestStore(), nil, nil)
	ctx := context.Background()

	mine, err := svc.List(ctx, "", requesterClaims("requester-1"))
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, 1, mine[0].ID)
	assert.Equal(t, 2, mine[1].ID)

	all, err := svc.List(ctx, "", fulfillerClaims())
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestListStatusFilter(t *testing.T) {
	svc := NewRequestService(seededRequestStore(), nil, nil)
	ctx := context.Background()

	pending, err := svc.List(ctx, "pending", fulfillerClaims())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 3, pending[0].ID)

	all, err := svc.List(ctx, "all", fulfillerClaims())
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = svc.List(ctx, "archived", fulfillerClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGetEnforcesOwnership(t *testing.T) {
	svc := NewRequestService(seededRequestStore(), nil, nil)
	ctx := context.Background()

	req, err := svc.Get(ctx, 1, requesterClaims("requester-1"))
	require.NoError(t, err)
	assert.Equal(t, "Quadratic Equations", req.Topic)

	_, err = svc.Get(ctx, 3, requesterClaims("requester-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	req, err = svc.Get(ctx, 3, fulfillerClaims())
	require.NoError(t, err)
	assert.Equal(t, "World War II", req.Topic)
}

func TestSetStatusFulfillerOnly(t *testing.T) {
	store := seededRequestStore()
	svc := NewRequestService(store, nil, nil)
	ctx := context.Background()

	updated, err := svc.SetStatus(ctx, 3, dto.UpdateStatusRequest{Status: "in-progress"}, fulfillerClaims())
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, updated.Status)

	_, err = svc.SetStatus(ctx, 3, dto.UpdateStatusRequest{Status: "completed"}, requesterClaims("requester-2"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSetStatusRejectsUnknownValue(t *testing.T) {
	svc := NewRequestService(seededRequestStore(), nil, nil)

	_, err := svc.SetStatus(context.Background(), 3, dto.UpdateStatusRequest{Status: "archived"}, fulfillerClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStatsScopedByRole(t *testing.T) {
	svc := NewRequestService(seededRequestStore(), nil, nil)
	ctx := context.Background()

	counts, err := svc.Stats(ctx, fulfillerClaims())
	require.NoError(t, err)
	assert.Equal(t, models.StatusCounts{Pending: 1, InProgress: 1, Completed: 1, Total: 3}, *counts)

	counts, err = svc.Stats(ctx, requesterClaims("requester-1"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCounts{InProgress: 1, Completed: 1, Total: 2}, *counts)
}

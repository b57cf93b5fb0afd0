// Package store owns the request collection: the in-memory slice, the
// monotonic id allocator, and every mutation. All mutations persist the
// whole collection through the kv adapter before returning.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/studyhelper/studyhelper-api/internal/models"
	"github.com/studyhelper/studyhelper-api/internal/status"
	appErrors "github.com/studyhelper/studyhelper-api/pkg/errors"
	"github.com/studyhelper/studyhelper-api/pkg/kv"
)

// RequestStore is an explicitly scoped owner of the request collection.
// Created at session start, torn down at session end; no package-level
// state.
type RequestStore struct {
	mu     sync.Mutex
	kv     kv.Store
	key    string
	logger *zap.Logger

	requests []models.Request
	nextID   int
}

// New constructs a store bound to one kv key. Call Load before use.
func New(kvStore kv.Store, key string, logger *zap.Logger) *RequestStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if key == "" {
		key = "studyhelper_requests"
	}
	return &RequestStore{kv: kvStore, key: key, logger: logger, nextID: 1}
}

// Load rehydrates the collection from the kv adapter. An absent or
// unparsable value falls back to the seed dataset, which is persisted
// immediately. The id allocator is reset to max(ids)+1 on every load.
func (s *RequestStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.kv.Get(ctx, s.key)
	switch {
	case err == nil:
		var loaded []models.Request
		if jsonErr := json.Unmarshal([]byte(raw), &loaded); jsonErr != nil {
			s.logger.Warn("persisted requests are malformed, falling back to seed data", zap.Error(jsonErr))
			return s.seedLocked(ctx)
		}
		s.requests = normalize(loaded, s.logger)
		s.resetAllocatorLocked()
		return nil
	case errors.Is(err, kv.ErrKeyNotFound):
		return s.seedLocked(ctx)
	default:
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load requests")
	}
}

func (s *RequestStore) seedLocked(ctx context.Context) error {
	s.requests = SeedRequests()
	s.resetAllocatorLocked()
	if err := s.persistLocked(ctx); err != nil {
		return err
	}
	s.logger.Info("seed dataset initialised", zap.Int("requests", len(s.requests)))
	return nil
}

func (s *RequestStore) resetAllocatorLocked() {
	maxID := 0
	for _, req := range s.requests {
		if req.ID > maxID {
			maxID = req.ID
		}
	}
	s.nextID = maxID + 1
}

// normalize repairs records on the load path so an invalid status or a
// null attachment list cannot propagate. Unknown statuses are clamped to
// pending rather than dropping the record.
func normalize(requests []models.Request, logger *zap.Logger) []models.Request {
	for i := range requests {
		if !requests[i].Status.Valid() {
			logger.Warn("clamping unrecognized request status to pending",
				zap.Int("request_id", requests[i].ID),
				zap.String("status", string(requests[i].Status)))
			requests[i].Status = models.StatusPending
		}
		if requests[i].Attachments == nil {
			requests[i].Attachments = []models.Attachment{}
		}
	}
	return requests
}

// Create allocates the next id, stamps the requester snapshot from the
// actor, and persists before returning.
func (s *RequestStore) Create(ctx context.Context, draft models.RequestDraft, actor models.Actor) (models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

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
	s.nextID++
	s.requests = append(s.requests, req)

	if err := s.persistLocked(ctx); err != nil {
		return models.Request{}, err
	}
	return copyRequest(req), nil
}

// List returns the collection in creation order, optionally narrowed to
// one requester. Read-only.
func (s *RequestStore) List(ctx context.Context, filter models.RequestFilter) []models.Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]models.Request, 0, len(s.requests))
	for _, req := range s.requests {
		if filter.RequesterID != "" && req.RequesterID != filter.RequesterID {
			continue
		}
		result = append(result, copyRequest(req))
	}
	return result
}

// FindByID looks a request up by id.
func (s *RequestStore) FindByID(ctx context.Context, id int) (models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return models.Request{}, appErrors.Clone(appErrors.ErrNotFound, "request not found")
	}
	return copyRequest(s.requests[idx]), nil
}

// SetStatus mutates the matched request's status and persists. Setting the
// current status again is an accepted no-op.
func (s *RequestStore) SetStatus(ctx context.Context, id int, next models.Status) (models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !next.Valid() {
		return models.Request{}, appErrors.Clone(appErrors.ErrValidation, "invalid status value")
	}
	idx := s.indexLocked(id)
	if idx < 0 {
		return models.Request{}, appErrors.Clone(appErrors.ErrNotFound, "request not found")
	}
	if !status.AllowedTransition(s.requests[idx].Status, next) {
		return models.Request{}, appErrors.Clone(appErrors.ErrValidation, "status transition not allowed")
	}

	s.requests[idx].Status = next
	if err := s.persistLocked(ctx); err != nil {
		return models.Request{}, err
	}
	return copyRequest(s.requests[idx]), nil
}

// AppendAttachments appends to the target request's attachment sequence,
// preserving prior entries, and persists.
func (s *RequestStore) AppendAttachments(ctx context.Context, id int, attachments []models.Attachment) (models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return models.Request{}, appErrors.Clone(appErrors.ErrNotFound, "request not found")
	}

	s.requests[idx].Attachments = append(s.requests[idx].Attachments, attachments...)
	if err := s.persistLocked(ctx); err != nil {
		return models.Request{}, err
	}
	return copyRequest(s.requests[idx]), nil
}

func (s *RequestStore) indexLocked(id int) int {
	for i := range s.requests {
		if s.requests[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked serialises the whole collection. On write failure the
// in-memory state stays authoritative and the failure is surfaced.
func (s *RequestStore) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(s.requests)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to encode requests")
	}
	if err := s.kv.Set(ctx, s.key, string(data)); err != nil {
		s.logger.Error("failed to persist requests, in-memory state remains authoritative", zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to persist requests")
	}
	return nil
}

func copyRequest(req models.Request) models.Request {
	out := req
	out.Attachments = make([]models.Attachment, len(req.Attachments))
	copy(out.Attachments, req.Attachments)
	return out
}

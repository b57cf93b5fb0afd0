package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhelper/studyhelper-api/internal/models"
	appErrors "github.com/studyhelper/studyhelper-api/pkg/errors"
	"github.com/studyhelper/studyhelper-api/pkg/kv"
)

type failingKV struct {
	*kv.Memory
	failSet bool
}

func (f *failingKV) Set(ctx context.Context, key, value string) error {
	if f.failSet {
		return fmt.Errorf("disk full")
	}
	return f.Memory.Set(ctx, key, value)
}

func newLoadedStore(t *testing.T) (*RequestStore, *kv.Memory) {
	t.Helper()
	mem := kv.NewMemory()
	s := New(mem, "studyhelper_requests", nil)
	require.NoError(t, s.Load(context.Background()))
	return s, mem
}

func requesterActor(id string) models.Actor {
	return models.Actor{
		ID:          id,
		Email:       id + "@example.com",
		DisplayName: "Requester " + id,
		Role:        models.RoleRequester,
	}
}

func TestLoadSeedsWhenAbsent(t *testing.T) {
	s, mem := newLoadedStore(t)

	requests := s.List(context.Background(), models.RequestFilter{})
	require.Len(t, requests, 3)
	assert.Equal(t, models.StatusCompleted, requests[0].Status)
	assert.Equal(t, models.StatusInProgress, requests[1].Status)
	assert.Equal(t, models.StatusPending, requests[2].Status)

	// Seed is persisted immediately.
	raw, err := mem.Get(context.Background(), "studyhelper_requests")
	require.NoError(t, err)
	var persisted []models.Request
	require.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	assert.Len(t, persisted, 3)
}

func TestLoadSeedsWhenMalformed(t *testing.T) {
	mem := kv.NewMemory()
	require.NoError(t, mem.Set(context.Background(), "studyhelper_requests", "{not json"))

	s := New(mem, "studyhelper_requests", nil)
	require.NoError(t, s.Load(context.Background()))
	assert.Len(t, s.List(context.Background(), models.RequestFilter{}), 3)
}

func TestLoadClampsUnrecognizedStatus(t *testing.T) {
	mem := kv.NewMemory()
	stored := []models.Request{
		{ID: 5, RequesterID: "requester-1", Status: models.Status("archived")},
		{ID: 6, RequesterID: "requester-1", Status: models.StatusCompleted},
	}
	data, err := json.Marshal(stored)
	require.NoError(t, err)
	require.NoError(t, mem.Set(context.Background(), "studyhelper_requests", string(data)))

	s := New(mem, "studyhelper_requests", nil)
	require.NoError(t, s.Load(context.Background()))

	requests := s.List(context.Background(), models.RequestFilter{})
	require.Len(t, requests, 2)
	assert.Equal(t, models.StatusPending, requests[0].Status)
	assert.Equal(t, models.StatusCompleted, requests[1].Status)
	assert.NotNil(t, requests[0].Attachments)
}

func TestCreateAssignsStrictlyIncreasingIDs(t *testing.T) {
	s, _ := newLoadedStore(t)
	ctx := context.Background()

	first, err := s.Create(ctx, models.RequestDraft{Topic: "Fractions"}, requesterActor("requester-9"))
	require.NoError(t, err)
	second, err := s.Create(ctx, models.RequestDraft{Topic: "Decimals"}, requesterActor("requester-9"))
	require.NoError(t, err)

	// Seed maximum is 3, so allocation continues from 4.
	assert.Equal(t, 4, first.ID)
	assert.Equal(t, 5, second.ID)
	assert.Equal(t, models.StatusPending, first.Status)
	assert.Equal(t, "requester-9", first.RequesterID)
	assert.Equal(t, "Requester requester-9", first.RequesterName)
	assert.Empty(t, first.Attachments)
	assert.False(t, first.CreatedAt.IsZero())
}

func TestAllocatorSurvivesReloadWithArbitraryMaxID(t *testing.T) {
	mem := kv.NewMemory()
	stored := []models.Request{
		{ID: 41, RequesterID: "requester-1", Status: models.StatusPending},
		{ID: 7, RequesterID: "requester-2", Status: models.StatusCompleted},
	}
	data, err := json.Marshal(stored)
	require.NoError(t, err)
	require.NoError(t, mem.Set(context.Background(), "studyhelper_requests", string(data)))

	s := New(mem, "studyhelper_requests", nil)
	require.NoError(t, s.Load(context.Background()))

	created, err := s.Create(context.Background(), models.RequestDraft{}, requesterActor("requester-3"))
	require.NoError(t, err)
	assert.Equal(t, 42, created.ID)
}

func TestListFiltersByRequesterInCreationOrder(t *testing.T) {
	s, _ := newLoadedStore(t)
	ctx := context.Background()

	// Interleave creates across two actors.
	_, err := s.Create(ctx, models.RequestDraft{Topic: "A"}, requesterActor("requester-1"))
	require.NoError(t, err)
	_, err = s.Create(ctx, models.RequestDraft{Topic: "B"}, requesterActor("requester-2"))
	require.NoError(t, err)
	_, err = s.Create(ctx, models.RequestDraft{Topic: "C"}, requesterActor("requester-1"))
	require.NoError(t, err)

	mine := s.List(ctx, models.RequestFilter{RequesterID: "requester-1"})
	require.Len(t, mine, 4) // two from the seed plus A and C
	for _, req := range mine {
		assert.Equal(t, "requester-1", req.RequesterID)
	}
	assert.Equal(t, "A", mine[2].Topic)
	assert.Equal(t, "C", mine[3].Topic)
	assert.Less(t, mine[2].ID, mine[3].ID)
}

func TestSetStatusIsIdempotent(t *testing.T) {
	s, _ := newLoadedStore(t)
	ctx := context.Background()

	first, err := s.SetStatus(ctx, 3, models.StatusInProgress)
	require.NoError(t, err)
	second, err := s.SetStatus(ctx, 3, models.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	found, err := s.FindByID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, found.Status)
}

func TestSetStatusRejectsInvalidValue(t *testing.T) {
	s, _ := newLoadedStore(t)

	_, err := s.SetStatus(context.Background(), 3, models.Status("cancelled"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSetStatusNotFound(t *testing.T) {
	s, _ := newLoadedStore(t)

	_, err := s.SetStatus(context.Background(), 999, models.StatusCompleted)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAppendAttachmentsPreservesPriorEntries(t *testing.T) {
	s, _ := newLoadedStore(t)
	ctx := context.Background()

	added := []models.Attachment{{Name: "notes.pdf", SizeLabel: "1.43 MB", MimeType: "application/pdf", ContentRef: "requests/1/notes.pdf"}}
	updated, err := s.AppendAttachments(ctx, 1, added)
	require.NoError(t, err)
	require.Len(t, updated.Attachments, 2)
	assert.Equal(t, "Quadratic_Equations_Quiz.pdf", updated.Attachments[0].Name)
	assert.Equal(t, "notes.pdf", updated.Attachments[1].Name)
}

func TestAppendAttachmentsNotFound(t *testing.T) {
	s, _ := newLoadedStore(t)

	_, err := s.AppendAttachments(context.Background(), 404, []models.Attachment{{Name: "x.pdf"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestPersistenceFailureIsSurfaced(t *testing.T) {
	mem := &failingKV{Memory: kv.NewMemory()}
	s := New(mem, "studyhelper_requests", nil)
	require.NoError(t, s.Load(context.Background()))

	mem.failSet = true
	_, err := s.Create(context.Background(), models.RequestDraft{Topic: "X"}, requesterActor("requester-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPersistence.Code, appErrors.FromError(err).Code)

	// The in-memory collection keeps the mutation.
	assert.Len(t, s.List(context.Background(), models.RequestFilter{}), 4)
}

func TestPersistedCollectionRoundTrips(t *testing.T) {
	s, mem := newLoadedStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, models.RequestDraft{
		Category:     "science",
		Topic:        "Optics",
		MaterialKind: "quiz",
		Difficulty:   "advanced",
		DueDate:      "2024-02-01",
		Notes:        "Lenses and mirrors.",
	}, requesterActor("requester-7"))
	require.NoError(t, err)
	_, err = s.AppendAttachments(ctx, 4, []models.Attachment{{Name: "optics.pdf", SizeLabel: "12 KB", MimeType: "application/pdf", ContentRef: "requests/4/optics.pdf"}})
	require.NoError(t, err)

	before := s.List(ctx, models.RequestFilter{})

	reloaded := New(mem, "studyhelper_requests", nil)
	require.NoError(t, reloaded.Load(ctx))
	after := reloaded.List(ctx, models.RequestFilter{})

	require.Equal(t, before, after)
}

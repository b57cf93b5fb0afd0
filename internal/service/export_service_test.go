package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhelper/studyhelper-api/internal/models"
	appErrors "github.com/studyhelper/studyhelper-api/pkg/errors"
)

type stubExportStore struct {
	requests []models.Request
}

func (s *stubExportStore) List(_ context.Context, _ models.RequestFilter) []models.Request {
	return s.requests
}

func fulfillerClaims() *models.JWTClaims {
	return &models.JWTClaims{ActorID: "fulfiller-1", Role: models.RoleFulfiller, Email: "owner@studyhelper.com", DisplayName: "Owner"}
}

func requesterClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{ActorID: id, Role: models.RoleRequester, Email: id + "@example.com", DisplayName: "Requester"}
}

func TestExportCSV(t *testing.T) {
	store := &stubExportStore{requests: []models.Request{
		{
			ID:            1,
			RequesterName: "John Doe",
			Category:      "Mathematics",
			Topic:         "Quadratic Equations",
			MaterialKind:  "Practice Problems",
			Difficulty:    "Intermediate",
			DueDate:       "2024-02-01",
			Status:        models.StatusCompleted,
			CreatedAt:     time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC),
			Attachments:   []models.Attachment{{Name: "worksheet.pdf"}},
		},
		{
			ID:            2,
			RequesterName: "Jane Smith",
			Category:      "Physics",
			Topic:         "Newtonian Mechanics",
			MaterialKind:  "Study Guide",
			Difficulty:    "Advanced",
			DueDate:       "2024-02-15",
			Status:        models.StatusPending,
			CreatedAt:     time.Date(2024, 1, 12, 9, 0, 0, 0, time.UTC),
		},
	}}
	svc := NewExportService(store, nil)

	file, err := svc.Export(context.Background(), "csv", fulfillerClaims())
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Contains(t, file.Filename, ".csv")

	records, err := csv.NewReader(bytes.NewReader(file.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, exportHeaders, records[0])
	assert.Equal(t, []string{"1", "John Doe", "Mathematics", "Quadratic Equations", "Practice Problems", "Intermediate", "2024-02-01", "completed", "1", "2024-01-10"}, records[1])
	assert.Equal(t, "pending", records[2][7])
	assert.Equal(t, "0", records[2][8])
}

func TestExportPDF(t *testing.T) {
	store := &stubExportStore{requests: []models.Request{
		{ID: 1, RequesterName: "John Doe", Topic: "Algebra", Status: models.StatusPending, CreatedAt: time.Now().UTC()},
	}}
	svc := NewExportService(store, nil)

	file, err := svc.Export(context.Background(), "pdf", fulfillerClaims())
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Data, []byte("%PDF")))
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	svc := NewExportService(&stubExportStore{}, nil)

	_, err := svc.Export(context.Background(), "xlsx", fulfillerClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportFulfillerOnly(t *testing.T) {
	svc := NewExportService(&stubExportStore{}, nil)

	_, err := svc.Export(context.Background(), "csv", requesterClaims("requester-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Export(context.Background(), "csv", nil)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

package status

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/studyhelper/studyhelper-api/internal/models"
)

func sampleRequests() []models.Request {
	return []models.Request{
		{ID: 1, Status: models.StatusCompleted},
		{ID: 2, Status: models.StatusInProgress},
		{ID: 3, Status: models.StatusPending},
		{ID: 4, Status: models.StatusPending},
	}
}

func TestCountByStatus(t *testing.T) {
	counts := CountByStatus(sampleRequests())
	assert.Equal(t, 2, counts.Pending)
	assert.Equal(t, 1, counts.InProgress)
	assert.Equal(t, 1, counts.Completed)
	assert.Equal(t, 4, counts.Total)
}

func TestCountByStatusEmpty(t *testing.T) {
	counts := CountByStatus(nil)
	assert.Equal(t, models.StatusCounts{}, counts)
}

func TestAllowedTransition(t *testing.T) {
	for _, from := range models.AllStatuses {
		for _, to := range models.AllStatuses {
			assert.True(t, AllowedTransition(from, to), "%s -> %s", from, to)
		}
	}

	assert.False(t, AllowedTransition(models.StatusPending, models.Status("archived")))
	assert.False(t, AllowedTransition(models.Status(""), models.StatusCompleted))
}

func TestFilterByStatus(t *testing.T) {
	requests := sampleRequests()

	pending := FilterByStatus(requests, "pending")
	assert.Len(t, pending, 2)
	assert.Equal(t, 3, pending[0].ID)
	assert.Equal(t, 4, pending[1].ID)

	all := FilterByStatus(requests, FilterAll)
	assert.Len(t, all, 4)

	assert.Empty(t, FilterByStatus(requests[:2], "pending"))
}

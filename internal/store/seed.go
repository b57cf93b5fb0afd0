package store

import (
	"time"

	"github.com/studyhelper/studyhelper-api/internal/models"
)

// SeedRequests returns the deterministic fallback dataset used when no
// valid persisted collection exists: three requests spanning all three
// statuses.
func SeedRequests() []models.Request {
	return []models.Request{
		{
			ID:             1,
			RequesterID:    "requester-1",
			RequesterName:  "John Doe",
			RequesterEmail: "john@example.com",
			Category:       "mathematics",
			Topic:          "Quadratic Equations",
			MaterialKind:   "quiz",
			Difficulty:     "intermediate",
			DueDate:        "2024-01-15",
			Notes:          "Focus on solving by factoring and completing the square methods.",
			Status:         models.StatusCompleted,
			CreatedAt:      time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
			Attachments: []models.Attachment{
				{
					Name:       "Quadratic_Equations_Quiz.pdf",
					SizeLabel:  "245 KB",
					MimeType:   "application/pdf",
					ContentRef: "seed/quadratic_equations_quiz.pdf",
				},
			},
		},
		{
			ID:             2,
			RequesterID:    "requester-1",
			RequesterName:  "John Doe",
			RequesterEmail: "john@example.com",
			Category:       "science",
			Topic:          "Cell Biology",
			MaterialKind:   "worksheet",
			Difficulty:     "beginner",
			DueDate:        "2024-01-20",
			Notes:          "Include diagrams of plant and animal cells with labeling exercises.",
			Status:         models.StatusInProgress,
			CreatedAt:      time.Date(2024, 1, 5, 14, 30, 0, 0, time.UTC),
			Attachments:    []models.Attachment{},
		},
		{
			ID:             3,
			RequesterID:    "requester-2",
			RequesterName:  "Jane Smith",
			RequesterEmail: "jane@example.com",
			Category:       "english",
			Topic:          "Shakespeare Analysis",
			MaterialKind:   "study-guide",
			Difficulty:     "advanced",
			DueDate:        "2024-01-25",
			Notes:          "Focus on themes in Hamlet and character development analysis.",
			Status:         models.StatusPending,
			CreatedAt:      time.Date(2024, 1, 8, 9, 15, 0, 0, time.UTC),
			Attachments:    []models.Attachment{},
		},
	}
}

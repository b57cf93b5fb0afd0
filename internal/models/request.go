package models

import "time"

// Status is the request lifecycle state. Only these three values are ever
// persisted.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// AllStatuses lists the closed status enumeration in lifecycle order.
var AllStatuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

// Valid reports whether the status is one of the enum values.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Attachment is one committed deliverable on a request. Immutable once
// created; the collection on a request is append-only.
type Attachment struct {
	Name       string `json:"name"`
	SizeLabel  string `json:"size"`
	MimeType   string `json:"type"`
	ContentRef string `json:"contentRef"`
}

// Request is the central entity exchanged between requester and fulfiller.
type Request struct {
	ID             int          `json:"id"`
	RequesterID    string       `json:"requesterId"`
	RequesterName  string       `json:"requesterName"`
	RequesterEmail string       `json:"requesterEmail"`
	Category       string       `json:"category"`
	Topic          string       `json:"topic"`
	MaterialKind   string       `json:"materialKind"`
	Difficulty     string       `json:"difficulty"`
	DueDate        string       `json:"dueDate"`
	Notes          string       `json:"notes,omitempty"`
	Status         Status       `json:"status"`
	CreatedAt      time.Time    `json:"createdAt"`
	Attachments    []Attachment `json:"attachments"`
}

// RequestDraft carries the requester-supplied fields of a new request.
type RequestDraft struct {
	Category     string
	Topic        string
	MaterialKind string
	Difficulty   string
	DueDate      string
	Notes        string
}

// RequestFilter narrows listing queries.
type RequestFilter struct {
	RequesterID string
	Status      string
}

// StatusCounts aggregates the collection by lifecycle state.
type StatusCounts struct {
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
	Total      int `json:"total"`
}

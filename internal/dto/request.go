package dto

// CreateRequestRequest is the payload for submitting a new material
// request.
type CreateRequestRequest struct {
	Category     string `json:"category" validate:"required"`
	Topic        string `json:"topic" validate:"required"`
	MaterialKind string `json:"materialKind" validate:"required"`
	Difficulty   string `json:"difficulty" validate:"required"`
	DueDate      string `json:"dueDate" validate:"required"`
	Notes        string `json:"notes"`
}

// UpdateStatusRequest moves a request to a new lifecycle state.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending in-progress completed"`
}

package dto

// BeginSessionRequest opens a staging session against one target request.
type BeginSessionRequest struct {
	RequestID int `json:"requestId" validate:"required,gt=0"`
}

// SignedDownload returns a time-limited URL for attachment content.
type SignedDownload struct {
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expiresAt"`
}

// BookingInfo points the client at the external scheduling page with
// actor prefill, or at the fallback link when no widget is configured.
type BookingInfo struct {
	URL     string         `json:"url"`
	Prefill BookingPrefill `json:"prefill"`
}

// BookingPrefill carries the fields handed to the scheduling widget.
type BookingPrefill struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

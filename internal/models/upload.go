package models

import (
	"fmt"
	"math"
)

// Rejection reasons reported by the staging step.
const (
	RejectUnsupportedType = "unsupported-type"
	RejectTooLarge        = "too-large"
)

// RawFile is a user-selected file handed to the staging step. Content is
// held in memory until the session is committed or discarded.
type RawFile struct {
	Name      string
	SizeBytes int64
	MimeType  string
	Content   []byte
}

// StagedFile is a validated file waiting in the session for commit. Never
// persisted.
type StagedFile struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"sizeBytes"`
	MimeType  string `json:"mimeType"`
	Content   []byte `json:"-"`
}

// RejectedFile reports one staging rejection.
type RejectedFile struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// StageResult carries the per-file outcome of one staging batch.
type StageResult struct {
	Accepted []StagedFile   `json:"accepted"`
	Rejected []RejectedFile `json:"rejected"`
}

// Commit states reported by the upload progress snapshot.
const (
	CommitStateIdle       = "idle"
	CommitStateStaging    = "staging"
	CommitStateCommitting = "committing"
	CommitStateDone       = "done"
	CommitStateFailed     = "failed"
)

// UploadProgress is a point-in-time view of the active session.
type UploadProgress struct {
	RequestID   int          `json:"requestId"`
	State       string       `json:"state"`
	Progress    int          `json:"progress"`
	Staged      []StagedFile `json:"staged"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Error       string       `json:"error,omitempty"`
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatSizeLabel renders a byte count the way attachments display it:
// "0 Bytes" for zero, otherwise the value scaled to the largest fitting
// unit and rounded to two decimals.
func FormatSizeLabel(bytes int64) string {
	if bytes == 0 {
		return "0 Bytes"
	}
	idx := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if idx < 0 {
		idx = 0
	}
	if idx > len(sizeUnits)-1 {
		idx = len(sizeUnits) - 1
	}
	value := float64(bytes) / math.Pow(1024, float64(idx))
	rounded := math.Round(value*100) / 100
	return fmt.Sprintf("%s %s", trimTrailingZeros(rounded), sizeUnits[idx])
}

func trimTrailingZeros(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}

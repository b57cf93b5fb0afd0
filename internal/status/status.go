// Package status holds the pure status-engine functions consumed by both
// dashboards: aggregate counts, transition checks, and status filtering.
package status

import "github.com/studyhelper/studyhelper-api/internal/models"

// FilterAll is the wildcard accepted by FilterByStatus.
const FilterAll = "all"

// CountByStatus tallies a request collection by lifecycle state.
func CountByStatus(requests []models.Request) models.StatusCounts {
	counts := models.StatusCounts{Total: len(requests)}
	for _, req := range requests {
		switch req.Status {
		case models.StatusPending:
			counts.Pending++
		case models.StatusInProgress:
			counts.InProgress++
		case models.StatusCompleted:
			counts.Completed++
		}
	}
	return counts
}

// AllowedTransition reports whether current may move to next. Every
// transition between valid statuses is permitted, including no-ops; the
// single consultation point exists so a forward-only lifecycle could be
// enforced here later.
func AllowedTransition(current, next models.Status) bool {
	return current.Valid() && next.Valid()
}

// FilterByStatus returns the requests matching the given status, or the
// whole collection when the filter is FilterAll or empty. Order is
// preserved.
func FilterByStatus(requests []models.Request, filter string) []models.Request {
	if filter == "" || filter == FilterAll {
		return requests
	}
	filtered := make([]models.Request, 0, len(requests))
	for _, req := range requests {
		if string(req.Status) == filter {
			filtered = append(filtered, req)
		}
	}
	return filtered
}

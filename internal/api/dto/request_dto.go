package dto

import (
	"time"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// CreateRequestRequest payload.
type CreateRequestRequest struct {
	Title   string `json:"title"`
	Type    string `json:"type"`
	Details string `json:"details"`
}

// DecisionRequest payload.
type DecisionRequest struct {
	Decision     domain.RequestStatus `json:"decision"`
	Observations string               `json:"observations"`
}

// ReassignRequest payload.
type ReassignRequest struct {
	UserID string `json:"user_id"`
}

// RequestResponse is the wire form of a request.
type RequestResponse struct {
	ID            string               `json:"id"`
	Title         string               `json:"title"`
	Type          string               `json:"type"`
	Details       string               `json:"details"`
	Status        domain.RequestStatus `json:"status"`
	SubmitterID   string               `json:"submitter_id"`
	SubmitterName string               `json:"submitter_name,omitempty"`
	Department    string               `json:"department"`
	Observations  *string              `json:"observations"`
	AssignedToID  *string              `json:"assigned_to_id"`
	CreatedAt     time.Time            `json:"created_at"`
}

// NewRequestResponses maps requests, resolving submitter names through names.
func NewRequestResponses(requests []domain.Request, names map[string]string) []RequestResponse {
	out := make([]RequestResponse, 0, len(requests))
	for _, r := range requests {
		out = append(out, RequestResponse{
			ID:            r.ID,
			Title:         r.Title,
			Type:          r.Type,
			Details:       r.Details,
			Status:        r.Status,
			SubmitterID:   r.SubmitterID,
			SubmitterName: names[r.SubmitterID],
			Department:    r.Department,
			Observations:  r.Observations,
			AssignedToID:  r.AssignedToID,
			CreatedAt:     r.CreatedAt,
		})
	}
	return out
}

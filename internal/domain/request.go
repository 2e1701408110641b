package domain

import "time"

// RequestStatus enumerates the decision lifecycle of a request.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusApproved RequestStatus = "APPROVED"
	RequestStatusRejected RequestStatus = "REJECTED"
)

// Request is an organizational request (leave, equipment, ...) raised by a
// non-admin user and decided by an Admin of the same department.
type Request struct {
	ID           string
	Title        string
	Type         string
	Details      string
	Status       RequestStatus
	SubmitterID  string
	Department   string
	Observations *string
	AssignedToID *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Reassignable reports whether the request may still be handed to a user.
func (r Request) Reassignable() bool {
	return r.Status == RequestStatusApproved && r.AssignedToID == nil
}

package mutation

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/events"
	"github.com/spec-kit/workflow-service/internal/repository"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

// NewRequest carries the fields of a request submission.
type NewRequest struct {
	Title   string
	Type    string
	Details string
}

// CreateRequest files a PENDING request in the submitter's department.
func (g *Gateway) CreateRequest(ctx context.Context, in NewRequest) (string, error) {
	identity, err := g.identity()
	if err != nil {
		return "", err
	}
	if identity.Role != domain.RoleEmployee {
		return "", apperrors.NewForbidden("only employees submit requests")
	}

	details := map[string]any{}
	title, kind := strings.TrimSpace(in.Title), strings.TrimSpace(in.Type)
	if title == "" {
		details["title"] = "required"
	}
	if kind == "" {
		details["type"] = "required"
	}
	if len(details) > 0 {
		return "", apperrors.NewValidationError("invalid request", details)
	}

	req := &domain.Request{
		Title:       title,
		Type:        kind,
		Details:     strings.TrimSpace(in.Details),
		Status:      domain.RequestStatusPending,
		SubmitterID: identity.ID,
		Department:  identity.DepartmentName(),
	}
	if err := g.commit(ctx, "request.create", domain.CollectionRequests, func(ctx context.Context) error {
		req.ID = ""
		return g.requests.Create(ctx, req)
	}); err != nil {
		return "", err
	}

	g.publish(ctx, events.New(events.EventRequestCreated, req.ID, events.ActorOf(identity),
		events.RequestCreatedPayload{Title: req.Title, Type: req.Type, Department: req.Department}))
	return req.ID, nil
}

// DecideRequest approves or rejects a request. Deciding an already decided
// request overwrites the earlier decision.
func (g *Gateway) DecideRequest(ctx context.Context, id string, decision domain.RequestStatus, observations string) error {
	identity, err := g.identity()
	if err != nil {
		return err
	}
	if identity.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("only admins decide requests")
	}
	if decision != domain.RequestStatusApproved && decision != domain.RequestStatusRejected {
		return apperrors.NewValidationError("decision must be APPROVED or REJECTED", map[string]any{"decision": string(decision)})
	}
	req, err := g.loadRequest(ctx, identity, id)
	if err != nil {
		return err
	}
	if req.Status != domain.RequestStatusPending {
		g.logger.Warn("request decided again",
			zap.String("request_id", id),
			zap.String("previous", string(req.Status)),
			zap.String("decision", string(decision)))
	}

	patch := repository.RequestPatch{Status: &decision, Observations: repository.Null[string]()}
	if obs := strings.TrimSpace(observations); obs != "" {
		patch.Observations = repository.Value(obs)
	}
	if err := g.commit(ctx, "request.decide", domain.CollectionRequests, func(ctx context.Context) error {
		return g.requests.Patch(ctx, id, patch)
	}); err != nil {
		return err
	}

	g.publish(ctx, events.New(events.EventRequestDecided, id, events.ActorOf(identity),
		events.RequestDecidedPayload{OldStatus: req.Status, NewStatus: decision, Observations: strings.TrimSpace(observations)}))
	return nil
}

// ReassignRequest hands an approved, unassigned request to a department member.
func (g *Gateway) ReassignRequest(ctx context.Context, id, userID string) error {
	identity, err := g.identity()
	if err != nil {
		return err
	}
	if identity.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("only admins reassign requests")
	}
	if strings.TrimSpace(userID) == "" {
		return apperrors.NewValidationError("assignee is required", map[string]any{"user_id": "required"})
	}
	req, err := g.loadRequest(ctx, identity, id)
	if err != nil {
		return err
	}
	if !req.Reassignable() {
		return apperrors.NewConflict("request can only be reassigned once approved and unassigned",
			map[string]any{"status": string(req.Status), "assigned": req.AssignedToID != nil})
	}

	var user *domain.User
	if err := g.do(ctx, "request.reassign.user", func(ctx context.Context) error {
		var err error
		user, err = g.users.GetByID(ctx, userID)
		return err
	}); err != nil {
		if apperrors.IsCode(err, apperrors.CodeNotFound) {
			return apperrors.NewValidationError("invalid assignee", map[string]any{"user_id": "unknown user"})
		}
		return err
	}
	if !user.Active || !user.InDepartment(identity.DepartmentName()) {
		return apperrors.NewValidationError("invalid assignee", map[string]any{"user_id": "not an active member of the department"})
	}

	if err := g.commit(ctx, "request.reassign", domain.CollectionRequests, func(ctx context.Context) error {
		return g.requests.Patch(ctx, id, repository.RequestPatch{AssignedToID: repository.Value(user.ID)})
	}); err != nil {
		return err
	}
	g.publish(ctx, events.New(events.EventRequestReassigned, id, events.ActorOf(identity),
		events.RequestReassignedPayload{AssignedToID: user.ID}))
	return nil
}

func (g *Gateway) loadRequest(ctx context.Context, identity domain.Identity, id string) (*domain.Request, error) {
	var req *domain.Request
	if err := g.do(ctx, "request.get", func(ctx context.Context) error {
		var err error
		req, err = g.requests.GetByID(ctx, id)
		return err
	}); err != nil {
		if apperrors.IsCode(err, apperrors.CodeNotFound) {
			return nil, apperrors.NewNotFound("request", map[string]any{"id": id})
		}
		return nil, err
	}
	if identity.Scoped() && req.Department != identity.DepartmentName() {
		return nil, apperrors.NewNotFound("request", map[string]any{"id": id})
	}
	return req, nil
}

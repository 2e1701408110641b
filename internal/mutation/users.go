package mutation

import (
	"context"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/events"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

// SetUserActive enables or disables an account. Sessions already signed in
// as that user are left untouched; the flag is only checked at sign-in.
func (g *Gateway) SetUserActive(ctx context.Context, id string, active bool) error {
	identity, err := g.identity()
	if err != nil {
		return err
	}
	if identity.Role != domain.RoleSuperAdmin {
		return apperrors.NewForbidden("only super admins manage accounts")
	}
	if id == identity.ID {
		return apperrors.NewValidationError("cannot change your own account state", nil)
	}

	if err := g.commit(ctx, "user.active", domain.CollectionUsers, func(ctx context.Context) error {
		return g.users.SetActive(ctx, id, active)
	}); err != nil {
		if apperrors.IsCode(err, apperrors.CodeNotFound) {
			return apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return err
	}
	g.publish(ctx, events.New(events.EventUserActivationChanged, id, events.ActorOf(identity),
		events.UserActivationChangedPayload{Active: active}))
	return nil
}

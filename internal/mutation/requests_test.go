package mutation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workflow-service/internal/domain"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

func submit(t *testing.T, e *env) string {
	t.Helper()
	g, _ := e.gateway(t, "u1", true)
	id, err := g.CreateRequest(context.Background(), NewRequest{Title: "New laptop", Type: "equipment"})
	require.NoError(t, err)
	return id
}

func (e *env) request(t *testing.T, id string) *domain.Request {
	t.Helper()
	req, err := e.backend.Requests().GetByID(context.Background(), id)
	require.NoError(t, err)
	return req
}

func TestCreateRequest(t *testing.T) {
	e := newEnv(t)
	id := submit(t, e)

	req := e.request(t, id)
	assert.Equal(t, domain.RequestStatusPending, req.Status)
	assert.Equal(t, "u1", req.SubmitterID)
	assert.Equal(t, "Sales", req.Department)
	assert.Nil(t, req.Observations)
	assert.Nil(t, req.AssignedToID)

	g, _ := e.gateway(t, "u1", true)
	_, err := g.CreateRequest(context.Background(), NewRequest{Title: "Leave"})
	assertCode(t, err, apperrors.CodeValidation)
	_, err = g.CreateRequest(context.Background(), NewRequest{Type: "leave"})
	assertCode(t, err, apperrors.CodeValidation)

	boss, _ := e.gateway(t, "boss", true)
	_, err = boss.CreateRequest(context.Background(), NewRequest{Title: "Leave", Type: "leave"})
	assertCode(t, err, apperrors.CodeForbidden)
}

func TestDecideRequest_ApproveKeepsAssigneeUntilReassigned(t *testing.T) {
	e := newEnv(t)
	id := submit(t, e)
	boss, _ := e.gateway(t, "boss", true)
	ctx := context.Background()

	require.NoError(t, boss.DecideRequest(ctx, id, domain.RequestStatusApproved, "ok"))
	req := e.request(t, id)
	assert.Equal(t, domain.RequestStatusApproved, req.Status)
	require.NotNil(t, req.Observations)
	assert.Equal(t, "ok", *req.Observations)
	assert.Nil(t, req.AssignedToID)

	require.NoError(t, boss.ReassignRequest(ctx, id, "u2"))
	req = e.request(t, id)
	require.NotNil(t, req.AssignedToID)
	assert.Equal(t, "u2", *req.AssignedToID)
}

func TestReassignRequest_RequiresApprovedAndUnassigned(t *testing.T) {
	e := newEnv(t)
	boss, _ := e.gateway(t, "boss", true)
	ctx := context.Background()

	pending := submit(t, e)
	assertCode(t, boss.ReassignRequest(ctx, pending, "u2"), apperrors.CodeConflict)
	assert.Nil(t, e.request(t, pending).AssignedToID)

	rejected := submit(t, e)
	require.NoError(t, boss.DecideRequest(ctx, rejected, domain.RequestStatusRejected, ""))
	assertCode(t, boss.ReassignRequest(ctx, rejected, "u2"), apperrors.CodeConflict)

	approved := submit(t, e)
	require.NoError(t, boss.DecideRequest(ctx, approved, domain.RequestStatusApproved, ""))
	assertCode(t, boss.ReassignRequest(ctx, approved, "u3"), apperrors.CodeValidation)
	require.NoError(t, boss.ReassignRequest(ctx, approved, "u2"))
	assertCode(t, boss.ReassignRequest(ctx, approved, "u1"), apperrors.CodeConflict)
	assert.Equal(t, "u2", *e.request(t, approved).AssignedToID)
}

func TestDecideRequest_RedecidingOverwrites(t *testing.T) {
	e := newEnv(t)
	id := submit(t, e)
	boss, _ := e.gateway(t, "boss", true)
	ctx := context.Background()

	require.NoError(t, boss.DecideRequest(ctx, id, domain.RequestStatusApproved, "ok"))
	require.NoError(t, boss.DecideRequest(ctx, id, domain.RequestStatusRejected, "budget"))

	req := e.request(t, id)
	assert.Equal(t, domain.RequestStatusRejected, req.Status)
	assert.Equal(t, "budget", *req.Observations)

	assertCode(t, boss.DecideRequest(ctx, id, domain.RequestStatusPending, ""), apperrors.CodeValidation)
	employee, _ := e.gateway(t, "u1", true)
	assertCode(t, employee.DecideRequest(ctx, id, domain.RequestStatusApproved, ""), apperrors.CodeForbidden)
}

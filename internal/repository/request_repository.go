package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// RequestFilter scopes request listings. A nil Department lists every department.
type RequestFilter struct {
	Department *string
}

// RequestPatch carries the fields supplied to a request merge-write.
type RequestPatch struct {
	Status       *domain.RequestStatus
	Observations Nullable[string]
	AssignedToID Nullable[string]
}

// Apply merges the patch into req.
func (p RequestPatch) Apply(req *domain.Request) {
	if p.Status != nil {
		req.Status = *p.Status
	}
	if p.Observations.Set {
		req.Observations = p.Observations.Value
	}
	if p.AssignedToID.Set {
		req.AssignedToID = p.AssignedToID.Value
	}
}

// RequestRepository encapsulates request persistence.
type RequestRepository interface {
	Create(ctx context.Context, req *domain.Request) error
	Patch(ctx context.Context, id string, patch RequestPatch) error
	GetByID(ctx context.Context, id string) (*domain.Request, error)
	List(ctx context.Context, filter RequestFilter) ([]domain.Request, error)
}

type requestRepository struct {
	pool *pgxpool.Pool
}

// NewRequestRepository instantiates repository.
func NewRequestRepository(pool *pgxpool.Pool) RequestRepository {
	return &requestRepository{pool: pool}
}

const requestColumns = `id, title, type, details, status, submitter_id, department, observations,
               assigned_to_id, created_at, updated_at`

func (r *requestRepository) Create(ctx context.Context, req *domain.Request) error {
	const query = `
        INSERT INTO requests (title, type, details, status, submitter_id, department, observations, assigned_to_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		req.Title,
		req.Type,
		req.Details,
		req.Status,
		req.SubmitterID,
		req.Department,
		req.Observations,
		req.AssignedToID,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
}

func (r *requestRepository) Patch(ctx context.Context, id string, patch RequestPatch) error {
	sets := []string{}
	args := []any{}
	if patch.Status != nil {
		args = append(args, *patch.Status)
		sets = append(sets, fmt.Sprintf("status=$%d", len(args)))
	}
	if patch.Observations.Set {
		args = append(args, patch.Observations.Value)
		sets = append(sets, fmt.Sprintf("observations=$%d", len(args)))
	}
	if patch.AssignedToID.Set {
		args = append(args, patch.AssignedToID.Value)
		sets = append(sets, fmt.Sprintf("assigned_to_id=$%d", len(args)))
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE requests SET %s, updated_at=NOW() WHERE id=$%d`, strings.Join(sets, ", "), len(args))
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id=$1`
	return scanRequest(r.pool.QueryRow(ctx, query, id))
}

func (r *requestRepository) List(ctx context.Context, filter RequestFilter) ([]domain.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests`
	args := []any{}
	if filter.Department != nil {
		args = append(args, *filter.Department)
		query += fmt.Sprintf(" WHERE department=$%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *req)
	}
	return result, rows.Err()
}

func scanRequest(row pgx.Row) (*domain.Request, error) {
	var req domain.Request
	if err := row.Scan(
		&req.ID,
		&req.Title,
		&req.Type,
		&req.Details,
		&req.Status,
		&req.SubmitterID,
		&req.Department,
		&req.Observations,
		&req.AssignedToID,
		&req.CreatedAt,
		&req.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &req, nil
}

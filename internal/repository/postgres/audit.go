package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/spinhub/internal/domain"
)

type AuditRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *AuditRepo) With(db DB) *AuditRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *AuditRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *AuditRepo) Record(ctx context.Context, e domain.AuditEntry) error {
	const op = "postgres.AuditRepo.Record"

	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}

	if _, err := r.handle().Exec(ctx,
		`INSERT INTO audit_logs(actor_id, action, entity_type, entity_id, description, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ActorID, e.Action, e.EntityType, e.EntityID, e.Description, meta,
	); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

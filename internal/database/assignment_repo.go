package database

import (
	"context"
)

type assignmentRepo struct {
	db DBTX
}

func NewAssignmentRepository(db DBTX) AssignmentRepository {
	return &assignmentRepo{db: db}
}

func (r *assignmentRepo) Add(ctx context.Context, roleID, userID int64) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO role_assignments (role_id, user_id)
		 VALUES ($1, $2)
		 ON CONFLICT (role_id, user_id) DO NOTHING`,
		roleID, userID,
	)
	return err
}

func (r *assignmentRepo) Remove(ctx context.Context, roleID, userID int64) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM role_assignments WHERE role_id = $1 AND user_id = $2`,
		roleID, userID,
	)
	return err
}

func (r *assignmentRepo) Exists(ctx context.Context, roleID, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM role_assignments WHERE role_id = $1 AND user_id = $2)`,
		roleID, userID,
	).Scan(&exists)
	return exists, err
}

func (r *assignmentRepo) DeleteByRole(ctx context.Context, roleID int64) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM role_assignments WHERE role_id = $1`, roleID)
	return err
}

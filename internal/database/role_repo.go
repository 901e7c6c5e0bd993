package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/victorivanov/accord/internal/models"
)

type roleRepo struct {
	db DBTX
}

func NewRoleRepository(db DBTX) RoleRepository {
	return &roleRepo{db: db}
}

const roleColumns = `id, server_id, name, color, position, is_admin, is_default, permissions`

func scanRole(row pgx.Row) (*models.Role, error) {
	role := &models.Role{}
	var encoded string
	err := row.Scan(&role.ID, &role.ServerID, &role.Name, &role.Color,
		&role.Position, &role.IsAdmin, &role.IsDefault, &encoded)
	if err != nil {
		return nil, err
	}
	role.Permissions, err = decodePerms(encoded)
	if err != nil {
		return nil, err
	}
	return role, nil
}

func (r *roleRepo) Create(ctx context.Context, role *models.Role) error {
	if role.IsDefault {
		var exists bool
		err := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM roles WHERE server_id = $1 AND is_default)`,
			role.ServerID,
		).Scan(&exists)
		if err != nil {
			return err
		}
		if exists {
			return ErrDefaultRoleExists
		}
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO roles (id, server_id, name, color, position, is_admin, is_default, permissions)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		role.ID, role.ServerID, role.Name, role.Color, role.Position,
		role.IsAdmin, role.IsDefault, encodePerms(role.Permissions),
	)
	if IsUniqueViolation(err) && role.IsDefault {
		// Lost a race on the partial unique index.
		return ErrDefaultRoleExists
	}
	return err
}

func (r *roleRepo) GetByID(ctx context.Context, id int64) (*models.Role, error) {
	role, err := scanRole(r.db.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return role, err
}

func (r *roleRepo) GetByServerID(ctx context.Context, serverID int64, forUpdate bool) ([]models.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE server_id = $1 ORDER BY position`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return r.queryRoles(ctx, query, serverID)
}

func (r *roleRepo) GetByMember(ctx context.Context, serverID, userID int64) ([]models.Role, error) {
	return r.queryRoles(ctx,
		`SELECT `+roleColumns+` FROM roles r
		 WHERE r.server_id = $1
		   AND (r.is_default OR EXISTS (
		       SELECT 1 FROM role_assignments ra
		       WHERE ra.role_id = r.id AND ra.user_id = $2))
		 ORDER BY r.position`, serverID, userID)
}

func (r *roleRepo) queryRoles(ctx context.Context, query string, args ...any) ([]models.Role, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	return roles, rows.Err()
}

func (r *roleRepo) Update(ctx context.Context, role *models.Role) error {
	_, err := r.db.Exec(ctx,
		`UPDATE roles SET name = $2, color = $3, is_admin = $4, permissions = $5
		 WHERE id = $1`,
		role.ID, role.Name, role.Color, role.IsAdmin, encodePerms(role.Permissions),
	)
	return err
}

func (r *roleRepo) UpdatePosition(ctx context.Context, id, position int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE roles SET position = $2 WHERE id = $1`, id, position)
	return err
}

func (r *roleRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM roles WHERE id = $1 AND NOT is_default`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either the role is gone (caller checked existence) or it is
		// the default role; distinguish.
		var isDefault bool
		err := r.db.QueryRow(ctx,
			`SELECT is_default FROM roles WHERE id = $1`, id).Scan(&isDefault)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if isDefault {
			return ErrDefaultRoleDelete
		}
	}
	return nil
}

package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/victorivanov/accord/internal/models"
)

type overrideRepo struct {
	db DBTX
}

func NewOverrideRepository(db DBTX) OverrideRepository {
	return &overrideRepo{db: db}
}

const overrideColumns = `scope_kind, scope_id, principal_id, is_role, permissions`

func scanOverride(row pgx.Row) (*models.Override, error) {
	o := &models.Override{}
	var encoded string
	err := row.Scan(&o.ScopeKind, &o.ScopeID, &o.PrincipalID, &o.IsRole, &encoded)
	if err != nil {
		return nil, err
	}
	o.Permissions, err = decodePerms(encoded)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *overrideRepo) Get(ctx context.Context, scope models.ScopeKind, scopeID, principalID int64, isRole bool) (*models.Override, error) {
	o, err := scanOverride(r.db.QueryRow(ctx,
		`SELECT `+overrideColumns+` FROM overrides
		 WHERE scope_kind = $1 AND scope_id = $2 AND principal_id = $3 AND is_role = $4`,
		scope, scopeID, principalID, isRole))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

func (r *overrideRepo) GetByScope(ctx context.Context, scope models.ScopeKind, scopeID int64) ([]models.Override, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+overrideColumns+` FROM overrides
		 WHERE scope_kind = $1 AND scope_id = $2`, scope, scopeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overrides []models.Override
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, *o)
	}
	return overrides, rows.Err()
}

// Upsert finds the existing row for the (scope, principal) pair and
// updates it, inserting otherwise. Must run inside a transaction; the
// primary key backstops a lost race with a unique violation rather than
// a duplicate row.
func (r *overrideRepo) Upsert(ctx context.Context, override *models.Override) error {
	existing, err := r.Get(ctx, override.ScopeKind, override.ScopeID, override.PrincipalID, override.IsRole)
	if err != nil {
		return err
	}

	if existing != nil {
		_, err := r.db.Exec(ctx,
			`UPDATE overrides SET permissions = $5
			 WHERE scope_kind = $1 AND scope_id = $2 AND principal_id = $3 AND is_role = $4`,
			override.ScopeKind, override.ScopeID, override.PrincipalID, override.IsRole,
			encodePerms(override.Permissions),
		)
		return err
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO overrides (scope_kind, scope_id, principal_id, is_role, permissions)
		 VALUES ($1, $2, $3, $4, $5)`,
		override.ScopeKind, override.ScopeID, override.PrincipalID, override.IsRole,
		encodePerms(override.Permissions),
	)
	return err
}

func (r *overrideRepo) Delete(ctx context.Context, scope models.ScopeKind, scopeID, principalID int64, isRole bool) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM overrides
		 WHERE scope_kind = $1 AND scope_id = $2 AND principal_id = $3 AND is_role = $4`,
		scope, scopeID, principalID, isRole,
	)
	return err
}

func (r *overrideRepo) DeleteByScope(ctx context.Context, scope models.ScopeKind, scopeID int64) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM overrides WHERE scope_kind = $1 AND scope_id = $2`,
		scope, scopeID,
	)
	return err
}

func (r *overrideRepo) DeleteByRole(ctx context.Context, roleID int64) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM overrides WHERE is_role AND principal_id = $1`, roleID)
	return err
}

package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/victorivanov/accord/internal/models"
)

type serverRepo struct {
	db DBTX
}

func NewServerRepository(db DBTX) ServerRepository {
	return &serverRepo{db: db}
}

func (r *serverRepo) Create(ctx context.Context, server *models.Server) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO servers (id, name, owner_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		server.ID, server.Name, server.OwnerID, server.CreatedAt,
	)
	return err
}

func (r *serverRepo) GetByID(ctx context.Context, id int64) (*models.Server, error) {
	server := &models.Server{}
	err := r.db.QueryRow(ctx,
		`SELECT id, name, owner_id, created_at FROM servers WHERE id = $1`, id,
	).Scan(&server.ID, &server.Name, &server.OwnerID, &server.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return server, err
}

func (r *serverRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM servers WHERE id = $1`, id)
	return err
}

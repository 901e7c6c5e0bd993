package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/victorivanov/accord/internal/models"
)

type categoryRepo struct {
	db DBTX
}

func NewCategoryRepository(db DBTX) CategoryRepository {
	return &categoryRepo{db: db}
}

func (r *categoryRepo) Create(ctx context.Context, category *models.Category) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO categories (id, server_id, name, position)
		 VALUES ($1, $2, $3, $4)`,
		category.ID, category.ServerID, category.Name, category.Position,
	)
	return err
}

func (r *categoryRepo) GetByID(ctx context.Context, id int64) (*models.Category, error) {
	category := &models.Category{}
	err := r.db.QueryRow(ctx,
		`SELECT id, server_id, name, position FROM categories WHERE id = $1`, id,
	).Scan(&category.ID, &category.ServerID, &category.Name, &category.Position)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return category, err
}

func (r *categoryRepo) GetByServerID(ctx context.Context, serverID int64, forUpdate bool) ([]models.Category, error) {
	query := `SELECT id, server_id, name, position FROM categories
		 WHERE server_id = $1 ORDER BY position`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	rows, err := r.db.Query(ctx, query, serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.ServerID, &c.Name, &c.Position); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *categoryRepo) UpdatePosition(ctx context.Context, id, position int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE categories SET position = $2 WHERE id = $1`, id, position)
	return err
}

func (r *categoryRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	return err
}

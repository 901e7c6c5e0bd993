package database

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/victorivanov/accord/internal/models"
)

type channelRepo struct {
	db DBTX
}

func NewChannelRepository(db DBTX) ChannelRepository {
	return &channelRepo{db: db}
}

const channelColumns = `id, server_id, category_id, name, type, position, is_deleted`

func scanChannel(row pgx.Row) (*models.Channel, error) {
	ch := &models.Channel{}
	err := row.Scan(&ch.ID, &ch.ServerID, &ch.CategoryID, &ch.Name,
		&ch.Type, &ch.Position, &ch.IsDeleted)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (r *channelRepo) Create(ctx context.Context, ch *models.Channel) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO channels (id, server_id, category_id, name, type, position, is_deleted)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ch.ID, ch.ServerID, ch.CategoryID, ch.Name, ch.Type, ch.Position, ch.IsDeleted,
	)
	return err
}

func (r *channelRepo) GetByID(ctx context.Context, id int64) (*models.Channel, error) {
	ch, err := scanChannel(r.db.QueryRow(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return ch, err
}

func (r *channelRepo) GetSiblings(ctx context.Context, serverID int64, categoryID *int64, forUpdate bool) ([]models.Channel, error) {
	// category_id IS NOT DISTINCT FROM matches the server root when
	// categoryID is nil.
	query := `SELECT ` + channelColumns + ` FROM channels
		 WHERE server_id = $1 AND category_id IS NOT DISTINCT FROM $2 AND NOT is_deleted
		 ORDER BY position`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	rows, err := r.db.Query(ctx, query, serverID, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []models.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, *ch)
	}
	return channels, rows.Err()
}

func (r *channelRepo) UpdatePosition(ctx context.Context, id int64, categoryID *int64, position int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE channels SET category_id = $2, position = $3 WHERE id = $1`,
		id, categoryID, position,
	)
	return err
}

func (r *channelRepo) DetachFromCategory(ctx context.Context, categoryID int64) ([]models.Channel, error) {
	rows, err := r.db.Query(ctx,
		`UPDATE channels SET category_id = NULL
		 WHERE category_id = $1
		 RETURNING `+channelColumns+``, categoryID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []models.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, *ch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// UPDATE ... RETURNING has no row order guarantee.
	sort.Slice(channels, func(i, j int) bool {
		return channels[i].Position < channels[j].Position
	})
	return channels, nil
}

func (r *channelRepo) SoftDelete(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE channels SET is_deleted = TRUE WHERE id = $1`, id)
	return err
}

func (r *channelRepo) HardDelete(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM channels WHERE id = $1`, id)
	return err
}

package groups

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/communitymeet/backend/internal/models"
)

// Repository handles group and roster persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a group repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByName returns a group by its unique name.
func (r *Repository) GetByName(ctx context.Context, name string) (*models.Group, error) {
	const q = `SELECT id, name, group_type, COALESCE(etherpad,''), created_at FROM groups WHERE name = $1`
	var g models.Group
	err := r.pool.QueryRow(ctx, q, name).Scan(&g.ID, &g.Name, &g.GroupType, &g.Etherpad, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// List returns all groups, optionally restricted to one group type.
func (r *Repository) List(ctx context.Context, groupType int) ([]models.Group, error) {
	q := `SELECT id, name, group_type, COALESCE(etherpad,''), created_at FROM groups`
	args := []interface{}{}
	if groupType > 0 {
		q += ` WHERE group_type = $1`
		args = append(args, groupType)
	}
	q += ` ORDER BY name`
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Group
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.GroupType, &g.Etherpad, &g.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, g)
	}
	return list, rows.Err()
}

// AddMembers adds users to a group roster, skipping existing memberships.
func (r *Repository) AddMembers(ctx context.Context, groupID uuid.UUID, userIDs []uuid.UUID) error {
	for _, uid := range userIDs {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO group_users (group_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			groupID, uid)
		if err != nil {
			return err
		}
	}
	return nil
}

// RemoveMembers removes users from a group roster.
func (r *Repository) RemoveMembers(ctx context.Context, groupID uuid.UUID, userIDs []uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM group_users WHERE group_id = $1 AND user_id = ANY($2)`, groupID, userIDs)
	return err
}

// Members lists users of a group; invert lists users not in it. The search
// term filters by nickname.
func (r *Repository) Members(ctx context.Context, groupID uuid.UUID, invert bool, search string) ([]models.User, error) {
	op := "IN"
	if invert {
		op = "NOT IN"
	}
	q := `SELECT id, COALESCE(nickname,''), COALESCE(gitee_name,''), COALESCE(avatar,''), level, activity_level
		FROM users WHERE id ` + op + ` (SELECT user_id FROM group_users WHERE group_id = $1)`
	args := []interface{}{groupID}
	if search != "" {
		q += ` AND nickname ILIKE '%' || $2 || '%'`
		args = append(args, search)
	}
	q += ` ORDER BY nickname`
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Nickname, &u.GiteeName, &u.Avatar, &u.Level, &u.ActivityLevel); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// UserGroups returns the groups a user belongs to.
func (r *Repository) UserGroups(ctx context.Context, userID uuid.UUID) ([]models.Group, error) {
	const q = `SELECT g.id, g.name, g.group_type, COALESCE(g.etherpad,''), g.created_at
		FROM groups g JOIN group_users gu ON gu.group_id = g.id WHERE gu.user_id = $1 ORDER BY g.name`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Group
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.GroupType, &g.Etherpad, &g.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, g)
	}
	return list, rows.Err()
}

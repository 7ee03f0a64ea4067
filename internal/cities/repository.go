// Package cities manages the city registry used by MSG meetings and the
// city sponsor memberships behind them.
package cities

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/communitymeet/backend/internal/models"
)

// Repository provides city persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a city repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByName looks up a city by its unique name.
func (r *Repository) GetByName(ctx context.Context, name string) (*models.City, error) {
	var c models.City
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, etherpad, created_at FROM cities WHERE name = $1`, name,
	).Scan(&c.ID, &c.Name, &c.Etherpad, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create registers a new city.
func (r *Repository) Create(ctx context.Context, name, etherpad string) (*models.City, error) {
	var c models.City
	c.Name = name
	c.Etherpad = etherpad
	err := r.pool.QueryRow(ctx,
		`INSERT INTO cities (id, name, etherpad) VALUES (gen_random_uuid(), $1, $2)
		 RETURNING id, created_at`, name, etherpad,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert city: %w", err)
	}
	return &c, nil
}

// List returns all cities ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.City, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, etherpad, created_at FROM cities ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.City
	for rows.Next() {
		var c models.City
		if err := rows.Scan(&c.ID, &c.Name, &c.Etherpad, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AddSponsors grants city sponsor membership to the given users.
func (r *Repository) AddSponsors(ctx context.Context, cityID uuid.UUID, userIDs []uuid.UUID) error {
	for _, uid := range userIDs {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO city_users (id, city_id, user_id) VALUES (gen_random_uuid(), $1, $2)
			 ON CONFLICT (city_id, user_id) DO NOTHING`, cityID, uid)
		if err != nil {
			return fmt.Errorf("add city sponsor: %w", err)
		}
	}
	return nil
}

// RemoveSponsors revokes city sponsor membership from the given users.
func (r *Repository) RemoveSponsors(ctx context.Context, cityID uuid.UUID, userIDs []uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM city_users WHERE city_id = $1 AND user_id = ANY($2)`, cityID, userIDs)
	return err
}

// Sponsors lists sponsors of a city. invert lists users not yet sponsoring
// it, for the add-sponsor picker. search filters by nickname.
func (r *Repository) Sponsors(ctx context.Context, cityID uuid.UUID, invert bool, search string) ([]models.User, error) {
	op := "IN"
	if invert {
		op = "NOT IN"
	}
	q := `SELECT id, openid, unionid, nickname, gitee_name, avatar, email, telephone,
	             company, level, activity_level, signature, created_at, last_login
	      FROM users WHERE id ` + op + ` (SELECT user_id FROM city_users WHERE city_id = $1)`
	args := []interface{}{cityID}
	if search != "" {
		q += ` AND nickname ILIKE $2`
		args = append(args, "%"+search+"%")
	}
	q += ` ORDER BY nickname`
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.OpenID, &u.UnionID, &u.Nickname, &u.GiteeName, &u.Avatar,
			&u.Email, &u.Telephone, &u.Company, &u.Level, &u.ActivityLevel, &u.Signature,
			&u.CreatedAt, &u.LastLogin); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UserCities returns the cities the given user sponsors.
func (r *Repository) UserCities(ctx context.Context, userID uuid.UUID) ([]models.City, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.name, c.etherpad, c.created_at
		 FROM cities c JOIN city_users cu ON cu.city_id = c.id
		 WHERE cu.user_id = $1 ORDER BY c.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.City
	for rows.Next() {
		var c models.City
		if err := rows.Scan(&c.ID, &c.Name, &c.Etherpad, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

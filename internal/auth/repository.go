package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/communitymeet/backend/internal/models"
)

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a user repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, openid, COALESCE(unionid,''), COALESCE(nickname,''), COALESCE(gitee_name,''),
	COALESCE(avatar,''), COALESCE(email,''), COALESCE(telephone,''), COALESCE(company,''),
	level, activity_level, COALESCE(signature,''), created_at, last_login`

func (r *Repository) scanUser(ctx context.Context, q string, args ...interface{}) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, q, args...).Scan(&u.ID, &u.OpenID, &u.UnionID, &u.Nickname, &u.GiteeName,
		&u.Avatar, &u.Email, &u.Telephone, &u.Company,
		&u.Level, &u.ActivityLevel, &u.Signature, &u.CreatedAt, &u.LastLogin)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID returns a user by ID. Permission middleware calls this on every
// guarded request so level checks always see persisted state.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByOpenID returns a user by WeChat openid.
func (r *Repository) GetByOpenID(ctx context.Context, openid string) (*models.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE openid = $1`, openid)
}

// Upsert creates the user on first login or refreshes profile fields and
// last_login on subsequent ones.
func (r *Repository) Upsert(ctx context.Context, openid, unionid, nickname, avatar string) (*models.User, error) {
	const q = `INSERT INTO users (id, openid, unionid, nickname, avatar)
		VALUES (gen_random_uuid(), $1, NULLIF($2,''), NULLIF($3,''), NULLIF($4,''))
		ON CONFLICT (openid) DO UPDATE SET
			nickname = COALESCE(NULLIF(EXCLUDED.nickname,''), users.nickname),
			avatar = COALESCE(NULLIF(EXCLUDED.avatar,''), users.avatar),
			last_login = NOW()
		RETURNING ` + userColumns
	return r.scanUser(ctx, q, openid, unionid, nickname, avatar)
}

// UpdateProfile updates the user-editable profile fields and returns the
// resulting row.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, giteeName, email, telephone, company, signature string) (*models.User, error) {
	const q = `UPDATE users SET
		gitee_name = COALESCE(NULLIF($2,''), gitee_name),
		email = COALESCE(NULLIF($3,''), email),
		telephone = COALESCE(NULLIF($4,''), telephone),
		company = COALESCE(NULLIF($5,''), company),
		signature = COALESCE(NULLIF($6,''), signature)
		WHERE id = $1
		RETURNING ` + userColumns
	return r.scanUser(ctx, q, id, giteeName, email, telephone, company, signature)
}

// ListByActivityLevel lists users at an activity permission level, optionally
// filtered by nickname.
func (r *Repository) ListByActivityLevel(ctx context.Context, level int, search string) ([]models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE activity_level = $1`
	args := []interface{}{level}
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
		if err := rows.Scan(&u.ID, &u.OpenID, &u.UnionID, &u.Nickname, &u.GiteeName,
			&u.Avatar, &u.Email, &u.Telephone, &u.Company,
			&u.Level, &u.ActivityLevel, &u.Signature, &u.CreatedAt, &u.LastLogin); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// SetActivityLevel moves users between activity permission levels; only rows
// currently at from are changed.
func (r *Repository) SetActivityLevel(ctx context.Context, ids []uuid.UUID, from, to int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET activity_level = $3 WHERE id = ANY($1) AND activity_level = $2`, ids, from, to)
	return err
}

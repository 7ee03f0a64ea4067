// Package activities manages community events through their five-state
// lifecycle, from draft to completed.
package activities

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/communitymeet/backend/internal/models"
)

const activityColumns = `id, user_id, title, start_date, end_date, activity_category,
	activity_type, address, detail_address, longitude, latitude, register_method,
	online_url, register_url, synopsis, schedules, poster, status, wx_code,
	sign_url, replay_url, is_delete, created_at`

func scanActivity(row pgx.Row) (*models.Activity, error) {
	var a models.Activity
	err := row.Scan(&a.ID, &a.UserID, &a.Title, &a.StartDate, &a.EndDate, &a.Category,
		&a.ActivityType, &a.Address, &a.DetailAddress, &a.Longitude, &a.Latitude,
		&a.RegisterMethod, &a.OnlineURL, &a.RegisterURL, &a.Synopsis, &a.Schedules,
		&a.Poster, &a.Status, &a.WxCode, &a.SignURL, &a.ReplayURL, &a.IsDelete, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Repository provides activity persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an activity repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts an activity in the given initial status (draft or
// pending-review).
func (r *Repository) Create(ctx context.Context, a *models.Activity) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO activities (id, user_id, title, start_date, end_date, activity_category,
		   activity_type, address, detail_address, longitude, latitude, register_method,
		   online_url, register_url, synopsis, schedules, poster, status)
		 VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 RETURNING id, created_at`,
		a.UserID, a.Title, a.StartDate, a.EndDate, a.Category, a.ActivityType,
		a.Address, a.DetailAddress, a.Longitude, a.Latitude, a.RegisterMethod,
		a.OnlineURL, a.RegisterURL, a.Synopsis, a.Schedules, a.Poster, a.Status,
	).Scan(&a.ID, &a.CreatedAt)
}

// GetLive fetches a non-deleted activity.
func (r *Repository) GetLive(ctx context.Context, id uuid.UUID) (*models.Activity, error) {
	return scanActivity(r.pool.QueryRow(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE id = $1 AND is_delete = 0`, id))
}

// UpdateDraft overwrites an activity's editable fields while it is still a
// draft owned by the given user. Returns false when no matching draft row
// exists.
func (r *Repository) UpdateDraft(ctx context.Context, a *models.Activity) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE activities SET title=$3, start_date=$4, end_date=$5, activity_category=$6,
		   activity_type=$7, address=$8, detail_address=$9, longitude=$10, latitude=$11,
		   register_method=$12, online_url=$13, register_url=$14, synopsis=$15,
		   schedules=$16, poster=$17, status=$18
		 WHERE id = $1 AND user_id = $2 AND status IN (1, 2) AND is_delete = 0`,
		a.ID, a.UserID, a.Title, a.StartDate, a.EndDate, a.Category, a.ActivityType,
		a.Address, a.DetailAddress, a.Longitude, a.Latitude, a.RegisterMethod,
		a.OnlineURL, a.RegisterURL, a.Synopsis, a.Schedules, a.Poster, a.Status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// TransitionStatus moves an activity from one status to another. The guard
// on the current status makes concurrent sweeps and admin actions safe.
func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to int) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE activities SET status = $3 WHERE id = $1 AND status = $2 AND is_delete = 0`,
		id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetWxCode stores the published QR code URL on approval.
func (r *Repository) SetWxCode(ctx context.Context, id uuid.UUID, wxCode string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE activities SET wx_code = $2 WHERE id = $1`, id, wxCode)
	return err
}

// SoftDelete marks an activity deleted. Returns false when it was already
// gone.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE activities SET is_delete = 1 WHERE id = $1 AND is_delete = 0`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteDraft hard-deletes a draft owned by the user. Drafts never reached
// other users, so nothing soft-deletable is lost.
func (r *Repository) DeleteDraft(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM activities WHERE id = $1 AND user_id = $2 AND status = 1`, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListFilter narrows activity listings.
type ListFilter struct {
	Statuses []int
	UserID   uuid.UUID // uuid.Nil = all users
}

// List returns non-deleted activities matching the filter, newest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.Activity, error) {
	q := `SELECT ` + activityColumns + ` FROM activities WHERE is_delete = 0`
	args := []interface{}{}
	n := 0
	if len(f.Statuses) > 0 {
		n++
		q += fmt.Sprintf(" AND status = ANY($%d)", n)
		args = append(args, f.Statuses)
	}
	if f.UserID != uuid.Nil {
		n++
		q += fmt.Sprintf(" AND user_id = $%d", n)
		args = append(args, f.UserID)
	}
	q += ` ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectActivities(rows)
}

// ListBetweenDates returns published activities whose run overlaps
// [from, to], ordered by start date. Used for the calendar data endpoint.
func (r *Repository) ListBetweenDates(ctx context.Context, from, to string) ([]models.Activity, error) {
	q := `SELECT ` + activityColumns + ` FROM activities
		WHERE is_delete = 0 AND status IN (3, 4, 5)
		AND start_date <= $2 AND end_date >= $1
		ORDER BY start_date, created_at`
	rows, err := r.pool.Query(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectActivities(rows)
}

// ListForSweep returns non-deleted activities the status scheduler may need
// to advance.
func (r *Repository) ListForSweep(ctx context.Context) ([]models.Activity, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+activityColumns+` FROM activities
		 WHERE is_delete = 0 AND status IN (3, 4, 5)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectActivities(rows)
}

// ListCollected returns the caller's favorited activities.
func (r *Repository) ListCollected(ctx context.Context, userID uuid.UUID) ([]models.Activity, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+activityColumns+` FROM activities a
		 WHERE a.is_delete = 0 AND a.id IN
		   (SELECT activity_id FROM activity_collects WHERE user_id = $1)
		 ORDER BY a.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectActivities(rows)
}

// ListRegistered returns the activities the caller signed up for.
func (r *Repository) ListRegistered(ctx context.Context, userID uuid.UUID) ([]models.Activity, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+activityColumns+` FROM activities a
		 WHERE a.is_delete = 0 AND a.id IN
		   (SELECT activity_id FROM activity_registers WHERE user_id = $1)
		 ORDER BY a.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectActivities(rows)
}

// AddCollect favorites an activity for a user, idempotently.
func (r *Repository) AddCollect(ctx context.Context, activityID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO activity_collects (id, activity_id, user_id)
		 VALUES (gen_random_uuid(), $1, $2)
		 ON CONFLICT (activity_id, user_id) DO NOTHING`, activityID, userID)
	return err
}

// DeleteCollect removes a favorite.
func (r *Repository) DeleteCollect(ctx context.Context, activityID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM activity_collects WHERE activity_id = $1 AND user_id = $2`,
		activityID, userID)
	return err
}

// AddRegister signs a user up for an activity, idempotently.
func (r *Repository) AddRegister(ctx context.Context, activityID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO activity_registers (id, activity_id, user_id)
		 VALUES (gen_random_uuid(), $1, $2)
		 ON CONFLICT (activity_id, user_id) DO NOTHING`, activityID, userID)
	return err
}

// AddSign records an attendance check-in, idempotently.
func (r *Repository) AddSign(ctx context.Context, activityID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO activity_signs (id, activity_id, user_id)
		 VALUES (gen_random_uuid(), $1, $2)
		 ON CONFLICT (activity_id, user_id) DO NOTHING`, activityID, userID)
	return err
}

// Counts returns how many activities the user created, favorited,
// registered for and attended.
func (r *Repository) Counts(ctx context.Context, userID uuid.UUID) (created, collected, registered, signed int, err error) {
	err = r.pool.QueryRow(ctx,
		`SELECT
		   (SELECT count(*) FROM activities WHERE user_id = $1 AND is_delete = 0 AND status > 2),
		   (SELECT count(*) FROM activity_collects WHERE user_id = $1),
		   (SELECT count(*) FROM activity_registers WHERE user_id = $1),
		   (SELECT count(*) FROM activity_signs WHERE user_id = $1)`,
		userID,
	).Scan(&created, &collected, &registered, &signed)
	return created, collected, registered, signed, err
}

func collectActivities(rows pgx.Rows) ([]models.Activity, error) {
	var out []models.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

package meetings

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/communitymeet/backend/internal/models"
)

// Repository handles meeting and favorite persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a meeting repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const meetingColumns = `id, topic, community, group_id, group_name, group_type, COALESCE(city,''),
	sponsor, date, start, "end", COALESCE(duration,0), COALESCE(agenda,''), COALESCE(etherpad,''),
	COALESCE(emaillist,''), COALESCE(host_id,''), mid, COALESCE(mmid,''), COALESCE(join_url,''),
	platform, meeting_type, is_delete, user_id, COALESCE(replay_url,''), created_at`

func scanMeeting(row pgx.Row) (*models.Meeting, error) {
	var m models.Meeting
	err := row.Scan(&m.ID, &m.Topic, &m.Community, &m.GroupID, &m.GroupName, &m.GroupType, &m.City,
		&m.Sponsor, &m.Date, &m.Start, &m.End, &m.Duration, &m.Agenda, &m.Etherpad,
		&m.EmailList, &m.HostID, &m.MID, &m.MMID, &m.JoinURL,
		&m.Platform, &m.MeetingType, &m.IsDelete, &m.UserID, &m.ReplayURL, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts a new meeting.
func (r *Repository) Create(ctx context.Context, m *models.Meeting) error {
	const q = `INSERT INTO meetings (id, topic, community, group_id, group_name, group_type, city,
		sponsor, date, start, "end", duration, agenda, etherpad, emaillist, host_id, mid, mmid,
		join_url, platform, meeting_type, user_id, replay_url)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, NULLIF($6,''), $7, $8, $9, $10, $11,
		NULLIF($12,''), NULLIF($13,''), NULLIF($14,''), $15, $16, NULLIF($17,''), NULLIF($18,''),
		$19, $20, $21, NULLIF($22,''))
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, m.Topic, m.Community, m.GroupID, m.GroupName, m.GroupType, m.City,
		m.Sponsor, m.Date, m.Start, m.End, m.Duration, m.Agenda, m.Etherpad, m.EmailList,
		m.HostID, m.MID, m.MMID, m.JoinURL, m.Platform, m.MeetingType, m.UserID, m.ReplayURL).
		Scan(&m.ID, &m.CreatedAt)
}

// GetByID returns a live meeting by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error) {
	q := `SELECT ` + meetingColumns + ` FROM meetings WHERE id = $1 AND is_delete = 0`
	return scanMeeting(r.pool.QueryRow(ctx, q, id))
}

// GetLiveByMID returns a non-deleted meeting by provider meeting code.
func (r *Repository) GetLiveByMID(ctx context.Context, mid string) (*models.Meeting, error) {
	q := `SELECT ` + meetingColumns + ` FROM meetings WHERE mid = $1 AND is_delete = 0`
	return scanMeeting(r.pool.QueryRow(ctx, q, mid))
}

// GetByMID returns a meeting by provider meeting code regardless of
// deletion. Cancellation notices run after the soft delete and still need
// the row.
func (r *Repository) GetByMID(ctx context.Context, mid string) (*models.Meeting, error) {
	q := `SELECT ` + meetingColumns + ` FROM meetings WHERE mid = $1 ORDER BY created_at DESC LIMIT 1`
	return scanMeeting(r.pool.QueryRow(ctx, q, mid))
}

// SoftDeleteByMID marks a live meeting deleted. The is_delete predicate makes
// a concurrent double-cancel lose cleanly; the caller checks the bool.
func (r *Repository) SoftDeleteByMID(ctx context.Context, mid string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE meetings SET is_delete = 1 WHERE mid = $1 AND is_delete = 0`, mid)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetReplayURL records the replay link after a recording upload.
func (r *Repository) SetReplayURL(ctx context.Context, mid, replayURL string) error {
	_, err := r.pool.Exec(ctx, `UPDATE meetings SET replay_url = $2 WHERE mid = $1`, mid, replayURL)
	return err
}

// BookedHosts returns host ids of live meetings on a platform whose stored
// window overlaps the padded probe window on the given date.
func (r *Repository) BookedHosts(ctx context.Context, platform, date, startSearch, endSearch string) ([]string, error) {
	const q = `SELECT host_id FROM meetings
		WHERE is_delete = 0 AND platform = $1 AND date = $2 AND "end" > $3 AND start < $4 AND host_id IS NOT NULL`
	rows, err := r.pool.Query(ctx, q, platform, date, startSearch, endSearch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var hosts []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	return hosts, rows.Err()
}

// ListFilter narrows the meeting list endpoint.
type ListFilter struct {
	MeetingType int    // 0 = all
	Range       string // "", "daily", "weekly", "recently"
	UserID      *uuid.UUID
	Today       string // resolved by the caller from its clock
}

// List returns live meetings for the given filter, most recent date first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.Meeting, error) {
	q := `SELECT ` + meetingColumns + ` FROM meetings WHERE is_delete = 0`
	args := []interface{}{}
	n := 0
	add := func(cond string, v interface{}) {
		n++
		q += ` AND ` + cond + `$` + strconv.Itoa(n)
		args = append(args, v)
	}
	if f.MeetingType > 0 {
		add(`meeting_type = `, f.MeetingType)
	}
	if f.UserID != nil {
		add(`user_id = `, *f.UserID)
	}
	switch f.Range {
	case "daily":
		add(`date = `, f.Today)
	case "recently":
		add(`date >= `, f.Today)
	}
	q += ` ORDER BY date DESC, start`
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMeetings(rows)
}

// ListBetweenDates returns live meetings with date in [from, to], ordered by
// date then start. Used for the calendar data endpoint.
func (r *Repository) ListBetweenDates(ctx context.Context, from, to string) ([]models.Meeting, error) {
	q := `SELECT ` + meetingColumns + ` FROM meetings
		WHERE is_delete = 0 AND date >= $1 AND date <= $2 ORDER BY date, start`
	rows, err := r.pool.Query(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMeetings(rows)
}

// ListStartingBetween returns live meetings on date with start in (from, to].
// Drives the about-to-start push sweep.
func (r *Repository) ListStartingBetween(ctx context.Context, date, from, to string) ([]models.Meeting, error) {
	q := `SELECT ` + meetingColumns + ` FROM meetings
		WHERE is_delete = 0 AND date = $1 AND start > $2 AND start <= $3`
	rows, err := r.pool.Query(ctx, q, date, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMeetings(rows)
}

// ListCollected returns the live meetings a user has favorited.
func (r *Repository) ListCollected(ctx context.Context, userID uuid.UUID) ([]models.Meeting, error) {
	q := `SELECT ` + meetingColumns + ` FROM meetings
		WHERE is_delete = 0 AND id IN (SELECT meeting_id FROM collects WHERE user_id = $1)
		ORDER BY date DESC, start`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMeetings(rows)
}

// AddCollect favorites a meeting for a user, idempotently.
func (r *Repository) AddCollect(ctx context.Context, meetingID, userID uuid.UUID) (uuid.UUID, error) {
	const q = `INSERT INTO collects (id, meeting_id, user_id) VALUES (gen_random_uuid(), $1, $2)
		ON CONFLICT (meeting_id, user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id`
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, q, meetingID, userID).Scan(&id)
	return id, err
}

// DeleteCollect removes a user's own favorite.
func (r *Repository) DeleteCollect(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM collects WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CollectorIDs returns the user ids that favorited a meeting.
func (r *Repository) CollectorIDs(ctx context.Context, meetingID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM collects WHERE meeting_id = $1`, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteCollectsByMeeting removes every favorite of a meeting. Called after
// cancellation notices go out.
func (r *Repository) DeleteCollectsByMeeting(ctx context.Context, meetingID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM collects WHERE meeting_id = $1`, meetingID)
	return err
}

// CountByUser returns the number of live meetings created by a user; a zero
// user id counts all live meetings.
func (r *Repository) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	var err error
	if userID == uuid.Nil {
		err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM meetings WHERE is_delete = 0`).Scan(&count)
	} else {
		err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM meetings WHERE is_delete = 0 AND user_id = $1`, userID).Scan(&count)
	}
	return count, err
}

// CountCollected returns how many live meetings a user has favorited.
func (r *Repository) CountCollected(ctx context.Context, userID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM meetings
		WHERE is_delete = 0 AND id IN (SELECT meeting_id FROM collects WHERE user_id = $1)`
	var count int
	err := r.pool.QueryRow(ctx, q, userID).Scan(&count)
	return count, err
}

func collectMeetings(rows pgx.Rows) ([]models.Meeting, error) {
	var list []models.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}
	return list, rows.Err()
}

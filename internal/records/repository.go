// Package records receives provider recording webhooks and tracks archived
// recordings.
package records

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/communitymeet/backend/internal/models"
)

// Repository persists the archived-recording ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a record repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Exists reports whether a recording with this meeting code and exact file
// size has already been archived. The pair is the dedup key for webhook
// redeliveries.
func (r *Repository) Exists(ctx context.Context, meetingCode string, fileSize int64) (bool, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM records WHERE meeting_code = $1 AND file_size = $2`,
		meetingCode, fileSize,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Create inserts one archived-recording row.
func (r *Repository) Create(ctx context.Context, meetingCode string, fileSize int64, downloadURL string) (*models.Record, error) {
	rec := models.Record{MeetingCode: meetingCode, FileSize: fileSize, DownloadURL: downloadURL}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO records (id, meeting_code, file_size, download_url)
		 VALUES (gen_random_uuid(), $1, $2, $3) RETURNING id`,
		meetingCode, fileSize, downloadURL,
	).Scan(&rec.ID)
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}
	return &rec, nil
}

// ByMeetingCode returns all archived recordings for a meeting.
func (r *Repository) ByMeetingCode(ctx context.Context, meetingCode string) ([]models.Record, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, meeting_code, file_size, download_url FROM records WHERE meeting_code = $1`,
		meetingCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Record
	for rows.Next() {
		var rec models.Record
		if err := rows.Scan(&rec.ID, &rec.MeetingCode, &rec.FileSize, &rec.DownloadURL); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

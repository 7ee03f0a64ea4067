// Package feedback stores user-submitted issue reports and forwards them to
// the operations mailbox.
package feedback

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/communitymeet/backend/internal/models"
)

// Repository persists feedback entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a feedback repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts one feedback entry.
func (r *Repository) Create(ctx context.Context, f *models.Feedback) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO feedback (id, user_id, feedback_type, feedback_email, feedback_content)
		 VALUES (gen_random_uuid(), $1, $2, $3, $4) RETURNING id, created_at`,
		f.UserID, f.Type, f.Email, f.Content,
	).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

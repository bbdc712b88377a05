package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"campusevents-backend/internal/models"

	"github.com/jmoiron/sqlx"
)

type FeedbackInput struct {
	EventID  int64
	Rating   int
	Comments string
}

type Feedback struct {
	DB *sqlx.DB
}

// Submit stores one feedback row per student and event. Only students with
// an active booking may leave feedback.
func (f *Feedback) Submit(ctx context.Context, studentID int64, in FeedbackInput) (models.EventFeedback, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return models.EventFeedback{}, ErrBadRequest("Rating must be between 1 and 5")
	}
	var eventExists bool
	if err := f.DB.GetContext(ctx, &eventExists, `SELECT EXISTS(SELECT 1 FROM events WHERE event_id = $1)`, in.EventID); err != nil {
		return models.EventFeedback{}, WrapError(err, "load event")
	}
	if !eventExists {
		return models.EventFeedback{}, ErrNotFound("Event not found")
	}
	var attended bool
	if err := f.DB.GetContext(ctx, &attended, `
SELECT EXISTS(SELECT 1 FROM bookings WHERE user_id = $1 AND event_id = $2 AND status = 'booked')
`, studentID, in.EventID); err != nil {
		return models.EventFeedback{}, WrapError(err, "check booking")
	}
	if !attended {
		return models.EventFeedback{}, ErrForbidden("Only students who booked this event can leave feedback")
	}

	var comments *string
	if trimmed := strings.TrimSpace(in.Comments); trimmed != "" {
		comments = &trimmed
	}
	var row models.EventFeedback
	err := f.DB.GetContext(ctx, &row, `
INSERT INTO event_feedback (user_id, event_id, rating, comments)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, event_id) DO NOTHING
RETURNING feedback_id, user_id, event_id, rating, comments, submitted_at
`, studentID, in.EventID, in.Rating, comments)
	if errors.Is(err, sql.ErrNoRows) {
		return models.EventFeedback{}, ErrConflict("Feedback already submitted for this event")
	}
	return row, WrapError(err, "insert feedback")
}

func (f *Feedback) ForEvent(ctx context.Context, eventID int64) ([]models.FeedbackEntry, error) {
	items := []models.FeedbackEntry{}
	err := f.DB.SelectContext(ctx, &items, `
SELECT f.feedback_id, f.user_id, f.event_id, f.rating, f.comments, f.submitted_at, u.name AS student_name
FROM event_feedback f
JOIN users u ON u.id = f.user_id
WHERE f.event_id = $1
ORDER BY f.submitted_at DESC
`, eventID)
	return items, WrapError(err, "list feedback")
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"campusevents-backend/internal/models"

	"github.com/jmoiron/sqlx"
)

const eventListingSelect = `
SELECT e.event_id, e.request_id, e.title, e.description, e.date::text AS date, e.start_time, e.end_time,
       e.venue_id, e.club_id, e.created_by, e.created_at,
       v.name AS venue_name, v.location AS venue_location, v.capacity, c.name AS club_name,
       (SELECT count(*) FROM bookings b WHERE b.event_id = e.event_id AND b.status = 'booked') AS booked_count
FROM events e
JOIN venues v ON v.venue_id = e.venue_id
JOIN clubs c ON c.club_id = e.club_id
`

type Catalog struct {
	DB  *sqlx.DB
	Now func() time.Time
}

func (c *Catalog) UpcomingEvents(ctx context.Context) ([]models.EventListing, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	items := []models.EventListing{}
	err := c.DB.SelectContext(ctx, &items, eventListingSelect+`
WHERE e.date >= $1::date
ORDER BY e.date, e.start_time, e.event_id
`, now().Format("2006-01-02"))
	return items, WrapError(err, "list events")
}

func (c *Catalog) Event(ctx context.Context, eventID int64) (models.EventListing, error) {
	var item models.EventListing
	err := c.DB.GetContext(ctx, &item, eventListingSelect+`WHERE e.event_id = $1`, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return item, ErrNotFound("Event not found")
	}
	return item, WrapError(err, "load event")
}

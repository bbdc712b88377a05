package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"campusevents-backend/internal/db"
	"campusevents-backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// AdmissionStatus decides a new booking given the number of students
// already booked and the venue capacity.
func AdmissionStatus(booked, capacity int) string {
	if booked >= capacity {
		return models.BookingRejected
	}
	return models.BookingBooked
}

type BookingResult struct {
	Booking   models.Booking `json:"booking"`
	Message   string         `json:"message"`
	VenueFull bool           `json:"venue_full"`
}

type Bookings struct {
	DB  *sqlx.DB
	Now func() time.Time
}

func (b *Bookings) today() string {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	return now().Format("2006-01-02")
}

// Create admits a student to an event. The event row is locked for the
// duration so concurrent bookings of one event are serialized and the
// booked count never exceeds the venue capacity. Over-capacity attempts are
// stored with status rejected.
func (b *Bookings) Create(ctx context.Context, studentID, eventID int64) (BookingResult, error) {
	var result BookingResult
	err := db.WithTx(ctx, b.DB, func(tx *sqlx.Tx) error {
		target := struct {
			Date     string `db:"date"`
			Capacity int    `db:"capacity"`
		}{}
		err := tx.GetContext(ctx, &target, `
SELECT e.date::text AS date, v.capacity
FROM events e
JOIN venues v ON v.venue_id = e.venue_id
WHERE e.event_id = $1
FOR UPDATE OF e
`, eventID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound("Event not found")
		}
		if err != nil {
			return WrapError(err, "lock event")
		}
		if target.Date < b.today() {
			return ErrBadRequest("Cannot book an event that has already taken place")
		}

		var already bool
		if err := tx.GetContext(ctx, &already, `
SELECT EXISTS(SELECT 1 FROM bookings WHERE user_id = $1 AND event_id = $2 AND status = 'booked')
`, studentID, eventID); err != nil {
			return WrapError(err, "check booking")
		}
		if already {
			return ErrConflict("You have already booked this event")
		}

		var booked int
		if err := tx.GetContext(ctx, &booked, `
SELECT count(*) FROM bookings WHERE event_id = $1 AND status = 'booked'
`, eventID); err != nil {
			return WrapError(err, "count bookings")
		}

		status := AdmissionStatus(booked, target.Capacity)
		if err := tx.GetContext(ctx, &result.Booking, `
INSERT INTO bookings (user_id, event_id, status)
VALUES ($1, $2, $3)
RETURNING booking_id, user_id, event_id, status, booked_at
`, studentID, eventID, status); err != nil {
			if isUniqueViolation(err) {
				return ErrConflict("You have already booked this event")
			}
			return WrapError(err, "insert booking")
		}
		if status == models.BookingBooked {
			result.Message = "Booking confirmed"
			result.VenueFull = booked+1 >= target.Capacity
		} else {
			result.Message = "Event is full. Booking rejected due to venue capacity."
			result.VenueFull = true
		}
		return nil
	})
	return result, err
}

func (b *Bookings) ForStudent(ctx context.Context, studentID int64) ([]models.StudentBooking, error) {
	items := []models.StudentBooking{}
	err := b.DB.SelectContext(ctx, &items, `
SELECT b.booking_id, b.user_id, b.event_id, b.status, b.booked_at,
       e.title, e.date::text AS date, e.start_time, e.end_time, v.name AS venue_name
FROM bookings b
JOIN events e ON e.event_id = b.event_id
JOIN venues v ON v.venue_id = e.venue_id
WHERE b.user_id = $1
ORDER BY b.booked_at DESC, b.booking_id DESC
`, studentID)
	return items, WrapError(err, "list bookings")
}

// eventForRequest resolves the event spawned by an organizer's request.
func (b *Bookings) eventForRequest(ctx context.Context, organizerID, requestID int64) (models.Event, error) {
	var owner int64
	err := b.DB.GetContext(ctx, &owner, `SELECT created_by FROM event_requests WHERE id = $1`, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Event{}, ErrNotFound("Event request not found")
	}
	if err != nil {
		return models.Event{}, WrapError(err, "load event request")
	}
	if owner != organizerID {
		return models.Event{}, ErrForbidden("You can only view your own events")
	}
	var event models.Event
	err = b.DB.GetContext(ctx, &event, `SELECT `+eventColumns+` FROM events WHERE request_id = $1`, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Event{}, ErrNotFound("Event has not been approved yet")
	}
	return event, WrapError(err, "load event")
}

func (b *Bookings) StudentsForRequest(ctx context.Context, organizerID, requestID int64) (models.Event, []models.BookedStudent, error) {
	event, err := b.eventForRequest(ctx, organizerID, requestID)
	if err != nil {
		return event, nil, err
	}
	students := []models.BookedStudent{}
	err = b.DB.SelectContext(ctx, &students, `
SELECT u.id AS user_id, u.name, u.email, b.booked_at
FROM bookings b
JOIN users u ON u.id = b.user_id
WHERE b.event_id = $1 AND b.status = 'booked'
ORDER BY b.booked_at
`, event.EventID)
	return event, students, WrapError(err, "list booked students")
}

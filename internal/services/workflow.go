package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"campusevents-backend/internal/db"
	"campusevents-backend/internal/models"

	"github.com/jmoiron/sqlx"
)

type RequestKind string

const (
	KindClub  RequestKind = "club"
	KindVenue RequestKind = "venue"
	KindEvent RequestKind = "event"
)

func (k RequestKind) table() string {
	switch k {
	case KindClub:
		return "club_requests"
	case KindVenue:
		return "venue_requests"
	default:
		return "event_requests"
	}
}

func (k RequestKind) label() string {
	switch k {
	case KindClub:
		return "Club"
	case KindVenue:
		return "Venue"
	default:
		return "Event"
	}
}

// CanTransition reports whether a request may move from one status to
// another. Only pending requests can be decided.
func CanTransition(from, to string) bool {
	return from == models.StatusPending && (to == models.StatusApproved || to == models.StatusRejected)
}

// ValidateReason trims a rejection or suspension reason and checks its
// length.
func ValidateReason(raw string) (string, error) {
	reason := strings.TrimSpace(raw)
	if n := utf8.RuneCountInString(reason); n < 3 || n > 255 {
		return "", ErrBadRequest("Reason must be between 3 and 255 characters")
	}
	return reason, nil
}

const (
	clubRequestColumns  = `id, name, description, created_by, status, rejection_reason, created_at`
	venueRequestColumns = `id, name, location, capacity, created_by, status, rejection_reason, created_at`
	eventRequestColumns = `id, title, description, date::text AS date, start_time, end_time, venue_id, club_id, created_by, status, rejection_reason, created_at`
	clubColumns         = `club_id, request_id, name, description, created_by, created_at`
	venueColumns        = `venue_id, request_id, name, location, capacity, is_available, created_by, created_at`
	eventColumns        = `event_id, request_id, title, description, date::text AS date, start_time, end_time, venue_id, club_id, created_by, created_at`
)

type Workflow struct {
	DB  *sqlx.DB
	Now func() time.Time
}

func (w *Workflow) today() string {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	return now().Format("2006-01-02")
}

type ClubRequestInput struct {
	Name        string
	Description string
}

type VenueRequestInput struct {
	Name     string
	Location string
	Capacity int
}

type EventRequestInput struct {
	Title       string
	Description string
	Date        string
	StartTime   string
	EndTime     string
	VenueID     int64
	ClubID      int64
}

func (w *Workflow) CreateClubRequest(ctx context.Context, organizerID int64, in ClubRequestInput) (models.ClubRequest, error) {
	name := strings.TrimSpace(in.Name)
	var taken bool
	err := w.DB.GetContext(ctx, &taken, `
SELECT EXISTS(SELECT 1 FROM clubs WHERE name = $1)
    OR EXISTS(SELECT 1 FROM club_requests WHERE name = $1 AND status <> 'Rejected')
`, name)
	if err != nil {
		return models.ClubRequest{}, WrapError(err, "check club name")
	}
	if taken {
		return models.ClubRequest{}, ErrConflict("A club with this name already exists or is pending approval")
	}
	var req models.ClubRequest
	err = w.DB.GetContext(ctx, &req, `
INSERT INTO club_requests (name, description, created_by)
VALUES ($1, $2, $3)
RETURNING `+clubRequestColumns, name, strings.TrimSpace(in.Description), organizerID)
	return req, WrapError(err, "insert club request")
}

func (w *Workflow) CreateVenueRequest(ctx context.Context, organizerID int64, in VenueRequestInput) (models.VenueRequest, error) {
	name := strings.TrimSpace(in.Name)
	var taken bool
	err := w.DB.GetContext(ctx, &taken, `
SELECT EXISTS(SELECT 1 FROM venues WHERE lower(name) = lower($1))
    OR EXISTS(SELECT 1 FROM venue_requests WHERE lower(name) = lower($1) AND status <> 'Rejected')
`, name)
	if err != nil {
		return models.VenueRequest{}, WrapError(err, "check venue name")
	}
	if taken {
		return models.VenueRequest{}, ErrConflict("A venue with this name already exists or is pending approval")
	}
	var req models.VenueRequest
	err = w.DB.GetContext(ctx, &req, `
INSERT INTO venue_requests (name, location, capacity, created_by)
VALUES ($1, $2, $3, $4)
RETURNING `+venueRequestColumns, name, strings.TrimSpace(in.Location), in.Capacity, organizerID)
	return req, WrapError(err, "insert venue request")
}

// CreateEventRequest validates the schedule and references before filing
// a pending event request.
func (w *Workflow) CreateEventRequest(ctx context.Context, organizerID int64, in EventRequestInput) (models.EventRequest, error) {
	if in.Date < w.today() {
		return models.EventRequest{}, ErrBadRequest("Event date cannot be in the past")
	}
	if in.EndTime <= in.StartTime {
		return models.EventRequest{}, ErrBadRequest("End time must be after start time")
	}
	var venue models.Venue
	err := w.DB.GetContext(ctx, &venue, `SELECT `+venueColumns+` FROM venues WHERE venue_id = $1`, in.VenueID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.EventRequest{}, ErrNotFound("Venue not found")
	}
	if err != nil {
		return models.EventRequest{}, WrapError(err, "load venue")
	}
	if !venue.IsAvailable {
		return models.EventRequest{}, ErrBadRequest("Venue is not available")
	}
	var clubExists bool
	if err := w.DB.GetContext(ctx, &clubExists, `SELECT EXISTS(SELECT 1 FROM clubs WHERE club_id = $1)`, in.ClubID); err != nil {
		return models.EventRequest{}, WrapError(err, "load club")
	}
	if !clubExists {
		return models.EventRequest{}, ErrNotFound("Club not found")
	}
	var clash bool
	err = w.DB.GetContext(ctx, &clash, `
SELECT EXISTS(
  SELECT 1 FROM events
  WHERE venue_id = $1 AND date = $2::date AND start_time < $4 AND end_time > $3
)`, in.VenueID, in.Date, in.StartTime, in.EndTime)
	if err != nil {
		return models.EventRequest{}, WrapError(err, "check venue schedule")
	}
	if clash {
		return models.EventRequest{}, ErrConflict("Venue is already booked for that time slot")
	}
	var req models.EventRequest
	err = w.DB.GetContext(ctx, &req, `
INSERT INTO event_requests (title, description, date, start_time, end_time, venue_id, club_id, created_by)
VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8)
RETURNING `+eventRequestColumns,
		strings.TrimSpace(in.Title), strings.TrimSpace(in.Description), in.Date, in.StartTime, in.EndTime,
		in.VenueID, in.ClubID, organizerID)
	if isForeignKeyViolation(err) {
		return models.EventRequest{}, ErrNotFound("Venue or club not found")
	}
	return req, WrapError(err, "insert event request")
}

func (w *Workflow) PendingClubRequests(ctx context.Context) ([]models.ClubRequest, error) {
	items := []models.ClubRequest{}
	err := w.DB.SelectContext(ctx, &items, `
SELECT `+clubRequestColumns+` FROM club_requests WHERE status = 'Pending' ORDER BY created_at DESC, id DESC`)
	return items, WrapError(err, "list club requests")
}

func (w *Workflow) PendingVenueRequests(ctx context.Context) ([]models.VenueRequest, error) {
	items := []models.VenueRequest{}
	err := w.DB.SelectContext(ctx, &items, `
SELECT `+venueRequestColumns+` FROM venue_requests WHERE status = 'Pending' ORDER BY created_at DESC, id DESC`)
	return items, WrapError(err, "list venue requests")
}

func (w *Workflow) PendingEventRequests(ctx context.Context) ([]models.EventRequest, error) {
	items := []models.EventRequest{}
	err := w.DB.SelectContext(ctx, &items, `
SELECT `+eventRequestColumns+` FROM event_requests WHERE status = 'Pending' ORDER BY created_at DESC, id DESC`)
	return items, WrapError(err, "list event requests")
}

func (w *Workflow) OrganizerClubRequests(ctx context.Context, organizerID int64) ([]models.ClubRequest, error) {
	items := []models.ClubRequest{}
	err := w.DB.SelectContext(ctx, &items, `
SELECT `+clubRequestColumns+` FROM club_requests WHERE created_by = $1 ORDER BY created_at DESC, id DESC`, organizerID)
	return items, WrapError(err, "list own club requests")
}

func (w *Workflow) OrganizerVenueRequests(ctx context.Context, organizerID int64) ([]models.VenueRequest, error) {
	items := []models.VenueRequest{}
	err := w.DB.SelectContext(ctx, &items, `
SELECT `+venueRequestColumns+` FROM venue_requests WHERE created_by = $1 ORDER BY created_at DESC, id DESC`, organizerID)
	return items, WrapError(err, "list own venue requests")
}

// OrganizerEventRequests lists the organizer's event requests with the
// number of students currently booked on each spawned event.
func (w *Workflow) OrganizerEventRequests(ctx context.Context, organizerID int64) ([]models.OrganizerEventRequest, error) {
	items := []models.OrganizerEventRequest{}
	err := w.DB.SelectContext(ctx, &items, `
SELECT r.id, r.title, r.description, r.date::text AS date, r.start_time, r.end_time, r.venue_id, r.club_id,
       r.created_by, r.status, r.rejection_reason, r.created_at,
       v.name AS venue_name, c.name AS club_name, e.event_id,
       COALESCE((SELECT count(*) FROM bookings b WHERE b.event_id = e.event_id AND b.status = 'booked'), 0) AS student_count
FROM event_requests r
JOIN venues v ON v.venue_id = r.venue_id
JOIN clubs c ON c.club_id = r.club_id
LEFT JOIN events e ON e.request_id = r.id
WHERE r.created_by = $1
ORDER BY r.created_at DESC, r.id DESC
`, organizerID)
	return items, WrapError(err, "list own event requests")
}

func (w *Workflow) OrganizerClubs(ctx context.Context, organizerID int64) ([]models.Club, error) {
	items := []models.Club{}
	err := w.DB.SelectContext(ctx, &items, `
SELECT `+clubColumns+` FROM clubs WHERE created_by = $1 ORDER BY name`, organizerID)
	return items, WrapError(err, "list own clubs")
}

func (w *Workflow) AvailableVenues(ctx context.Context) ([]models.Venue, error) {
	items := []models.Venue{}
	err := w.DB.SelectContext(ctx, &items, `
SELECT `+venueColumns+` FROM venues WHERE is_available = TRUE ORDER BY name`)
	return items, WrapError(err, "list venues")
}

func (w *Workflow) AllClubs(ctx context.Context) ([]models.Club, error) {
	items := []models.Club{}
	err := w.DB.SelectContext(ctx, &items, `SELECT `+clubColumns+` FROM clubs ORDER BY name`)
	return items, WrapError(err, "list clubs")
}

// lockPending loads and locks a request row, failing unless it can still
// move to target.
func lockPending(ctx context.Context, tx *sqlx.Tx, kind RequestKind, id int64, target string) error {
	var status string
	err := tx.GetContext(ctx, &status, `SELECT status FROM `+kind.table()+` WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound(kind.label() + " request not found")
	}
	if err != nil {
		return WrapError(err, "lock "+string(kind)+" request")
	}
	if !CanTransition(status, target) {
		return ErrConflict(kind.label() + " request has already been " + strings.ToLower(status))
	}
	return nil
}

func setStatus(ctx context.Context, tx *sqlx.Tx, kind RequestKind, id int64, status string, reason *string) error {
	_, err := tx.ExecContext(ctx, `
UPDATE `+kind.table()+` SET status = $1, rejection_reason = $2 WHERE id = $3 AND status = 'Pending'
`, status, reason, id)
	return WrapError(err, "update "+string(kind)+" request")
}

func (w *Workflow) ApproveClub(ctx context.Context, adminID, requestID int64) (models.Club, error) {
	var club models.Club
	err := db.WithTx(ctx, w.DB, func(tx *sqlx.Tx) error {
		if err := lockPending(ctx, tx, KindClub, requestID, models.StatusApproved); err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &club, `
INSERT INTO clubs (request_id, name, description, created_by)
SELECT id, name, description, created_by FROM club_requests WHERE id = $1
RETURNING `+clubColumns, requestID); err != nil {
			if isUniqueViolation(err) {
				return ErrConflict("Club already exists for this request")
			}
			return WrapError(err, "insert club")
		}
		if err := setStatus(ctx, tx, KindClub, requestID, models.StatusApproved, nil); err != nil {
			return err
		}
		return insertAdminLog(ctx, tx, adminID, requestID, string(KindClub), models.StatusApproved, nil)
	})
	return club, err
}

func (w *Workflow) ApproveVenue(ctx context.Context, adminID, requestID int64) (models.Venue, error) {
	var venue models.Venue
	err := db.WithTx(ctx, w.DB, func(tx *sqlx.Tx) error {
		if err := lockPending(ctx, tx, KindVenue, requestID, models.StatusApproved); err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &venue, `
INSERT INTO venues (request_id, name, location, capacity, created_by)
SELECT id, name, location, capacity, created_by FROM venue_requests WHERE id = $1
RETURNING `+venueColumns, requestID); err != nil {
			if isUniqueViolation(err) {
				return ErrConflict("Venue already exists for this request")
			}
			return WrapError(err, "insert venue")
		}
		if err := setStatus(ctx, tx, KindVenue, requestID, models.StatusApproved, nil); err != nil {
			return err
		}
		return insertAdminLog(ctx, tx, adminID, requestID, string(KindVenue), models.StatusApproved, nil)
	})
	return venue, err
}

// ApproveEvent copies the request into a live event. Venue availability is
// not re-checked at this point.
func (w *Workflow) ApproveEvent(ctx context.Context, adminID, requestID int64) (models.Event, error) {
	var event models.Event
	err := db.WithTx(ctx, w.DB, func(tx *sqlx.Tx) error {
		if err := lockPending(ctx, tx, KindEvent, requestID, models.StatusApproved); err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &event, `
INSERT INTO events (request_id, title, description, date, start_time, end_time, venue_id, club_id, created_by)
SELECT id, title, description, date, start_time, end_time, venue_id, club_id, created_by
FROM event_requests WHERE id = $1
RETURNING `+eventColumns, requestID); err != nil {
			if isUniqueViolation(err) {
				return ErrConflict("Event already exists for this request")
			}
			return WrapError(err, "insert event")
		}
		if err := setStatus(ctx, tx, KindEvent, requestID, models.StatusApproved, nil); err != nil {
			return err
		}
		return insertAdminLog(ctx, tx, adminID, requestID, string(KindEvent), models.StatusApproved, nil)
	})
	return event, err
}

// Reject moves a pending request of any kind to Rejected with reason.
func (w *Workflow) Reject(ctx context.Context, kind RequestKind, adminID, requestID int64, reason string) error {
	valid, err := ValidateReason(reason)
	if err != nil {
		return err
	}
	return db.WithTx(ctx, w.DB, func(tx *sqlx.Tx) error {
		if err := lockPending(ctx, tx, kind, requestID, models.StatusRejected); err != nil {
			return err
		}
		if err := setStatus(ctx, tx, kind, requestID, models.StatusRejected, &valid); err != nil {
			return err
		}
		return insertAdminLog(ctx, tx, adminID, requestID, string(kind), models.StatusRejected, &valid)
	})
}

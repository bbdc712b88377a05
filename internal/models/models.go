package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

const (
	RoleStudent   = "student"
	RoleOrganizer = "organizer"
	RoleAdmin     = "admin"
)

const (
	StatusPending  = "Pending"
	StatusApproved = "Approved"
	StatusRejected = "Rejected"
)

const (
	BookingBooked   = "booked"
	BookingRejected = "rejected"
)

type User struct {
	ID              int64      `db:"id" json:"id"`
	Name            string     `db:"name" json:"name"`
	Email           string     `db:"email" json:"email"`
	PasswordHash    *string    `db:"password_hash" json:"-"`
	Role            string     `db:"role" json:"role"`
	IsVerified      bool       `db:"is_verified" json:"is_verified"`
	IsActive        bool       `db:"is_active" json:"is_active"`
	ResetOTP        *string    `db:"reset_otp" json:"-"`
	ResetOTPExpires *time.Time `db:"reset_otp_expires" json:"-"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

type ClubRequest struct {
	ID              int64     `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Description     string    `db:"description" json:"description"`
	CreatedBy       int64     `db:"created_by" json:"created_by"`
	Status          string    `db:"status" json:"status"`
	RejectionReason *string   `db:"rejection_reason" json:"rejection_reason"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

type VenueRequest struct {
	ID              int64     `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Location        string    `db:"location" json:"location"`
	Capacity        int       `db:"capacity" json:"capacity"`
	CreatedBy       int64     `db:"created_by" json:"created_by"`
	Status          string    `db:"status" json:"status"`
	RejectionReason *string   `db:"rejection_reason" json:"rejection_reason"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

type EventRequest struct {
	ID              int64     `db:"id" json:"id"`
	Title           string    `db:"title" json:"title"`
	Description     string    `db:"description" json:"description"`
	Date            string    `db:"date" json:"date"`
	StartTime       string    `db:"start_time" json:"start_time"`
	EndTime         string    `db:"end_time" json:"end_time"`
	VenueID         int64     `db:"venue_id" json:"venue_id"`
	ClubID          int64     `db:"club_id" json:"club_id"`
	CreatedBy       int64     `db:"created_by" json:"created_by"`
	Status          string    `db:"status" json:"status"`
	RejectionReason *string   `db:"rejection_reason" json:"rejection_reason"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// OrganizerEventRequest is an event request with the live booking count of
// the event it spawned, zero while the request is not approved.
type OrganizerEventRequest struct {
	EventRequest
	VenueName    string `db:"venue_name" json:"venue_name"`
	ClubName     string `db:"club_name" json:"club_name"`
	EventID      *int64 `db:"event_id" json:"event_id"`
	StudentCount int    `db:"student_count" json:"student_count"`
}

type Club struct {
	ClubID      int64     `db:"club_id" json:"club_id"`
	RequestID   int64     `db:"request_id" json:"request_id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedBy   int64     `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type Venue struct {
	VenueID     int64     `db:"venue_id" json:"venue_id"`
	RequestID   int64     `db:"request_id" json:"request_id"`
	Name        string    `db:"name" json:"name"`
	Location    string    `db:"location" json:"location"`
	Capacity    int       `db:"capacity" json:"capacity"`
	IsAvailable bool      `db:"is_available" json:"is_available"`
	CreatedBy   int64     `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type Event struct {
	EventID     int64     `db:"event_id" json:"event_id"`
	RequestID   int64     `db:"request_id" json:"request_id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Date        string    `db:"date" json:"date"`
	StartTime   string    `db:"start_time" json:"start_time"`
	EndTime     string    `db:"end_time" json:"end_time"`
	VenueID     int64     `db:"venue_id" json:"venue_id"`
	ClubID      int64     `db:"club_id" json:"club_id"`
	CreatedBy   int64     `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// EventListing is an event joined with its venue and club for browsing.
type EventListing struct {
	Event
	VenueName     string `db:"venue_name" json:"venue_name"`
	VenueLocation string `db:"venue_location" json:"venue_location"`
	Capacity      int    `db:"capacity" json:"capacity"`
	ClubName      string `db:"club_name" json:"club_name"`
	BookedCount   int    `db:"booked_count" json:"booked_count"`
}

type Booking struct {
	BookingID int64     `db:"booking_id" json:"booking_id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	EventID   int64     `db:"event_id" json:"event_id"`
	Status    string    `db:"status" json:"status"`
	BookedAt  time.Time `db:"booked_at" json:"booked_at"`
}

type StudentBooking struct {
	Booking
	Title     string `db:"title" json:"title"`
	Date      string `db:"date" json:"date"`
	StartTime string `db:"start_time" json:"start_time"`
	EndTime   string `db:"end_time" json:"end_time"`
	VenueName string `db:"venue_name" json:"venue_name"`
}

type BookedStudent struct {
	UserID   int64     `db:"user_id" json:"user_id"`
	Name     string    `db:"name" json:"name"`
	Email    string    `db:"email" json:"email"`
	BookedAt time.Time `db:"booked_at" json:"booked_at"`
}

type EventFeedback struct {
	FeedbackID  int64     `db:"feedback_id" json:"feedback_id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	EventID     int64     `db:"event_id" json:"event_id"`
	Rating      int       `db:"rating" json:"rating"`
	Comments    *string   `db:"comments" json:"comments"`
	SubmittedAt time.Time `db:"submitted_at" json:"submitted_at"`
}

type FeedbackEntry struct {
	EventFeedback
	StudentName string `db:"student_name" json:"student_name"`
}

type AdminLog struct {
	ID          int64     `db:"id" json:"id"`
	AdminID     int64     `db:"admin_id" json:"admin_id"`
	AdminName   string    `db:"admin_name" json:"admin_name"`
	RequestID   int64     `db:"request_id" json:"request_id"`
	RequestType string    `db:"request_type" json:"request_type"`
	Status      string    `db:"status" json:"status"`
	Description *string   `db:"description" json:"description"`
	ActionAt    time.Time `db:"action_at" json:"action_at"`
}

type SecurityLog struct {
	ID        int64          `db:"id" json:"id"`
	Type      string         `db:"type" json:"type"`
	Message   string         `db:"message" json:"message"`
	Meta      types.JSONText `db:"meta" json:"meta"`
	Timestamp time.Time      `db:"timestamp" json:"timestamp"`
}

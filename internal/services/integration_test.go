package services

import (
	"context"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"campusevents-backend/internal/db"
	"campusevents-backend/internal/kv"
	"campusevents-backend/internal/migrations"
	"campusevents-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// These tests need a disposable Postgres database.
func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	database, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrations.Apply(context.Background(), database, migrations.Files()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func seedUser(t *testing.T, database *sqlx.DB, role string, active bool) models.User {
	t.Helper()
	hash, err := HashPassword("Str0ng!Pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	var user models.User
	err = database.Get(&user, `
INSERT INTO users (name, email, password_hash, role, is_verified, is_active)
VALUES ($1, $2, $3, $4, TRUE, $5)
RETURNING `+userColumns, "User "+role, uuid.NewString()+"@campus.test", hash, role, active)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

type fixture struct {
	workflow  *Workflow
	organizer models.User
	admin     models.User
	venue     models.Venue
	club      models.Club
}

func newFixture(t *testing.T, database *sqlx.DB, capacity int) fixture {
	t.Helper()
	ctx := context.Background()
	f := fixture{
		workflow:  &Workflow{DB: database},
		organizer: seedUser(t, database, models.RoleOrganizer, true),
		admin:     seedUser(t, database, models.RoleAdmin, true),
	}
	vr, err := f.workflow.CreateVenueRequest(ctx, f.organizer.ID, VenueRequestInput{
		Name: "Hall " + uuid.NewString(), Location: "North campus", Capacity: capacity,
	})
	if err != nil {
		t.Fatalf("venue request: %v", err)
	}
	if f.venue, err = f.workflow.ApproveVenue(ctx, f.admin.ID, vr.ID); err != nil {
		t.Fatalf("approve venue: %v", err)
	}
	cr, err := f.workflow.CreateClubRequest(ctx, f.organizer.ID, ClubRequestInput{Name: "Club " + uuid.NewString()})
	if err != nil {
		t.Fatalf("club request: %v", err)
	}
	if f.club, err = f.workflow.ApproveClub(ctx, f.admin.ID, cr.ID); err != nil {
		t.Fatalf("approve club: %v", err)
	}
	return f
}

func (f fixture) eventRequest(t *testing.T, start, end string) models.EventRequest {
	t.Helper()
	req, err := f.workflow.CreateEventRequest(context.Background(), f.organizer.ID, EventRequestInput{
		Title:     "Talk " + uuid.NewString()[:8],
		Date:      time.Now().AddDate(0, 0, 7).Format("2006-01-02"),
		StartTime: start,
		EndTime:   end,
		VenueID:   f.venue.VenueID,
		ClubID:    f.club.ClubID,
	})
	if err != nil {
		t.Fatalf("event request: %v", err)
	}
	return req
}

func TestApprovalCreatesExactlyOneResource(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()
	f := newFixture(t, database, 10)

	if f.venue.Capacity != 10 || f.venue.Location != "North campus" {
		t.Fatalf("venue fields not copied: %+v", f.venue)
	}

	req := f.eventRequest(t, "10:00", "11:00")
	event, err := f.workflow.ApproveEvent(ctx, f.admin.ID, req.ID)
	if err != nil {
		t.Fatalf("ApproveEvent: %v", err)
	}
	if event.Title != req.Title || event.Date != req.Date || event.StartTime != req.StartTime ||
		event.VenueID != req.VenueID || event.ClubID != req.ClubID || event.CreatedBy != req.CreatedBy {
		t.Fatalf("event fields differ from request: %+v vs %+v", event, req)
	}

	if _, err := f.workflow.ApproveEvent(ctx, f.admin.ID, req.ID); statusOf(err) != http.StatusConflict {
		t.Fatalf("second approval should conflict, got %v", err)
	}
	var count int
	_ = database.Get(&count, `SELECT count(*) FROM events WHERE request_id = $1`, req.ID)
	if count != 1 {
		t.Fatalf("expected one event, found %d", count)
	}
	var logs int
	_ = database.Get(&logs, `SELECT count(*) FROM admin_logs WHERE request_id = $1 AND request_type = 'event'`, req.ID)
	if logs != 1 {
		t.Fatalf("expected one admin log, found %d", logs)
	}
}

func TestRejectThenApproveIsRefused(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()
	f := newFixture(t, database, 10)
	req := f.eventRequest(t, "12:00", "13:00")

	if err := f.workflow.Reject(ctx, KindEvent, f.admin.ID, req.ID, "no"); statusOf(err) != http.StatusBadRequest {
		t.Fatalf("short reason should be refused, got %v", err)
	}
	if err := f.workflow.Reject(ctx, KindEvent, f.admin.ID, req.ID, "insufficient budget"); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if _, err := f.workflow.ApproveEvent(ctx, f.admin.ID, req.ID); statusOf(err) != http.StatusConflict {
		t.Fatalf("approve after reject should conflict, got %v", err)
	}
	var status string
	var reason *string
	row := database.QueryRow(`SELECT status, rejection_reason FROM event_requests WHERE id = $1`, req.ID)
	if err := row.Scan(&status, &reason); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if status != models.StatusRejected || reason == nil || *reason != "insufficient budget" {
		t.Fatalf("unexpected terminal state %s %v", status, reason)
	}
	var events int
	_ = database.Get(&events, `SELECT count(*) FROM events WHERE request_id = $1`, req.ID)
	if events != 0 {
		t.Fatal("rejected request must not spawn an event")
	}
	if err := f.workflow.Reject(ctx, KindEvent, f.admin.ID, 999999999, "missing one"); statusOf(err) != http.StatusNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBookingOverCapacity(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()
	f := newFixture(t, database, 2)
	event, err := f.workflow.ApproveEvent(ctx, f.admin.ID, f.eventRequest(t, "14:00", "15:00").ID)
	if err != nil {
		t.Fatalf("ApproveEvent: %v", err)
	}
	bookings := &Bookings{DB: database}

	statuses := []string{}
	for i := 0; i < 3; i++ {
		student := seedUser(t, database, models.RoleStudent, true)
		res, err := bookings.Create(ctx, student.ID, event.EventID)
		if err != nil {
			t.Fatalf("booking %d: %v", i, err)
		}
		statuses = append(statuses, res.Booking.Status)
		if i == 2 && res.Message != "Event is full. Booking rejected due to venue capacity." {
			t.Errorf("unexpected message %q", res.Message)
		}
	}
	want := []string{models.BookingBooked, models.BookingBooked, models.BookingRejected}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("statuses = %v, want %v", statuses, want)
		}
	}
}

func TestConcurrentBookingsRespectCapacity(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()
	const capacity = 3
	f := newFixture(t, database, capacity)
	event, err := f.workflow.ApproveEvent(ctx, f.admin.ID, f.eventRequest(t, "16:00", "17:00").ID)
	if err != nil {
		t.Fatalf("ApproveEvent: %v", err)
	}
	bookings := &Bookings{DB: database}

	students := make([]models.User, 12)
	for i := range students {
		students[i] = seedUser(t, database, models.RoleStudent, true)
	}
	var wg sync.WaitGroup
	for _, s := range students {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, _ = bookings.Create(ctx, id, event.EventID)
		}(s.ID)
	}
	wg.Wait()

	var booked int
	_ = database.Get(&booked, `SELECT count(*) FROM bookings WHERE event_id = $1 AND status = 'booked'`, event.EventID)
	if booked != capacity {
		t.Fatalf("booked = %d, want %d", booked, capacity)
	}
}

func TestDuplicateBookingAndFeedback(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()
	f := newFixture(t, database, 5)
	event, err := f.workflow.ApproveEvent(ctx, f.admin.ID, f.eventRequest(t, "18:00", "19:00").ID)
	if err != nil {
		t.Fatalf("ApproveEvent: %v", err)
	}
	student := seedUser(t, database, models.RoleStudent, true)
	bookings := &Bookings{DB: database}
	feedback := &Feedback{DB: database}

	if _, err := feedback.Submit(ctx, student.ID, FeedbackInput{EventID: event.EventID, Rating: 4}); statusOf(err) != http.StatusForbidden {
		t.Fatalf("feedback without booking should be forbidden, got %v", err)
	}
	if _, err := bookings.Create(ctx, student.ID, event.EventID); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := bookings.Create(ctx, student.ID, event.EventID); statusOf(err) != http.StatusConflict {
		t.Fatalf("duplicate booking should conflict, got %v", err)
	}

	first, err := feedback.Submit(ctx, student.ID, FeedbackInput{EventID: event.EventID, Rating: 5, Comments: "Great"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := feedback.Submit(ctx, student.ID, FeedbackInput{EventID: event.EventID, Rating: 1}); statusOf(err) != http.StatusConflict {
		t.Fatalf("second feedback should conflict, got %v", err)
	}
	entries, err := feedback.ForEvent(ctx, event.EventID)
	if err != nil || len(entries) != 1 || entries[0].Rating != first.Rating {
		t.Fatalf("first feedback should be unchanged: %+v %v", entries, err)
	}
}

type nopMailer struct{ codes map[string]string }

func (m *nopMailer) SendOTP(_ context.Context, to, code string, _ OTPPurpose) error {
	m.codes[to] = code
	return nil
}

func TestSuspendedUserCannotLogIn(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()
	accounts := &Accounts{DB: database}
	admin := seedUser(t, database, models.RoleAdmin, true)
	student := seedUser(t, database, models.RoleStudent, true)

	if _, err := accounts.Authenticate(ctx, student.Email, "Str0ng!Pass"); err != nil {
		t.Fatalf("login before suspension: %v", err)
	}
	if _, err := accounts.SetActive(ctx, admin.ID, student.ID, false, "x"); statusOf(err) != http.StatusBadRequest {
		t.Fatalf("suspension needs a reason, got %v", err)
	}
	if _, err := accounts.SetActive(ctx, admin.ID, student.ID, false, "abusive behaviour"); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	var status string
	if err := database.Get(&status, `
SELECT status FROM admin_logs WHERE request_id = $1 AND request_type = 'user' ORDER BY id DESC LIMIT 1
`, student.ID); err != nil || status != models.StatusRejected {
		t.Fatalf("suspension log status = %q, %v", status, err)
	}
	_, err := accounts.Authenticate(ctx, student.Email, "Str0ng!Pass")
	if statusOf(err) != http.StatusForbidden {
		t.Fatalf("suspended login should be forbidden, got %v", err)
	}
	if _, err := accounts.SetActive(ctx, admin.ID, admin.ID, false, "not allowed"); statusOf(err) != http.StatusForbidden {
		t.Fatalf("admins cannot be suspended, got %v", err)
	}
	if _, err := accounts.SetActive(ctx, admin.ID, student.ID, true, ""); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if err := database.Get(&status, `
SELECT status FROM admin_logs WHERE request_id = $1 AND request_type = 'user' ORDER BY id DESC LIMIT 1
`, student.ID); err != nil || status != models.StatusApproved {
		t.Fatalf("reactivation log status = %q, %v", status, err)
	}
}

func TestRegistrationAndPasswordReset(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()
	mailer := &nopMailer{codes: map[string]string{}}
	accounts := &Accounts{
		DB:     database,
		OTP:    &OTPStore{Store: kv.NewMemory(), TTL: RegistrationOTPTTL},
		Mailer: mailer,
	}
	email := uuid.NewString() + "@campus.test"

	if _, err := accounts.Register(ctx, RegisterInput{Name: "Ada", Email: email, Password: "Str0ng!Pass", Role: "student"}); err == nil {
		t.Fatal("registration without otp should fail")
	}
	if err := accounts.SendRegistrationOTP(ctx, email); err != nil {
		t.Fatalf("SendRegistrationOTP: %v", err)
	}
	if err := accounts.VerifyRegistrationOTP(ctx, email, mailer.codes[email]); err != nil {
		t.Fatalf("VerifyRegistrationOTP: %v", err)
	}
	user, err := accounts.Register(ctx, RegisterInput{Name: "Ada", Email: email, Password: "Str0ng!Pass", Role: "student"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !user.IsVerified || !user.IsActive {
		t.Fatalf("new account should be verified and active: %+v", user)
	}
	if err := accounts.SendRegistrationOTP(ctx, email); statusOf(err) != http.StatusConflict {
		t.Fatalf("existing email should conflict, got %v", err)
	}

	if err := accounts.RequestPasswordReset(ctx, email); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	code := mailer.codes[email]
	if err := accounts.VerifyResetOTP(ctx, email, "000000"); statusOf(err) != http.StatusBadRequest {
		t.Fatalf("wrong code should fail, got %v", err)
	}
	if _, err := accounts.ResetPassword(ctx, email, code, "N3w!Password"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if _, err := accounts.Authenticate(ctx, email, "N3w!Password"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if err := accounts.VerifyResetOTP(ctx, email, code); err == nil {
		t.Fatal("reset code must be single use")
	}
	if err := accounts.RequestPasswordReset(ctx, "nobody-"+email); err != nil {
		t.Fatalf("unknown email should succeed silently: %v", err)
	}
}

func TestListingsFollowRequestLifecycle(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()
	f := newFixture(t, database, 5)
	bookings := &Bookings{DB: database}
	catalog := &Catalog{DB: database}

	req := f.eventRequest(t, "16:00", "17:00")
	pending, err := f.workflow.PendingEventRequests(ctx)
	if err != nil {
		t.Fatalf("PendingEventRequests: %v", err)
	}
	if !containsRequest(pending, req.ID) {
		t.Fatal("new request missing from pending list")
	}
	own, err := f.workflow.OrganizerEventRequests(ctx, f.organizer.ID)
	if err != nil || len(own) != 1 {
		t.Fatalf("own requests = %+v, %v", own, err)
	}
	if own[0].EventID != nil || own[0].StudentCount != 0 || own[0].Status != models.StatusPending {
		t.Fatalf("pending request row = %+v", own[0])
	}
	if _, _, err := bookings.StudentsForRequest(ctx, f.organizer.ID, req.ID); statusOf(err) != http.StatusNotFound {
		t.Fatalf("unapproved request should have no event, got %v", err)
	}

	event, err := f.workflow.ApproveEvent(ctx, f.admin.ID, req.ID)
	if err != nil {
		t.Fatalf("ApproveEvent: %v", err)
	}
	pending, _ = f.workflow.PendingEventRequests(ctx)
	if containsRequest(pending, req.ID) {
		t.Fatal("approved request still pending")
	}

	student := seedUser(t, database, models.RoleStudent, true)
	if _, err := bookings.Create(ctx, student.ID, event.EventID); err != nil {
		t.Fatalf("book: %v", err)
	}

	own, _ = f.workflow.OrganizerEventRequests(ctx, f.organizer.ID)
	if len(own) != 1 || own[0].EventID == nil || *own[0].EventID != event.EventID || own[0].StudentCount != 1 {
		t.Fatalf("approved request row = %+v", own)
	}

	mine, err := bookings.ForStudent(ctx, student.ID)
	if err != nil || len(mine) != 1 || mine[0].EventID != event.EventID || mine[0].Title != event.Title {
		t.Fatalf("student bookings = %+v, %v", mine, err)
	}

	_, students, err := bookings.StudentsForRequest(ctx, f.organizer.ID, req.ID)
	if err != nil || len(students) != 1 || students[0].UserID != student.ID {
		t.Fatalf("booked students = %+v, %v", students, err)
	}
	if _, _, err := bookings.StudentsForRequest(ctx, f.admin.ID, req.ID); statusOf(err) != http.StatusForbidden {
		t.Fatalf("non-owner should be refused, got %v", err)
	}

	listing, err := catalog.Event(ctx, event.EventID)
	if err != nil {
		t.Fatalf("catalog event: %v", err)
	}
	if listing.BookedCount != 1 || listing.Capacity != 5 || listing.ClubName != f.club.Name {
		t.Fatalf("listing = %+v", listing)
	}
	upcoming, err := catalog.UpcomingEvents(ctx)
	if err != nil {
		t.Fatalf("UpcomingEvents: %v", err)
	}
	var found bool
	for _, item := range upcoming {
		found = found || item.EventID == event.EventID
	}
	if !found {
		t.Fatal("approved event missing from catalogue")
	}

	clubs, err := f.workflow.OrganizerClubs(ctx, f.organizer.ID)
	if err != nil || len(clubs) != 1 || clubs[0].ClubID != f.club.ClubID {
		t.Fatalf("organizer clubs = %+v, %v", clubs, err)
	}
}

func containsRequest(items []models.EventRequest, id int64) bool {
	for _, item := range items {
		if item.ID == id {
			return true
		}
	}
	return false
}

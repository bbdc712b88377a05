package httpapi

import (
	"net/http"

	"campusevents-backend/internal/models"
	"campusevents-backend/internal/services"
)

type BookingRequest struct {
	EventID int64 `json:"event_id" validate:"required,min=1"`
}

type FeedbackRequest struct {
	EventID  int64  `json:"event_id" validate:"required,min=1"`
	Rating   int    `json:"rating" validate:"required,min=1,max=5"`
	Comments string `json:"comments" validate:"max=500"`
}

func (s *Server) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.Catalog.UpcomingEvents(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, events)
}

func (s *Server) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r, "eventId")
	if !ok {
		WriteError(w, http.StatusBadRequest, "Invalid event id")
		return
	}
	event, err := s.Catalog.Event(r.Context(), eventID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, event)
}

// CreateBooking answers 201 for an admitted booking and 200 for one stored
// as rejected because the venue is full.
func (s *Server) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req BookingRequest
	if !s.bind(w, r, &req) {
		return
	}
	id, _ := CurrentIdentity(r)
	result, err := s.Bookings.Create(r.Context(), id.ID, req.EventID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	status := http.StatusCreated
	if result.Booking.Status != models.BookingBooked {
		status = http.StatusOK
	}
	WriteJSON(w, status, result)
}

func (s *Server) ListBookings(w http.ResponseWriter, r *http.Request) {
	id, _ := CurrentIdentity(r)
	bookings, err := s.Bookings.ForStudent(r.Context(), id.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, bookings)
}

func (s *Server) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if !s.bind(w, r, &req) {
		return
	}
	id, _ := CurrentIdentity(r)
	feedback, err := s.Feedback.Submit(r.Context(), id.ID, services.FeedbackInput{
		EventID:  req.EventID,
		Rating:   req.Rating,
		Comments: req.Comments,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message":  "Feedback submitted",
		"feedback": feedback,
	})
}

func (s *Server) ListFeedback(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r, "eventId")
	if !ok {
		WriteError(w, http.StatusBadRequest, "Invalid event id")
		return
	}
	entries, err := s.Feedback.ForEvent(r.Context(), eventID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, entries)
}

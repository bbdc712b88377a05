package httpapi

import (
	"net/http"
	"strings"
	"time"

	"campusevents-backend/internal/services"
)

type ClubRequestPayload struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"required,max=500"`
}

type VenueRequestPayload struct {
	Name     string `json:"name" validate:"required,max=100"`
	Location string `json:"location" validate:"required,max=255"`
	Capacity int    `json:"capacity" validate:"required,min=1"`
}

type EventRequestPayload struct {
	Title       string `json:"title" validate:"required,max=100"`
	Description string `json:"description" validate:"required,max=500"`
	Date        string `json:"date" validate:"required,isodate"`
	StartTime   string `json:"start_time" validate:"required,hhmm"`
	EndTime     string `json:"end_time" validate:"required,hhmm"`
	VenueID     int64  `json:"venue_id" validate:"required,min=1"`
	ClubID      int64  `json:"club_id" validate:"required,min=1"`
}

type NotifyPayload struct {
	Message string `json:"message" validate:"required,max=500"`
}

type NotifyResponse struct {
	Message    string  `json:"message"`
	Recipients []int64 `json:"recipients"`
	Delivered  int     `json:"delivered"`
}

func (s *Server) CreateClubRequest(w http.ResponseWriter, r *http.Request) {
	var req ClubRequestPayload
	if !s.bind(w, r, &req) {
		return
	}
	id, _ := CurrentIdentity(r)
	created, err := s.Workflow.CreateClubRequest(r.Context(), id.ID, services.ClubRequestInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Club request submitted",
		"request": created,
	})
}

func (s *Server) CreateVenueRequest(w http.ResponseWriter, r *http.Request) {
	var req VenueRequestPayload
	if !s.bind(w, r, &req) {
		return
	}
	id, _ := CurrentIdentity(r)
	created, err := s.Workflow.CreateVenueRequest(r.Context(), id.ID, services.VenueRequestInput{
		Name:     req.Name,
		Location: req.Location,
		Capacity: req.Capacity,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Venue request submitted",
		"request": created,
	})
}

func (s *Server) CreateEventRequest(w http.ResponseWriter, r *http.Request) {
	var req EventRequestPayload
	if !s.bind(w, r, &req) {
		return
	}
	id, _ := CurrentIdentity(r)
	created, err := s.Workflow.CreateEventRequest(r.Context(), id.ID, services.EventRequestInput{
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		VenueID:     req.VenueID,
		ClubID:      req.ClubID,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Event request submitted",
		"request": created,
	})
}

func (s *Server) AvailableVenues(w http.ResponseWriter, r *http.Request) {
	venues, err := s.Workflow.AvailableVenues(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, venues)
}

func (s *Server) AllClubs(w http.ResponseWriter, r *http.Request) {
	clubs, err := s.Workflow.AllClubs(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, clubs)
}

func (s *Server) UserClubs(w http.ResponseWriter, r *http.Request) {
	id, _ := CurrentIdentity(r)
	clubs, err := s.Workflow.OrganizerClubs(r.Context(), id.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, clubs)
}

func (s *Server) OrganizerEvents(w http.ResponseWriter, r *http.Request) {
	id, _ := CurrentIdentity(r)
	requests, err := s.Workflow.OrganizerEventRequests(r.Context(), id.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, requests)
}

func (s *Server) OrganizerClubRequests(w http.ResponseWriter, r *http.Request) {
	id, _ := CurrentIdentity(r)
	requests, err := s.Workflow.OrganizerClubRequests(r.Context(), id.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, requests)
}

func (s *Server) OrganizerVenueRequests(w http.ResponseWriter, r *http.Request) {
	id, _ := CurrentIdentity(r)
	requests, err := s.Workflow.OrganizerVenueRequests(r.Context(), id.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, requests)
}

func (s *Server) EventStudents(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(r, "id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "Invalid request id")
		return
	}
	id, _ := CurrentIdentity(r)
	event, students, err := s.Bookings.StudentsForRequest(r.Context(), id.ID, requestID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"event":    event,
		"students": students,
	})
}

// NotifyStudents pushes a message to every student booked on the event
// spawned by the given request. Students without an open socket are counted
// as recipients but not as delivered.
func (s *Server) NotifyStudents(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(r, "id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "Invalid request id")
		return
	}
	var req NotifyPayload
	if !s.bind(w, r, &req) {
		return
	}
	id, _ := CurrentIdentity(r)
	event, students, err := s.Bookings.StudentsForRequest(r.Context(), id.ID, requestID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	recipients := make([]int64, 0, len(students))
	for _, st := range students {
		recipients = append(recipients, st.UserID)
	}
	delivered := s.Hub.Notify(recipients, services.Notification{
		Type:    "event_update",
		EventID: event.EventID,
		Title:   event.Title,
		Message: strings.TrimSpace(req.Message),
		SentAt:  time.Now().UTC(),
	})
	WriteJSON(w, http.StatusOK, NotifyResponse{
		Message:    "Notification sent",
		Recipients: recipients,
		Delivered:  delivered,
	})
}

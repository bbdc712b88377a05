package httpapi

import (
	"net/http"

	"campusevents-backend/internal/services"
)

type RejectPayload struct {
	Reason string `json:"reason" validate:"required,min=3,max=255"`
}

func (s *Server) AdminClubRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := s.Workflow.PendingClubRequests(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, requests)
}

func (s *Server) AdminVenueRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := s.Workflow.PendingVenueRequests(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, requests)
}

func (s *Server) AdminEventRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := s.Workflow.PendingEventRequests(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, requests)
}

func (s *Server) ApproveClubRequest(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(r, "id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "Invalid request id")
		return
	}
	admin, _ := CurrentIdentity(r)
	club, err := s.Workflow.ApproveClub(r.Context(), admin.ID, requestID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"message": "Club request approved", "club": club})
}

func (s *Server) ApproveVenueRequest(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(r, "id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "Invalid request id")
		return
	}
	admin, _ := CurrentIdentity(r)
	venue, err := s.Workflow.ApproveVenue(r.Context(), admin.ID, requestID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"message": "Venue request approved", "venue": venue})
}

func (s *Server) ApproveEventRequest(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(r, "id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "Invalid request id")
		return
	}
	admin, _ := CurrentIdentity(r)
	event, err := s.Workflow.ApproveEvent(r.Context(), admin.ID, requestID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"message": "Event request approved", "event": event})
}

// RejectRequest builds the reject handler for one request kind.
func (s *Server) RejectRequest(kind services.RequestKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID, ok := pathID(r, "id")
		if !ok {
			WriteError(w, http.StatusBadRequest, "Invalid request id")
			return
		}
		var req RejectPayload
		if !s.bind(w, r, &req) {
			return
		}
		admin, _ := CurrentIdentity(r)
		if err := s.Workflow.Reject(r.Context(), kind, admin.ID, requestID, req.Reason); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, MessageResponse{Message: "Request rejected"})
	}
}

func (s *Server) AdminLogs(requestType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logs, err := s.Logs.AdminLogs(r.Context(), requestType)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, logs)
	}
}

func (s *Server) SecurityLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := services.ParseSecurityLogFilter(r.URL.Query())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	page, err := s.Logs.Query(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

func (s *Server) SystemSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot := services.CaptureSystem(r.Context(), s.Config.SystemDiskPath)
	snapshot.SocketClients = s.Hub.Connections()
	WriteJSON(w, http.StatusOK, snapshot)
}

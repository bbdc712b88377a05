package httpapi

import (
	"net/http"

	"campusevents-backend/internal/models"
	"campusevents-backend/internal/services"
)

type UserStatusRequest struct {
	Reason string `json:"reason" validate:"max=255"`
}

type UserStatusResponse struct {
	Message string      `json:"message"`
	User    models.User `json:"user"`
}

func (s *Server) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.Accounts.ListNonAdmins(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, users)
}

func (s *Server) SuspendUser(w http.ResponseWriter, r *http.Request) {
	s.setUserActive(w, r, false)
}

func (s *Server) ReactivateUser(w http.ResponseWriter, r *http.Request) {
	s.setUserActive(w, r, true)
}

// setUserActive handles both suspension and reactivation. A reason is
// mandatory when suspending; the service enforces it.
func (s *Server) setUserActive(w http.ResponseWriter, r *http.Request, active bool) {
	userID, ok := pathID(r, "id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	var req UserStatusRequest
	if r.ContentLength != 0 {
		if !s.bind(w, r, &req) {
			return
		}
	}
	admin, _ := CurrentIdentity(r)
	user, err := s.Accounts.SetActive(r.Context(), admin.ID, userID, active, req.Reason)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	event, message := services.EventUserSuspended, "User suspended"
	if active {
		event, message = services.EventUserReactivated, "User reactivated"
	}
	s.Audit.Record(r.Context(), event, message, requestMeta(r, services.Meta{
		"adminId":      admin.ID,
		"targetUserId": user.ID,
		"targetEmail":  user.Email,
		"reason":       req.Reason,
	}))
	WriteJSON(w, http.StatusOK, UserStatusResponse{Message: message, User: user})
}

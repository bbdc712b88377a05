package httpapi

import (
	"errors"
	"net/http"
	"time"

	"campusevents-backend/internal/services"

	"go.uber.org/zap"
)

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type OTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,strongpw"`
	Role     string `json:"role" validate:"required,oneof=student organizer admin"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required,strongpw"`
}

type SessionResponse struct {
	Message string            `json:"message"`
	User    services.Identity `json:"user"`
}

// bind decodes and validates a payload, writing the error response itself.
func (s *Server) bind(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid payload")
		return false
	}
	if problems := s.Validator.Struct(dst); len(problems) > 0 {
		s.Audit.Record(r.Context(), services.EventValidationError, "Request validation failed",
			requestMeta(r, services.Meta{"errors": problems}))
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Details: problems})
		return false
	}
	return true
}

func normalizeEmailField(email *string) {
	*email = services.NormalizeEmail(*email)
}

func (s *Server) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !s.bind(w, r, &req) {
		return
	}
	if err := s.Accounts.SendRegistrationOTP(r.Context(), req.Email); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "OTP sent to email"})
}

func (s *Server) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req OTPRequest
	if !s.bind(w, r, &req) {
		return
	}
	if err := s.Accounts.VerifyRegistrationOTP(r.Context(), req.Email, req.OTP); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "OTP verified successfully"})
}

func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !s.bind(w, r, &req) {
		return
	}
	normalizeEmailField(&req.Email)
	user, err := s.Accounts.Register(r.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, SessionResponse{
		Message: "User registered successfully",
		User:    services.IdentityOf(user),
	})
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !s.bind(w, r, &req) {
		return
	}
	normalizeEmailField(&req.Email)
	ctx := r.Context()
	ip := clientIP(r)
	meta := requestMeta(r, services.Meta{"email": req.Email})

	user, err := s.Accounts.Authenticate(ctx, req.Email, req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		wait, blocked, lerr := s.Lockout.Fail(ctx, ip)
		if lerr != nil {
			s.Logger.Warn("lockout store unavailable", zap.Error(lerr))
		}
		s.Audit.Record(ctx, services.EventLoginFail, "Invalid login credentials", meta)
		// The attempt that trips the lockout still answers as a failed
		// login; the guard refuses the next one with 429.
		if blocked {
			s.Audit.Record(ctx, services.EventLoginBlocked, "IP blocked after repeated login failures", meta)
			WriteError(w, http.StatusUnauthorized, "Too many failed attempts. Blocked for "+formatWait(wait)+".")
			return
		}
		WriteError(w, http.StatusUnauthorized, services.ErrInvalidCredentials.Message)
		return
	}
	if err != nil {
		var serr services.ServiceError
		if errors.As(err, &serr) && serr.Status == http.StatusForbidden {
			meta["userId"] = user.ID
			s.Audit.Record(ctx, services.EventLoginDenied, serr.Message, meta)
		}
		s.writeServiceError(w, r, err)
		return
	}

	if err := s.Lockout.Reset(ctx, ip); err != nil {
		s.Logger.Warn("lockout reset failed", zap.Error(err))
	}
	identity := services.IdentityOf(user)
	token, exp, err := s.Tokens.Issue(identity)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.clearSessionCookie(w)
	s.setSessionCookie(w, token, exp)
	meta["userId"] = user.ID
	meta["role"] = user.Role
	s.Audit.Record(ctx, services.EventLoginSuccess, "User logged in", meta)
	WriteJSON(w, http.StatusOK, SessionResponse{Message: "Login successful", User: identity})
}

func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	meta := requestMeta(r, nil)
	event := services.EventLogoutAnon
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		if id, err := s.Tokens.Parse(cookie.Value); err == nil {
			event = services.EventLogoutUser
			meta["userId"] = id.ID
			meta["email"] = id.Email
		}
	}
	s.clearSessionCookie(w)
	s.Audit.Record(r.Context(), event, "User logged out", meta)
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

// Verify reports the claims of the session cookie. A missing cookie is 401,
// an unusable one 403.
func (s *Server) Verify(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		WriteError(w, http.StatusUnauthorized, "No token provided")
		return
	}
	id, err := s.Tokens.Parse(cookie.Value)
	if err != nil {
		s.Audit.Record(r.Context(), services.EventTokenInvalid, "Token verification failed", requestMeta(r, nil))
		WriteError(w, http.StatusForbidden, "Invalid or expired token")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"valid": true, "user": id})
}

func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	id, _ := CurrentIdentity(r)
	user, err := s.Accounts.Profile(r.Context(), id.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	id, _ := CurrentIdentity(r)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Welcome, " + id.Name,
		"user":    id,
	})
}

func (s *Server) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !s.bind(w, r, &req) {
		return
	}
	if err := s.Accounts.RequestPasswordReset(r.Context(), req.Email); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "If the email is registered, a reset code has been sent"})
}

func (s *Server) VerifyResetOTP(w http.ResponseWriter, r *http.Request) {
	var req OTPRequest
	if !s.bind(w, r, &req) {
		return
	}
	if err := s.Accounts.VerifyResetOTP(r.Context(), req.Email, req.OTP); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "OTP verified. You can now reset your password"})
}

func (s *Server) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !s.bind(w, r, &req) {
		return
	}
	user, err := s.Accounts.ResetPassword(r.Context(), req.Email, req.OTP, req.NewPassword)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.Audit.Record(r.Context(), services.EventPasswordReset, "Password reset",
		requestMeta(r, services.Meta{"userId": user.ID, "email": user.Email}))
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Password reset successfully"})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		MaxAge:   int(time.Until(exp).Seconds()),
		HttpOnly: true,
		Secure:   s.Config.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.Config.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

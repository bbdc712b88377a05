package httpapi

import (
	"net/http"
	"time"

	"campusevents-backend/internal/config"
	"campusevents-backend/internal/kv"
	"campusevents-backend/internal/models"
	"campusevents-backend/internal/ratelimit"
	"campusevents-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const (
	globalLimitMessage  = "Too many requests from this IP."
	bookingLimitMessage = "Too many booking attempts. Please wait before trying again."
)

type Server struct {
	DB        *sqlx.DB
	Config    config.Config
	Logger    *zap.Logger
	Tokens    services.TokenService
	Accounts  *services.Accounts
	Workflow  *services.Workflow
	Bookings  *services.Bookings
	Catalog   *services.Catalog
	Feedback  *services.Feedback
	Logs      *services.AuditLog
	Audit     SecurityRecorder
	Hub       *services.NotificationHub
	Validator *Validator
	Metrics   *HTTPMetrics

	GlobalLimiter  *ratelimit.FixedWindow
	BookingLimiter *ratelimit.FixedWindow
	Lockout        *ratelimit.Lockout
}

func NewServer(database *sqlx.DB, store kv.Store, cfg config.Config, logger *zap.Logger, mailer services.Mailer, hub *services.NotificationHub) *Server {
	tokens := services.TokenService{
		Secret: []byte(cfg.JWTSecret),
		Issuer: cfg.JWTIssuer,
		TTL:    time.Duration(cfg.SessionTTLSeconds) * time.Second,
	}
	audit := &services.AuditLog{DB: database, Logger: logger}
	return &Server{
		DB:     database,
		Config: cfg,
		Logger: logger,
		Tokens: tokens,
		Accounts: &services.Accounts{
			DB:     database,
			OTP:    &services.OTPStore{Store: store, TTL: services.RegistrationOTPTTL},
			Mailer: mailer,
		},
		Workflow:  &services.Workflow{DB: database},
		Bookings:  &services.Bookings{DB: database},
		Catalog:   &services.Catalog{DB: database},
		Feedback:  &services.Feedback{DB: database},
		Logs:      audit,
		Audit:     audit,
		Hub:       hub,
		Validator: NewValidator(),
		Metrics:   NewHTTPMetrics(),

		GlobalLimiter:  ratelimit.NewFixedWindow(store, "rl:global:", 150, 10*time.Minute),
		BookingLimiter: ratelimit.NewFixedWindow(store, "rl:booking:", 5, 15*time.Minute),
		Lockout:        ratelimit.NewLockout(store, 5, 10*time.Minute, 10*time.Minute),
	}
}

func (s *Server) adminResolver() IdentityResolver {
	cert := CertResolver{Lookup: s.Accounts.FindActiveAdmin}
	session := SessionResolver{Tokens: s.Tokens}
	switch s.Config.AdminAuthMode {
	case config.AdminAuthSession:
		return session
	case config.AdminAuthEither:
		return ChainResolver{cert, session}
	default:
		return cert
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	if s.Config.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(s.Metrics.Middleware)
	r.Use(RequestLogger(s.Logger))
	r.Use(Recoverer(s.Logger))
	r.Use(SecurityHeaders)
	if len(s.Config.CorsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.Config.CorsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", s.Health)
	r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())

	session := Authenticate(SessionResolver{Tokens: s.Tokens}, s.Audit)
	role := func(name string) func(http.Handler) http.Handler { return RequireRole(name, s.Audit) }

	r.Group(func(limited chi.Router) {
		limited.Use(RateLimit(s.GlobalLimiter, services.EventGlobalRateLimitHit, globalLimitMessage, s.Audit, s.Logger))

		limited.Route("/api", func(api chi.Router) {
			api.Route("/auth", func(auth chi.Router) {
				auth.Post("/send-otp", s.SendOTP)
				auth.Post("/verify-otp", s.VerifyOTP)
				auth.Post("/register", s.Register)
				auth.With(LoginGuard(s.Lockout, s.Audit, s.Logger)).Post("/login", s.Login)
				auth.Get("/logout", s.Logout)
				auth.Get("/verify", s.Verify)
				auth.Post("/forgot-password", s.ForgotPassword)
				auth.Post("/verify-reset-otp", s.VerifyResetOTP)
				auth.Post("/reset-password", s.ResetPassword)

				auth.Group(func(me chi.Router) {
					me.Use(session)
					me.Get("/me", s.Me)
					me.With(role(models.RoleAdmin)).Get("/adminDashboard", s.Dashboard)
					me.With(role(models.RoleOrganizer)).Get("/eventManager", s.Dashboard)
					me.With(role(models.RoleStudent)).Get("/studentDashboard", s.Dashboard)
				})
			})

			api.Route("/students", func(st chi.Router) {
				bookingLimit := RateLimit(s.BookingLimiter, services.EventBookingRateLimitHit, bookingLimitMessage, s.Audit, s.Logger)
				st.With(bookingLimit, session, role(models.RoleStudent)).Post("/bookings", s.CreateBooking)

				st.Group(func(g chi.Router) {
					g.Use(session, role(models.RoleStudent))
					g.Get("/events", s.ListEvents)
					g.Get("/events/{eventId}", s.GetEvent)
					g.Get("/bookings", s.ListBookings)
					g.Post("/feedback", s.SubmitFeedback)
					g.Get("/events/{eventId}/feedback", s.ListFeedback)
				})
			})

			api.Route("/admin", func(admin chi.Router) {
				admin.Use(Authenticate(s.adminResolver(), s.Audit))
				admin.Use(role(models.RoleAdmin))

				admin.Get("/club-requests", s.AdminClubRequests)
				admin.Post("/club-requests/{id}/approve", s.ApproveClubRequest)
				admin.Post("/club-requests/{id}/reject", s.RejectRequest(services.KindClub))
				admin.Get("/venue-requests", s.AdminVenueRequests)
				admin.Post("/venue-requests/{id}/approve", s.ApproveVenueRequest)
				admin.Post("/venue-requests/{id}/reject", s.RejectRequest(services.KindVenue))
				admin.Get("/event-requests", s.AdminEventRequests)
				admin.Post("/event-requests/{id}/approve", s.ApproveEventRequest)
				admin.Post("/event-requests/{id}/reject", s.RejectRequest(services.KindEvent))

				admin.Get("/logs", s.AdminLogs("club"))
				admin.Get("/venue-logs", s.AdminLogs("venue"))
				admin.Get("/event-logs", s.AdminLogs("event"))
				admin.Get("/get-user-logs", s.AdminLogs("user"))
				admin.Get("/all-logs", s.SecurityLogs)

				admin.Get("/all-users", s.ListUsers)
				admin.Post("/users/{id}/suspend-user", s.SuspendUser)
				admin.Post("/users/{id}/reactivate-user", s.ReactivateUser)

				admin.Get("/system", s.SystemSnapshot)
			})

			api.Group(func(org chi.Router) {
				org.Use(session, role(models.RoleOrganizer))
				org.Post("/club-requests", s.CreateClubRequest)
				org.Post("/venue-requests", s.CreateVenueRequest)
				org.Post("/event-requests", s.CreateEventRequest)
				org.Get("/get-venues", s.AvailableVenues)
				org.Get("/get-clubs", s.AllClubs)
				org.Get("/user-clubs", s.UserClubs)
				org.Get("/organizers/events", s.OrganizerEvents)
				org.Get("/organizers/clubs", s.OrganizerClubRequests)
				org.Get("/organizers/venues", s.OrganizerVenueRequests)
				org.Get("/event-requests/{id}/students", s.EventStudents)
				org.Post("/events/{id}/notify", s.NotifyStudents)
			})
		})

		limited.With(session).Get("/ws/notifications", s.NotificationSocket)
	})
	return r
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

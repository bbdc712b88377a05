package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"campusevents-backend/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Security event types.
const (
	EventLoginSuccess        = "LOGIN_SUCCESS"
	EventLoginFail           = "LOGIN_FAIL"
	EventLoginBlocked        = "LOGIN_BLOCKED"
	EventLoginDenied         = "LOGIN_DENIED"
	EventValidationError     = "VALIDATION_ERROR"
	EventLogoutUser          = "LOGOUT_USER"
	EventLogoutAnon          = "LOGOUT_USER_ANON"
	EventNoToken             = "NO_TOKEN"
	EventTokenInvalid        = "TOKEN_INVALID"
	EventAuthFail            = "AUTH_FAIL"
	EventCertAuthFail        = "CERT_AUTH_FAIL"
	EventGlobalRateLimitHit  = "GLOBAL_RATE_LIMIT_HIT"
	EventBookingRateLimitHit = "BOOKING_RATE_LIMIT_HIT"
	EventUserSuspended       = "USER_SUSPENDED"
	EventUserReactivated     = "USER_REACTIVATED"
	EventPasswordReset       = "PASSWORD_RESET"
)

const securityLogPageSize = 50

type Meta map[string]any

type AuditLog struct {
	DB     *sqlx.DB
	Logger *zap.Logger
}

// Record appends a security event. Failures are logged and swallowed.
func (a *AuditLog) Record(ctx context.Context, eventType, message string, meta Meta) {
	if meta == nil {
		meta = Meta{}
	}
	a.Logger.Info("security event", zap.String("type", eventType), zap.String("message", message), zap.Any("meta", meta))
	if a.DB == nil {
		return
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		a.Logger.Warn("security log encode failed", zap.String("type", eventType), zap.Error(err))
		return
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := a.DB.ExecContext(writeCtx, `
INSERT INTO security_logs (type, message, meta) VALUES ($1, $2, $3::jsonb)
`, eventType, message, string(payload)); err != nil {
		a.Logger.Warn("security log write failed", zap.String("type", eventType), zap.Error(err))
	}
}

type SecurityLogFilter struct {
	Type   string
	Email  string
	UserID string
	From   *time.Time
	To     *time.Time
}

type SecurityLogPage struct {
	Logs    []models.SecurityLog `json:"logs"`
	Summary map[string]int       `json:"summary"`
}

// ParseSecurityLogFilter reads type, email, userId, from and to. Dates are
// RFC 3339 or YYYY-MM-DD; a bare "to" date covers the whole day.
func ParseSecurityLogFilter(q url.Values) (SecurityLogFilter, error) {
	f := SecurityLogFilter{
		Type:   strings.TrimSpace(q.Get("type")),
		Email:  strings.TrimSpace(q.Get("email")),
		UserID: strings.TrimSpace(q.Get("userId")),
	}
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		from, _, err := parseLogTime(raw)
		if err != nil {
			return f, ErrBadRequest("Invalid 'from' date")
		}
		f.From = &from
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		to, dateOnly, err := parseLogTime(raw)
		if err != nil {
			return f, ErrBadRequest("Invalid 'to' date")
		}
		if dateOnly {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		f.To = &to
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, ErrBadRequest("'to' must not be before 'from'")
	}
	return f, nil
}

func parseLogTime(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, false, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	return t, true, err
}

func buildSecurityLogQuery(f SecurityLogFilter) (string, []any) {
	where := []string{}
	args := []any{}
	add := func(cond string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Type != "" {
		add("type = $%d", f.Type)
	}
	if f.Email != "" {
		add("meta->>'email' ILIKE $%d", "%"+f.Email+"%")
	}
	if f.UserID != "" {
		add("meta->>'userId' = $%d", f.UserID)
	}
	if f.From != nil {
		add("timestamp >= $%d", *f.From)
	}
	if f.To != nil {
		add("timestamp <= $%d", *f.To)
	}
	query := "SELECT id, type, message, meta, timestamp FROM security_logs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT %d", securityLogPageSize)
	return query, args
}

// Query returns the newest matching events with a per-type count of the
// returned page.
func (a *AuditLog) Query(ctx context.Context, f SecurityLogFilter) (SecurityLogPage, error) {
	query, args := buildSecurityLogQuery(f)
	logs := []models.SecurityLog{}
	if err := a.DB.SelectContext(ctx, &logs, query, args...); err != nil {
		return SecurityLogPage{}, WrapError(err, "query security logs")
	}
	return SecurityLogPage{Logs: logs, Summary: SummarizeByType(logs)}, nil
}

func SummarizeByType(logs []models.SecurityLog) map[string]int {
	summary := map[string]int{}
	for _, entry := range logs {
		summary[entry.Type]++
	}
	return summary
}

// AdminLogs lists admin decisions of one request type, newest first.
func (a *AuditLog) AdminLogs(ctx context.Context, requestType string) ([]models.AdminLog, error) {
	logs := []models.AdminLog{}
	err := a.DB.SelectContext(ctx, &logs, `
SELECT l.id, l.admin_id, COALESCE(u.name, '') AS admin_name, l.request_id, l.request_type,
       l.status, l.description, l.action_at
FROM admin_logs l
LEFT JOIN users u ON u.id = l.admin_id
WHERE l.request_type = $1
ORDER BY l.action_at DESC
`, requestType)
	return logs, WrapError(err, "query admin logs")
}

func insertAdminLog(ctx context.Context, tx *sqlx.Tx, adminID, requestID int64, requestType, status string, description *string) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO admin_logs (admin_id, request_id, request_type, status, description)
VALUES ($1, $2, $3, $4, $5)
`, adminID, requestID, requestType, status, description)
	return WrapError(err, "insert admin log")
}

package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"strings"
	"time"

	"campusevents-backend/internal/db"
	"campusevents-backend/internal/models"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

const userColumns = `id, name, email, password_hash, role, is_verified, is_active, reset_otp, reset_otp_expires, created_at`

type Accounts struct {
	DB     *sqlx.DB
	OTP    *OTPStore
	Mailer Mailer
	Now    func() time.Time
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

func (a *Accounts) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func (a *Accounts) emailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := a.DB.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE lower(email) = $1)`, email)
	return exists, WrapError(err, "check email")
}

func (a *Accounts) byEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := a.DB.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, email)
	return user, err
}

func (a *Accounts) SendRegistrationOTP(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	exists, err := a.emailExists(ctx, email)
	if err != nil {
		return err
	}
	if exists {
		return ErrConflict("User already exists")
	}
	code, err := a.OTP.Issue(ctx, email)
	if err != nil {
		return err
	}
	return a.Mailer.SendOTP(ctx, email, code, PurposeRegistration)
}

func (a *Accounts) VerifyRegistrationOTP(ctx context.Context, email, code string) error {
	return a.OTP.Verify(ctx, NormalizeEmail(email), code)
}

// Register creates a verified account for an email that passed OTP
// verification.
func (a *Accounts) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	email := NormalizeEmail(in.Email)
	if err := a.OTP.RequireVerified(ctx, email); err != nil {
		return models.User{}, err
	}
	exists, err := a.emailExists(ctx, email)
	if err != nil {
		return models.User{}, err
	}
	if exists {
		return models.User{}, ErrConflict("User already exists")
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return models.User{}, WrapError(err, "hash password")
	}
	var user models.User
	err = a.DB.GetContext(ctx, &user, `
INSERT INTO users (name, email, password_hash, role, is_verified, is_active)
VALUES ($1, $2, $3, $4, TRUE, TRUE)
RETURNING `+userColumns, strings.TrimSpace(in.Name), email, hash, in.Role)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrConflict("User already exists")
		}
		return models.User{}, WrapError(err, "insert user")
	}
	_ = a.OTP.Consume(ctx, email)
	return user, nil
}

// Authenticate checks credentials. Unknown emails and wrong passwords both
// yield ErrInvalidCredentials; unverified or deactivated accounts are
// Forbidden.
func (a *Accounts) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	user, err := a.byEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, WrapError(err, "load user")
	}
	if !user.IsVerified {
		return user, ErrForbidden("Please verify your email before logging in")
	}
	if !user.IsActive {
		return user, ErrForbidden("Account is deactivated. Please contact an administrator.")
	}
	if user.PasswordHash == nil || !VerifyPassword(password, *user.PasswordHash) {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (a *Accounts) Profile(ctx context.Context, userID int64) (models.User, error) {
	var user models.User
	err := a.DB.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return user, ErrNotFound("User not found")
	}
	return user, WrapError(err, "load user")
}

// FindActiveAdmin resolves the admin account named by a client certificate.
func (a *Accounts) FindActiveAdmin(ctx context.Context, email string) (Identity, error) {
	var user models.User
	err := a.DB.GetContext(ctx, &user, `
SELECT `+userColumns+` FROM users
WHERE lower(email) = $1 AND role = 'admin' AND is_active = TRUE
`, NormalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return Identity{}, ErrForbidden("Admin not recognized or inactive")
	}
	if err != nil {
		return Identity{}, WrapError(err, "load admin")
	}
	return IdentityOf(user), nil
}

func IdentityOf(user models.User) Identity {
	return Identity{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role}
}

// RequestPasswordReset stores a hashed reset code on the account and mails
// it. Unknown emails succeed silently.
func (a *Accounts) RequestPasswordReset(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	user, err := a.byEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return WrapError(err, "load user")
	}
	code, err := GenerateOTP()
	if err != nil {
		return err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return WrapError(err, "hash reset otp")
	}
	if _, err := a.DB.ExecContext(ctx, `
UPDATE users SET reset_otp = $1, reset_otp_expires = $2 WHERE id = $3
`, string(hashed), a.now().Add(ResetOTPTTL).UTC(), user.ID); err != nil {
		return WrapError(err, "store reset otp")
	}
	return a.Mailer.SendOTP(ctx, user.Email, code, PurposePasswordReset)
}

func (a *Accounts) checkResetOTP(ctx context.Context, q sqlx.QueryerContext, email, code string, lock bool) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	var user models.User
	err := sqlx.GetContext(ctx, q, &user, query, NormalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return user, ErrBadRequest("Invalid or expired OTP")
	}
	if err != nil {
		return user, WrapError(err, "load user")
	}
	if user.ResetOTP == nil || user.ResetOTPExpires == nil {
		return user, ErrBadRequest("Invalid or expired OTP")
	}
	if a.now().After(*user.ResetOTPExpires) {
		return user, ErrBadRequest("OTP has expired. Please request a new one.")
	}
	if !resetCodeMatches(*user.ResetOTP, strings.TrimSpace(code)) {
		return user, ErrBadRequest("Invalid OTP")
	}
	return user, nil
}

func resetCodeMatches(stored, code string) bool {
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(code)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(code)) == 1
}

func (a *Accounts) VerifyResetOTP(ctx context.Context, email, code string) error {
	_, err := a.checkResetOTP(ctx, a.DB, email, code, false)
	return err
}

// ResetPassword re-checks the reset code, stores the new hash and clears
// the reset fields in one transaction.
func (a *Accounts) ResetPassword(ctx context.Context, email, code, newPassword string) (models.User, error) {
	hash, err := HashPassword(newPassword)
	if err != nil {
		return models.User{}, WrapError(err, "hash password")
	}
	var user models.User
	err = db.WithTx(ctx, a.DB, func(tx *sqlx.Tx) error {
		found, err := a.checkResetOTP(ctx, tx, email, code, true)
		if err != nil {
			return err
		}
		user = found
		_, err = tx.ExecContext(ctx, `
UPDATE users SET password_hash = $1, reset_otp = NULL, reset_otp_expires = NULL WHERE id = $2
`, hash, found.ID)
		return WrapError(err, "update password")
	})
	return user, err
}

func (a *Accounts) ListNonAdmins(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	err := a.DB.SelectContext(ctx, &users, `
SELECT `+userColumns+` FROM users WHERE role <> 'admin' ORDER BY created_at DESC
`)
	return users, WrapError(err, "list users")
}

// SetActive suspends or reactivates a non-admin account and records the
// decision in admin_logs within the same transaction.
func (a *Accounts) SetActive(ctx context.Context, adminID, userID int64, active bool, reason string) (models.User, error) {
	var description *string
	if active {
		if trimmed := strings.TrimSpace(reason); trimmed != "" {
			valid, err := ValidateReason(trimmed)
			if err != nil {
				return models.User{}, err
			}
			description = &valid
		}
	} else {
		valid, err := ValidateReason(reason)
		if err != nil {
			return models.User{}, err
		}
		description = &valid
	}

	var user models.User
	err := db.WithTx(ctx, a.DB, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound("User not found")
		}
		if err != nil {
			return WrapError(err, "load user")
		}
		if user.Role == models.RoleAdmin {
			return ErrForbidden("Admin accounts cannot be suspended or reactivated")
		}
		if user.IsActive == active {
			if active {
				return ErrConflict("User is already active")
			}
			return ErrConflict("User is already suspended")
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET is_active = $1 WHERE id = $2`, active, userID); err != nil {
			return WrapError(err, "update user")
		}
		user.IsActive = active
		status := models.StatusRejected
		if active {
			status = models.StatusApproved
		}
		return insertAdminLog(ctx, tx, adminID, userID, "user", status, description)
	})
	return user, err
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"paisape/internal/domain"
)

// UserRepository define el contrato de persistencia para usuarios.
// Los contadores de ganancias solo se modifican con incrementos atómicos o
// con UPDATE condicionales; nunca se reescribe el agregado completo.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByReferralCode(ctx context.Context, code string) (domain.User, error)
	UpdateOTP(ctx context.Context, id, otpHash string, otpExpiresAt time.Time) error
	MarkVerified(ctx context.Context, id string, verifiedAt time.Time) error
	// RecordCheckIn y AddSpinEarnings devuelven la fila ya actualizada.
	RecordCheckIn(ctx context.Context, id string, previous *time.Time, at time.Time, streak int, reward int64) (domain.User, error)
	AddSpinEarnings(ctx context.Context, id string, amount int64) (domain.User, error)
	MarkResetVerified(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `
	id, name, email, password_hash, email_verified_at, otp_code_hash, otp_expires_at,
	reset_verified, referral_code, referral_count, referral_earnings, referred_by,
	check_in_earnings, spin_earnings, last_check_in, check_in_streak, created_at, updated_at
`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (
			id, name, email, password_hash, email_verified_at, otp_code_hash, otp_expires_at,
			referral_code, referred_by, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.EmailVerifiedAt,
		user.OtpCodeHash,
		user.OtpExpiresAt,
		nullableString(user.ReferralCode),
		user.ReferredBy,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return mapWriteError(err)
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PgUserRepository) GetByReferralCode(ctx context.Context, code string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE referral_code = $1`, code)
}

func (r *PgUserRepository) getOne(ctx context.Context, query string, arg any) (domain.User, error) {
	return scanUser(r.pool.QueryRow(ctx, query, arg))
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u            domain.User
		referralCode *string
	)
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.EmailVerifiedAt,
		&u.OtpCodeHash,
		&u.OtpExpiresAt,
		&u.ResetVerified,
		&referralCode,
		&u.ReferralCount,
		&u.ReferralEarnings,
		&u.ReferredBy,
		&u.CheckInEarnings,
		&u.SpinEarnings,
		&u.LastCheckIn,
		&u.CheckInStreak,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	if referralCode != nil {
		u.ReferralCode = *referralCode
	}
	return u, nil
}

func (r *PgUserRepository) UpdateOTP(ctx context.Context, id, otpHash string, otpExpiresAt time.Time) error {
	const query = `
		UPDATE users
		SET otp_code_hash = $2, otp_expires_at = $3, updated_at = now()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, otpHash, otpExpiresAt)
}

// MarkVerified solo transiciona filas aún no verificadas; si otra petición
// ganó la carrera devuelve ErrConflict.
func (r *PgUserRepository) MarkVerified(ctx context.Context, id string, verifiedAt time.Time) error {
	const query = `
		UPDATE users
		SET email_verified_at = $2, otp_code_hash = '', otp_expires_at = NULL, updated_at = now()
		WHERE id = $1 AND email_verified_at IS NULL
	`
	return r.execConditional(ctx, query, id, verifiedAt)
}

// RecordCheckIn aplica el check-in solo si last_check_in sigue siendo el valor
// leído; si no, devuelve ErrConflict.
func (r *PgUserRepository) RecordCheckIn(ctx context.Context, id string, previous *time.Time, at time.Time, streak int, reward int64) (domain.User, error) {
	const query = `
		UPDATE users
		SET last_check_in = $3,
			check_in_streak = $4,
			check_in_earnings = check_in_earnings + $5,
			updated_at = now()
		WHERE id = $1 AND last_check_in IS NOT DISTINCT FROM $2
		RETURNING ` + userColumns
	user, err := scanUser(r.pool.QueryRow(ctx, query, id, previous, at, streak, reward))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrConflict
	}
	return user, err
}

func (r *PgUserRepository) AddSpinEarnings(ctx context.Context, id string, amount int64) (domain.User, error) {
	const query = `
		UPDATE users
		SET spin_earnings = spin_earnings + $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, query, id, amount))
}

func (r *PgUserRepository) MarkResetVerified(ctx context.Context, id string) error {
	const query = `
		UPDATE users
		SET reset_verified = TRUE, otp_code_hash = '', otp_expires_at = NULL, updated_at = now()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id)
}

// UpdatePassword consume la autorización de reseteo en la misma sentencia.
func (r *PgUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `
		UPDATE users
		SET password_hash = $2, reset_verified = FALSE, updated_at = now()
		WHERE id = $1 AND reset_verified
	`
	return r.execConditional(ctx, query, id, passwordHash)
}

func (r *PgUserRepository) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgUserRepository) execConditional(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

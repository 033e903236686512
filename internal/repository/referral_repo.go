package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"paisape/internal/domain"
)

// ReferralRepository define el contrato de persistencia para referidos.
type ReferralRepository interface {
	// CreateAndLink inserta el referido pendiente y fija users.referred_by del
	// referee en una sola transacción. Si el referee ya tenía referidor
	// devuelve ErrConflict y no persiste nada.
	CreateAndLink(ctx context.Context, referral domain.Referral) error
	GetByReferee(ctx context.Context, refereeID string) (domain.Referral, error)
	// CompleteAndCredit pasa el referido pendiente del referee a completed y
	// acredita al referidor en una sola transacción. Devuelve pgx.ErrNoRows si
	// no hay referido pendiente.
	CompleteAndCredit(ctx context.Context, refereeID string, completedAt time.Time) (domain.Referral, error)
	ListByReferrer(ctx context.Context, referrerID string, limit, offset int) ([]domain.Referral, error)
	ListPendingWithVerifiedReferee(ctx context.Context, limit int) ([]domain.Referral, error)
}

// PgReferralRepository implementa ReferralRepository usando pgxpool.
type PgReferralRepository struct {
	pool *pgxpool.Pool
}

func NewPgReferralRepository(pool *pgxpool.Pool) *PgReferralRepository {
	return &PgReferralRepository{pool: pool}
}

const referralColumns = `id, referrer_id, referee_id, referral_code_used, status, bonus_amount, completed_at, created_at`

func (r *PgReferralRepository) CreateAndLink(ctx context.Context, referral domain.Referral) error {
	const insertQuery = `
		INSERT INTO referrals (id, referrer_id, referee_id, referral_code_used, status, bonus_amount, completed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	const linkQuery = `
		UPDATE users
		SET referred_by = $2, updated_at = now()
		WHERE id = $1 AND referred_by IS NULL
	`

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertQuery,
			referral.ID,
			referral.ReferrerID,
			referral.RefereeID,
			referral.ReferralCodeUsed,
			string(referral.Status),
			referral.BonusAmount,
			referral.CompletedAt,
			referral.CreatedAt,
		); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, linkQuery, referral.RefereeID, referral.ReferrerID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
		return nil
	})
	return mapWriteError(err)
}

func (r *PgReferralRepository) GetByReferee(ctx context.Context, refereeID string) (domain.Referral, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+referralColumns+` FROM referrals WHERE referee_id = $1`, refereeID)
	return scanReferral(row)
}

func (r *PgReferralRepository) CompleteAndCredit(ctx context.Context, refereeID string, completedAt time.Time) (domain.Referral, error) {
	const completeQuery = `
		UPDATE referrals
		SET status = 'completed', completed_at = $2
		WHERE referee_id = $1 AND status = 'pending'
		RETURNING ` + referralColumns
	const creditQuery = `
		UPDATE users
		SET referral_count = referral_count + 1,
			referral_earnings = referral_earnings + $2,
			updated_at = now()
		WHERE id = $1
	`

	var referral domain.Referral
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		ref, err := scanReferral(tx.QueryRow(ctx, completeQuery, refereeID, completedAt))
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, creditQuery, ref.ReferrerID, ref.BonusAmount)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("referrer %s not found", ref.ReferrerID)
		}
		referral = ref
		return nil
	})
	if err != nil {
		return domain.Referral{}, err
	}
	return referral, nil
}

func (r *PgReferralRepository) ListByReferrer(ctx context.Context, referrerID string, limit, offset int) ([]domain.Referral, error) {
	const query = `
		SELECT ` + referralColumns + `
		FROM referrals
		WHERE referrer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, referrerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectReferrals(rows)
}

func (r *PgReferralRepository) ListPendingWithVerifiedReferee(ctx context.Context, limit int) ([]domain.Referral, error) {
	const query = `
		SELECT r.id, r.referrer_id, r.referee_id, r.referral_code_used, r.status, r.bonus_amount, r.completed_at, r.created_at
		FROM referrals r
		JOIN users u ON u.id = r.referee_id
		WHERE r.status = 'pending' AND u.email_verified_at IS NOT NULL
		ORDER BY r.created_at
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return collectReferrals(rows)
}

func collectReferrals(rows pgx.Rows) ([]domain.Referral, error) {
	defer rows.Close()
	var out []domain.Referral
	for rows.Next() {
		ref, err := scanReferral(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

func scanReferral(row pgx.Row) (domain.Referral, error) {
	var (
		ref    domain.Referral
		status string
	)
	err := row.Scan(
		&ref.ID,
		&ref.ReferrerID,
		&ref.RefereeID,
		&ref.ReferralCodeUsed,
		&status,
		&ref.BonusAmount,
		&ref.CompletedAt,
		&ref.CreatedAt,
	)
	if err != nil {
		return domain.Referral{}, err
	}
	ref.Status = domain.ReferralStatus(status)
	return ref, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"paisape/internal/domain"
	"paisape/internal/email"
	"paisape/internal/repository"
)

var (
	ErrInvalidReferralCode    = errors.New("invalid referral code")
	ErrSelfReferralNotAllowed = errors.New("self referral not allowed")
	ErrNoPendingReferral      = errors.New("no pending referral")
	ErrAlreadyReferred        = errors.New("user already referred")
)

// ReferralService aplica el ciclo de vida de los referidos: creación en el
// registro (pending) y completado tras la verificación OTP del referee.
type ReferralService struct {
	logger    *zap.Logger
	users     repository.UserRepository
	referrals repository.ReferralRepository
	notifier  email.Notifier
	templates *email.Templates
	now       func() time.Time
}

func NewReferralService(
	logger *zap.Logger,
	users repository.UserRepository,
	referrals repository.ReferralRepository,
	notifier email.Notifier,
	templates *email.Templates,
) *ReferralService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferralService{
		logger:    logger,
		users:     users,
		referrals: referrals,
		notifier:  notifier,
		templates: templates,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateReferral vincula al referee con el dueño del código. No acredita nada.
func (s *ReferralService) CreateReferral(ctx context.Context, refereeID, referralCodeUsed string) (domain.Referral, error) {
	code := normalizeReferralCode(referralCodeUsed)
	if code == "" {
		return domain.Referral{}, ErrInvalidReferralCode
	}

	referee, err := s.users.GetByID(ctx, refereeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Referral{}, ErrUserNotFound
		}
		return domain.Referral{}, fmt.Errorf("load referee: %w", err)
	}
	if referee.ReferredBy != nil {
		return domain.Referral{}, ErrAlreadyReferred
	}

	referrer, err := s.users.GetByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Referral{}, ErrInvalidReferralCode
		}
		return domain.Referral{}, fmt.Errorf("load referrer: %w", err)
	}
	if referrer.ID == referee.ID || strings.EqualFold(referrer.Email, referee.Email) {
		return domain.Referral{}, ErrSelfReferralNotAllowed
	}

	referral := domain.Referral{
		ID:               uuid.NewString(),
		ReferrerID:       referrer.ID,
		RefereeID:        referee.ID,
		ReferralCodeUsed: code,
		Status:           domain.ReferralStatusPending,
		BonusAmount:      domain.ReferralBonus,
		CreatedAt:        s.now(),
	}
	if err := s.referrals.CreateAndLink(ctx, referral); err != nil {
		if errors.Is(err, repository.ErrDuplicate) || errors.Is(err, repository.ErrConflict) {
			return domain.Referral{}, ErrAlreadyReferred
		}
		return domain.Referral{}, fmt.Errorf("create referral: %w", err)
	}

	s.logger.Info("referral created",
		zap.String("referral_id", referral.ID),
		zap.String("referrer_id", referrer.ID),
		zap.String("referee_id", referee.ID),
	)
	return referral, nil
}

// CompleteReferral acredita el bono al referidor. Una segunda llamada para el
// mismo referee devuelve ErrNoPendingReferral y no vuelve a acreditar.
func (s *ReferralService) CompleteReferral(ctx context.Context, refereeID string) (domain.Referral, error) {
	referral, err := s.referrals.CompleteAndCredit(ctx, refereeID, s.now())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Referral{}, ErrNoPendingReferral
		}
		return domain.Referral{}, fmt.Errorf("complete referral: %w", err)
	}

	s.logger.Info("referral completed",
		zap.String("referral_id", referral.ID),
		zap.String("referrer_id", referral.ReferrerID),
		zap.String("referee_id", referral.RefereeID),
		zap.Int64("bonus", referral.BonusAmount),
	)
	s.notifyReferrer(ctx, referral)
	return referral, nil
}

// ReconcilePending completa referidos que quedaron pendientes con el referee
// ya verificado. Devuelve cuántos se completaron.
func (s *ReferralService) ReconcilePending(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	pending, err := s.referrals.ListPendingWithVerifiedReferee(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending referrals: %w", err)
	}
	completed := 0
	for _, ref := range pending {
		if _, err := s.CompleteReferral(ctx, ref.RefereeID); err != nil {
			if errors.Is(err, ErrNoPendingReferral) {
				continue
			}
			s.logger.Warn("reconcile referral failed", zap.Error(err), zap.String("referral_id", ref.ID))
			continue
		}
		completed++
	}
	return completed, nil
}

func (s *ReferralService) Stats(ctx context.Context, userID string) (domain.ReferralStats, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ReferralStats{}, ErrUserNotFound
		}
		return domain.ReferralStats{}, err
	}
	stats := domain.ReferralStats{
		ReferralCode:     user.ReferralCode,
		ReferralCount:    user.ReferralCount,
		ReferralEarnings: user.ReferralEarnings,
	}
	if user.ReferredBy != nil {
		referrer, err := s.users.GetByID(ctx, *user.ReferredBy)
		switch {
		case err == nil:
			stats.ReferredBy = &domain.UserSummary{ID: referrer.ID, Name: referrer.Name, Email: referrer.Email}
		case errors.Is(err, pgx.ErrNoRows):
		default:
			return domain.ReferralStats{}, err
		}
	}
	return stats, nil
}

func (s *ReferralService) ListReferrals(ctx context.Context, userID string, limit, offset int) ([]domain.Referral, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	refs, err := s.referrals.ListByReferrer(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if refs == nil {
		refs = []domain.Referral{}
	}
	return refs, nil
}

func (s *ReferralService) notifyReferrer(ctx context.Context, referral domain.Referral) {
	if s.notifier == nil || s.templates == nil {
		return
	}
	referrer, err := s.users.GetByID(ctx, referral.ReferrerID)
	if err != nil {
		s.logger.Warn("load referrer for notification failed", zap.Error(err), zap.String("referrer_id", referral.ReferrerID))
		return
	}
	refereeName := "a friend"
	if referee, err := s.users.GetByID(ctx, referral.RefereeID); err == nil && referee.Name != "" {
		refereeName = referee.Name
	}
	msg, err := s.templates.ReferralBonus(referrer.Email, referrer.Name, refereeName, referral.BonusAmount)
	if err != nil {
		s.logger.Warn("render referral email failed", zap.Error(err))
		return
	}
	s.notifier.Notify(ctx, msg)
}

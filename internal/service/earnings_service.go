package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"paisape/internal/domain"
	"paisape/internal/repository"
)

var ErrAlreadyCheckedInToday = errors.New("already checked in today")

const (
	checkInBaseReward = 5
	checkInMaxBonus   = 5
)

// EarningsService implementa el check-in diario, la ruleta y los resúmenes.
// Cada mecánica solo incrementa su propio campo; el total es derivado.
type EarningsService struct {
	logger      *zap.Logger
	users       repository.UserRepository
	wheel       *SpinWheel
	spinLimiter RateLimiter
	location    *time.Location
	now         func() time.Time
}

// NewEarningsService acepta spinLimiter nil: sin límite de giros.
func NewEarningsService(
	logger *zap.Logger,
	users repository.UserRepository,
	wheel *SpinWheel,
	spinLimiter RateLimiter,
	location *time.Location,
) *EarningsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	if wheel == nil {
		wheel, _ = NewSpinWheel(DefaultSpinTiers, nil)
	}
	return &EarningsService{
		logger:      logger,
		users:       users,
		wheel:       wheel,
		spinLimiter: spinLimiter,
		location:    location,
		now:         time.Now,
	}
}

// checkInReward: 5 + min(racha, 5).
func checkInReward(streak int) int64 {
	return int64(checkInBaseReward + min(streak, checkInMaxBonus))
}

func calendarDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// nextStreak devuelve la racha resultante o ErrAlreadyCheckedInToday.
func nextStreak(last *time.Time, currentStreak int, now time.Time, loc *time.Location) (int, error) {
	if last == nil {
		return 1, nil
	}
	today := calendarDay(now, loc)
	lastDay := calendarDay(*last, loc)
	if !lastDay.Before(today) {
		return 0, ErrAlreadyCheckedInToday
	}
	if lastDay.Equal(today.AddDate(0, 0, -1)) {
		return currentStreak + 1, nil
	}
	return 1, nil
}

func (s *EarningsService) CheckIn(ctx context.Context, userID string) (domain.CheckInResult, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return domain.CheckInResult{}, err
	}

	now := s.now()
	streak, err := nextStreak(user.LastCheckIn, user.CheckInStreak, now, s.location)
	if err != nil {
		return domain.CheckInResult{}, err
	}
	reward := checkInReward(streak)

	updated, err := s.users.RecordCheckIn(ctx, user.ID, user.LastCheckIn, now, streak, reward)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Otra petición registró el check-in entre la lectura y la escritura.
			return domain.CheckInResult{}, ErrAlreadyCheckedInToday
		}
		return domain.CheckInResult{}, fmt.Errorf("record check-in: %w", err)
	}

	s.logger.Info("daily check-in",
		zap.String("user_id", user.ID),
		zap.Int("streak", streak),
		zap.Int64("reward", reward),
	)
	return domain.CheckInResult{
		Reward:        reward,
		CurrentStreak: streak,
		CheckedInAt:   now,
		TotalEarnings: updated.TotalEarnings(),
	}, nil
}

func (s *EarningsService) Spin(ctx context.Context, userID string) (domain.SpinResult, error) {
	if s.spinLimiter != nil && !s.spinLimiter.Allow(userID) {
		return domain.SpinResult{}, ErrRateLimited
	}
	reward := s.wheel.Spin()
	user, err := s.users.AddSpinEarnings(ctx, userID, reward)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SpinResult{}, ErrUserNotFound
		}
		return domain.SpinResult{}, fmt.Errorf("add spin earnings: %w", err)
	}
	s.logger.Info("spin wheel", zap.String("user_id", userID), zap.Int64("reward", reward))
	return domain.SpinResult{
		Reward:        reward,
		TotalEarnings: user.TotalEarnings(),
	}, nil
}

func (s *EarningsService) Summary(ctx context.Context, userID string) (domain.Earnings, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return domain.Earnings{}, err
	}
	return user.Earnings(), nil
}

func (s *EarningsService) CheckInStats(ctx context.Context, userID string) (domain.CheckInStats, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return domain.CheckInStats{}, err
	}
	return domain.CheckInStats{
		CheckInEarnings: user.CheckInEarnings,
		LastCheckIn:     user.LastCheckIn,
		CurrentStreak:   s.liveStreak(user),
	}, nil
}

// liveStreak vale 0 si el último check-in no fue hoy ni ayer.
func (s *EarningsService) liveStreak(user domain.User) int {
	if user.LastCheckIn == nil {
		return 0
	}
	today := calendarDay(s.now(), s.location)
	lastDay := calendarDay(*user.LastCheckIn, s.location)
	if lastDay.Before(today.AddDate(0, 0, -1)) {
		return 0
	}
	return user.CheckInStreak
}

func (s *EarningsService) SpinStats(ctx context.Context, userID string) (int64, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.SpinEarnings, nil
}

func (s *EarningsService) getUser(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

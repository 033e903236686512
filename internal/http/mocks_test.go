package http

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"paisape/internal/domain"
	"paisape/internal/email"
	"paisape/internal/repository"
)

type mockStore struct {
	mu        sync.Mutex
	users     map[string]domain.User
	referrals map[string]domain.Referral
}

func newMockStore() *mockStore {
	return &mockStore{
		users:     make(map[string]domain.User),
		referrals: make(map[string]domain.Referral),
	}
}

type mockUserRepo struct{ s *mockStore }

func (m *mockUserRepo) find(match func(domain.User) bool) (domain.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if match(u) {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *mockUserRepo) update(id string, fn func(u *domain.User) bool) error {
	_, err := m.apply(id, fn)
	return err
}

func (m *mockUserRepo) apply(id string, fn func(u *domain.User) bool) (domain.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	if !fn(&u) {
		return domain.User{}, repository.ErrConflict
	}
	m.s.users[id] = u
	return u, nil
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if u.Email == user.Email || u.ReferralCode == user.ReferralCode {
			return repository.ErrDuplicate
		}
	}
	m.s.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.ID == id })
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Email == email })
}

func (m *mockUserRepo) GetByReferralCode(_ context.Context, code string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.ReferralCode == code })
}

func (m *mockUserRepo) UpdateOTP(_ context.Context, id, otpHash string, otpExpiresAt time.Time) error {
	return m.update(id, func(u *domain.User) bool {
		u.OtpCodeHash, u.OtpExpiresAt = otpHash, &otpExpiresAt
		return true
	})
}

func (m *mockUserRepo) MarkVerified(_ context.Context, id string, verifiedAt time.Time) error {
	return m.update(id, func(u *domain.User) bool {
		if u.EmailVerifiedAt != nil {
			return false
		}
		u.EmailVerifiedAt, u.OtpCodeHash, u.OtpExpiresAt = &verifiedAt, "", nil
		return true
	})
}

func (m *mockUserRepo) RecordCheckIn(_ context.Context, id string, _ *time.Time, at time.Time, streak int, reward int64) (domain.User, error) {
	return m.apply(id, func(u *domain.User) bool {
		u.LastCheckIn, u.CheckInStreak = &at, streak
		u.CheckInEarnings += reward
		return true
	})
}

func (m *mockUserRepo) AddSpinEarnings(_ context.Context, id string, amount int64) (domain.User, error) {
	return m.apply(id, func(u *domain.User) bool {
		u.SpinEarnings += amount
		return true
	})
}

func (m *mockUserRepo) MarkResetVerified(_ context.Context, id string) error {
	return m.update(id, func(u *domain.User) bool {
		u.ResetVerified, u.OtpCodeHash, u.OtpExpiresAt = true, "", nil
		return true
	})
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return m.update(id, func(u *domain.User) bool {
		if !u.ResetVerified {
			return false
		}
		u.PasswordHash, u.ResetVerified = passwordHash, false
		return true
	})
}

type mockReferralRepo struct{ s *mockStore }

func (m *mockReferralRepo) CreateAndLink(_ context.Context, referral domain.Referral) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.referrals[referral.RefereeID]; ok {
		return repository.ErrDuplicate
	}
	referee, ok := m.s.users[referral.RefereeID]
	if !ok || referee.ReferredBy != nil {
		return repository.ErrConflict
	}
	referee.ReferredBy = &referral.ReferrerID
	m.s.users[referee.ID] = referee
	m.s.referrals[referral.RefereeID] = referral
	return nil
}

func (m *mockReferralRepo) GetByReferee(_ context.Context, refereeID string) (domain.Referral, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	ref, ok := m.s.referrals[refereeID]
	if !ok {
		return domain.Referral{}, pgx.ErrNoRows
	}
	return ref, nil
}

func (m *mockReferralRepo) CompleteAndCredit(_ context.Context, refereeID string, completedAt time.Time) (domain.Referral, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	ref, ok := m.s.referrals[refereeID]
	if !ok || !ref.IsPending() {
		return domain.Referral{}, pgx.ErrNoRows
	}
	ref.Status, ref.CompletedAt = domain.ReferralStatusCompleted, &completedAt
	m.s.referrals[refereeID] = ref
	referrer := m.s.users[ref.ReferrerID]
	referrer.ReferralCount++
	referrer.ReferralEarnings += ref.BonusAmount
	m.s.users[referrer.ID] = referrer
	return ref, nil
}

func (m *mockReferralRepo) ListByReferrer(_ context.Context, referrerID string, limit, offset int) ([]domain.Referral, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []domain.Referral
	for _, ref := range m.s.referrals {
		if ref.ReferrerID == referrerID {
			out = append(out, ref)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockReferralRepo) ListPendingWithVerifiedReferee(_ context.Context, _ int) ([]domain.Referral, error) {
	return nil, nil
}

type captureNotifier struct {
	mu   sync.Mutex
	last email.Message
}

func (n *captureNotifier) Notify(_ context.Context, msg email.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.last = msg
}

// code extrae el OTP del último correo enviado.
func (n *captureNotifier) code() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	text := strings.TrimSpace(n.last.Text)
	if len(text) < 6 {
		return ""
	}
	return text[len(text)-6:]
}

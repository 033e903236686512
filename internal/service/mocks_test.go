package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"paisape/internal/domain"
	"paisape/internal/email"
	"paisape/internal/repository"
)

// memStore simula las restricciones de Postgres que usan los servicios:
// unicidad, updates condicionales y el completado atómico de referidos.
type memStore struct {
	mu        sync.Mutex
	users     map[string]domain.User
	byEmail   map[string]string
	byCode    map[string]string
	referrals map[string]domain.Referral // por referee_id

	createErr error
	// linkErr simula un fallo dentro de la transacción de CreateAndLink.
	linkErr      error
	updateOTPErr error
}

func newMemStore() *memStore {
	return &memStore{
		users:     make(map[string]domain.User),
		byEmail:   make(map[string]string),
		byCode:    make(map[string]string),
		referrals: make(map[string]domain.Referral),
	}
}

func (s *memStore) userRepo() *mockUserRepo         { return &mockUserRepo{s} }
func (s *memStore) referralRepo() *mockReferralRepo { return &mockReferralRepo{s} }

func (s *memStore) user(id string) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

func (s *memStore) put(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	s.byEmail[user.Email] = user.ID
	if user.ReferralCode != "" {
		s.byCode[user.ReferralCode] = user.ID
	}
}

type mockUserRepo struct{ s *memStore }

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.createErr != nil {
		return m.s.createErr
	}
	if _, ok := m.s.byEmail[user.Email]; ok {
		return repository.ErrDuplicate
	}
	if _, ok := m.s.byCode[user.ReferralCode]; ok {
		return repository.ErrDuplicate
	}
	m.s.users[user.ID] = user
	m.s.byEmail[user.Email] = user.ID
	m.s.byCode[user.ReferralCode] = user.ID
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	user, ok := m.s.users[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	m.s.mu.Lock()
	id, ok := m.s.byEmail[email]
	m.s.mu.Unlock()
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.GetByID(ctx, id)
}

func (m *mockUserRepo) GetByReferralCode(ctx context.Context, code string) (domain.User, error) {
	m.s.mu.Lock()
	id, ok := m.s.byCode[code]
	m.s.mu.Unlock()
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.GetByID(ctx, id)
}

// update aplica fn bajo el lock; fn devuelve false si la condición no se cumple.
func (m *mockUserRepo) update(id string, fn func(u *domain.User) bool) error {
	_, err := m.updateReturning(id, fn)
	return err
}

func (m *mockUserRepo) updateReturning(id string, fn func(u *domain.User) bool) (domain.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	user, ok := m.s.users[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	if !fn(&user) {
		return domain.User{}, repository.ErrConflict
	}
	m.s.users[id] = user
	return user, nil
}

func (m *mockUserRepo) UpdateOTP(_ context.Context, id, otpHash string, otpExpiresAt time.Time) error {
	m.s.mu.Lock()
	failErr := m.s.updateOTPErr
	m.s.mu.Unlock()
	if failErr != nil {
		return failErr
	}
	return m.update(id, func(u *domain.User) bool {
		u.OtpCodeHash = otpHash
		u.OtpExpiresAt = &otpExpiresAt
		return true
	})
}

func (m *mockUserRepo) MarkVerified(_ context.Context, id string, verifiedAt time.Time) error {
	return m.update(id, func(u *domain.User) bool {
		if u.EmailVerifiedAt != nil {
			return false
		}
		u.EmailVerifiedAt = &verifiedAt
		u.OtpCodeHash = ""
		u.OtpExpiresAt = nil
		return true
	})
}

func (m *mockUserRepo) RecordCheckIn(_ context.Context, id string, previous *time.Time, at time.Time, streak int, reward int64) (domain.User, error) {
	return m.updateReturning(id, func(u *domain.User) bool {
		switch {
		case previous == nil && u.LastCheckIn != nil,
			previous != nil && (u.LastCheckIn == nil || !u.LastCheckIn.Equal(*previous)):
			return false
		}
		u.LastCheckIn = &at
		u.CheckInStreak = streak
		u.CheckInEarnings += reward
		return true
	})
}

func (m *mockUserRepo) AddSpinEarnings(_ context.Context, id string, amount int64) (domain.User, error) {
	return m.updateReturning(id, func(u *domain.User) bool {
		u.SpinEarnings += amount
		return true
	})
}

func (m *mockUserRepo) MarkResetVerified(_ context.Context, id string) error {
	return m.update(id, func(u *domain.User) bool {
		u.ResetVerified = true
		u.OtpCodeHash = ""
		u.OtpExpiresAt = nil
		return true
	})
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return m.update(id, func(u *domain.User) bool {
		if !u.ResetVerified {
			return false
		}
		u.PasswordHash = passwordHash
		u.ResetVerified = false
		return true
	})
}

type mockReferralRepo struct{ s *memStore }

// CreateAndLink es todo o nada, como la transacción de Postgres.
func (m *mockReferralRepo) CreateAndLink(_ context.Context, referral domain.Referral) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.referrals[referral.RefereeID]; ok {
		return repository.ErrDuplicate
	}
	if m.s.linkErr != nil {
		return m.s.linkErr
	}
	referee, ok := m.s.users[referral.RefereeID]
	if !ok || referee.ReferredBy != nil {
		return repository.ErrConflict
	}
	referrerID := referral.ReferrerID
	referee.ReferredBy = &referrerID
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
	if !ok || ref.Status != domain.ReferralStatusPending {
		return domain.Referral{}, pgx.ErrNoRows
	}
	ref.Status = domain.ReferralStatusCompleted
	ref.CompletedAt = &completedAt
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
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockReferralRepo) ListPendingWithVerifiedReferee(_ context.Context, limit int) ([]domain.Referral, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []domain.Referral
	for _, ref := range m.s.referrals {
		if ref.Status == domain.ReferralStatusPending && m.s.users[ref.RefereeID].EmailVerifiedAt != nil {
			out = append(out, ref)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// recordingNotifier guarda los mensajes en orden de llegada.
type recordingNotifier struct {
	mu   sync.Mutex
	msgs []email.Message
}

func (n *recordingNotifier) Notify(_ context.Context, msg email.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *recordingNotifier) last() email.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.msgs) == 0 {
		return email.Message{}
	}
	return n.msgs[len(n.msgs)-1]
}

// lastCode extrae el OTP del último correo; el texto plano termina en el código.
func (n *recordingNotifier) lastCode() string {
	text := strings.TrimSpace(n.last().Text)
	if len(text) < otpDigits {
		return ""
	}
	return text[len(text)-otpDigits:]
}

func (n *recordingNotifier) subjects() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.msgs))
	for _, m := range n.msgs {
		out = append(out, m.Subject)
	}
	return out
}

type mockLimiter struct {
	allow bool
	calls int
}

func (m *mockLimiter) Allow(_ string) bool {
	m.calls++
	return m.allow
}

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
	"golang.org/x/crypto/bcrypt"

	"paisape/internal/domain"
	"paisape/internal/email"
	"paisape/internal/repository"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrEmailTaken         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrAlreadyVerified    = errors.New("user already verified")
	ErrNoActiveOTP        = errors.New("no active otp")
	ErrOTPMismatch        = errors.New("invalid otp")
	ErrOTPExpired         = errors.New("otp expired")
	ErrRateLimited        = errors.New("rate limited")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrResetNotVerified   = errors.New("otp verification required")
)

const (
	defaultOTPTTL        = 10 * time.Minute
	referralCodeAttempts = 5
)

type otpPurpose int

const (
	otpPurposeRegister otpPurpose = iota
	otpPurposeResend
	otpPurposeReset
)

// referralEngine es el subconjunto de ReferralService que usa el flujo de registro.
type referralEngine interface {
	CreateReferral(ctx context.Context, refereeID, referralCodeUsed string) (domain.Referral, error)
	CompleteReferral(ctx context.Context, refereeID string) (domain.Referral, error)
}

// UserService coordina registro, verificación OTP, login y reseteo de contraseña.
type UserService struct {
	logger     *zap.Logger
	users      repository.UserRepository
	referrals  referralEngine
	notifier   email.Notifier
	templates  *email.Templates
	otpLimiter RateLimiter
	otpTTL     time.Duration
	now        func() time.Time
}

func NewUserService(
	logger *zap.Logger,
	users repository.UserRepository,
	referrals referralEngine,
	notifier email.Notifier,
	templates *email.Templates,
	otpLimiter RateLimiter,
	otpTTL time.Duration,
) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if otpLimiter == nil {
		otpLimiter = NewMemoryRateLimiter(defaultOTPTTL, 3)
	}
	if otpTTL <= 0 {
		otpTTL = defaultOTPTTL
	}
	if templates == nil {
		templates = email.NewTemplates("")
	}
	return &UserService{
		logger:     logger,
		users:      users,
		referrals:  referrals,
		notifier:   notifier,
		templates:  templates,
		otpLimiter: otpLimiter,
		otpTTL:     otpTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type RegisterInput struct {
	Name         string
	Email        string
	Password     string
	ReferralCode string
}

// RegisterResult informa si el código de referido se aplicó y si se emitió el
// OTP. Ni un código inválido ni un fallo al emitir el OTP deshacen el registro:
// el cliente puede pedir otro código con ResendOTP.
type RegisterResult struct {
	User            domain.User
	ReferralApplied bool
	ReferralError   error
	OTPSent         bool
}

func (s *UserService) Register(ctx context.Context, input RegisterInput) (RegisterResult, error) {
	name := strings.TrimSpace(input.Name)
	emailAddr := normalizeEmail(input.Email)
	password := input.Password
	if name == "" || strings.TrimSpace(password) == "" {
		return RegisterResult{}, ErrInvalidInput
	}
	if !isValidEmail(emailAddr) {
		return RegisterResult{}, ErrInvalidEmail
	}

	if _, err := s.users.GetByEmail(ctx, emailAddr); err == nil {
		return RegisterResult{}, ErrEmailTaken
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return RegisterResult{}, fmt.Errorf("lookup email: %w", err)
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return RegisterResult{}, err
	}

	now := s.now()
	user := domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        emailAddr,
		PasswordHash: string(hashBytes),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.createWithReferralCode(ctx, &user); err != nil {
		return RegisterResult{}, err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID))

	result := RegisterResult{User: user}
	if code := strings.TrimSpace(input.ReferralCode); code != "" && s.referrals != nil {
		referral, err := s.referrals.CreateReferral(ctx, user.ID, code)
		if err != nil {
			s.logger.Warn("referral code not applied",
				zap.Error(err),
				zap.String("user_id", user.ID),
				zap.String("referral_code", code),
			)
			result.ReferralError = err
		} else {
			result.ReferralApplied = true
			referrerID := referral.ReferrerID
			result.User.ReferredBy = &referrerID
		}
	}

	updated, err := s.issueOTP(ctx, result.User, otpPurposeRegister)
	if err != nil {
		s.logger.Error("issue registration otp failed", zap.Error(err), zap.String("user_id", user.ID))
		return result, nil
	}
	result.User = updated
	result.OTPSent = true
	return result, nil
}

// createWithReferralCode reintenta con un código nuevo si choca con uno existente.
func (s *UserService) createWithReferralCode(ctx context.Context, user *domain.User) error {
	for attempt := 0; attempt < referralCodeAttempts; attempt++ {
		code, err := generateReferralCode()
		if err != nil {
			return err
		}
		user.ReferralCode = code
		err = s.users.Create(ctx, *user)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return fmt.Errorf("create user: %w", err)
		}
		// El email pudo registrarse en paralelo.
		if _, lookupErr := s.users.GetByEmail(ctx, user.Email); lookupErr == nil {
			return ErrEmailTaken
		}
	}
	return fmt.Errorf("could not allocate a unique referral code after %d attempts", referralCodeAttempts)
}

// issueOTP genera un código nuevo, reemplaza cualquier código previo y lo envía por email.
func (s *UserService) issueOTP(ctx context.Context, user domain.User, purpose otpPurpose) (domain.User, error) {
	code, hash, err := generateOTP()
	if err != nil {
		return domain.User{}, err
	}
	expiresAt := s.now().Add(s.otpTTL)
	if err := s.users.UpdateOTP(ctx, user.ID, hash, expiresAt); err != nil {
		return domain.User{}, fmt.Errorf("store otp: %w", err)
	}
	user.OtpCodeHash = hash
	user.OtpExpiresAt = &expiresAt

	var msg email.Message
	switch purpose {
	case otpPurposeResend:
		msg, err = s.templates.ResendOTP(user.Email, user.Name, code, s.otpTTL)
	case otpPurposeReset:
		msg, err = s.templates.PasswordReset(user.Email, user.Name, code, s.otpTTL)
	default:
		msg, err = s.templates.OTPVerification(user.Email, user.Name, code, s.otpTTL)
	}
	if err != nil {
		s.logger.Warn("render otp email failed", zap.Error(err), zap.String("user_id", user.ID))
		return user, nil
	}
	s.notify(ctx, msg)
	return user, nil
}

func (s *UserService) ResendOTP(ctx context.Context, emailAddr string) (domain.User, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return domain.User{}, ErrInvalidEmail
	}
	user, err := s.getByEmail(ctx, emailAddr)
	if err != nil {
		return domain.User{}, err
	}
	if user.IsVerified() {
		return domain.User{}, ErrAlreadyVerified
	}
	if !s.otpLimiter.Allow(emailAddr) {
		return domain.User{}, ErrRateLimited
	}
	return s.issueOTP(ctx, user, otpPurposeResend)
}

// VerifyOTP activa la cuenta. No es idempotente: una segunda llamada devuelve
// ErrAlreadyVerified.
func (s *UserService) VerifyOTP(ctx context.Context, emailAddr, code string) (domain.User, error) {
	emailAddr = normalizeEmail(emailAddr)
	code = strings.TrimSpace(code)
	if emailAddr == "" {
		return domain.User{}, ErrInvalidEmail
	}

	user, err := s.getByEmail(ctx, emailAddr)
	if err != nil {
		return domain.User{}, err
	}
	if user.IsVerified() {
		return domain.User{}, ErrAlreadyVerified
	}
	if err := s.checkOTP(user, code); err != nil {
		return domain.User{}, err
	}

	verifiedAt := s.now()
	if err := s.users.MarkVerified(ctx, user.ID, verifiedAt); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.User{}, ErrAlreadyVerified
		}
		return domain.User{}, fmt.Errorf("mark verified: %w", err)
	}
	user.EmailVerifiedAt = &verifiedAt
	user.OtpCodeHash = ""
	user.OtpExpiresAt = nil
	s.logger.Info("user verified", zap.String("user_id", user.ID))

	if user.ReferredBy != nil && s.referrals != nil {
		if _, err := s.referrals.CompleteReferral(ctx, user.ID); err != nil {
			// El job de reconciliación reintenta los fallos de infraestructura.
			s.logger.Warn("complete referral after verification failed",
				zap.Error(err),
				zap.String("user_id", user.ID),
			)
		}
	}

	if msg, err := s.templates.Welcome(user.Email, user.Name, user.ReferralCode); err != nil {
		s.logger.Warn("render welcome email failed", zap.Error(err))
	} else {
		s.notify(ctx, msg)
	}
	return user, nil
}

// checkOTP evalúa en orden: sin código activo, código distinto, vencido.
func (s *UserService) checkOTP(user domain.User, code string) error {
	if !user.HasActiveOTP() {
		return ErrNoActiveOTP
	}
	if !isValidOTPCode(code) || !verifyOTP(code, user.OtpCodeHash) {
		return ErrOTPMismatch
	}
	if s.now().After(*user.OtpExpiresAt) {
		return ErrOTPExpired
	}
	return nil
}

func (s *UserService) Authenticate(ctx context.Context, emailAddr, password string) (domain.User, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || strings.TrimSpace(password) == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if user.PasswordHash == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	if !user.IsVerified() {
		return domain.User{}, ErrEmailNotVerified
	}
	return user, nil
}

func (s *UserService) ForgotPassword(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ErrInvalidEmail
	}
	user, err := s.getByEmail(ctx, emailAddr)
	if err != nil {
		return err
	}
	if !s.otpLimiter.Allow(emailAddr) {
		return ErrRateLimited
	}
	_, err = s.issueOTP(ctx, user, otpPurposeReset)
	return err
}

func (s *UserService) VerifyResetOTP(ctx context.Context, emailAddr, code string) error {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ErrInvalidEmail
	}
	user, err := s.getByEmail(ctx, emailAddr)
	if err != nil {
		return err
	}
	if err := s.checkOTP(user, strings.TrimSpace(code)); err != nil {
		return err
	}
	if err := s.users.MarkResetVerified(ctx, user.ID); err != nil {
		return fmt.Errorf("mark reset verified: %w", err)
	}
	return nil
}

func (s *UserService) ResetPassword(ctx context.Context, emailAddr, newPassword string) error {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ErrInvalidEmail
	}
	if strings.TrimSpace(newPassword) == "" {
		return ErrInvalidInput
	}
	user, err := s.getByEmail(ctx, emailAddr)
	if err != nil {
		return err
	}
	if !user.ResetVerified {
		return ErrResetNotVerified
	}
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, string(hashBytes)); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrResetNotVerified
		}
		return fmt.Errorf("update password: %w", err)
	}
	s.logger.Info("password reset", zap.String("user_id", user.ID))
	return nil
}

func (s *UserService) Profile(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

func (s *UserService) getByEmail(ctx context.Context, emailAddr string) (domain.User, error) {
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

func (s *UserService) notify(ctx context.Context, msg email.Message) {
	if s.notifier == nil {
		s.logger.Warn("notifier not configured, dropping email", zap.String("subject", msg.Subject))
		return
	}
	s.notifier.Notify(ctx, msg)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	return !strings.ContainsAny(email, " \t\r\n") && strings.Contains(email[at+1:], ".")
}

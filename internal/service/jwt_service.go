package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"paisape/internal/domain"
)

var (
	ErrJWTInvalid = errors.New("jwt invalid")
	ErrJWTExpired = errors.New("jwt expired")
)

const jwtIssuer = "paisape"

type tokenKind string

const (
	kindAccess  tokenKind = "access"
	kindRefresh tokenKind = "refresh"
)

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Claims refleja el estado del usuario al momento de emitir el token.
type Claims struct {
	UserID        string `json:"uid"`
	Email         string `json:"email"`
	Name          string `json:"name,omitempty"`
	ReferralCode  string `json:"referral_code,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	TokenType     string `json:"typ"`
	jwt.RegisteredClaims
}

// UserLoader devuelve el usuario vigente para un id. UserService.Profile lo cumple.
type UserLoader func(ctx context.Context, userID string) (domain.User, error)

// JWTService emite pares access/refresh HS256. Los refresh tokens son de un
// solo uso y se registran en un RefreshTokenStore.
type JWTService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	store      RefreshTokenStore
	now        func() time.Time
}

// NewJWTService usa un store en memoria si store es nil.
func NewJWTService(secret string, accessTTL, refreshTTL time.Duration, store RefreshTokenStore) *JWTService {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	if store == nil {
		store = NewMemoryRefreshTokenStore()
	}
	return &JWTService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		store:      store,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *JWTService) GeneratePair(ctx context.Context, user domain.User) (TokenPair, error) {
	if len(s.secret) == 0 {
		return TokenPair{}, ErrJWTInvalid
	}
	now := s.now()
	access, _, err := s.sign(user, kindAccess, now)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, jti, err := s.sign(user, kindRefresh, now)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	if err := s.store.Store(ctx, jti, user.ID, s.refreshTTL); err != nil {
		return TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// Rotate canjea un refresh token por un par nuevo. Los claims nuevos salen del
// usuario recargado con load, no del token viejo, así que reflejan cambios de
// nombre o de verificación. Un token ya canjeado devuelve ErrJWTInvalid.
func (s *JWTService) Rotate(ctx context.Context, refreshToken string, load UserLoader) (TokenPair, error) {
	claims, err := s.verify(refreshToken, kindRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	user, err := load(ctx, claims.UserID)
	if err != nil {
		return TokenPair{}, err
	}
	owner, found, err := s.store.Consume(ctx, claims.ID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("consume refresh token: %w", err)
	}
	if !found || owner != user.ID {
		return TokenPair{}, ErrJWTInvalid
	}
	return s.GeneratePair(ctx, user)
}

func (s *JWTService) RevokeRefresh(ctx context.Context, refreshToken string) error {
	claims, err := s.verify(refreshToken, kindRefresh)
	if err != nil {
		return err
	}
	return s.store.Revoke(ctx, claims.ID)
}

func (s *JWTService) ParseAccessToken(accessToken string) (Claims, error) {
	return s.verify(accessToken, kindAccess)
}

func (s *JWTService) sign(user domain.User, kind tokenKind, now time.Time) (string, string, error) {
	ttl := s.accessTTL
	jti := ""
	if kind == kindRefresh {
		ttl = s.refreshTTL
		jti = uuid.NewString()
	}
	claims := Claims{
		UserID:        user.ID,
		Email:         user.Email,
		Name:          user.Name,
		ReferralCode:  user.ReferralCode,
		EmailVerified: user.IsVerified(),
		TokenType:     string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    jwtIssuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return signed, jti, err
}

// verify comprueba firma, emisor, vencimiento, tipo y que sub coincida con uid.
func (s *JWTService) verify(raw string, kind tokenKind) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if len(s.secret) == 0 || raw == "" {
		return Claims{}, ErrJWTInvalid
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(jwtIssuer),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrJWTExpired
	case err != nil:
		return Claims{}, ErrJWTInvalid
	}
	if claims.TokenType != string(kind) || claims.UserID == "" || claims.Subject != claims.UserID {
		return Claims{}, ErrJWTInvalid
	}
	if kind == kindRefresh && claims.ID == "" {
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}
